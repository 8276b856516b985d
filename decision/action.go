package decision

import (
	"strings"

	"github.com/angas/solarcast/types"
)

type Action int

const (
	Hold        Action = iota // Neither surplus nor deficit worth acting on
	Sell                      // Sell surplus to the grid
	Buy                       // Buy the deficit from the grid
	actionCount               // Number of actions
)

func (a Action) String() string {
	switch a {
	case Hold:
		return "Hold"
	case Sell:
		return "Sell"
	case Buy:
		return "Buy"
	default:
		return "unknown"
	}
}

func (a Action) IsValid() bool {
	return a >= Hold && a < actionCount
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func ParseAction(name string) (Action, error) {
	for a := Hold; a < actionCount; a++ {
		if strings.EqualFold(strings.TrimSpace(name), a.String()) {
			return a, nil
		}
	}
	return Hold, types.NewConfigurationError("action", "unknown action %q", name)
}
