package forecast

import (
	"slices"
	"strings"

	"github.com/angas/solarcast/types"
)

type Algorithm int

const (
	Baseline        Algorithm = iota // Trailing mean plus trend
	Seasonal                         // Linear trend plus weekly profile
	GradientBoosted                  // Boosted regression stumps on lag and calendar features
	algorithmCount                   // Number of algorithms
)

func (a Algorithm) String() string {
	switch a {
	case Baseline:
		return "baseline"
	case Seasonal:
		return "seasonal"
	case GradientBoosted:
		return "gradient_boosted"
	default:
		return "unknown"
	}
}

func (a Algorithm) IsValid() bool {
	return a >= Baseline && a < algorithmCount
}

func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func ParseAlgorithm(name string) (Algorithm, error) {
	for a := Baseline; a < algorithmCount; a++ {
		if strings.EqualFold(strings.TrimSpace(name), a.String()) {
			return a, nil
		}
	}
	return Baseline, types.NewConfigurationError("algorithm", "unknown algorithm %q", name)
}

// ParsePreferences turns configured names into an ordered preference list.
// Unknown and repeated names are configuration errors. An empty list means
// baseline only.
func ParsePreferences(names []string) ([]Algorithm, error) {
	res := make([]Algorithm, 0, len(names))
	for _, name := range names {
		a, err := ParseAlgorithm(name)
		if err != nil {
			return nil, err
		}
		if slices.Contains(res, a) {
			return nil, types.NewConfigurationError("algorithm", "%s listed more than once", a)
		}
		res = append(res, a)
	}
	return res, nil
}

type Kind int

const (
	KindConsumption Kind = iota
	KindProduction
)

func (k Kind) String() string {
	switch k {
	case KindConsumption:
		return "consumption"
	case KindProduction:
		return "production"
	default:
		return "unknown"
	}
}

func ParseKind(name string) (Kind, error) {
	for _, k := range []Kind{KindConsumption, KindProduction} {
		if strings.EqualFold(strings.TrimSpace(name), k.String()) {
			return k, nil
		}
	}
	return KindConsumption, types.NewConfigurationError("kind", "unknown model kind %q", name)
}
