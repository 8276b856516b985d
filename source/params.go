package source

import (
	"fmt"
	"time"

	"github.com/angas/solarcast/types"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Params controls how a connector talks to its upstream source.
type Params struct {
	Timeout      time.Duration `mapstructure:"timeout" default:"30s" validate:"gt=0"`
	Attempts     int           `mapstructure:"attempts" default:"3" validate:"gte=1,lte=10"`
	BaseDelay    time.Duration `mapstructure:"base_delay" default:"1s" validate:"gte=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay" default:"60s" validate:"gtefield=BaseDelay"`
	RequestDelay time.Duration `mapstructure:"request_delay" default:"1s" validate:"gte=0"`
	Seed         uint64        `mapstructure:"seed" default:"42"`
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	var p Params
	if err := defaults.Set(&p); err != nil {
		panic(fmt.Sprintf("connector defaults: %v", err))
	}
	return p
}

func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return types.NewConfigurationError("connector", "%v", err)
	}
	return nil
}
