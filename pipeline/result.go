package pipeline

import (
	"fmt"
	"time"

	"github.com/angas/solarcast/decision"
	"github.com/angas/solarcast/forecast"
	"github.com/angas/solarcast/profit"
	"github.com/angas/solarcast/resolver"
	"github.com/angas/solarcast/types/maybe"
	"github.com/angas/solarcast/validate"
	"github.com/google/uuid"
)

// Result is a finished run. Records has exactly one row per horizon day,
// starting the day after the last historical day.
type Result struct {
	RunID        uuid.UUID                                `json:"run_id"`
	CreatedAt    time.Time                                `json:"created_at"`
	Input        Input                                    `json:"input"`
	Records      []profit.DecisionRecord                  `json:"records"`
	Advice       []decision.Advice                        `json:"advice"`
	ForwardPrice float64                                  `json:"forward_price_brl_mwh"`
	Validation   map[string]maybe.Maybe[validate.Metrics] `json:"validation"`
	Backtest     map[string]maybe.Maybe[validate.Metrics] `json:"backtest,omitempty"`
	Algorithms   map[string]string                        `json:"algorithms"`
	Provenance   map[string]resolver.Provenance           `json:"provenance"`
	Summary      profit.Summary                           `json:"summary"`
	// Models are the fitted models behind the records.
	Models       map[string]*forecast.Model               `json:"-"`
}

// StageError is an unexpected failure inside one pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
