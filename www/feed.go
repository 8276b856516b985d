package www

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angas/solarcast/pipeline"
	"github.com/angas/solarcast/profit"
	"github.com/google/uuid"
)

// RunMessage is what dashboard clients receive after every finished run.
type RunMessage struct {
	Type         string                  `json:"type"`
	RunID        uuid.UUID               `json:"run_id"`
	ForwardPrice float64                 `json:"forward_price_brl_mwh"`
	Algorithms   map[string]string       `json:"algorithms"`
	Records      []profit.DecisionRecord `json:"records"`
	Summary      profit.Summary          `json:"summary"`
}

func NewRunMessage(res *pipeline.Result) RunMessage {
	return RunMessage{
		Type:         "run",
		RunID:        res.RunID,
		ForwardPrice: res.ForwardPrice,
		Algorithms:   res.Algorithms,
		Records:      res.Records,
		Summary:      res.Summary,
	}
}

// LiveFeed pushes finished runs to the websocket hub.
type LiveFeed struct {
	hub *Hub
}

func NewLiveFeed(hub *Hub) *LiveFeed {
	return &LiveFeed{hub: hub}
}

func (f *LiveFeed) Name() string {
	return "websocket"
}

func (f *LiveFeed) Report(ctx context.Context, res *pipeline.Result) error {
	buf, err := json.Marshal(NewRunMessage(res))
	if err != nil {
		return fmt.Errorf("encoding run message: %w", err)
	}

	select {
	case f.hub.Broadcast <- buf:
		return nil
	case <-f.hub.done:
		return fmt.Errorf("websocket hub stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}
