package forecast

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/angas/solarcast/types"
)

// Snapshot is the serialized state of a fitted baseline model.
type Snapshot struct {
	Kind      string    `json:"kind"`
	Algorithm Algorithm `json:"algorithm"`
	Target    string    `json:"target"`
	Last      time.Time `json:"last"`
	Level     float64   `json:"level"`
	Trend     float64   `json:"trend"`
	Std       float64   `json:"std"`
}

// Save writes the fitted state. Only the baseline algorithm is serializable.
func (m *Model) Save(w io.Writer) error {
	b, ok := m.estimator.(*baseline)
	if !ok {
		if !m.IsFitted() {
			return types.NewStateError("save", "model is not fitted")
		}
		return fmt.Errorf("%s models cannot be saved", m.algorithm)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Snapshot{
		Kind:      m.kind.String(),
		Algorithm: Baseline,
		Target:    m.target,
		Last:      m.last,
		Level:     b.level,
		Trend:     b.trend,
		Std:       b.std,
	})
}

// Load restores a baseline snapshot into m, replacing any fitted state.
func (m *Model) Load(r io.Reader) error {
	s, err := decodeSnapshot(r)
	if err != nil {
		return err
	}
	if s.Kind != m.kind.String() {
		return types.NewConfigurationError("snapshot", "snapshot is for a %s model, not %s", s.Kind, m.kind)
	}
	m.restore(s)
	return nil
}

// Restore builds a fitted model of whatever kind the snapshot was saved from.
func Restore(r io.Reader, opts ...Option) (*Model, error) {
	s, err := decodeSnapshot(r)
	if err != nil {
		return nil, err
	}
	kind, err := ParseKind(s.Kind)
	if err != nil {
		return nil, err
	}
	m, err := newModel(kind, nil, opts...)
	if err != nil {
		return nil, err
	}
	m.restore(s)
	return m, nil
}

func decodeSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Algorithm != Baseline {
		return Snapshot{}, types.NewConfigurationError("snapshot", "%s models cannot be restored", s.Algorithm)
	}
	return s, nil
}

func (m *Model) restore(s Snapshot) {
	m.estimator = &baseline{kind: m.kind, rng: m.rng, level: s.Level, trend: s.Trend, std: s.Std}
	m.algorithm = Baseline
	m.target = s.Target
	m.exog = nil
	m.last = s.Last
}
