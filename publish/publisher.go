package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/solarcast/config"
	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/decision"
	"github.com/angas/solarcast/pipeline"
	"github.com/angas/solarcast/profit"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	publishTimeout = 10 * time.Second
	qos            = 1
)

// DayMessage is one row of the published decision table.
type DayMessage struct {
	Date          string          `json:"date"`
	Decision      decision.Action `json:"decision"`
	Advice        decision.Action `json:"advice"`
	Favorable     bool            `json:"favorable"`
	SurplusKWh    float64         `json:"surplus_kwh"`
	DeficitKWh    float64         `json:"deficit_kwh"`
	NetProfitBRL  float64         `json:"net_profit_brl"`
	ProductionKWh float64         `json:"production_kwh"`
}

// TableMessage is the full decision table of one run.
type TableMessage struct {
	RunID        uuid.UUID      `json:"run_id"`
	CreatedAt    time.Time      `json:"created_at"`
	ForwardPrice float64        `json:"forward_price_brl_mwh"`
	Days         []DayMessage   `json:"days"`
	Summary      profit.Summary `json:"summary"`
}

func NewTableMessage(res *pipeline.Result) TableMessage {
	msg := TableMessage{
		RunID:        res.RunID,
		CreatedAt:    res.CreatedAt,
		ForwardPrice: res.ForwardPrice,
		Days:         make([]DayMessage, 0, len(res.Records)),
		Summary:      res.Summary,
	}
	for i, r := range res.Records {
		d := DayMessage{
			Date:          days.Format(r.Timestamp),
			Decision:      r.Decision,
			SurplusKWh:    r.SurplusKWh,
			DeficitKWh:    r.DeficitKWh,
			NetProfitBRL:  r.NetProfitBRL,
			ProductionKWh: r.ProductionKWh,
		}
		if i < len(res.Advice) {
			d.Advice = res.Advice[i].Action
			d.Favorable = res.Advice[i].Favorable
		}
		msg.Days = append(msg.Days, d)
	}
	return msg
}

type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends every finished run to an MQTT broker. The table goes to
// <topic>/table and the first forecast day to <topic>/next, both retained
// so late subscribers get the latest decision.
type Publisher struct {
	client client
	topic  string
	logger *slog.Logger
}

func New(cnfg config.AppConfigMqtt) (*Publisher, mqtt.Client) {
	logger := slog.Default().With("module", "publish")
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cnfg.Host, cnfg.Port))
	opts.SetClientID(cnfg.GetClientID())
	opts.SetUsername(cnfg.Username)
	opts.SetPassword(cnfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	RouteClientLogs(slog.Default().With("module", "mqtt"))

	c := mqtt.NewClient(opts)
	return NewWithClient(c, cnfg.GetTopic()), c
}

func NewWithClient(c client, topic string) *Publisher {
	return &Publisher{
		client: c,
		topic:  topic,
		logger: slog.Default().With("module", "publish"),
	}
}

func (p *Publisher) Name() string {
	return "mqtt"
}

func (p *Publisher) Report(ctx context.Context, res *pipeline.Result) error {
	msg := NewTableMessage(res)

	table, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding decision table: %w", err)
	}
	if err := p.publish(ctx, p.topic+"/table", table); err != nil {
		return err
	}

	if len(msg.Days) > 0 {
		next, err := json.Marshal(msg.Days[0])
		if err != nil {
			return fmt.Errorf("encoding next decision: %w", err)
		}
		if err := p.publish(ctx, p.topic+"/next", next); err != nil {
			return err
		}
	}

	p.logger.Debug("decision table published", slog.String("topic", p.topic), slog.Int("days", len(msg.Days)))
	return nil
}

func (p *Publisher) publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, qos, true, payload)

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing to %s: %w", topic, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("publishing to %s: %w", topic, errTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errTimeout = errors.New("timed out waiting for broker")

// Connect waits up to timeout for the broker. The client keeps retrying in
// the background after a timeout.
func Connect(c mqtt.Client, timeout time.Duration) error {
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("connecting to broker: %w", errTimeout)
	}
	return token.Error()
}
