package ccee

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/source"
)

const (
	Name           = "ccee"
	DefaultBaseURL = "https://dadosabertos.ccee.org.br"
	// PLD never goes below the regulatory floor used by the simulator.
	syntheticFloor = 50.0
)

// Config points the connector at the hourly PLD datastore resource.
type Config struct {
	BaseURL     string `mapstructure:"base_url"`
	PldResource string `mapstructure:"pld_resource"`
	PageSize    int    `mapstructure:"page_size"`
}

var submarkets = map[string]string{
	"SE": "SUDESTE",
	"S":  "SUL",
	"NE": "NORDESTE",
	"N":  "NORTE",
}

type Ccee struct {
	client *source.Client
	config Config
}

func New(config Config, params source.Params) Ccee {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.PageSize <= 0 {
		config.PageSize = 10000
	}
	return Ccee{client: source.NewClient(Name, params), config: config}
}

func Connector(config Config, params source.Params, opts ...source.Option) *source.Connector {
	return source.New(Name, New(config, params), Simulator{}, opts...)
}

func Key(submarket string) string {
	return "pld_" + submarket
}

// SubmarketName maps the short code to the name used in CCEE datasets.
func SubmarketName(code string) string {
	if name, ok := submarkets[strings.ToUpper(code)]; ok {
		return name
	}
	return strings.ToUpper(code)
}

// Fetch returns the daily mean PLD in R$/MWh for the submarket in req.Key.
func (c Ccee) Fetch(ctx context.Context, req source.Request) (series.Bundle, error) {
	code := strings.TrimPrefix(req.Key, "pld_")
	records, err := c.client.DatastoreSearch(ctx, c.config.BaseURL, c.config.PldResource,
		map[string]string{"SUBMERCADO": SubmarketName(code)}, c.config.PageSize)
	if err != nil {
		return series.Bundle{}, fmt.Errorf("failed to fetch pld from ccee: %w", err)
	}

	daily := source.NewDaily()
	for _, r := range records {
		t, ok := recordDay(r)
		if !ok {
			continue
		}
		v, ok := source.Float(r["PLD_HORA"])
		if !ok {
			continue
		}
		daily.Add(t, v, req.Start, req.End)
	}
	if daily.Len() == 0 {
		return series.Bundle{}, fmt.Errorf("no pld records for %s", code)
	}

	return series.Bundle{Connector: Name, Series: []series.Series{daily.Series(series.Price, code, nil)}}, nil
}

// recordDay combines MES_REFERENCIA (yyyymm) and DIA into a date.
func recordDay(r map[string]any) (time.Time, bool) {
	month, ok := source.Time(fmt.Sprint(r["MES_REFERENCIA"]), "200601")
	if !ok {
		return time.Time{}, false
	}
	day, ok := source.Float(fmt.Sprint(r["DIA"]))
	if !ok || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := month.AddDate(0, 0, int(day)-1)
	if t.Month() != month.Month() {
		return time.Time{}, false
	}
	return t, true
}

// Simulator produces a yearly-seasonal PLD around 300 R$/MWh.
type Simulator struct{}

func (Simulator) Simulate(req source.Request, rng *rand.Rand) series.Bundle {
	code := strings.TrimPrefix(req.Key, "pld_")
	values := make([]float64, req.Days())
	for d := range values {
		seasonal := 100 * math.Sin(float64(d)*2*math.Pi/365)
		values[d] = math.Max(syntheticFloor, 300+seasonal+source.Normal(rng, 0, 50))
	}
	return series.Bundle{Connector: Name, Series: []series.Series{
		series.FromValues(series.Price, code, req.Start, values),
	}}
}
