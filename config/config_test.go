package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/logging"
	"github.com/angas/solarcast/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
api:
  address: 127.0.0.1
  port: 8088
database:
  path: ./solarcast.db
  data_retention_days: 30
mqtt:
  host: broker.local
  port: 1883
data:
  start: "2024-01-01"
  end: "2024-03-31"
  region: NE
  use_real_data: true
  latitude: -23.55
  longitude: -46.63
forecast:
  horizon: 14
  consumption_algorithms: [seasonal]
  production_algorithms: [gradient_boosted, seasonal]
  validate: false
finance:
  sell_price: 0.70
  use_price_based_pricing: false
connectors:
  timeout: 10s
  attempts: 5
endpoints:
  ons:
    load_resource: load-id
logging:
  db_attrs_format: text
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("FINANCE_SELL_PRICE", "0.80")

	c, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	t.Run("Sections", func(t *testing.T) {
		assert.Equal(t, int16(8088), c.Api.Port)
		assert.Equal(t, 30, c.Database.GetDataRetentionDays())
		assert.Equal(t, 90, c.Database.GetBackupRetentionDays())
		assert.Equal(t, 3, c.Database.GetBackupKeep())
		assert.True(t, c.Mqtt.Enabled())
		assert.Equal(t, "solarcast/decisions", c.Mqtt.GetTopic())
		assert.Equal(t, "load-id", c.Endpoints.Ons.LoadResource)
		assert.Equal(t, logging.LogAttrFormatText, c.Logging.GetDbAttrsFormat())
		assert.Equal(t, 10000, c.Logging.GetDbMaxEntries())
	})

	t.Run("Defaults", func(t *testing.T) {
		assert.Equal(t, "SE", c.Data.Submarket)
		assert.Equal(t, "A701", c.Data.Station)
		assert.Equal(t, 0.90, c.Finance.BuyPrice)
		assert.Equal(t, 0.10, c.Finance.CostRate)
		assert.Equal(t, 1.0, c.Decision.BufferKWh)
		assert.Equal(t, 0.05, c.Decision.PriceThreshold)
		assert.Equal(t, time.Second, c.Connectors.BaseDelay)
		assert.Equal(t, uint64(42), c.Connectors.Seed)
		assert.Equal(t, "0 6 * * *", c.Schedule.RunAt)
	})

	t.Run("Overrides", func(t *testing.T) {
		assert.Equal(t, 0.80, c.Finance.SellPrice)
		assert.False(t, c.Finance.UsePriceBasedPricing)
		assert.Equal(t, 10*time.Second, c.Connectors.Timeout)
		assert.Equal(t, 5, c.Connectors.Attempts)
	})

	t.Run("Input", func(t *testing.T) {
		in, err := c.Input(time.Now())
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01", days.Format(in.Start))
		assert.Equal(t, "2024-03-31", days.Format(in.End))
		assert.Equal(t, "NE", in.Region)
		assert.Equal(t, 14, in.Horizon)
		assert.True(t, in.UseRealData)
		assert.True(t, in.Features)
		assert.False(t, in.Validate)
		assert.Equal(t, []string{"gradient_boosted", "seasonal"}, in.ProductionAlgorithms)
		require.True(t, in.Coordinates.IsValid())
		assert.Equal(t, -23.55, in.Coordinates.Value().Latitude)
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidConnectorParams(t *testing.T) {
	_, err := Load(writeConfig(t, "connectors:\n  attempts: 0\n"))
	var ce *types.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestDataRange(t *testing.T) {
	now := time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC)
	d := AppConfigData{}

	start, end, err := d.Range(now)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-14", days.Format(end))
	assert.Equal(t, 365, days.Between(start, end)+1)

	n := 30
	d.HistoryDays = &n
	start, _, err = d.Range(now)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-16", days.Format(start))

	d.End = "June 1st"
	_, _, err = d.Range(now)
	var ce *types.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestCoordinates(t *testing.T) {
	lat := -10.0
	assert.False(t, AppConfigData{Latitude: &lat}.Coordinates().IsValid())
}
