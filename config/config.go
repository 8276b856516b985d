package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/angas/solarcast/ccee"
	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/decision"
	"github.com/angas/solarcast/logging"
	"github.com/angas/solarcast/ons"
	"github.com/angas/solarcast/pipeline"
	"github.com/angas/solarcast/profit"
	"github.com/angas/solarcast/resolver"
	"github.com/angas/solarcast/source"
	"github.com/angas/solarcast/types"
	"github.com/angas/solarcast/types/maybe"
	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
}

type AppConfigDatabase struct {
	Path string
	// How many days runs should be stored in database before they get purged
	DataRetentionDays *int `mapstructure:"data_retention_days"`
	// How many days daily backup files should be stored before they get deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
	// How many of the newest backups are kept regardless of their age
	BackupKeep *int `mapstructure:"backup_keep"`
}

func (d AppConfigDatabase) GetDataRetentionDays() int {
	if d.DataRetentionDays == nil {
		return 90
	}
	return *d.DataRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 90
	}
	return *d.BackupRetentionDays
}

func (d AppConfigDatabase) GetBackupKeep() int {
	if d.BackupKeep == nil {
		return 3
	}
	return *d.BackupKeep
}

type AppConfigMqtt struct {
	Host     string // Publishing is off when empty
	Port     int16
	Username string
	Password string
	Topic    *string `mapstructure:"topic"`
	ClientID *string `mapstructure:"client_id"`
}

func (m AppConfigMqtt) Enabled() bool {
	return m.Host != ""
}

func (m AppConfigMqtt) GetTopic() string {
	if m.Topic == nil {
		return "solarcast/decisions"
	}
	return *m.Topic
}

func (m AppConfigMqtt) GetClientID() string {
	if m.ClientID == nil {
		return "solarcast"
	}
	return *m.ClientID
}

type AppConfigData struct {
	// First and last historical day, "2006-01-02". When empty the history
	// ends yesterday and spans HistoryDays.
	Start       string `mapstructure:"start"`
	End         string `mapstructure:"end"`
	HistoryDays *int   `mapstructure:"history_days"`
	Region      string `mapstructure:"region" default:"SE"`    // ONS subsystem: "SE", "S", "NE", "N"
	Submarket   string `mapstructure:"submarket" default:"SE"` // CCEE submarket: "SE", "S", "NE", "N"
	Station     string `mapstructure:"station" default:"A701"` // INMET station code
	UseRealData bool   `mapstructure:"use_real_data"`
	// Site position (WGS84), enables the irradiance connectors
	Latitude  *float64 `mapstructure:"latitude"`
	Longitude *float64 `mapstructure:"longitude"`
	// Connector cache directory, no caching when empty
	CacheDir string `mapstructure:"cache_dir"`
}

func (d AppConfigData) GetHistoryDays() int {
	if d.HistoryDays == nil {
		return 365
	}
	return *d.HistoryDays
}

// Range returns the historical days to use for a run started at now.
func (d AppConfigData) Range(now time.Time) (time.Time, time.Time, error) {
	end := days.Add(now, -1)
	if d.End != "" {
		var err error
		if end, err = days.Parse(d.End); err != nil {
			return time.Time{}, time.Time{}, types.NewConfigurationError("data.end", "%v", err)
		}
	}
	start := days.Add(end, -(d.GetHistoryDays() - 1))
	if d.Start != "" {
		var err error
		if start, err = days.Parse(d.Start); err != nil {
			return time.Time{}, time.Time{}, types.NewConfigurationError("data.start", "%v", err)
		}
	}
	return start, end, nil
}

func (d AppConfigData) Coordinates() maybe.Maybe[types.Coordinates] {
	if d.Latitude == nil || d.Longitude == nil {
		return maybe.None[types.Coordinates]()
	}
	return maybe.Some(types.Coordinates{Latitude: *d.Latitude, Longitude: *d.Longitude})
}

type AppConfigForecast struct {
	Horizon               int      `mapstructure:"horizon" default:"7"`
	ConsumptionAlgorithms []string `mapstructure:"consumption_algorithms"`
	ProductionAlgorithms  []string `mapstructure:"production_algorithms"`
	Features              *bool    `mapstructure:"features"`
	Validate              *bool    `mapstructure:"validate"`
	// BacktestStep enables an expanding window backtest that forecasts
	// this many days per round. Zero disables it.
	BacktestStep int `mapstructure:"backtest_step"`
}

func (f AppConfigForecast) GetFeatures() bool {
	return f.Features == nil || *f.Features
}

func (f AppConfigForecast) GetValidate() bool {
	return f.Validate == nil || *f.Validate
}

type AppConfigEndpoints struct {
	Ons            ons.Config  `mapstructure:"ons"`
	Ccee           ccee.Config `mapstructure:"ccee"`
	OpenWeather    string      `mapstructure:"openweather"`
	OpenWeatherKey string      `mapstructure:"openweather_key"`
	Pvgis          string      `mapstructure:"pvgis"`
	Inmet          string      `mapstructure:"inmet"`
}

type AppConfigSchedule struct {
	RunAt         string `mapstructure:"run_at" default:"0 6 * * *"`
	MaintenanceAt string `mapstructure:"maintenance_at" default:"30 3 * * *"`
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return logging.LogAttrFormatJSON
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Api        AppConfigApi
	Database   AppConfigDatabase
	Mqtt       AppConfigMqtt
	Data       AppConfigData        `mapstructure:"data"`
	Forecast   AppConfigForecast    `mapstructure:"forecast"`
	Finance    profit.FinanceParams `mapstructure:"finance"`
	Decision   decision.Params      `mapstructure:"decision"`
	Connectors source.Params        `mapstructure:"connectors"`
	Endpoints  AppConfigEndpoints   `mapstructure:"endpoints"`
	Schedule   AppConfigSchedule    `mapstructure:"schedule"`
	Logging    AppConfigLogging     `mapstructure:"logging"`
}

func Load(path string) (*AppConfig, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath("config")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c AppConfig
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("unable to set config defaults: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	if err := c.Connectors.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Watch logs every change of the loaded config file and calls onChange.
// Running tasks keep the configuration they were started with.
func Watch(logger *slog.Logger, onChange func(fsnotify.Event)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed, restart to apply", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		if onChange != nil {
			onChange(e)
		}
	})
	viper.WatchConfig()
}

// Input builds the pipeline input for a run started at now.
func (c *AppConfig) Input(now time.Time) (pipeline.Input, error) {
	start, end, err := c.Data.Range(now)
	if err != nil {
		return pipeline.Input{}, err
	}
	return pipeline.Input{
		Start:                 start,
		End:                   end,
		Region:                c.Data.Region,
		Submarket:             c.Data.Submarket,
		Station:               c.Data.Station,
		UseRealData:           c.Data.UseRealData,
		Coordinates:           c.Data.Coordinates(),
		ConsumptionAlgorithms: c.Forecast.ConsumptionAlgorithms,
		ProductionAlgorithms:  c.Forecast.ProductionAlgorithms,
		Horizon:               c.Forecast.Horizon,
		Features:              c.Forecast.GetFeatures(),
		Validate:              c.Forecast.GetValidate(),
		BacktestStep:          c.Forecast.BacktestStep,
		Finance:               c.Finance,
		Decision:              c.Decision,
	}, nil
}

// Settings builds the connector settings shared by all runs.
func (c *AppConfig) Settings() (pipeline.Settings, error) {
	s := pipeline.Settings{
		Endpoints: resolver.Endpoints{
			Ons:         c.Endpoints.Ons,
			Ccee:        c.Endpoints.Ccee,
			OpenWeather: c.Endpoints.OpenWeather,
			Pvgis:       c.Endpoints.Pvgis,
			Inmet:       c.Endpoints.Inmet,
		},
		OpenWeatherKey: c.Endpoints.OpenWeatherKey,
		Params:         c.Connectors,
	}
	if c.Data.CacheDir != "" {
		cache, err := source.NewCache(c.Data.CacheDir)
		if err != nil {
			return pipeline.Settings{}, err
		}
		s.Cache = cache
	}
	return s, nil
}
