package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"quantbt/internal/repository"
	"quantbt/types"
)

var (
	ErrNoInstruments  = errors.New("config: no instruments configured")
	ErrBadInterval    = errors.New("config: unsupported interval")
	ErrBadTimeRange   = errors.New("config: start must be before end")
	ErrBadInitialCash = errors.New("config: initial cash must be positive")
	ErrBadAllocation  = errors.New("config: allocation fraction must be in (0,1]")
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Oanda    OandaConfig    `mapstructure:"oanda"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Report   ReportConfig   `mapstructure:"report"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type OandaConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	Token          string  `mapstructure:"token"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
	MaxRetries     int     `mapstructure:"max_retries"`
	TimeoutSec     int     `mapstructure:"timeout_sec"`
}

type InstrumentConfig struct {
	Ticker   string `mapstructure:"ticker"`
	Interval string `mapstructure:"interval"`
	Start    string `mapstructure:"start"`
	End      string `mapstructure:"end"`
}

type BacktestConfig struct {
	Instruments        []InstrumentConfig `mapstructure:"instruments"`
	InitialCash        float64            `mapstructure:"initial_cash"`
	AllocationFraction float64            `mapstructure:"allocation_fraction"`
	UseSpread          bool               `mapstructure:"use_spread"`
	AllowShortSelling  bool               `mapstructure:"allow_short_selling"`
	FeePercent         float64            `mapstructure:"fee_percent"`
	FeeMin             float64            `mapstructure:"fee_min"`
	FeeMax             float64            `mapstructure:"fee_max"`
	Strategy           string             `mapstructure:"strategy"`
	Params             map[string]int     `mapstructure:"params"`
}

type ReportConfig struct {
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
	TradesCSV    string  `mapstructure:"trades_csv"`
	ChartHTML    string  `mapstructure:"chart_html"`
	PrintTrades  bool    `mapstructure:"print_trades"`
}

// Load reads the YAML config at path, applies defaults and environment
// overrides (QUANTBT_ prefix, OANDA_API_TOKEN for the vendor token) and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("oanda.base_url", "https://api-fxpractice.oanda.com")
	v.SetDefault("oanda.requests_per_sec", 5.0)
	v.SetDefault("oanda.max_retries", 3)
	v.SetDefault("oanda.timeout_sec", 30)
	v.SetDefault("backtest.initial_cash", 10000)
	v.SetDefault("backtest.allocation_fraction", 1.0)
	v.SetDefault("backtest.use_spread", true)
	v.SetDefault("report.risk_free_rate", 0.02)

	v.SetEnvPrefix("QUANTBT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("oanda.token", "OANDA_API_TOKEN"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("database.url", "DATABASE_URL"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		timeToStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// timeToStringHook undoes yaml's eager parsing of unquoted dates like
// `start: 2022-01-01` so instrument start/end land in their string fields.
func timeToStringHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from != reflect.TypeOf(time.Time{}) || to.Kind() != reflect.String {
			return data, nil
		}
		return data.(time.Time).Format(time.RFC3339), nil
	}
}

func (c *Config) Validate() error {
	if len(c.Backtest.Instruments) == 0 {
		return ErrNoInstruments
	}
	for _, inst := range c.Backtest.Instruments {
		// The interval must not only parse, the candle store must be able to
		// aggregate to it; otherwise the run only fails once it hits the
		// database.
		interval, ok := types.ConvertInterval[inst.Interval]
		if !ok || !repository.SupportedInterval(interval) {
			return fmt.Errorf("%w: %q (ticker %s)", ErrBadInterval, inst.Interval, inst.Ticker)
		}
		start, end, err := inst.TimeRange()
		if err != nil {
			return err
		}
		if !start.Before(end) {
			return fmt.Errorf("%w: ticker %s", ErrBadTimeRange, inst.Ticker)
		}
	}
	if c.Backtest.InitialCash <= 0 {
		return ErrBadInitialCash
	}
	if c.Backtest.AllocationFraction <= 0 || c.Backtest.AllocationFraction > 1 {
		return ErrBadAllocation
	}
	return nil
}

// TimeRange parses the instrument's start/end dates (YYYY-MM-DD or RFC3339).
func (i InstrumentConfig) TimeRange() (time.Time, time.Time, error) {
	start, err := parseTime(i.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("config: ticker %s start: %w", i.Ticker, err)
	}
	end, err := parseTime(i.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("config: ticker %s end: %w", i.Ticker, err)
	}
	return start, end, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
