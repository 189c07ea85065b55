package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
database:
  url: postgresql://localhost:5432/quantbt
backtest:
  instruments:
    - ticker: EUR_USD
      interval: "60"
      start: 2022-01-01
      end: 2022-06-01
  initial_cash: 25000
  allocation_fraction: 0.5
  strategy: meanrev
  params:
    period: 14
report:
  risk_free_rate: 0.03
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quantbt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "postgresql://localhost:5432/quantbt", cfg.Database.URL)
	assert.Equal(t, 25000.0, cfg.Backtest.InitialCash)
	assert.Equal(t, 0.5, cfg.Backtest.AllocationFraction)
	assert.Equal(t, "meanrev", cfg.Backtest.Strategy)
	assert.Equal(t, 14, cfg.Backtest.Params["period"])
	assert.Equal(t, 0.03, cfg.Report.RiskFreeRate)

	// defaults
	assert.True(t, cfg.Backtest.UseSpread)
	assert.Equal(t, "https://api-fxpractice.oanda.com", cfg.Oanda.BaseURL)
	assert.Equal(t, 3, cfg.Oanda.MaxRetries)

	// unquoted YAML dates survive decoding and parse into a usable range
	start, end, err := cfg.Backtest.Instruments[0].TimeRange()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestLoadTokenFromEnv(t *testing.T) {
	t.Setenv("OANDA_API_TOKEN", "secret-token")
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Oanda.Token)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"no instruments", func(c *Config) { c.Backtest.Instruments = nil }, ErrNoInstruments},
		{"bad interval", func(c *Config) { c.Backtest.Instruments[0].Interval = "7" }, ErrBadInterval},
		{"interval the store cannot bucket", func(c *Config) { c.Backtest.Instruments[0].Interval = "3" }, ErrBadInterval},
		{"start after end", func(c *Config) {
			c.Backtest.Instruments[0].Start = "2023-01-01"
			c.Backtest.Instruments[0].End = "2022-01-01"
		}, ErrBadTimeRange},
		{"zero cash", func(c *Config) { c.Backtest.InitialCash = 0 }, ErrBadInitialCash},
		{"fraction too big", func(c *Config) { c.Backtest.AllocationFraction = 1.5 }, ErrBadAllocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, testYAML))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestTimeRangeFormats(t *testing.T) {
	inst := InstrumentConfig{Ticker: "EUR_USD", Start: "2022-01-01", End: "2022-02-01T12:00:00Z"}
	start, end, err := inst.TimeRange()
	require.NoError(t, err)
	assert.Equal(t, 2022, start.Year())
	assert.Equal(t, 12, end.Hour())
}
