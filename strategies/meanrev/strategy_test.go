package meanrev

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbt/types"
)

type stubPortfolio struct {
	qty decimal.Decimal
}

func (s *stubPortfolio) GetPortfolioSnapshot() types.PortfolioView {
	return types.PortfolioView{
		Cash: decimal.NewFromInt(10000),
		Positions: map[string]types.PositionSnapshot{
			"EUR_USD": {Ticker: "EUR_USD", Quantity: s.qty},
		},
	}
}

func candlesFromCloses(closes ...int64) []types.Candle {
	candles := make([]types.Candle, len(closes))
	for i, c := range closes {
		price := decimal.NewFromInt(c)
		candles[i] = types.Candle{
			Ticker:    "EUR_USD",
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Interval:  types.OneMinute,
			Timestamp: time.UnixMilli(int64(i) * 60_000).UTC(),
		}
	}
	return candles
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name                         string
		period, oversold, overbought int
		wantErr                      bool
	}{
		{"valid", 14, 30, 70, false},
		{"period too small", 1, 30, 70, true},
		{"oversold at midline", 14, 50, 70, true},
		{"overbought at midline", 14, 30, 50, true},
		{"overbought out of range", 14, 30, 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.period, tt.oversold, tt.overbought)
			if tt.wantErr {
				assert.ErrorIs(t, err, InvalidParamsErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOversoldBuyThenNeutralExit(t *testing.T) {
	strat, err := New(2, 30, 70)
	require.NoError(t, err)
	stub := &stubPortfolio{qty: decimal.Zero}
	require.NoError(t, strat.Init(stub))

	// Steady climb pins RSI(2) at 100, the crash to 90 drops it to ~6.7
	// (buy), the recovery lifts it through 50 at the 100 close (exit for a
	// long) and past 70 at the 105 close (overbought sell).
	candles := candlesFromCloses(100, 101, 102, 103, 104, 90, 95, 100, 105)

	var got []types.Signal
	for _, c := range candles {
		signals := strat.OnCandle(c)
		got = append(got, signals...)
		if len(signals) > 0 && signals[0].Side == types.SideTypeBuy {
			stub.qty = decimal.NewFromInt(10) // simulate the fill
		}
	}

	require.Len(t, got, 3)

	assert.Equal(t, types.SideTypeBuy, got[0].Side)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, "RSI dropped below oversold threshold", got[0].Reason)

	assert.Equal(t, types.SideTypeSell, got[1].Side)
	assert.True(t, got[1].Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "RSI recovered to neutral", got[1].Reason)

	assert.Equal(t, types.SideTypeSell, got[2].Side)
	assert.True(t, got[2].Price.Equal(decimal.NewFromInt(105)))
	assert.Equal(t, "RSI rose above overbought threshold", got[2].Reason)
}

func TestNoSignalsInSteadyTrend(t *testing.T) {
	strat, err := New(2, 30, 70)
	require.NoError(t, err)
	require.NoError(t, strat.Init(&stubPortfolio{qty: decimal.Zero}))

	// A steady climb pins RSI at 100 from the first valid bar on, so no
	// threshold is ever crossed.
	for _, c := range candlesFromCloses(100, 101, 102, 103, 104, 105, 106) {
		assert.Empty(t, strat.OnCandle(c))
	}
}
