package bollinger

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

func feed(t *testing.T, strat *Strategy, candles []types.Candle) []types.Signal {
	t.Helper()
	var signals []types.Signal
	for _, c := range candles {
		signals = append(signals, strat.OnCandle(c)...)
	}
	return signals
}

func TestNewValidation(t *testing.T) {
	_, err := New(1, 2)
	assert.ErrorIs(t, err, InvalidParamsErr)

	_, err = New(20, 0)
	assert.ErrorIs(t, err, InvalidParamsErr)

	_, err = New(20, 2)
	assert.NoError(t, err)
}

func TestBuyBelowLowerBand(t *testing.T) {
	strat, err := New(5, 1)
	require.NoError(t, err)
	require.NoError(t, strat.Init(&stubPortfolio{qty: decimal.Zero}))

	signals := feed(t, strat, candlesFromCloses(100, 101, 99, 100, 60))

	require.Len(t, signals, 1)
	assert.Equal(t, types.SideTypeBuy, signals[0].Side)
	assert.True(t, signals[0].Price.Equal(decimal.NewFromInt(60)))
}

func TestSellAboveUpperBand(t *testing.T) {
	strat, err := New(5, 1)
	require.NoError(t, err)
	require.NoError(t, strat.Init(&stubPortfolio{qty: decimal.Zero}))

	signals := feed(t, strat, candlesFromCloses(100, 99, 101, 100, 140))

	require.Len(t, signals, 1)
	assert.Equal(t, types.SideTypeSell, signals[0].Side)
}

func TestLongExitsAtMiddleBand(t *testing.T) {
	strat, err := New(5, 1)
	require.NoError(t, err)
	require.NoError(t, strat.Init(&stubPortfolio{qty: decimal.NewFromInt(10)}))

	// Flat prices: all bands collapse onto the close, which counts as a
	// reversion to the middle band for an open long.
	signals := feed(t, strat, candlesFromCloses(100, 100, 100, 100, 100))

	require.Len(t, signals, 1)
	assert.Equal(t, types.SideTypeSell, signals[0].Side)
	assert.Equal(t, "Price reverted to middle band", signals[0].Reason)
}

func TestLongDoesNotRebuyBelowLowerBand(t *testing.T) {
	strat, err := New(5, 1)
	require.NoError(t, err)
	require.NoError(t, strat.Init(&stubPortfolio{qty: decimal.NewFromInt(10)}))

	signals := feed(t, strat, candlesFromCloses(100, 101, 99, 100, 60))

	assert.Empty(t, signals)
}
