// Package indicator wraps go-talib for the strategy packages. Candle series
// are decimal; talib works on float64, so conversion happens at this boundary
// and nowhere else.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"quantbt/types"
)

// Closes extracts the close series as float64.
func Closes(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close.InexactFloat64()
	}
	return out
}

// Highs extracts the high series as float64.
func Highs(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].High.InexactFloat64()
	}
	return out
}

// Lows extracts the low series as float64.
func Lows(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Low.InexactFloat64()
	}
	return out
}

// SMA returns the simple moving average series. The first period-1 values
// are zero (warmup).
func SMA(closes []float64, period int) []float64 {
	if len(closes) < period || period <= 0 {
		return make([]float64, len(closes))
	}
	return sanitize(talib.Sma(closes, period))
}

// EMA returns the exponential moving average series.
func EMA(closes []float64, period int) []float64 {
	if len(closes) < period || period <= 0 {
		return make([]float64, len(closes))
	}
	return sanitize(talib.Ema(closes, period))
}

// RSI returns Wilder's relative strength index series.
func RSI(closes []float64, period int) []float64 {
	if len(closes) <= period || period <= 0 {
		return make([]float64, len(closes))
	}
	return sanitize(talib.Rsi(closes, period))
}

// BollingerBands returns the upper, middle and lower band series for an
// SMA basis with stddev standard deviations.
func BollingerBands(closes []float64, period int, stddev float64) (upper, middle, lower []float64) {
	if len(closes) < period || period <= 0 {
		empty := make([]float64, len(closes))
		return empty, empty, empty
	}
	upper, middle, lower = talib.BBands(closes, period, stddev, stddev, talib.SMA)
	return sanitize(upper), sanitize(middle), sanitize(lower)
}

// Stochastic returns the slow %K and %D series.
func Stochastic(highs, lows, closes []float64, kPeriod, slowK, slowD int) (k, d []float64) {
	if len(closes) < kPeriod+slowK+slowD || kPeriod <= 0 {
		empty := make([]float64, len(closes))
		return empty, empty
	}
	k, d = talib.Stoch(highs, lows, closes, kPeriod, slowK, talib.SMA, slowD, talib.SMA)
	return sanitize(k), sanitize(d)
}

// ATR returns the average true range series.
func ATR(highs, lows, closes []float64, period int) []float64 {
	if len(closes) <= period || period <= 0 {
		return make([]float64, len(closes))
	}
	return sanitize(talib.Atr(highs, lows, closes, period))
}

// Last returns the final value of a series, or 0 for an empty one.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// Prev returns the second-to-last value of a series, or 0.
func Prev(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	return series[len(series)-2]
}

// ToDecimal converts an indicator value back to decimal for order prices.
func ToDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func sanitize(series []float64) []float64 {
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			series[i] = 0
		}
	}
	return series
}
