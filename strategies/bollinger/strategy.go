package bollinger

import (
	"errors"

	"quantbt/internal/engine"
	"quantbt/internal/indicator"
	"quantbt/types"
)

var InvalidParamsErr = errors.New("period must be at least 2 and stddev positive")

// Strategy is a contrarian band trader: buy when the close drops below the
// lower band, flatten when the price reverts to the middle band, sell when
// the close pushes above the upper band.
type Strategy struct {
	period int
	stddev float64

	history   map[string][]types.Candle
	portfolio engine.PortfolioApi
}

func New(period int, stddev float64) (*Strategy, error) {
	if period < 2 || stddev <= 0 {
		return nil, InvalidParamsErr
	}
	return &Strategy{period: period, stddev: stddev}, nil
}

func (s *Strategy) Init(api engine.PortfolioApi) error {
	s.portfolio = api
	s.history = make(map[string][]types.Candle)
	return nil
}

func (s *Strategy) OnCandle(candle types.Candle) []types.Signal {
	hist := append(s.history[candle.Ticker], candle)
	if max := s.period * 5; len(hist) > max {
		hist = hist[len(hist)-max:]
	}
	s.history[candle.Ticker] = hist

	if len(hist) < s.period {
		return nil
	}

	upper, middle, lower := indicator.BollingerBands(indicator.Closes(hist), s.period, s.stddev)
	close := candle.Close.InexactFloat64()

	position := s.portfolio.GetPortfolioSnapshot().Positions[candle.Ticker]

	switch {
	case close < indicator.Last(lower) && !position.Quantity.IsPositive():
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeBuy,
			candle.Close,
			"Close below lower Bollinger band",
			candle.Timestamp,
		)}
	case close > indicator.Last(upper) && !position.Quantity.IsNegative():
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeSell,
			candle.Close,
			"Close above upper Bollinger band",
			candle.Timestamp,
		)}
	case position.Quantity.IsPositive() && close >= indicator.Last(middle):
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeSell,
			candle.Close,
			"Price reverted to middle band",
			candle.Timestamp,
		)}
	case position.Quantity.IsNegative() && close <= indicator.Last(middle):
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeBuy,
			candle.Close,
			"Price reverted to middle band",
			candle.Timestamp,
		)}
	}
	return nil
}
