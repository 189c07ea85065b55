package meanrev

import (
	"errors"

	"quantbt/internal/engine"
	"quantbt/internal/indicator"
	"quantbt/types"
)

var InvalidParamsErr = errors.New("need period >= 2 and 0 < oversold < 50 < overbought < 100")

const neutral = 50.0

// Strategy fades RSI extremes: buy when RSI drops below the oversold
// threshold, flatten a long once RSI recovers through the neutral level,
// and sell when RSI pushes above the overbought threshold. Shorts are the
// mirror image and close back at neutral.
type Strategy struct {
	period     int
	oversold   float64
	overbought float64

	history   map[string][]types.Candle
	portfolio engine.PortfolioApi
}

func New(period, oversold, overbought int) (*Strategy, error) {
	if period < 2 || oversold <= 0 || oversold >= 50 || overbought <= 50 || overbought >= 100 {
		return nil, InvalidParamsErr
	}
	return &Strategy{
		period:     period,
		oversold:   float64(oversold),
		overbought: float64(overbought),
	}, nil
}

func (s *Strategy) Init(api engine.PortfolioApi) error {
	s.portfolio = api
	s.history = make(map[string][]types.Candle)
	return nil
}

func (s *Strategy) OnCandle(candle types.Candle) []types.Signal {
	hist := append(s.history[candle.Ticker], candle)
	if max := s.period * 10; len(hist) > max {
		hist = hist[len(hist)-max:]
	}
	s.history[candle.Ticker] = hist

	// RSI produces its first value after period+1 closes; one more bar so
	// the previous value is valid as well.
	if len(hist) < s.period+2 {
		return nil
	}

	rsi := indicator.RSI(indicator.Closes(hist), s.period)
	cur, prev := indicator.Last(rsi), indicator.Prev(rsi)

	position := s.portfolio.GetPortfolioSnapshot().Positions[candle.Ticker]

	switch {
	case prev >= s.oversold && cur < s.oversold:
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeBuy,
			candle.Close,
			"RSI dropped below oversold threshold",
			candle.Timestamp,
		)}
	case position.Quantity.IsPositive() && prev < neutral && cur >= neutral:
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeSell,
			candle.Close,
			"RSI recovered to neutral",
			candle.Timestamp,
		)}
	case prev <= s.overbought && cur > s.overbought:
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeSell,
			candle.Close,
			"RSI rose above overbought threshold",
			candle.Timestamp,
		)}
	case position.Quantity.IsNegative() && prev > neutral && cur <= neutral:
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeBuy,
			candle.Close,
			"RSI reverted to neutral",
			candle.Timestamp,
		)}
	}
	return nil
}
