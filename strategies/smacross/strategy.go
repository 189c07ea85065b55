package smacross

import (
	"errors"

	"quantbt/internal/engine"
	"quantbt/internal/indicator"
	"quantbt/types"
)

var InvalidPeriodsErr = errors.New("fast period must be positive and smaller than slow period")

// Strategy trades simple moving average crossovers: buy when the fast
// average crosses above the slow one, sell when it crosses back below.
type Strategy struct {
	fast int
	slow int

	history   map[string][]types.Candle
	portfolio engine.PortfolioApi
}

func New(fast, slow int) (*Strategy, error) {
	if fast <= 0 || fast >= slow {
		return nil, InvalidPeriodsErr
	}
	return &Strategy{fast: fast, slow: slow}, nil
}

func (s *Strategy) Init(api engine.PortfolioApi) error {
	s.portfolio = api
	s.history = make(map[string][]types.Candle)
	return nil
}

func (s *Strategy) OnCandle(candle types.Candle) []types.Signal {
	hist := append(s.history[candle.Ticker], candle)
	if max := s.slow * 5; len(hist) > max {
		hist = hist[len(hist)-max:]
	}
	s.history[candle.Ticker] = hist

	// One extra bar so the previous averages are past warmup too.
	if len(hist) < s.slow+1 {
		return nil
	}

	closes := indicator.Closes(hist)
	fast := indicator.SMA(closes, s.fast)
	slow := indicator.SMA(closes, s.slow)

	curFast, prevFast := indicator.Last(fast), indicator.Prev(fast)
	curSlow, prevSlow := indicator.Last(slow), indicator.Prev(slow)

	switch {
	case prevFast <= prevSlow && curFast > curSlow:
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeBuy,
			candle.Close,
			"Fast SMA crossed above slow SMA",
			candle.Timestamp,
		)}
	case prevFast >= prevSlow && curFast < curSlow:
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeSell,
			candle.Close,
			"Fast SMA crossed below slow SMA",
			candle.Timestamp,
		)}
	}
	return nil
}
