package stochastic

import (
	"errors"

	"quantbt/internal/engine"
	"quantbt/internal/indicator"
	"quantbt/types"
)

var InvalidParamsErr = errors.New("need positive periods and 0 < oversold < overbought < 100")

// Strategy trades slow stochastic crossovers gated to the extremes: buy when
// %K crosses above %D while coming out of the oversold zone, sell when %K
// crosses below %D in the overbought zone.
type Strategy struct {
	kPeriod    int
	slowK      int
	slowD      int
	oversold   float64
	overbought float64

	history   map[string][]types.Candle
	portfolio engine.PortfolioApi
}

func New(kPeriod, slowK, slowD, oversold, overbought int) (*Strategy, error) {
	if kPeriod <= 0 || slowK <= 0 || slowD <= 0 {
		return nil, InvalidParamsErr
	}
	if oversold <= 0 || oversold >= overbought || overbought >= 100 {
		return nil, InvalidParamsErr
	}
	return &Strategy{
		kPeriod:    kPeriod,
		slowK:      slowK,
		slowD:      slowD,
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
	warmup := s.kPeriod + s.slowK + s.slowD
	if max := warmup * 10; len(hist) > max {
		hist = hist[len(hist)-max:]
	}
	s.history[candle.Ticker] = hist

	if len(hist) < warmup {
		return nil
	}

	k, d := indicator.Stochastic(
		indicator.Highs(hist),
		indicator.Lows(hist),
		indicator.Closes(hist),
		s.kPeriod, s.slowK, s.slowD,
	)

	curK, prevK := indicator.Last(k), indicator.Prev(k)
	curD, prevD := indicator.Last(d), indicator.Prev(d)

	switch {
	case prevK <= prevD && curK > curD && prevD < s.oversold:
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeBuy,
			candle.Close,
			"%K crossed above %D in oversold zone",
			candle.Timestamp,
		)}
	case prevK >= prevD && curK < curD && prevD > s.overbought:
		return []types.Signal{types.NewSignal(
			candle.Ticker,
			types.SideTypeSell,
			candle.Close,
			"%K crossed below %D in overbought zone",
			candle.Timestamp,
		)}
	}
	return nil
}
