package main

import (
	"errors"
	"fmt"

	"quantbt/internal/chart"
	"quantbt/internal/engine"
	"quantbt/strategies/bollinger"
	"quantbt/strategies/meanrev"
	"quantbt/strategies/smacross"
	"quantbt/strategies/stochastic"
)

var UnknownStrategyErr = errors.New("unknown strategy")

// newStrategy builds the configured strategy, falling back to conventional
// defaults for parameters the config leaves out.
func newStrategy(name string, params map[string]int) (engine.Strategy, error) {
	p := paramOr(params)

	switch name {
	case "smacross":
		return smacross.New(p("fast", 10), p("slow", 50))
	case "bollinger":
		return bollinger.New(p("period", 20), float64(p("stddev", 2)))
	case "meanrev":
		return meanrev.New(p("period", 14), p("oversold", 30), p("overbought", 70))
	case "stochastic":
		return stochastic.New(p("k_period", 14), p("slow_k", 3), p("slow_d", 3), p("oversold", 20), p("overbought", 80))
	}
	return nil, fmt.Errorf("%w: %q (have smacross, bollinger, meanrev, stochastic)", UnknownStrategyErr, name)
}

// chartConfig picks the kline overlays matching the strategy's indicators.
func chartConfig(name, ticker string, params map[string]int) chart.Config {
	p := paramOr(params)
	cfg := chart.Config{Title: fmt.Sprintf("%s %s", ticker, name)}

	switch name {
	case "smacross":
		cfg.SMAPeriods = []int{p("fast", 10), p("slow", 50)}
	case "bollinger":
		cfg.BollingerPeriod = p("period", 20)
		cfg.BollingerStdDev = float64(p("stddev", 2))
	case "meanrev":
		cfg.SMAPeriods = []int{p("period", 14)}
	}
	return cfg
}

func paramOr(params map[string]int) func(key string, def int) int {
	return func(key string, def int) int {
		if v, ok := params[key]; ok {
			return v
		}
		return def
	}
}
