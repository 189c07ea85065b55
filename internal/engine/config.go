package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"quantbt/types"
)

type DataFeedConfig struct {
	ticker   string
	interval types.Interval
	start    time.Time
	end      time.Time
	candles  []types.Candle
}

func NewDataFeedConfigs(feeds ...*DataFeedConfig) []*DataFeedConfig {
	return feeds
}

func NewDataFeedConfig(ticker string, interval types.Interval, start, end time.Time) *DataFeedConfig {
	return &DataFeedConfig{
		ticker:   ticker,
		interval: interval,
		start:    start,
		end:      end,
	}
}

type PortfolioConfig struct {
	initialCash       decimal.Decimal
	allowShortSelling bool
}

func NewPortfolioConfig(initialCash decimal.Decimal, allowShortSelling bool) *PortfolioConfig {
	return &PortfolioConfig{
		initialCash:       initialCash,
		allowShortSelling: allowShortSelling,
	}
}

// ExecutionConfig controls the candle window the broker sees around the
// current time and whether fills pay the bid/ask spread.
type ExecutionConfig struct {
	interval   types.Interval
	barsBefore int
	barsAfter  int
	useSpread  bool
	candles    map[string][]types.Candle
}

func NewExecutionConfig(executionInterval types.Interval, barsBefore, barsAfter int, useSpread bool) *ExecutionConfig {
	return &ExecutionConfig{
		interval:   executionInterval,
		barsBefore: barsBefore,
		barsAfter:  barsAfter,
		useSpread:  useSpread,
		candles:    make(map[string][]types.Candle),
	}
}

type ReportingConfig struct {
	sharpeRiskFreeRate decimal.Decimal
	printTrades        bool
	reportName         string
	filePath           string
}

func NewReportingConfig(sharpeRiskFreeRate decimal.Decimal, printTrades bool, reportName string, filePath string) *ReportingConfig {
	return &ReportingConfig{
		sharpeRiskFreeRate: sharpeRiskFreeRate,
		printTrades:        printTrades,
		reportName:         reportName,
		filePath:           filePath,
	}
}
