package engine

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"quantbt/types"
)

type Engine struct {
	db              DataStore
	backtester      *backtester
	reportingConfig *ReportingConfig
	logger          zerolog.Logger
}

func NewEngine(
	feeds []*DataFeedConfig,
	executionConfig *ExecutionConfig,
	portfolioConfig *PortfolioConfig,
	reportingConfig *ReportingConfig,
	strat Strategy,
	sizing Allocator,
	broker Broker,
	db DataStore,
) *Engine {
	p := newPortfolio(portfolioConfig.initialCash, portfolioConfig.allowShortSelling)
	bt := newBacktester(feeds, executionConfig, portfolioConfig, strat, sizing, broker, p)
	bt.showProgress = true
	return &Engine{
		db:              db,
		backtester:      bt,
		reportingConfig: reportingConfig,
		logger:          log.With().Str("component", "engine").Logger(),
	}
}

// DisableProgress suppresses the progress bar (parameter sweeps, tests).
func (e *Engine) DisableProgress() {
	e.backtester.showProgress = false
}

// Run loads data, executes the backtest, closes any remaining position at the
// final bar and returns the performance report.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if err := e.loadData(ctx); err != nil {
		return nil, err
	}

	api := &portfolioApi{bt: e.backtester}
	if err := e.backtester.strategy.Init(api); err != nil {
		return nil, err
	}
	if err := e.backtester.allocator.Init(api); err != nil {
		return nil, err
	}

	if err := e.backtester.run(); err != nil {
		return nil, err
	}

	if err := e.closeFinalPositions(); err != nil {
		return nil, err
	}

	report := e.generateReport(e.backtester.start, e.backtester.end, e.backtester.portfolio)

	if e.reportingConfig != nil && e.reportingConfig.filePath != "" {
		trades := executionsToTrades(e.backtester.portfolio)
		if err := e.writeTradesCSVFile(e.reportingConfig.filePath, trades); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// Snapshots exposes the daily equity curve for charting.
func (e *Engine) Snapshots() []types.PortfolioView {
	return e.backtester.portfolio.snapshots
}

// Executions exposes the execution journal for charting and CSV export.
func (e *Engine) Executions() []types.ExecutionReport {
	return e.backtester.portfolio.executions
}

func (e *Engine) loadData(ctx context.Context) error {
	for _, feed := range e.backtester.feeds {
		asset, err := e.db.GetAssetByTicker(ctx, feed.ticker)
		if err != nil {
			return err
		}
		cs, err := e.db.GetCandles(ctx, asset.Id, feed.ticker, feed.interval, feed.start, feed.end)
		if err != nil {
			return err
		}
		feed.candles = cs

		execCfg := e.backtester.executionConfig
		if execCfg.interval == feed.interval {
			execCfg.candles[feed.ticker] = cs
			continue
		}
		execCandles, err := e.db.GetCandles(ctx, asset.Id, feed.ticker, execCfg.interval, feed.start, feed.end)
		if err != nil {
			return err
		}
		execCfg.candles[feed.ticker] = execCandles
	}
	return nil
}

// closeFinalPositions nets out whatever is still open at the last bar (go
// neutral), paying half the spread on the closing fill when spread usage is
// on. Works for longs and shorts.
func (e *Engine) closeFinalPositions() error {
	bt := e.backtester
	var closing []types.ExecutionReport

	for ticker, pos := range bt.portfolio.positions {
		if pos.Quantity.IsZero() {
			continue
		}
		candle := bt.getLastCandleForTicker(ticker)
		if candle == nil {
			continue
		}

		side := types.SideTypeSell
		price := candle.Close
		if pos.Quantity.IsNegative() {
			side = types.SideTypeBuy
		}
		if bt.executionConfig.useSpread {
			halfSpread := candle.Spread.Div(two)
			if side == types.SideTypeBuy {
				price = price.Add(halfSpread)
			} else {
				price = price.Sub(halfSpread)
			}
		}

		qty := pos.Quantity.Abs()
		fill := types.NewFill(bt.curTime, price, qty, decimal.Zero)
		closing = append(closing, *types.NewExecutionReport(
			ticker,
			side,
			types.OrderFilled,
			[]types.Fill{fill},
			qty,
			price,
			decimal.Zero,
			decimal.Zero,
			"",
			"Closing final position",
			bt.curTime,
		))

		e.logger.Info().
			Str("ticker", ticker).
			Str("qty", qty.String()).
			Str("price", price.String()).
			Msg("closing final position")
	}

	if len(closing) == 0 {
		return nil
	}
	if err := bt.portfolio.processExecutions(closing); err != nil {
		return err
	}

	bt.markToMarket()
	final := bt.portfolio.GetPortfolioSnapshot(bt.curTime)
	bt.portfolio.snapshots = append(bt.portfolio.snapshots, final)
	return nil
}

type portfolioApi struct {
	bt *backtester
}

func (a *portfolioApi) GetPortfolioSnapshot() types.PortfolioView {
	return a.bt.portfolio.GetPortfolioSnapshot(a.bt.curTime)
}
