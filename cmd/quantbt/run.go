package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"quantbt/internal/chart"
	"quantbt/internal/config"
	"quantbt/internal/engine"
	"quantbt/internal/repository"
	"quantbt/types"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the configured backtest and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := repository.NewDatabase(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			eng, err := buildEngine(cfg, cfg.Backtest.Params, db)
			if err != nil {
				return err
			}

			report, err := eng.Run(ctx)
			if err != nil {
				return err
			}
			eng.PrintReport(report)

			if cfg.Report.TradesCSV != "" {
				log.Info().Str("path", cfg.Report.TradesCSV).Msg("wrote trades CSV")
			}
			if cfg.Report.ChartHTML != "" {
				if err := writeChart(ctx, cfg, db, eng); err != nil {
					return err
				}
				log.Info().Str("path", cfg.Report.ChartHTML).Msg("wrote chart")
			}
			return nil
		},
	}
}

func buildEngine(cfg *config.Config, params map[string]int, db *repository.Database) (*engine.Engine, error) {
	feeds := make([]*engine.DataFeedConfig, 0, len(cfg.Backtest.Instruments))
	var execInterval types.Interval
	for i, inst := range cfg.Backtest.Instruments {
		interval := types.ConvertInterval[inst.Interval]
		start, end, err := inst.TimeRange()
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, engine.NewDataFeedConfig(inst.Ticker, interval, start, end))
		if i == 0 {
			execInterval = interval
		}
	}

	strat, err := newStrategy(cfg.Backtest.Strategy, params)
	if err != nil {
		return nil, err
	}

	fee := engine.NoFee()
	if cfg.Backtest.FeePercent > 0 {
		fee = engine.PercentFee(
			decimal.NewFromFloat(cfg.Backtest.FeePercent),
			decimal.NewFromFloat(cfg.Backtest.FeeMin),
			decimal.NewFromFloat(cfg.Backtest.FeeMax),
		)
	}

	return engine.NewEngine(
		feeds,
		engine.NewExecutionConfig(execInterval, 1, 3, cfg.Backtest.UseSpread),
		engine.NewPortfolioConfig(decimal.NewFromFloat(cfg.Backtest.InitialCash), cfg.Backtest.AllowShortSelling),
		engine.NewReportingConfig(decimal.NewFromFloat(cfg.Report.RiskFreeRate), cfg.Report.PrintTrades, cfg.Backtest.Strategy, cfg.Report.TradesCSV),
		strat,
		engine.NewFixedFractionAllocator(decimal.NewFromFloat(cfg.Backtest.AllocationFraction), cfg.Backtest.AllowShortSelling),
		engine.NewMarketBroker(cfg.Backtest.UseSpread, fee),
		db,
	), nil
}

// writeChart re-reads the primary instrument's candles and renders them with
// the run's executions and equity curve.
func writeChart(ctx context.Context, cfg *config.Config, db *repository.Database, eng *engine.Engine) error {
	inst := cfg.Backtest.Instruments[0]
	interval := types.ConvertInterval[inst.Interval]
	start, end, err := inst.TimeRange()
	if err != nil {
		return err
	}

	asset, err := db.GetAssetByTicker(ctx, inst.Ticker)
	if err != nil {
		return err
	}
	candles, err := db.GetCandles(ctx, asset.Id, inst.Ticker, interval, start, end)
	if err != nil {
		return err
	}

	data := types.Chart{
		Ticker:   inst.Ticker,
		Candles:  candles,
		Start:    start,
		End:      end,
		Interval: interval,
	}
	return chart.RenderFile(
		cfg.Report.ChartHTML,
		data,
		eng.Snapshots(),
		eng.Executions(),
		chartConfig(cfg.Backtest.Strategy, inst.Ticker, cfg.Backtest.Params),
	)
}
