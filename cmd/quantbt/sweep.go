package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"quantbt/internal/config"
	"quantbt/internal/engine"
	"quantbt/internal/optimize"
	"quantbt/internal/repository"
)

func sweepCmd() *cobra.Command {
	var (
		gridFlags []string
		parallel  int
		top       int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a parameter grid for the configured strategy",
		Example: `  quantbt sweep -p fast=5,10,20 -p slow=50,100,200
  quantbt sweep -p period=10,14,20 --parallel 4 --top 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			grid, err := parseGrid(gridFlags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := repository.NewDatabase(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			// Concurrent runs must not fight over one CSV file.
			cfg.Report.TradesCSV = ""

			results, err := optimize.Sweep(ctx, grid, parallel, func(ctx context.Context, params map[string]int) (*engine.Report, error) {
				merged := make(map[string]int, len(cfg.Backtest.Params)+len(params))
				for k, v := range cfg.Backtest.Params {
					merged[k] = v
				}
				for k, v := range params {
					merged[k] = v
				}

				eng, err := buildEngine(cfg, merged, db)
				if err != nil {
					return nil, err
				}
				eng.DisableProgress()
				return eng.Run(ctx)
			})
			if err != nil {
				return err
			}

			printSweepResults(results, top)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&gridFlags, "param", "p", nil, "Grid values as name=v1,v2,... (repeatable)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Max concurrent backtests (0 = number of CPUs)")
	cmd.Flags().IntVar(&top, "top", 10, "Number of best results to print")
	_ = cmd.MarkFlagRequired("param")

	return cmd
}

func parseGrid(flags []string) (optimize.Grid, error) {
	grid := optimize.Grid{}
	for _, f := range flags {
		name, list, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("bad --param %q, want name=v1,v2,...", f)
		}
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("bad --param %q: %w", f, err)
			}
			grid[name] = append(grid[name], v)
		}
	}
	return grid, nil
}

func printSweepResults(results []optimize.Result, top int) {
	if top > len(results) {
		top = len(results)
	}

	fmt.Printf("===== Sweep Results (top %d of %d) =====\n", top, len(results))
	for i := 0; i < top; i++ {
		r := results[i]
		fmt.Printf("#%d %-40s net profit %12s | trades %4d | sharpe %8s | max dd %10s\n",
			i+1,
			formatParams(r.Params),
			r.Report.NetProfit.StringFixed(2),
			r.Report.TotalTrades,
			r.Report.SharpeRatio.StringFixed(2),
			r.Report.MaxDrawdown.StringFixed(2),
		)
	}
}

func formatParams(params map[string]int) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, params[name]))
	}
	return strings.Join(parts, " ")
}
