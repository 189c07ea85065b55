// Package optimize runs a backtest per point of a parameter grid and ranks
// the results.
package optimize

import (
	"context"
	"errors"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"quantbt/internal/engine"
)

var EmptyGridErr = errors.New("optimize: parameter grid has no values")

// Grid maps a parameter name to the values to try for it.
type Grid map[string][]int

// RunFunc executes one backtest for a single parameter combination. It must
// be safe for concurrent use; each call gets its own params map.
type RunFunc func(ctx context.Context, params map[string]int) (*engine.Report, error)

// Result pairs a parameter combination with its report.
type Result struct {
	Params map[string]int
	Report *engine.Report
}

// Combinations expands the grid into every parameter combination, in a
// deterministic order (parameter names sorted, values in given order).
func Combinations(grid Grid) []map[string]int {
	names := make([]string, 0, len(grid))
	for name, values := range grid {
		if len(values) == 0 {
			return nil
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	combos := []map[string]int{{}}
	for _, name := range names {
		var next []map[string]int
		for _, combo := range combos {
			for _, v := range grid[name] {
				c := make(map[string]int, len(combo)+1)
				for k, val := range combo {
					c[k] = val
				}
				c[name] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// Sweep runs one backtest per grid point with at most parallelism running at
// once (0 means GOMAXPROCS) and returns the results sorted by net profit,
// best first. The first failing run cancels the rest.
func Sweep(ctx context.Context, grid Grid, parallelism int, run RunFunc) ([]Result, error) {
	combos := Combinations(grid)
	if len(combos) == 0 {
		return nil, EmptyGridErr
	}
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(combos))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, combo := range combos {
		i, combo := i, combo
		g.Go(func() error {
			report, err := run(ctx, combo)
			if err != nil {
				return err
			}
			results[i] = Result{Params: combo, Report: report}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Report.NetProfit.GreaterThan(results[j].Report.NetProfit)
	})
	return results, nil
}
