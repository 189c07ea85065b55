package source

import (
	"context"
	"time"

	"quantbt/types"
)

// CandleSource abstracts a remote market-data vendor.
type CandleSource interface {
	GetCandles(ctx context.Context, instrument string, interval types.Interval, from, to time.Time) ([]types.Candle, error)
	Name() string
}
