package engine

import (
	"context"
	"time"

	"quantbt/types"
)

// DataStore feeds the engine with historical candles.
type DataStore interface {
	GetAssetByTicker(ctx context.Context, ticker string) (*types.Asset, error)
	GetCandles(ctx context.Context, assetId int, ticker string, interval types.Interval, start, end time.Time) ([]types.Candle, error)
}

// Strategy receives fully closed candles and emits signals.
type Strategy interface {
	Init(api PortfolioApi) error
	OnCandle(candle types.Candle) []types.Signal
}

// Allocator turns signals into sized orders given the portfolio state.
type Allocator interface {
	Init(api PortfolioApi) error
	Allocate(signals map[string][]types.Signal, view types.PortfolioView) []types.Order
}

// Broker simulates order execution against market data.
type Broker interface {
	Execute(orders []types.Order, ctx types.ExecutionContext) []types.ExecutionReport
}

// PortfolioApi is the read-only view handed to strategies and allocators.
type PortfolioApi interface {
	GetPortfolioSnapshot() types.PortfolioView
}
