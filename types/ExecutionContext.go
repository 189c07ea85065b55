package types

import (
	"time"
)

// ExecutionContext is what the broker sees when it fills orders: a window of
// candles around the current time per ticker, plus the portfolio state.
type ExecutionContext struct {
	Candles   map[string][]Candle
	Portfolio PortfolioView
	CurTime   time.Time
}
