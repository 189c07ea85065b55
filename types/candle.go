package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a single OHLCV bar. Prices are mid prices when the candle was
// assembled from bid/ask data, in which case Spread carries the ask-bid
// difference at close.
type Candle struct {
	AssetId   int             `json:"id"`
	Ticker    string          `json:"ticker"`
	Open      decimal.Decimal `json:"open"`
	Close     decimal.Decimal `json:"close"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Volume    decimal.Decimal `json:"volume"`
	Spread    decimal.Decimal `json:"spread"`
	Interval  Interval        `json:"interval"`
	Timestamp time.Time       `json:"timestamp"`
}

// CloseTime is the moment the candle is fully closed.
func (c Candle) CloseTime() time.Time {
	return c.Timestamp.Add(IntervalToTime[c.Interval])
}
