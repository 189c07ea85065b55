package types

import (
	"time"
)

// Chart bundles the candle series of one ticker for rendering.
type Chart struct {
	Ticker   string    `json:"ticker"`
	Candles  []Candle  `json:"candles"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Interval Interval  `json:"interval"`
}
