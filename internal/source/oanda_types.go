package source

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"quantbt/types"
)

type candlesResponse struct {
	Instrument  string       `json:"instrument"`
	Granularity string       `json:"granularity"`
	Candles     []rawCandle  `json:"candles"`
}

type rawCandle struct {
	Time     time.Time `json:"time"`
	Complete bool      `json:"complete"`
	Volume   int64     `json:"volume"`
	Bid      *ohlc     `json:"bid"`
	Ask      *ohlc     `json:"ask"`
}

type ohlc struct {
	Open  string `json:"o"`
	High  string `json:"h"`
	Low   string `json:"l"`
	Close string `json:"c"`
}

type errorResponse struct {
	ErrorMessage string `json:"errorMessage"`
}

var two = decimal.NewFromInt(2)

// convertCandles merges bid and ask OHLC into mid-price candles:
// mid = (ask + bid) / 2, spread = ask close - bid close.
// Incomplete candles are skipped.
func convertCandles(resp *candlesResponse, ticker string, interval types.Interval) ([]types.Candle, error) {
	candles := make([]types.Candle, 0, len(resp.Candles))
	for _, raw := range resp.Candles {
		if !raw.Complete {
			continue
		}
		if raw.Bid == nil || raw.Ask == nil {
			return nil, fmt.Errorf("candle %s missing bid/ask prices", raw.Time)
		}

		bid, err := parseOHLC(raw.Bid)
		if err != nil {
			return nil, fmt.Errorf("candle %s bid: %w", raw.Time, err)
		}
		ask, err := parseOHLC(raw.Ask)
		if err != nil {
			return nil, fmt.Errorf("candle %s ask: %w", raw.Time, err)
		}

		candles = append(candles, types.Candle{
			Ticker:    ticker,
			Open:      mid(ask.open, bid.open),
			High:      mid(ask.high, bid.high),
			Low:       mid(ask.low, bid.low),
			Close:     mid(ask.close, bid.close),
			Spread:    ask.close.Sub(bid.close),
			Volume:    decimal.NewFromInt(raw.Volume),
			Interval:  interval,
			Timestamp: raw.Time.UTC(),
		})
	}
	return candles, nil
}

type parsedOHLC struct {
	open, high, low, close decimal.Decimal
}

func parseOHLC(raw *ohlc) (parsedOHLC, error) {
	open, err := decimal.NewFromString(raw.Open)
	if err != nil {
		return parsedOHLC{}, err
	}
	high, err := decimal.NewFromString(raw.High)
	if err != nil {
		return parsedOHLC{}, err
	}
	low, err := decimal.NewFromString(raw.Low)
	if err != nil {
		return parsedOHLC{}, err
	}
	cls, err := decimal.NewFromString(raw.Close)
	if err != nil {
		return parsedOHLC{}, err
	}
	return parsedOHLC{open: open, high: high, low: low, close: cls}, nil
}

func mid(ask, bid decimal.Decimal) decimal.Decimal {
	return ask.Add(bid).Div(two)
}
