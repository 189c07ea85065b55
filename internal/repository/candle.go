package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"quantbt/types"
)

var bucketToInterval = map[types.Interval]string{
	types.OneMinute:      "1 minute",
	types.FiveMinutes:    "5 minutes",
	types.FifteenMinutes: "15 minutes",
	types.ThirtyMinutes:  "30 minutes",
	types.Hour:           "1 hour",
	types.FourHours:      "4 hours",
	types.Day:            "1 day",
	types.Week:           "1 week",
}

// SupportedInterval reports whether GetCandles can aggregate to the interval.
func SupportedInterval(interval types.Interval) bool {
	_, ok := bucketToInterval[interval]
	return ok
}

// GetCandles returns the candles for an asset aggregated to the requested
// interval, ordered by time.
func (db *Database) GetCandles(ctx context.Context, assetId int, ticker string, interval types.Interval, start, end time.Time) ([]types.Candle, error) {
	bucket, ok := bucketToInterval[interval]
	if !ok {
		return nil, ErrIntervalNotSupported
	}
	args := getCandlesParams{
		TimeBucket: bucket,
		AssetID:    int32(assetId),
		StartTime:  &start,
		EndTime:    &end,
	}
	candles, err := db.candles.GetCandles(ctx, args)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoCandles
		}
		return nil, err
	}
	if len(candles) == 0 {
		return nil, ErrNoCandles
	}
	return convertCandles(candles, interval, ticker), nil
}

// InsertCandles stores minute candles fetched from a market-data source.
// Duplicate (asset, timestamp) rows are skipped.
func (db *Database) InsertCandles(ctx context.Context, assetId int, candles []types.Candle) (int64, error) {
	rows := make([]candleRow, 0, len(candles))
	for i := range candles {
		ts := candles[i].Timestamp
		rows = append(rows, candleRow{
			Bucket:  &ts,
			AssetID: int32(assetId),
			Open:    candles[i].Open,
			High:    candles[i].High,
			Low:     candles[i].Low,
			Close:   candles[i].Close,
			Volume:  candles[i].Volume,
			Spread:  candles[i].Spread,
		})
	}
	return db.candles.InsertCandles(ctx, rows)
}

func convertCandles(candleDAOs []candleRow, interval types.Interval, ticker string) []types.Candle {
	var candles []types.Candle
	for _, dao := range candleDAOs {
		candles = append(candles, types.Candle{
			AssetId:   int(dao.AssetID),
			Ticker:    ticker,
			Open:      dao.Open,
			Close:     dao.Close,
			High:      dao.High,
			Low:       dao.Low,
			Volume:    dao.Volume,
			Spread:    dao.Spread,
			Interval:  interval,
			Timestamp: *dao.Bucket,
		})
	}
	return candles
}
