package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQueries runs the raw SQL. Candles live in a TimescaleDB hypertable with
// minute resolution; coarser intervals are aggregated with time_bucket.
type pgxQueries struct {
	pool *pgxpool.Pool
}

const getAssetByTickerSQL = `
SELECT id, ticker, name, type, created_at, modified_at
FROM assets
WHERE ticker = $1`

func (q *pgxQueries) GetAssetByTicker(ctx context.Context, ticker string) (assetRow, error) {
	rows, err := q.pool.Query(ctx, getAssetByTickerSQL, ticker)
	if err != nil {
		return assetRow{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByPos[assetRow])
}

const upsertAssetSQL = `
INSERT INTO assets (ticker, name, type, created_at, modified_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (ticker) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type, modified_at = now()
RETURNING id`

func (q *pgxQueries) UpsertAsset(ctx context.Context, row assetRow) (int32, error) {
	var id int32
	err := q.pool.QueryRow(ctx, upsertAssetSQL, row.Ticker, row.Name, row.Type).Scan(&id)
	return id, err
}

const getCandlesSQL = `
SELECT time_bucket($1::interval, timestamp) AS bucket,
       asset_id,
       first(open, timestamp)  AS open,
       max(high)               AS high,
       min(low)                AS low,
       last(close, timestamp)  AS close,
       sum(volume)             AS volume,
       last(spread, timestamp) AS spread
FROM candles
WHERE asset_id = $2 AND timestamp >= $3 AND timestamp < $4
GROUP BY bucket, asset_id
ORDER BY bucket`

func (q *pgxQueries) GetCandles(ctx context.Context, arg getCandlesParams) ([]candleRow, error) {
	rows, err := q.pool.Query(ctx, getCandlesSQL, arg.TimeBucket, arg.AssetID, arg.StartTime, arg.EndTime)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[candleRow])
}

const insertCandleSQL = `
INSERT INTO candles (asset_id, timestamp, open, high, low, close, volume, spread)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (asset_id, timestamp) DO NOTHING`

func (q *pgxQueries) InsertCandles(ctx context.Context, rows []candleRow) (int64, error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertCandleSQL,
			row.AssetID, row.Bucket, row.Open, row.High, row.Low, row.Close, row.Volume, row.Spread)
	}
	results := q.pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range rows {
		tag, err := results.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
