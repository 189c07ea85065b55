package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"quantbt/types"
)

var testInterval = types.OneMinute
var startTime = time.UnixMilli(0)
var endTime = startTime.Add(time.Minute * 5)

type mockCandlesRepository struct {
	sqlError error
	inserted int64
}

func TestDatabase_GetCandles(t *testing.T) {
	type args struct {
		assetId  int
		interval types.Interval
		start    time.Time
		end      time.Time
	}
	tests := []struct {
		name    string
		args    args
		want    []types.Candle
		sqlErr  error
		wantErr error
	}{
		{"should throw ErrNoCandles on empty result", args{999, testInterval, startTime, startTime}, nil, nil, ErrNoCandles},
		{"should throw ErrNoCandles on no rows", args{999, testInterval, startTime, startTime}, nil, pgx.ErrNoRows, ErrNoCandles},
		{"should throw ErrIntervalNotSupported", args{999, types.Month, startTime, endTime}, nil, nil, ErrIntervalNotSupported},
		{"should return candles", args{999, testInterval, startTime, endTime}, mockCandles(999, startTime, endTime), nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &Database{
				candles: &mockCandlesRepository{
					sqlError: tt.sqlErr,
				},
			}
			got, err := db.GetCandles(context.Background(), tt.args.assetId, "EUR_USD", tt.args.interval, tt.args.start, tt.args.end)

			if err != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetCandles() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			for i := 0; i < len(tt.want); i++ {
				if got[i].AssetId != tt.args.assetId {
					t.Errorf("GetCandles() %s assetId got = %v, want %v", got[i].Timestamp, got[i].AssetId, tt.want[i].AssetId)
					break
				}
				if got[i].Interval != tt.args.interval {
					t.Errorf("GetCandles() %s interval got = %v, want %v", got[i].Timestamp, got[i].Interval, tt.want[i].Interval)
					break
				}
				if !got[i].High.Equal(tt.want[i].High) {
					t.Errorf("GetCandles() %s high got = %v, want %v", got[i].Timestamp, got[i].High, tt.want[i].High)
					break
				}
			}
		})
	}
}

func TestSupportedInterval(t *testing.T) {
	for _, interval := range []types.Interval{types.OneMinute, types.Hour, types.Day} {
		if !SupportedInterval(interval) {
			t.Errorf("SupportedInterval(%q) = false, want true", interval)
		}
	}
	for _, interval := range []types.Interval{types.ThreeMinutes, types.Month, types.Interval("bogus")} {
		if SupportedInterval(interval) {
			t.Errorf("SupportedInterval(%q) = true, want false", interval)
		}
	}
}

func TestDatabase_InsertCandles(t *testing.T) {
	mock := &mockCandlesRepository{}
	db := &Database{candles: mock}

	n, err := db.InsertCandles(context.Background(), 1, mockCandles(1, startTime, endTime))
	if err != nil {
		t.Fatalf("InsertCandles() error = %v", err)
	}
	if n != 5 {
		t.Errorf("InsertCandles() inserted = %d, want 5", n)
	}
	if mock.inserted != 5 {
		t.Errorf("InsertCandles() rows passed to store = %d, want 5", mock.inserted)
	}
}

func (m *mockCandlesRepository) GetCandles(_ context.Context, arg getCandlesParams) ([]candleRow, error) {
	if m.sqlError != nil {
		return []candleRow{}, m.sqlError
	}
	var candles []candleRow
	i := *arg.StartTime
	for i.Before(*arg.EndTime) {
		ts := i
		candles = append(candles, candleRow{
			Bucket:  &ts,
			AssetID: arg.AssetID,
			Open:    decimal.NewFromInt(i.UnixMilli()),
			High:    decimal.NewFromInt(i.UnixMilli()),
			Low:     decimal.NewFromInt(i.UnixMilli()),
			Close:   decimal.NewFromInt(i.UnixMilli()),
			Volume:  decimal.NewFromInt(i.UnixMilli()),
		})
		i = i.Add(types.IntervalToTime[testInterval])
	}
	return candles, nil
}

func (m *mockCandlesRepository) InsertCandles(_ context.Context, rows []candleRow) (int64, error) {
	if m.sqlError != nil {
		return 0, m.sqlError
	}
	m.inserted = int64(len(rows))
	return m.inserted, nil
}

func mockCandles(assetId int, start, end time.Time) []types.Candle {
	var candles []types.Candle
	i := start
	for i.Before(end) {
		candles = append(candles, types.Candle{
			Timestamp: i,
			Interval:  testInterval,
			AssetId:   assetId,
			Open:      decimal.NewFromInt(i.UnixMilli()),
			High:      decimal.NewFromInt(i.UnixMilli()),
			Low:       decimal.NewFromInt(i.UnixMilli()),
			Close:     decimal.NewFromInt(i.UnixMilli()),
			Volume:    decimal.NewFromInt(i.UnixMilli()),
		})
		i = i.Add(types.IntervalToTime[testInterval])
	}
	return candles
}
