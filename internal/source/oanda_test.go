package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbt/types"
)

const candlesJSON = `{
  "instrument": "EUR_USD",
  "granularity": "H1",
  "candles": [
    {
      "time": "2022-01-03T09:00:00Z",
      "complete": true,
      "volume": 1200,
      "bid": {"o": "1.13550", "h": "1.13700", "l": "1.13500", "c": "1.13650"},
      "ask": {"o": "1.13570", "h": "1.13720", "l": "1.13520", "c": "1.13670"}
    },
    {
      "time": "2022-01-03T10:00:00Z",
      "complete": false,
      "volume": 300,
      "bid": {"o": "1.13650", "h": "1.13680", "l": "1.13600", "c": "1.13620"},
      "ask": {"o": "1.13670", "h": "1.13700", "l": "1.13620", "c": "1.13640"}
    }
  ]
}`

func testClient(baseURL string) *Client {
	return NewClient(ClientOptions{
		BaseURL:        baseURL,
		Token:          "test-token",
		RequestsPerSec: 1000,
		MaxRetries:     2,
		RequestTimeout: 2 * time.Second,
	})
}

func TestGetCandles_MidAndSpread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/instruments/EUR_USD/candles", r.URL.Path)
		assert.Equal(t, "BA", r.URL.Query().Get("price"))
		assert.Equal(t, "H1", r.URL.Query().Get("granularity"))
		assert.Equal(t, "5000", r.URL.Query().Get("count"))
		assert.Empty(t, r.URL.Query().Get("to"), "count-paged requests must not send a range end")
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Write([]byte(candlesJSON))
	}))
	defer srv.Close()

	from := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2022, 1, 4, 0, 0, 0, 0, time.UTC)
	candles, err := testClient(srv.URL).GetCandles(context.Background(), "EUR_USD", types.Hour, from, to)
	require.NoError(t, err)

	// incomplete candle is dropped
	require.Len(t, candles, 1)

	c := candles[0]
	assert.Equal(t, "EUR_USD", c.Ticker)
	assert.Equal(t, types.Hour, c.Interval)
	// mid = (ask + bid) / 2
	assert.True(t, c.Open.Equal(decimal.RequireFromString("1.1356")), "open = %s", c.Open)
	assert.True(t, c.Close.Equal(decimal.RequireFromString("1.1366")), "close = %s", c.Close)
	// spread = ask close - bid close
	assert.True(t, c.Spread.Equal(decimal.RequireFromString("0.0002")), "spread = %s", c.Spread)
}

// pageJSON builds a response with n complete hourly candles starting at start.
func pageJSON(start time.Time, n int) string {
	var b strings.Builder
	b.WriteString(`{"instrument":"EUR_USD","granularity":"H1","candles":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		ts := start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
		fmt.Fprintf(&b, `{"time":%q,"complete":true,"volume":10,`+
			`"bid":{"o":"1.0","h":"1.1","l":"0.9","c":"1.0"},`+
			`"ask":{"o":"1.2","h":"1.3","l":"1.1","c":"1.2"}}`, ts)
	}
	b.WriteString("]}")
	return b.String()
}

func TestGetCandles_PaginatesLongRanges(t *testing.T) {
	from := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Duration(maxCandlesPerRequest+10) * time.Hour)

	var froms []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqFrom, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
		require.NoError(t, err)
		froms = append(froms, r.URL.Query().Get("from"))

		// First page is full; the second hands back more candles than the
		// range needs so overshoot trimming kicks in.
		n := maxCandlesPerRequest
		if len(froms) > 1 {
			n = 100
		}
		w.Write([]byte(pageJSON(reqFrom, n)))
	}))
	defer srv.Close()

	candles, err := testClient(srv.URL).GetCandles(context.Background(), "EUR_USD", types.Hour, from, to)
	require.NoError(t, err)

	require.Len(t, froms, 2)
	assert.Equal(t, from.Add(time.Duration(maxCandlesPerRequest)*time.Hour).Format(time.RFC3339), froms[1],
		"second request must resume one interval after the last candle")

	require.Len(t, candles, maxCandlesPerRequest+10)
	assert.Equal(t, from, candles[0].Timestamp)
	assert.Equal(t, to.Add(-time.Hour), candles[len(candles)-1].Timestamp,
		"candles at or past the range end must be trimmed")
}

func TestGetCandles_UnsupportedInterval(t *testing.T) {
	_, err := testClient("http://localhost:1").GetCandles(
		context.Background(), "EUR_USD", types.ThreeMinutes, time.Now().Add(-time.Hour), time.Now())
	assert.ErrorIs(t, err, ErrGranularityNotSupported)
}

func TestGetCandles_VendorErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessage": "Invalid value specified for 'granularity'"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetCandles(
		context.Background(), "EUR_USD", types.Hour, time.Now().Add(-time.Hour), time.Now())
	assert.ErrorIs(t, err, ErrVendorError)
	assert.Contains(t, err.Error(), "granularity")
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestGetCandles_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(candlesJSON))
	}))
	defer srv.Close()

	from := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2022, 1, 4, 0, 0, 0, 0, time.UTC)
	candles, err := testClient(srv.URL).GetCandles(context.Background(), "EUR_USD", types.Hour, from, to)
	require.NoError(t, err)
	assert.Len(t, candles, 1)
	assert.Equal(t, int32(2), calls.Load())
}
