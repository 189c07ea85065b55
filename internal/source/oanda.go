package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"quantbt/types"
)

var (
	ErrGranularityNotSupported = errors.New("granularity not supported by vendor")
	ErrVendorError             = errors.New("vendor rejected request")
)

// maxCandlesPerRequest is the vendor's per-request candle cap.
const maxCandlesPerRequest = 5000

var intervalToGranularity = map[types.Interval]string{
	types.OneMinute:      "M1",
	types.FiveMinutes:    "M5",
	types.FifteenMinutes: "M15",
	types.ThirtyMinutes:  "M30",
	types.Hour:           "H1",
	types.TwoHours:       "H2",
	types.FourHours:      "H4",
	types.Day:            "D",
	types.Week:           "W",
	types.Month:          "M",
}

// Client talks to the OANDA v20 REST API. Candles are requested with both
// bid and ask prices and merged into mid-price candles with a spread column.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new OANDA client.
type ClientOptions struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	RequestsPerSec float64
	MaxRetries     int
}

func NewClient(options ClientOptions) *Client {
	if options.BaseURL == "" {
		options.BaseURL = "https://api-fxpractice.oanda.com"
	}
	if options.RequestTimeout == 0 {
		options.RequestTimeout = 30 * time.Second
	}
	if options.RequestsPerSec <= 0 {
		options.RequestsPerSec = 5
	}
	if options.MaxRetries <= 0 {
		options.MaxRetries = 3
	}

	return &Client{
		baseURL:    options.BaseURL,
		token:      options.Token,
		httpClient: &http.Client{Timeout: options.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(options.RequestsPerSec), 1),
		maxRetries: uint64(options.MaxRetries),
		logger:     log.With().Str("component", "oanda_client").Logger(),
	}
}

func (c *Client) Name() string { return "oanda" }

// GetCandles fetches the full bid/ask history for [from, to) and converts it
// to mid-price candles. Long ranges are paginated with count-capped requests
// and an advancing from cursor; the vendor rejects from/to spans wider than
// the cap rather than truncating them.
func (c *Client) GetCandles(ctx context.Context, instrument string, interval types.Interval, from, to time.Time) ([]types.Candle, error) {
	granularity, ok := intervalToGranularity[interval]
	if !ok {
		return nil, fmt.Errorf("%w: interval %q", ErrGranularityNotSupported, interval)
	}

	var out []types.Candle
	cursor := from
	for cursor.Before(to) {
		page, err := c.fetchPage(ctx, instrument, granularity, cursor)
		if err != nil {
			return nil, err
		}
		if len(page.Candles) == 0 {
			break
		}

		candles, err := convertCandles(page, instrument, interval)
		if err != nil {
			return nil, err
		}
		out = append(out, candles...)

		last := page.Candles[len(page.Candles)-1]
		next := last.Time.Add(types.IntervalToTime[interval])
		if !next.After(cursor) {
			break
		}
		cursor = next
		if len(page.Candles) < maxCandlesPerRequest {
			break
		}
	}

	// The last count-sized page may run past the requested end.
	for len(out) > 0 && !out[len(out)-1].Timestamp.Before(to) {
		out = out[:len(out)-1]
	}

	c.logger.Debug().
		Str("instrument", instrument).
		Str("granularity", granularity).
		Int("candles", len(out)).
		Msg("fetched history")
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, instrument, granularity string, from time.Time) (*candlesResponse, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	u.Path = fmt.Sprintf("/v3/instruments/%s/candles", instrument)
	q := u.Query()
	q.Set("granularity", granularity)
	q.Set("price", "BA")
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("count", strconv.Itoa(maxCandlesPerRequest))
	u.RawQuery = q.Encode()

	var resp *candlesResponse
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var opErr error
		resp, opErr = c.doRequest(ctx, u.String())
		return opErr
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Dur("retry_in", wait).Msg("candle request failed, retrying")
	}); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, url string) (*candlesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		// Retryable.
		return nil, fmt.Errorf("vendor status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		var vendorErr errorResponse
		if err := json.Unmarshal(body, &vendorErr); err == nil && vendorErr.ErrorMessage != "" {
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrVendorError, vendorErr.ErrorMessage))
		}
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrVendorError, resp.StatusCode))
	}

	var parsed candlesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode candles response: %w", err))
	}
	return &parsed, nil
}
