// Package client provides the upstream JSON client with error budget
// tracking, retries and error classification. It implements the fetch
// contracts of the hot result cache, the range cache and the quote builder.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/market-data-gateway/pkg/interval"
	"github.com/Sternrassler/market-data-gateway/pkg/rangecache"
	"github.com/Sternrassler/market-data-gateway/pkg/ratelimit"
	"github.com/Sternrassler/market-data-gateway/pkg/series"
	"github.com/Sternrassler/market-data-gateway/pkg/upstream"
)

// Prometheus metrics for upstream client operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// Request headers sent with every upstream call.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserAgent = "User-Agent"
)

// Query parameters sent upstream.
const (
	ParamAsset    = "asset_id"
	ParamFrom     = "from_date"
	ParamTo       = "to_date"
	ParamInterval = "interval"
	ParamQuery    = "query"
	ParamItem     = "item"
	ParamLimit    = "limit"
)

// maxErrorBody bounds how much of an error response ends up in the message.
const maxErrorBody = 512

// Client talks to a JSON upstream that serves arrays of records at
// {base}/{item}.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the upstream, e.g. "https://data.example.com/api/public".
	BaseURL string

	// User-Agent header (REQUIRED).
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Timeout for a single HTTP attempt.
	Timeout time.Duration

	// HistoryItem is the item that serves time series for an asset.
	HistoryItem string

	// SearchItem is the item used to resolve symbols to asset ids.
	SearchItem string

	// RateLimiter tracks the upstream error budget. Optional.
	RateLimiter *ratelimit.Tracker

	// Retry selects backoff settings per error class. Nil means
	// RetryConfigForErrorClass.
	Retry RetryPolicy
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:     baseURL,
		UserAgent:   userAgent,
		Timeout:     30 * time.Second,
		HistoryItem: "history",
		SearchItem:  "search",
		Retry:       RetryConfigForErrorClass,
	}
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HistoryItem == "" {
		cfg.HistoryItem = "history"
	}
	if cfg.SearchItem == "" {
		cfg.SearchItem = "search"
	}
	if cfg.Retry == nil {
		cfg.Retry = RetryConfigForErrorClass
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     base,
		rateLimiter: cfg.RateLimiter,
		config:      cfg,
		logger:      log.With().Str("component", "upstream-client").Logger(),
	}, nil
}

// Fetch performs GET {base}/{item}?{params} and decodes the JSON array of
// records it returns. A single JSON object is read as a one-row result.
func (c *Client) Fetch(ctx context.Context, item string, params url.Values) (series.Rows, error) {
	item = strings.Trim(item, "/")
	if item == "" {
		return nil, &upstream.Error{Class: upstream.ClassClient, Message: "empty item"}
	}

	endpoint := "/" + item
	target := c.baseURL.JoinPath(item)
	target.RawQuery = params.Encode()

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Allow(ctx); err != nil {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Msg("Request blocked by rate limiter")
			upstreamRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return nil, err
		}
	}

	var rows series.Rows
	err := retryWithBackoff(ctx, c.config.Retry, func() error {
		var attemptErr error
		rows, attemptErr = c.do(ctx, endpoint, target.String())
		if attemptErr != nil {
			upstreamErrorsTotal.WithLabelValues(string(upstream.Classify(attemptErr))).Inc()
		}
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// do executes a single attempt.
func (c *Client) do(ctx context.Context, endpoint, target string) (series.Rows, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &upstream.Error{Class: upstream.ClassClient, Message: "create request", Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set(HeaderUserAgent, c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("request_id", requestID).
		Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		upstreamRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.recordFailure(ctx)
		class := upstream.Classify(err)
		if class == upstream.ClassInternal {
			class = upstream.ClassNetwork
		}
		return nil, &upstream.Error{Class: class, Err: err}
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	budgetReported := resp.Header.Get(ratelimit.HeaderRemaining) != ""
	if c.rateLimiter != nil && budgetReported {
		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("request_id", requestID).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream request error")

		if !budgetReported {
			c.recordFailure(ctx)
		}
		return nil, &upstream.Error{
			Class:      class,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	rows, err := decodeRows(resp.Body)
	if err != nil {
		return nil, &upstream.Error{Class: upstream.ClassDecode, StatusCode: resp.StatusCode, Err: err}
	}
	return rows, nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if c.rateLimiter == nil {
		return
	}
	if err := c.rateLimiter.RecordFailure(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record upstream failure")
	}
}

// decodeRows reads a JSON array of objects, a single object, or null.
func decodeRows(r io.Reader) (series.Rows, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		return series.Rows{}, nil
	case data[0] == '{':
		var row series.Row
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		return series.Rows{row}, nil
	}

	var rows series.Rows
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}
	if rows == nil {
		rows = series.Rows{}
	}
	return rows, nil
}

// FetchHistory loads the time series of asset over [from, to] from the
// history item. Its signature matches quote.HistoryFunc.
func (c *Client) FetchHistory(ctx context.Context, asset string, iv interval.Interval, from, to time.Time) (series.Rows, error) {
	params := url.Values{}
	params.Set(ParamAsset, asset)
	params.Set(ParamFrom, interval.Format(from))
	params.Set(ParamTo, interval.Format(to))
	params.Set(ParamInterval, iv.String())
	return c.Fetch(ctx, c.config.HistoryItem, params)
}

// FetchRange implements rangecache.FetchFunc on top of FetchHistory.
func (c *Client) FetchRange(ctx context.Context, key rangecache.RangeKey, from, to time.Time) (series.Rows, error) {
	return c.FetchHistory(ctx, key.Asset, key.Interval, from, to)
}

// ResolveSymbol looks symbol up through the search item and returns the
// asset id of the first hit. No hit yields an empty id and a nil error.
func (c *Client) ResolveSymbol(ctx context.Context, item, symbol string) (string, error) {
	params := url.Values{}
	params.Set(ParamQuery, symbol)
	params.Set(ParamLimit, "5")
	if item != "" {
		params.Set(ParamItem, item)
	}

	hits, err := c.Fetch(ctx, c.config.SearchItem, params)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", symbol, err)
	}

	for _, hit := range hits {
		for _, field := range []string{"id", ParamAsset, "ticker"} {
			if id := assetID(hit.Values[field]); id != "" {
				return id, nil
			}
		}
	}
	return "", nil
}

func assetID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
