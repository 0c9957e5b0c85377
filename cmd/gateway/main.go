// Command gateway serves cached public market data over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/market-data-gateway/internal/config"
	"github.com/Sternrassler/market-data-gateway/pkg/cache"
	"github.com/Sternrassler/market-data-gateway/pkg/client"
	"github.com/Sternrassler/market-data-gateway/pkg/gateway"
	"github.com/Sternrassler/market-data-gateway/pkg/logging"
	"github.com/Sternrassler/market-data-gateway/pkg/metrics"
	"github.com/Sternrassler/market-data-gateway/pkg/quote"
	"github.com/Sternrassler/market-data-gateway/pkg/rangecache"
	"github.com/Sternrassler/market-data-gateway/pkg/ratelimit"
	"github.com/Sternrassler/market-data-gateway/pkg/series"
	"github.com/Sternrassler/market-data-gateway/pkg/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logging.Setup(logging.Config{Level: level, Pretty: cfg.Log.Pretty, Output: os.Stderr})
	logger := logging.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start gateway")
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.Server.ListenAddr).
			Str("upstream", cfg.Upstream.URL).
			Bool("redis", cfg.Redis.Addr != "").
			Msg("Starting gateway server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// app holds the wired gateway.
type app struct {
	svc      *gateway.Service
	redis    *redis.Client
	upstream *client.Client
	logger   zerolog.Logger
}

// newApp builds the caches, the upstream client and the dispatch service.
// With a Redis address the hot cache and the upstream budget are shared
// through Redis; otherwise both live in process memory.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{logger: logging.NewLogger("http")}

	var (
		hotStore cache.Store = cache.NewMemoryStore(cfg.Cache.HotMaxEntries)
		state    ratelimit.StateStore
	)
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		hotStore = cache.NewRedisStore(a.redis, cfg.Redis.EntryTTL.Duration)
		state = ratelimit.NewRedisState(a.redis)
	}

	ccfg := client.DefaultConfig(cfg.Upstream.URL, cfg.Upstream.UserAgent)
	ccfg.Timeout = cfg.Upstream.Timeout.Duration
	ccfg.HistoryItem = cfg.Upstream.HistoryItem
	ccfg.SearchItem = cfg.Upstream.SearchItem
	ccfg.RateLimiter = ratelimit.NewTracker(state, logging.NewLogger("ratelimit"))

	up, err := client.New(ccfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create upstream client: %w", err)
	}
	a.upstream = up

	hot := cache.NewHotCache(hotStore, cache.Config{
		TTL:          cfg.Cache.HotTTL.Duration,
		FetchTimeout: cfg.Cache.FetchTimeout.Duration,
	})
	ranges := rangecache.NewReconciler(rangecache.NewStore(), rangecache.Config{
		FetchTimeout: cfg.Cache.FetchTimeout.Duration,
	})
	quotes := quote.Config{
		Concurrency:  cfg.Quote.Concurrency,
		LookbackDays: cfg.Quote.LookbackDays,
		Interval:     cfg.QuoteInterval(),
		Timeout:      cfg.Quote.Timeout.Duration,
	}

	a.svc = gateway.New(up, hot, ranges, quotes)
	return a, nil
}

func (a *app) close() {
	if a.upstream != nil {
		a.upstream.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", a.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/public/{item...}", a.queryHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports whether the shared store is reachable. Without Redis
// the gateway is always ready.
func (a *app) readyHandler(w http.ResponseWriter, r *http.Request) {
	if a.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "READY")
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// queryHandler serves GET /api/public/{item}.
func (a *app) queryHandler(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(client.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(client.HeaderRequestID, requestID)

	item := r.PathValue("item")
	start := time.Now()

	rows, err := a.svc.Query(r.Context(), item, r.URL.Query())
	if err != nil {
		status := statusFor(err)
		if status == 0 {
			a.logger.Debug().Str("item", item).Str("request_id", requestID).Msg("Client went away")
			return
		}
		ev := a.logger.Warn()
		if status >= http.StatusInternalServerError {
			ev = a.logger.Error()
		}
		ev.Err(err).
			Str("item", item).
			Str("request_id", requestID).
			Int("status", status).
			Msg("Query failed")
		writeJSON(w, status, errorBody{Error: err.Error(), RequestID: requestID})
		return
	}

	if rows == nil {
		rows = series.Rows{}
	}
	a.logger.Debug().
		Str("item", item).
		Str("request_id", requestID).
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("Query served")
	writeJSON(w, http.StatusOK, rows)
}

// statusFor maps a query error to an HTTP status. Zero means the caller is
// gone and nothing should be written.
func statusFor(err error) int {
	switch {
	case errors.Is(err, upstream.ErrInvalidRange), errors.Is(err, gateway.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, upstream.ErrTotalFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return 0
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.NewLogger("http").Warn().Err(err).Msg("Failed to write response")
	}
}
