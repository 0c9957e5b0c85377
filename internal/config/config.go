// Package config loads the gateway configuration: built-in defaults, then an
// optional TOML file named by GATEWAY_CONFIG, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Sternrassler/market-data-gateway/pkg/interval"
	"github.com/Sternrassler/market-data-gateway/pkg/logging"
)

// EnvConfigPath names the environment variable holding the TOML file path.
const EnvConfigPath = "GATEWAY_CONFIG"

// Duration is a time.Duration read from a Go duration string ("90s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete gateway configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Redis    RedisConfig    `toml:"redis"`
	Upstream UpstreamConfig `toml:"upstream"`
	Cache    CacheConfig    `toml:"cache"`
	Quote    QuoteConfig    `toml:"quote"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string   `toml:"listen_addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// RedisConfig configures the optional shared store. An empty Addr keeps
// everything in process memory.
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	EntryTTL Duration `toml:"entry_ttl"`
}

// UpstreamConfig configures the upstream JSON client.
type UpstreamConfig struct {
	URL         string   `toml:"url"`
	UserAgent   string   `toml:"user_agent"`
	Timeout     Duration `toml:"timeout"`
	HistoryItem string   `toml:"history_item"`
	SearchItem  string   `toml:"search_item"`
}

// CacheConfig configures both caches.
type CacheConfig struct {
	HotTTL        Duration `toml:"hot_ttl"`
	HotMaxEntries int      `toml:"hot_max_entries"`
	FetchTimeout  Duration `toml:"fetch_timeout"`
}

// QuoteConfig configures quote derivation.
type QuoteConfig struct {
	Concurrency  int      `toml:"concurrency"`
	LookbackDays int      `toml:"lookback_days"`
	Interval     string   `toml:"interval"`
	Timeout      Duration `toml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Upstream: UpstreamConfig{
			URL:         "http://localhost:9000/api/public",
			UserAgent:   "market-data-gateway/0.1.0",
			Timeout:     Duration{30 * time.Second},
			HistoryItem: "history",
			SearchItem:  "search",
		},
		Cache: CacheConfig{
			HotTTL:        Duration{60 * time.Second},
			HotMaxEntries: 10000,
			FetchTimeout:  Duration{60 * time.Second},
		},
		Quote: QuoteConfig{
			Concurrency:  4,
			LookbackDays: 2,
			Interval:     "1",
			Timeout:      Duration{15 * time.Second},
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load builds the configuration from defaults, the file named by
// GATEWAY_CONFIG (if set) and the environment.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile overlays the TOML file at path. Unknown keys are rejected.
func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config %s: %s", path, strict.String())
		}
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// applyEnv applies the environment overrides.
func (c *Config) applyEnv() error {
	setString("LISTEN_ADDR", &c.Server.ListenAddr)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("UPSTREAM_URL", &c.Upstream.URL)
	setString("USER_AGENT", &c.Upstream.UserAgent)
	setString("LOG_LEVEL", &c.Log.Level)

	for _, set := range []func() error{
		func() error { return setBool("LOG_PRETTY", &c.Log.Pretty) },
		func() error { return setDuration("HOT_TTL", &c.Cache.HotTTL) },
		func() error { return setInt("HOT_MAX_ENTRIES", &c.Cache.HotMaxEntries) },
		func() error { return setDuration("FETCH_TIMEOUT", &c.Cache.FetchTimeout) },
		func() error { return setInt("QUOTE_CONCURRENCY", &c.Quote.Concurrency) },
	} {
		if err := set(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the configuration for values the gateway cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}

	if c.Upstream.URL == "" {
		errs = append(errs, errors.New("upstream.url is required"))
	} else if u, err := url.Parse(c.Upstream.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("upstream.url must be an http(s) URL (got %q)", c.Upstream.URL))
	}
	if c.Upstream.UserAgent == "" {
		errs = append(errs, errors.New("upstream.user_agent is required"))
	}

	if c.Cache.HotTTL.Duration <= 0 {
		errs = append(errs, fmt.Errorf("cache.hot_ttl must be positive (got %s)", c.Cache.HotTTL))
	}
	if c.Cache.HotMaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.hot_max_entries must be >= 0 (got %d)", c.Cache.HotMaxEntries))
	}
	if c.Cache.FetchTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("cache.fetch_timeout must be >= 0 (got %s)", c.Cache.FetchTimeout))
	}

	if c.Quote.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("quote.concurrency must be positive (got %d)", c.Quote.Concurrency))
	}
	if _, err := interval.Parse(c.Quote.Interval); err != nil {
		errs = append(errs, fmt.Errorf("quote.interval: %w", err))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// QuoteInterval returns the parsed quote interval. Validate must have passed.
func (c Config) QuoteInterval() interval.Interval {
	iv, _ := interval.Parse(c.Quote.Interval)
	return iv
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(key string, dst *Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	if err := dst.UnmarshalText([]byte(v)); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
