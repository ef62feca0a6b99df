// Package config loads and validates environment variables at startup.
// Fail-fast: a malformed or missing required variable is an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/colby-usm/GrantGuru/internal/model"
	"github.com/colby-usm/GrantGuru/internal/scraper"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all runtime configuration for the ingestion service.
type Config struct {
	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string // empty disables the run lock and event publishing

	HTTPPort string
	GRPCPort string

	SearchURL      string
	DetailURL      string
	SearchTimeout  time.Duration
	DetailTimeout  time.Duration
	SearchPageSize int
	FetchDelay     time.Duration

	Filter       model.Filter
	ExcludeTerms []string
	LookbackDays *int // nil disables the recency window
	FetchLimit   int

	IntervalHours      int
	RunTimeout         time.Duration
	PurgeRetentionDays int

	LogLevel  string
	LogFormat string
}

// Load reads a .env file when present, then the environment, and returns a
// validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getenv("SQLITE_PATH", "grantguru.db"),
		RedisURL:    os.Getenv("REDIS_URL"),

		HTTPPort: getenv("HTTP_PORT", "8081"),
		GRPCPort: getenv("GRPC_PORT", "9091"),

		SearchURL:      getenv("SEARCH_URL", scraper.DefaultSearchURL),
		DetailURL:      getenv("DETAIL_URL", scraper.DefaultDetailURL),
		SearchTimeout:  p.duration("SEARCH_TIMEOUT", 30*time.Second),
		DetailTimeout:  p.duration("DETAIL_TIMEOUT", 10*time.Second),
		SearchPageSize: p.intRange("SEARCH_PAGE_SIZE", scraper.DefaultPageSize, 1, scraper.MaxPageSize),
		FetchDelay:     p.duration("FETCH_DELAY", 500*time.Millisecond),

		Filter: model.Filter{
			Categories: List(os.Getenv("INGEST_CATEGORIES")),
			Keywords:   strings.TrimSpace(os.Getenv("INGEST_KEYWORDS")),
			Statuses:   List(getenv("INGEST_STATUSES", "forecasted,posted")),
		},
		ExcludeTerms: List(os.Getenv("INGEST_EXCLUDE_TERMS")),
		FetchLimit:   p.intRange("INGEST_LIMIT", 0, 0, -1),

		IntervalHours:      p.intRange("INGEST_INTERVAL_HOURS", 24, 1, -1),
		RunTimeout:         p.duration("INGEST_RUN_TIMEOUT", 2*time.Hour),
		PurgeRetentionDays: p.intRange("PURGE_RETENTION_DAYS", 0, 0, -1),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getenv("LOG_FORMAT", "text")),
	}

	lookback := p.intRange("INGEST_LOOKBACK_DAYS", 7, -1, -1)
	if lookback >= 0 {
		cfg.LookbackDays = &lookback
	}

	if p.err != nil {
		return nil, p.err
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.StoreDriver)
	}
	return cfg, nil
}

// List splits a comma-separated value, dropping blanks.
func List(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// parser keeps the first parse error so Load reports it once.
type parser struct{ err error }

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// intRange parses key as an int in [min, max]; max < min means unbounded.
func (p *parser) intRange(key string, def, min, max int) int {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < min || (max >= min && v > max) {
		if max >= min {
			p.fail(fmt.Errorf("%s must be an integer in [%d, %d], got %q", key, min, max, s))
		} else {
			p.fail(fmt.Errorf("%s must be an integer >= %d, got %q", key, min, s))
		}
		return def
	}
	return v
}

// duration accepts Go durations ("500ms", "2h") or a bare number of seconds.
func (p *parser) duration(key string, def time.Duration) time.Duration {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		p.fail(fmt.Errorf("%s must be a non-negative duration, got %q", key, s))
		return def
	}
	return d
}
