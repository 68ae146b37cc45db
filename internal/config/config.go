// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Fetch modes.
const (
	FetchModeHTTP     = "http"
	FetchModeHeadless = "headless"
)

// WorkersKey is the configuration key for the worker pool size.
const WorkersKey = "crawler.workers"

// ThreadCountEnv is the environment variable that sets the worker count.
const ThreadCountEnv = "THREAD_COUNT"

// ErrInvalidWorkers is returned when the worker count is set but is not a
// positive integer.
var ErrInvalidWorkers = errors.New("invalid worker count")

// Config captures all crawl configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Sink    SinkConfig    `mapstructure:"sink"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	API     APIConfig     `mapstructure:"api"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlerConfig governs the crawl itself.
type CrawlerConfig struct {
	SeedURL        string        `mapstructure:"seed_url"`
	Output         string        `mapstructure:"output"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
	// Workers is resolved by WorkerCount, not decoded.
	Workers int `mapstructure:"-"`
	// WorkersDefaulted is true when no worker count was configured.
	WorkersDefaulted bool `mapstructure:"-"`
}

// FetchConfig selects and tunes the fetcher.
type FetchConfig struct {
	Mode     string         `mapstructure:"mode"`
	Headless HeadlessConfig `mapstructure:"headless"`
}

// HeadlessConfig configures the chromedp fetcher.
type HeadlessConfig struct {
	MaxParallel       int           `mapstructure:"max_parallel"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

// SinkConfig controls result sinks.
type SinkConfig struct {
	BufferSize int            `mapstructure:"buffer_size"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig enables the Postgres sink when DSN is set.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// UploadConfig enables artifact upload when GCSBucket is set.
type UploadConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig enables the completion notice when Topic is set.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// APIConfig enables the status server when Addr is set.
type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features and sets the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load decodes and validates a Config from v. Defaults and environment
// bindings must already be applied (see SetDefaults and BindEnv).
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	workers, defaulted, err := WorkerCount(v)
	if err != nil {
		return Config{}, err
	}
	cfg.Crawler.Workers = workers
	cfg.Crawler.WorkersDefaulted = defaulted

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers every default value. crawler.workers has no default;
// WorkerCount treats it as absent until something sets it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("crawler.output", "crawl.json")
	v.SetDefault("crawler.user_agent", "sitecrawler/1.0 (+https://github.com/JakeFAU/samehost-crawler)")
	v.SetDefault("crawler.request_timeout", 15*time.Second)
	v.SetDefault("crawler.max_body_bytes", 10*1024*1024)
	v.SetDefault("fetch.mode", FetchModeHTTP)
	v.SetDefault("fetch.headless.max_parallel", 2)
	v.SetDefault("fetch.headless.navigation_timeout", 45*time.Second)
	v.SetDefault("sink.buffer_size", 1024)
	v.SetDefault("sink.postgres.table", "crawl_results")
	v.SetDefault("upload.prefix", "crawls")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// BindEnv enables CRAWLER_-prefixed environment overrides and binds
// THREAD_COUNT to the worker count.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(WorkersKey, ThreadCountEnv, "CRAWLER_CRAWLER_WORKERS"); err != nil {
		return fmt.Errorf("bind %s: %w", ThreadCountEnv, err)
	}
	return nil
}

// WorkerCount resolves the worker pool size. An absent value yields 1 with
// defaulted set; a value that is not a positive integer is an error.
func WorkerCount(v *viper.Viper) (workers int, defaulted bool, err error) {
	if !v.IsSet(WorkersKey) {
		return 1, true, nil
	}
	raw := strings.TrimSpace(v.GetString(WorkersKey))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q is not an integer", ErrInvalidWorkers, raw)
	}
	if n < 1 {
		return 0, false, fmt.Errorf("%w: %d must be at least 1", ErrInvalidWorkers, n)
	}
	return n, false, nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawler.SeedURL) == "" {
		return fmt.Errorf("crawler.seed_url is required")
	}
	if strings.TrimSpace(c.Crawler.Output) == "" {
		return fmt.Errorf("crawler.output is required")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.MaxBodyBytes < 0 {
		return fmt.Errorf("crawler.max_body_bytes must be >= 0")
	}
	switch c.Fetch.Mode {
	case FetchModeHTTP:
	case FetchModeHeadless:
		if c.Fetch.Headless.MaxParallel <= 0 {
			return fmt.Errorf("fetch.headless.max_parallel must be > 0 when fetch.mode is headless")
		}
	default:
		return fmt.Errorf("fetch.mode must be %q or %q, got %q", FetchModeHTTP, FetchModeHeadless, c.Fetch.Mode)
	}
	if c.Sink.BufferSize < 0 {
		return fmt.Errorf("sink.buffer_size must be >= 0")
	}
	if c.Notify.Topic != "" && c.Notify.ProjectID == "" {
		return fmt.Errorf("notify.project_id must be set when notify.topic is set")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// PostgresEnabled reports whether results should also go to Postgres.
func (c Config) PostgresEnabled() bool {
	return c.Sink.Postgres.DSN != ""
}

// UploadEnabled reports whether the artifact should be uploaded.
func (c Config) UploadEnabled() bool {
	return c.Upload.GCSBucket != ""
}

// NotifyEnabled reports whether a completion notice should be published.
func (c Config) NotifyEnabled() bool {
	return c.Notify.Topic != ""
}
