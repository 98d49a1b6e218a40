package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort     string        `mapstructure:"SERVER_PORT"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	LogFile        string        `mapstructure:"LOG_FILE"`

	PostgresURL      string `mapstructure:"POSTGRES_URL"`
	PostgresMaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	Workers    int           `mapstructure:"WORKERS"`
	RunTimeout time.Duration `mapstructure:"RUN_TIMEOUT"`

	FetchTimeout         time.Duration `mapstructure:"FETCH_TIMEOUT"`
	FetchMaxRedirects    int           `mapstructure:"FETCH_MAX_REDIRECTS"`
	FetchMaxBodyBytes    int64         `mapstructure:"FETCH_MAX_BODY_BYTES"`
	FetchUserAgents      []string      `mapstructure:"FETCH_USER_AGENT"`
	FetchProxies         []string      `mapstructure:"FETCH_PROXIES"`
	FetchHostRPS         float64       `mapstructure:"FETCH_HOST_RPS"`
	FetchHostBurst       int           `mapstructure:"FETCH_HOST_BURST"`
	FetchHostConcurrency int           `mapstructure:"FETCH_HOST_CONCURRENCY"`
	FetchRespectRobots   bool          `mapstructure:"FETCH_RESPECT_ROBOTS"`

	BrowserEnabled bool          `mapstructure:"BROWSER_ENABLED"`
	BrowserTimeout time.Duration `mapstructure:"BROWSER_TIMEOUT"`
	BrowserMaxTabs int           `mapstructure:"BROWSER_MAX_TABS"`

	DedupCacheTTLHours int    `mapstructure:"DEDUP_CACHE_TTL_HOURS"`
	PendingSchedule    string `mapstructure:"PENDING_SCHEDULE"`
	PendingBatchSize   int    `mapstructure:"PENDING_BATCH_SIZE"`
	ReaperSchedule     string `mapstructure:"REAPER_SCHEDULE"`
	StaleAfterMinutes  int    `mapstructure:"STALE_AFTER_MINUTES"`
}

var defaults = map[string]any{
	"SERVER_PORT":            "8080",
	"REQUEST_TIMEOUT":        "2m",
	"LOG_LEVEL":              "info",
	"LOG_FILE":               "",
	"POSTGRES_URL":           "",
	"POSTGRES_MAX_CONNS":     10,
	"REDIS_ADDR":             "localhost:6379",
	"REDIS_PASSWORD":         "",
	"REDIS_DB":               0,
	"WORKERS":                4,
	"RUN_TIMEOUT":            "90s",
	"FETCH_TIMEOUT":          "30s",
	"FETCH_MAX_REDIRECTS":    5,
	"FETCH_MAX_BODY_BYTES":   10 << 20,
	"FETCH_USER_AGENT":       []string{},
	"FETCH_PROXIES":          []string{},
	"FETCH_HOST_RPS":         1.0,
	"FETCH_HOST_BURST":       2,
	"FETCH_HOST_CONCURRENCY": 2,
	"FETCH_RESPECT_ROBOTS":   false,
	"BROWSER_ENABLED":        false,
	"BROWSER_TIMEOUT":        "60s",
	"BROWSER_MAX_TABS":       2,
	"DEDUP_CACHE_TTL_HOURS":  1,
	"PENDING_SCHEDULE":       "*/5 * * * *",
	"PENDING_BATCH_SIZE":     500,
	"REAPER_SCHEDULE":        "*/10 * * * *",
	"STALE_AFTER_MINUTES":    30,
}

// Load reads configuration from an optional .env file and environment variables.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()
	// An empty schedule variable disables that job.
	v.AllowEmptyEnv(true)

	// The .env file is optional; production configures through the environment.
	_ = v.ReadInConfig()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.PostgresURL == "" {
		errs = append(errs, errors.New("POSTGRES_URL is required"))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("WORKERS must be positive"))
	}
	if c.FetchMaxRedirects < 1 {
		errs = append(errs, errors.New("FETCH_MAX_REDIRECTS must be at least 1"))
	}
	if c.FetchTimeout <= 0 || c.RunTimeout <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT and RUN_TIMEOUT must be positive"))
	}
	if c.DedupCacheTTLHours <= 0 {
		errs = append(errs, errors.New("DEDUP_CACHE_TTL_HOURS must be positive"))
	}
	if c.StaleAfterMinutes <= 0 {
		errs = append(errs, errors.New("STALE_AFTER_MINUTES must be positive"))
	}
	for key, schedule := range map[string]string{"PENDING_SCHEDULE": c.PendingSchedule, "REAPER_SCHEDULE": c.ReaperSchedule} {
		if schedule == "" {
			continue
		}
		if _, err := cron.ParseStandard(schedule); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// StaleAfter is the age at which a processing job is considered abandoned.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// DedupCacheTTL is how long a duplicate hit stays cached in Redis.
func (c *Config) DedupCacheTTL() time.Duration {
	return time.Duration(c.DedupCacheTTLHours) * time.Hour
}
