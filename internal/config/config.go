package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const envPrefix = "LINKCRAWLER_"

// Config holds all runtime configuration parameters
type Config struct {
	Target              string   `json:"target"`
	MaxDepth            int      `json:"max_depth"`
	IncludeResources    bool     `json:"include_resources"`
	Loader              string   `json:"loader"`
	RequestTimeoutMs    int      `json:"request_timeout_ms"`
	PageLoadTimeoutMs   int      `json:"page_load_timeout_ms"`
	BatchSize           int      `json:"batch_size"`
	BatchDelayMs        int      `json:"batch_delay_ms"`
	AcceptedStatusMin   int      `json:"accepted_status_min"`
	AcceptedStatusMax   int      `json:"accepted_status_max"`
	RetryForbiddenHosts []string `json:"retry_forbidden_hosts"`
	UserAgent           string   `json:"user_agent"`
	Output              string   `json:"output"`
	Formats             []string `json:"formats"`
	DBPath              string   `json:"db_path"`
	RedisAddr           string   `json:"redis_addr"`
	RedisPrefix         string   `json:"redis_prefix"`
	RedisTTL            string   `json:"redis_ttl"`
	KafkaBroker         string   `json:"kafka_broker"`
	KafkaTopic          string   `json:"kafka_topic"`
	LogLevel            string   `json:"log_level"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		MaxDepth:          2,
		Loader:            "static",
		RequestTimeoutMs:  5000,
		PageLoadTimeoutMs: 5000,
		BatchSize:         10,
		BatchDelayMs:      200,
		AcceptedStatusMin: 200,
		AcceptedStatusMax: 399,
		Formats:           []string{"csv"},
		RedisPrefix:       "linkcrawler:status:",
		RedisTTL:          "24h",
		KafkaTopic:        "linkcrawler.progress",
		LogLevel:          "info",
	}
}

// Load reads configuration from an optional JSON file over the defaults,
// then applies LINKCRAWLER_* environment overrides. It does not validate;
// callers apply their own overrides first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides fields from the environment
func applyEnv(cfg *Config) {
	cfg.Target = GetEnv(envPrefix+"TARGET", cfg.Target)
	cfg.MaxDepth = ParseInt(os.Getenv(envPrefix+"MAX_DEPTH"), cfg.MaxDepth)
	cfg.IncludeResources = ParseBool(os.Getenv(envPrefix+"INCLUDE_RESOURCES"), cfg.IncludeResources)
	cfg.Loader = GetEnv(envPrefix+"LOADER", cfg.Loader)
	cfg.RequestTimeoutMs = ParseInt(os.Getenv(envPrefix+"REQUEST_TIMEOUT_MS"), cfg.RequestTimeoutMs)
	cfg.PageLoadTimeoutMs = ParseInt(os.Getenv(envPrefix+"PAGE_LOAD_TIMEOUT_MS"), cfg.PageLoadTimeoutMs)
	cfg.BatchSize = ParseInt(os.Getenv(envPrefix+"BATCH_SIZE"), cfg.BatchSize)
	cfg.BatchDelayMs = ParseInt(os.Getenv(envPrefix+"BATCH_DELAY_MS"), cfg.BatchDelayMs)
	cfg.RetryForbiddenHosts = ParseList(os.Getenv(envPrefix+"RETRY_FORBIDDEN_HOSTS"), cfg.RetryForbiddenHosts)
	cfg.UserAgent = GetEnv(envPrefix+"USER_AGENT", cfg.UserAgent)
	cfg.Output = GetEnv(envPrefix+"OUTPUT", cfg.Output)
	cfg.Formats = ParseList(os.Getenv(envPrefix+"FORMATS"), cfg.Formats)
	cfg.DBPath = GetEnv(envPrefix+"DB_PATH", cfg.DBPath)
	cfg.RedisAddr = GetEnv(envPrefix+"REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPrefix = GetEnv(envPrefix+"REDIS_PREFIX", cfg.RedisPrefix)
	cfg.RedisTTL = GetEnv(envPrefix+"REDIS_TTL", cfg.RedisTTL)
	cfg.KafkaBroker = GetEnv(envPrefix+"KAFKA_BROKER", cfg.KafkaBroker)
	cfg.KafkaTopic = GetEnv(envPrefix+"KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.LogLevel = GetEnv(envPrefix+"LOG_LEVEL", cfg.LogLevel)
}

// Validate checks that required fields are present and values are sensible
func (c *Config) Validate() error {
	var errs []error
	if c.Target == "" {
		errs = append(errs, errors.New("target is required"))
	}
	if c.MaxDepth < 0 {
		errs = append(errs, errors.New("max_depth must be >= 0"))
	}
	if c.Loader != "static" && c.Loader != "browser" {
		errs = append(errs, fmt.Errorf("loader must be static or browser, got %q", c.Loader))
	}
	if c.RequestTimeoutMs < 100 {
		errs = append(errs, errors.New("request_timeout_ms must be >= 100"))
	}
	if c.PageLoadTimeoutMs < 100 {
		errs = append(errs, errors.New("page_load_timeout_ms must be >= 100"))
	}
	if c.BatchSize < 1 {
		errs = append(errs, errors.New("batch_size must be >= 1"))
	}
	if c.BatchDelayMs < 0 {
		errs = append(errs, errors.New("batch_delay_ms must be >= 0"))
	}
	if c.AcceptedStatusMin < 100 || c.AcceptedStatusMax > 599 || c.AcceptedStatusMin > c.AcceptedStatusMax {
		errs = append(errs, fmt.Errorf("accepted status range %d-%d is invalid", c.AcceptedStatusMin, c.AcceptedStatusMax))
	}
	for _, f := range c.Formats {
		switch strings.ToLower(f) {
		case "csv", "json", "xlsx":
		default:
			errs = append(errs, fmt.Errorf("unknown format %q", f))
		}
	}
	if c.RedisTTL != "" {
		if _, err := time.ParseDuration(c.RedisTTL); err != nil {
			errs = append(errs, fmt.Errorf("redis_ttl: %w", err))
		}
	}
	if c.KafkaBroker != "" && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka_topic is required when kafka_broker is set"))
	}
	return errors.Join(errs...)
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c *Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutMs) * time.Millisecond
}

func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// RedisTTLDuration returns the status key TTL; zero keeps keys forever.
func (c *Config) RedisTTLDuration() time.Duration {
	return ParseDuration(c.RedisTTL, 0)
}
