// Package config provides runtime configuration values for the simulator.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/order-processing-simulator/internal/obs"
)

// Config holds configuration knobs for the store, pipeline, and ops server.
type Config struct {
	StoreDriver        string        `yaml:"store_driver"`
	StoreDSN           string        `yaml:"store_dsn"`
	DBMaxOpenConns     int           `yaml:"db_max_open_conns"`
	DBMaxIdleConns     int           `yaml:"db_max_idle_conns"`
	DBConnRetries      int           `yaml:"db_conn_retries"`
	DBConnRetryBackoff time.Duration `yaml:"-"`
	RedisAddr          string        `yaml:"redis_addr"`

	ProductID            int64         `yaml:"product_id"`
	InitialStock         int64         `yaml:"initial_stock"`
	ProducerCount        int           `yaml:"producer_count"`
	DuplicateProbability float64       `yaml:"duplicate_probability"`
	WorkerCount          int           `yaml:"worker_count"`
	PopTimeout           time.Duration `yaml:"-"`

	OpsAddr         string        `yaml:"ops_addr"`
	JaegerEndpoint  string        `yaml:"jaeger_endpoint"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"-"`

	// Millisecond/second mirrors for the YAML overlay.
	DBConnRetryBackoffMS int `yaml:"db_conn_retry_backoff_ms"`
	PopTimeoutMS         int `yaml:"pop_timeout_ms"`
	ShutdownTimeoutSec   int `yaml:"shutdown_timeout_sec"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func i64env(key string, def int64) int64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func floatenv(key string, def float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Load collects configuration from the optional CONFIG_FILE YAML overlay and
// the environment, with env taking precedence over file values.
func Load() Config {
	cfg := defaults()
	if path := getenv("CONFIG_FILE", ""); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			obs.Logger.Warn().Err(err).Str("path", path).
				Msg("config file ignored, continuing with defaults")
		} else {
			cfg = fileCfg
		}
	}
	return overlayEnv(cfg)
}

func defaults() Config {
	return Config{
		StoreDriver:          "memory",
		DBMaxOpenConns:       10,
		DBMaxIdleConns:       2,
		DBConnRetries:        10,
		DBConnRetryBackoff:   3 * time.Second,
		ProductID:            1,
		InitialStock:         10,
		ProducerCount:        15,
		DuplicateProbability: 0.7,
		WorkerCount:          4,
		PopTimeout:           3 * time.Second,
		OpsAddr:              ":8080",
		LogLevel:             "info",
		ShutdownTimeout:      15 * time.Second,
	}
}

// LoadFile decodes a YAML config file on top of the defaults.
func LoadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}
	cfg := defaults()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config file")
	}
	if cfg.DBConnRetryBackoffMS > 0 {
		cfg.DBConnRetryBackoff = time.Duration(cfg.DBConnRetryBackoffMS) * time.Millisecond
	}
	if cfg.PopTimeoutMS > 0 {
		cfg.PopTimeout = time.Duration(cfg.PopTimeoutMS) * time.Millisecond
	}
	if cfg.ShutdownTimeoutSec > 0 {
		cfg.ShutdownTimeout = time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	}
	return cfg, nil
}

func overlayEnv(cfg Config) Config {
	cfg.StoreDriver = getenv("STORE_DRIVER", cfg.StoreDriver)
	cfg.StoreDSN = getenv("STORE_DSN", cfg.StoreDSN)
	cfg.DBMaxOpenConns = atoienv("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)
	cfg.DBMaxIdleConns = atoienv("DB_MAX_IDLE_CONNS", cfg.DBMaxIdleConns)
	cfg.DBConnRetries = atoienv("DB_CONN_RETRIES", cfg.DBConnRetries)
	if v := atoienv("DB_CONN_RETRY_BACKOFF_MS", 0); v > 0 {
		cfg.DBConnRetryBackoff = time.Duration(v) * time.Millisecond
	}
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.ProductID = i64env("PRODUCT_ID", cfg.ProductID)
	cfg.InitialStock = i64env("INITIAL_STOCK", cfg.InitialStock)
	cfg.ProducerCount = atoienv("PRODUCER_COUNT", cfg.ProducerCount)
	cfg.DuplicateProbability = floatenv("DUPLICATE_PROBABILITY", cfg.DuplicateProbability)
	cfg.WorkerCount = atoienv("WORKER_COUNT", cfg.WorkerCount)
	if v := atoienv("POP_TIMEOUT_MS", 0); v > 0 {
		cfg.PopTimeout = time.Duration(v) * time.Millisecond
	}
	// An explicitly empty OPS_ADDR disables the ops listener.
	if v, ok := os.LookupEnv("OPS_ADDR"); ok {
		cfg.OpsAddr = v
	}
	cfg.JaegerEndpoint = getenv("JAEGER_ENDPOINT", cfg.JaegerEndpoint)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	if v := atoienv("SHUTDOWN_TIMEOUT", 0); v > 0 {
		cfg.ShutdownTimeout = time.Duration(v) * time.Second
	}
	return cfg
}
