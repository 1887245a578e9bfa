package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// Config is the full runtime configuration, read from the environment.
type Config struct {
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN"`
	Debug         bool   `env:"BOT_DEBUG" envDefault:"false"`
	LogSalt       string `env:"LOG_SALT" envDefault:"dev_salt_change_me"`

	DBPath string `env:"DB_PATH" envDefault:"data/data.db"`

	CacheBackend string `env:"CACHE_BACKEND" envDefault:"sqlite"`
	RedisURL     string `env:"REDIS_URL"`

	OMDbURL    string `env:"OMDB_URL" envDefault:"https://www.omdbapi.com/"`
	OMDbAPIKey string `env:"OMDB_API_KEY"`

	// Empty DocStoreURL stores submissions in the local database.
	DocStoreURL string `env:"DOCSTORE_URL"`
	DocStoreKey string `env:"DOCSTORE_MASTER_KEY"`

	ShareBaseURL string `env:"SHARE_BASE_URL" envDefault:"https://shoppies.example.com/nominations/"`

	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	MetricsAddr string        `env:"METRICS_ADDR" envDefault:":9090"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.CacheBackend {
	case CacheSQLite:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: REDIS_URL is required when CACHE_BACKEND=%s", CacheRedis)
		}
	default:
		return fmt.Errorf("config: unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: HTTP_TIMEOUT must be positive")
	}
	return nil
}
