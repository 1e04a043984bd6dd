// Package config reads the storefront settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/matst80/slask-catalog/pkg/common"
	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/sirupsen/logrus"
)

type Config struct {
	CatalogApiUrl    string        `env:"CATALOG_API_URL,default=http://localhost:3000/api"`
	PageSize         int           `env:"PAGE_SIZE,default=30"`
	HttpTimeout      time.Duration `env:"HTTP_TIMEOUT,default=10s"`
	ListenAddress    string        `env:"LISTEN_ADDRESS,default=:8080"`
	RedisUrl         string        `env:"REDIS_URL"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDb          int           `env:"REDIS_DB,default=0"`
	RabbitUrl        string        `env:"RABBIT_URL"`
	Country          string        `env:"COUNTRY,default=se"`
	LogLevel         string        `env:"LOG_LEVEL,default=info"`
	CategoryCacheTtl time.Duration `env:"CATEGORY_CACHE_TTL,default=5m"`
	ViewportMargin   int           `env:"VIEWPORT_MARGIN,default=6"`
	ViewportDebounce time.Duration `env:"VIEWPORT_DEBOUNCE,default=250ms"`
	SessionTtl       time.Duration `env:"SESSION_TTL,default=30m"`
	Timeouts         common.TimeoutConfig
}

// Load reads envFiles (.env when none are given) into the environment and
// decodes the config. Missing env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	u, err := url.Parse(c.CatalogApiUrl)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("CATALOG_API_URL must be an absolute url")
	}
	if c.PageSize <= 0 {
		c.PageSize = types.DefaultPageSize
	}
	c.PageSize = min(c.PageSize, types.MaxPageSize)
	if c.HttpTimeout <= 0 {
		c.HttpTimeout = 10 * time.Second
	}
	return nil
}

// ConfigureLogging applies LOG_LEVEL to the standard logger.
func (c *Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func (c *Config) UseRedis() bool {
	return c.RedisUrl != ""
}

func (c *Config) UseRabbit() bool {
	return c.RabbitUrl != ""
}
