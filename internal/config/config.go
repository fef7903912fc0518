// Package config loads server settings from the environment and opens the
// database connection.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all server settings
type Config struct {
	Env         string `env:"APP_ENV" env-default:"production"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	StoreDriver string `env:"STORE_DRIVER" env-default:"postgres"`
	HTTPServer
	JWT
	DB DBConfig
}

// HTTPServer holds listener and cookie settings
type HTTPServer struct {
	Port            string        `env:"SERVER_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"5s"`
	CookieSecure    bool          `env:"COOKIE_SECURE" env-default:"false"`
}

// JWT holds token signing settings
type JWT struct {
	SecretKey       string `env:"JWT_SECRET_KEY" env-required:"true"`
	ExpirationHours int    `env:"JWT_EXPIRATION_HOURS" env-default:"24"`
}

// TokenTTL is the lifetime of issued tokens and of the session cookie
func (j JWT) TokenTTL() time.Duration {
	return time.Duration(j.ExpirationHours) * time.Hour
}

// IsDevelopment reports whether the server runs with development defaults
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LoadConfig reads an optional .env file and then the environment
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	// cleanenv treats a variable set to "" as present
	if c.JWT.SecretKey == "" {
		return errors.New("JWT_SECRET_KEY must be set")
	}
	if c.StoreDriver == "" {
		c.StoreDriver = StoreDriverPostgres
	}
	if c.JWT.ExpirationHours <= 0 {
		return errors.New("JWT_EXPIRATION_HOURS must be positive")
	}
	switch c.StoreDriver {
	case StoreDriverMemory:
		return nil
	case StoreDriverPostgres:
		return c.DB.validate()
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", c.StoreDriver, StoreDriverPostgres, StoreDriverMemory)
	}
}
