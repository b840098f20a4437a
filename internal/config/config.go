package config

import (
	"fmt"
	"os"
	"strconv"
)

// Per-user vote caps. Checked before every cast, never retroactively.
const (
	DefaultMaxUpvotesPerUser   = 4
	DefaultMaxDownvotesPerUser = 2
)

type Config struct {
	AppEnv        string
	Port          string
	RedisURL      string
	DatabaseURL   string
	SessionSecret string
	LogLevel      string
	LogFormat     string

	MaxUpvotesPerUser   int64
	MaxDownvotesPerUser int64
}

// IsDevelopment reports whether the app runs in development mode.
// The cleanup endpoint is only available in development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		RedisURL:      getEnv("REDIS_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	var err error
	cfg.MaxUpvotesPerUser, err = getEnvInt("MAX_UPVOTES_PER_USER", DefaultMaxUpvotesPerUser)
	if err != nil {
		return nil, err
	}
	cfg.MaxDownvotesPerUser, err = getEnvInt("MAX_DOWNVOTES_PER_USER", DefaultMaxDownvotesPerUser)
	if err != nil {
		return nil, err
	}
	if cfg.MaxUpvotesPerUser < 1 || cfg.MaxDownvotesPerUser < 1 {
		return nil, fmt.Errorf("vote caps must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
