// Package config loads engine configuration from the environment, with .env
// files for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/hammerstack/bidengine/internal/domain/auction"
)

// Config holds everything cmd/server needs to boot.
type Config struct {
	HTTPAddr    string
	DatabaseURL string
	RabbitURL   string
	RedisAddr   string // optional; empty disables the leading-bid cache

	Engine auction.Config
}

// Load reads the environment. A missing DATABASE_URL or RABBITMQ_URL is an
// error; everything else has defaults.
func Load() (*Config, error) {
	// Local overrides first, then the shared .env.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RabbitURL:   os.Getenv("RABBITMQ_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		Engine:      auction.DefaultConfig(),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.RabbitURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is not set")
	}

	if raw := os.Getenv("MIN_INCREMENT"); raw != "" {
		inc, err := decimal.NewFromString(raw)
		if err != nil || inc.Sign() <= 0 {
			return nil, fmt.Errorf("invalid MIN_INCREMENT %q", raw)
		}
		cfg.Engine.MinIncrement = inc
	}
	var err error
	if cfg.Engine.MaxCascadeDepth, err = getPositiveInt("MAX_CASCADE_DEPTH", cfg.Engine.MaxCascadeDepth); err != nil {
		return nil, err
	}
	if cfg.Engine.MaxCommitRetries, err = getPositiveInt("MAX_COMMIT_RETRIES", cfg.Engine.MaxCommitRetries); err != nil {
		return nil, err
	}

	switch sel := os.Getenv("AGENT_SELECTION"); sel {
	case "":
	case string(auction.SelectHighestCeiling):
		cfg.Engine.AgentSelection = auction.SelectHighestCeiling
	case string(auction.SelectFirstRegistered):
		cfg.Engine.AgentSelection = auction.SelectFirstRegistered
	default:
		return nil, fmt.Errorf("invalid AGENT_SELECTION %q", sel)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getPositiveInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}
