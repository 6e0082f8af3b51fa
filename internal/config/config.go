// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`

	// Driver selects the store backend: "memory" or "postgres".
	Driver      string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseDSN string `env:"DATABASE_DSN"`

	SpectatorGrace time.Duration `env:"SPECTATOR_GRACE" envDefault:"10s"`
	RoundGrace     time.Duration `env:"ROUND_GRACE" envDefault:"3s"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	SubmitWait     time.Duration `env:"SUBMIT_WAIT" envDefault:"10s"`
}

// Load reads .env if present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Driver == "postgres" && cfg.DatabaseDSN == "" {
		return Config{}, fmt.Errorf("STORE_DRIVER=postgres requires DATABASE_DSN")
	}
	return cfg, nil
}
