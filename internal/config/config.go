// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mia-platform/malbacklog/internal/cooldown"
)

var (
	// ErrParsing reports failures that occur while decoding configuration values.
	ErrParsing = errors.New("error parsing")
)

// Config holds the settings of a run read from the environment.
type Config struct {
	Production bool   `env:"PROD" envDefault:"false"`
	ChunkSize  int    `env:"CHUNK_SIZE" envDefault:"100"`
	WorkDir    string `env:"WORK_DIR" envDefault:"tmp"`

	FetchCooldown  time.Duration `env:"FETCH_COOLDOWN" envDefault:"4s"`
	CooldownPolicy string        `env:"COOLDOWN_POLICY" envDefault:"fixed"`
	CooldownMax    time.Duration `env:"COOLDOWN_MAX" envDefault:"1m"`

	DatabaseConfigPath string `env:"DATABASE_CONFIG_PATH" envDefault:"config/database.yaml"`
	DatabaseDSN        string `env:"DATABASE_DSN"`
	DatabaseDriver     string `env:"DATABASE_DRIVER"`
}

// FromEnv parses and validates the configuration from the environment variables.
func FromEnv() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("%w environment: %w", ErrParsing, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the consistency of the values.
func (c *Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("CHUNK_SIZE must be greater than zero, got %d", c.ChunkSize)
	}

	if c.WorkDir == "" {
		return errors.New("WORK_DIR must not be empty")
	}

	if c.FetchCooldown < 0 {
		return fmt.Errorf("FETCH_COOLDOWN must not be negative, got %s", c.FetchCooldown)
	}

	if !cooldown.IsValid(c.CooldownPolicy) {
		return &cooldown.UnknownPolicyError{Name: c.CooldownPolicy}
	}

	return nil
}

// Policy returns the cooldown policy described by the configuration.
func (c *Config) Policy() (cooldown.Policy, error) {
	return cooldown.New(c.CooldownPolicy, c.FetchCooldown, c.CooldownMax)
}
