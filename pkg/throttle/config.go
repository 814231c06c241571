// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package throttle

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Default configuration values
const (
	DefaultServoNumber   = 1
	DefaultReadTimeoutMs = 500
)

// Config holds throttle servo parameters. It is loaded once and copied into
// the Controller; reloading means building a new Controller.
type Config struct {
	// FullPosition is the servo position commanded for full throttle
	FullPosition uint16 `json:"full_position"`

	// OverTorque is the torque reading above which the servo is overloaded
	OverTorque uint8 `json:"over_torque"`

	ServoNumber   uint8 `json:"servo_number"`
	ReadTimeoutMs int   `json:"read_timeout_ms"`

	// VerifyAck enables checksum verification of acknowledgements. The
	// reply is then expected to carry two trailing checksum bytes.
	VerifyAck bool `json:"verify_ack"`
}

// LoadConfig reads and parses a JSON configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses a JSON configuration and applies defaults
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(cfg *Config) {
	if cfg.ServoNumber == 0 {
		cfg.ServoNumber = DefaultServoNumber
	}
	if cfg.ReadTimeoutMs == 0 {
		cfg.ReadTimeoutMs = DefaultReadTimeoutMs
	}
}

// Validate checks the configuration for unusable values
func (c *Config) Validate() error {
	if c.FullPosition == 0 {
		return fmt.Errorf("full_position must be set")
	}
	if c.ReadTimeoutMs < 0 {
		return fmt.Errorf("read_timeout_ms must not be negative (got %d)", c.ReadTimeoutMs)
	}
	return nil
}

// ReadTimeout returns the transport read timeout
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}
