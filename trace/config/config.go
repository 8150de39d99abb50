// Package config provides the JSON configuration of a trace session.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sarchlab/pipetrace/trace/history"
)

// Config holds connection, scrollback and run-limit settings.
type Config struct {
	// Addr is the host:port of the simulator's trace server.
	// Default: "localhost:8888".
	Addr string `json:"addr"`

	// DialTimeoutMs bounds connection setup. Default: 5000.
	DialTimeoutMs uint64 `json:"dial_timeout_ms"`

	// RequestTimeoutMs bounds one step/back round trip. Zero disables the
	// per-request deadline. Default: 2000.
	RequestTimeoutMs uint64 `json:"request_timeout_ms"`

	// HistoryEntries is the number of snapshots kept for scrollback.
	// Default: 4096.
	HistoryEntries int `json:"history_entries"`

	// HistoryAssociativity is the ways per set of the scrollback cache.
	// Default: 8.
	HistoryAssociativity int `json:"history_associativity"`

	// RecordPath, when set, records every received packet as NDJSON.
	RecordPath string `json:"record_path"`

	// MaxRunCycles caps a run-until-breakpoint. Default: 10000.
	MaxRunCycles uint64 `json:"max_run_cycles"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Addr:                 "localhost:8888",
		DialTimeoutMs:        5000,
		RequestTimeoutMs:     2000,
		HistoryEntries:       4096,
		HistoryAssociativity: 8,
		MaxRunCycles:         10000,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must be set")
	}
	if c.DialTimeoutMs == 0 {
		return fmt.Errorf("dial_timeout_ms must be > 0")
	}
	if c.MaxRunCycles == 0 {
		return fmt.Errorf("max_run_cycles must be > 0")
	}
	if err := c.History().Validate(); err != nil {
		return err
	}
	return nil
}

// History returns the scrollback cache geometry.
func (c *Config) History() history.Config {
	return history.Config{
		Entries:       c.HistoryEntries,
		Associativity: c.HistoryAssociativity,
	}
}

// DialTimeout returns DialTimeoutMs as a duration.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}

// RequestTimeout returns RequestTimeoutMs as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}
