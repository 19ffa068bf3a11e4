package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the explicit startup configuration for the client engine.
// Nothing reads the environment after Load returns.
type Config struct {
	// LogAddr is the websocket address of the ordered log store,
	// e.g. "wss://chat.example.com/log". Required unless OfflineMode.
	LogAddr string `yaml:"log_addr"`

	// Room scopes the subscription to one message log.
	Room string `yaml:"room"`

	// AuthToken is an optional opaque bearer token. Empty means anonymous.
	AuthToken string `yaml:"auth_token"`

	// DataDir holds the local key-value store (identity, display name).
	DataDir string `yaml:"data_dir"`

	// Timezone is the IANA zone used to derive date keys. Empty means the
	// system zone.
	Timezone string `yaml:"timezone"`

	// OfflineMode runs against an in-process log instead of dialing out.
	OfflineMode bool `yaml:"offline_mode"`

	LogLevel string `yaml:"log_level"`
}

func Load() *Config {
	cfg := &Config{
		LogAddr:   getEnv("BRIM_LOG_ADDR", ""),
		Room:      getEnv("BRIM_ROOM", "lobby"),
		AuthToken: getEnv("BRIM_AUTH_TOKEN", ""),
		DataDir:   getEnv("BRIM_DATA_DIR", defaultDataDir()),
		Timezone:  getEnv("BRIM_TIMEZONE", ""),
		LogLevel:  getEnv("BRIM_LOG_LEVEL", "info"),
	}
	if getEnv("BRIM_OFFLINE", "") == "true" {
		cfg.OfflineMode = true
	}
	return cfg
}

// LoadFile overlays values from a YAML file onto an env-derived Config.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate fails fast on a configuration the engine cannot start with.
func (c *Config) Validate() error {
	if !c.OfflineMode && c.LogAddr == "" {
		return errors.New("log_addr is required (set BRIM_LOG_ADDR or offline_mode)")
	}
	if c.Room == "" {
		return errors.New("room must not be empty")
	}
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Location resolves the configured timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".brim"
	}
	return filepath.Join(home, ".brim")
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}
