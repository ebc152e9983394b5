// Package config provides the configuration system for the aitreon-call
// CLI.
//
// Configuration is stored under os.UserConfigDir()/aitreon/:
//
//	~/Library/Application Support/aitreon/   (macOS)
//	~/.config/aitreon/                       (Linux)
//	%AppData%/aitreon/                       (Windows)
//
// Layout:
//
//	aitreon/
//	├── config.yaml    # backend endpoint, identity, call settings
//	└── data/          # call journal (BadgerDB)
//
// Environment variables override individual fields so credentials never
// have to live in the file: AITREON_BACKEND_URL, AITREON_API_KEY,
// AITREON_USER_ID.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	// appDir is the directory name under os.UserConfigDir().
	appDir = "aitreon"

	// configFile is the YAML configuration file name.
	configFile = "config.yaml"

	// dataDir is the subdirectory holding the call journal.
	dataDir = "data"
)

// BackendConfig identifies the aitreon web backend.
type BackendConfig struct {
	// BaseURL is the backend origin, e.g. "https://aitreon.app".
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates API requests. Prefer the AITREON_API_KEY
	// environment variable over storing it here.
	APIKey string `yaml:"api_key,omitempty"`
}

// CallConfig holds per-call settings.
type CallConfig struct {
	// MaxMinutes caps call length. Zero means no limit.
	MaxMinutes int `yaml:"max_minutes,omitempty"`

	// WarningSeconds is the remaining time at which the expiry warning
	// fires.
	WarningSeconds int `yaml:"warning_seconds,omitempty"`

	// MicDevice is the capture source path (a FIFO or file of
	// length-prefixed Opus frames). Overridable with the --mic flag.
	MicDevice string `yaml:"mic_device,omitempty"`

	// ICEServers overrides the default STUN server list.
	ICEServers []string `yaml:"ice_servers,omitempty"`
}

// Config is the root CLI configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`

	// UserID identifies the calling user against the backend.
	UserID string `yaml:"user_id"`

	Call CallConfig `yaml:"call,omitempty"`

	// Dir is the root configuration directory. Not serialized.
	Dir string `yaml:"-"`
}

// Load loads the configuration from the default location. A missing
// file is not an error; the zero config with env overrides applied is
// returned so first-run commands like 'config init' still work.
func Load() (*Config, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine config directory: %w", err)
	}
	return LoadFrom(filepath.Join(base, appDir))
}

// LoadFrom loads the configuration from a specific root directory.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{Dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Join(dir, configFile), err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("AITREON_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("AITREON_API_KEY"); v != "" {
		c.Backend.APIKey = v
	}
	if v := os.Getenv("AITREON_USER_ID"); v != "" {
		c.UserID = v
	}
}

// Save writes the configuration file, creating the directory if needed.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(c.Dir, configFile)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Path returns the configuration file path.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, configFile)
}

// DataDir returns the directory for the call journal.
func (c *Config) DataDir() string {
	return filepath.Join(c.Dir, dataDir)
}

// ValidateForCall checks the fields the call command needs.
func (c *Config) ValidateForCall() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url not set; edit %s or set AITREON_BACKEND_URL", c.Path())
	}
	if c.UserID == "" {
		return fmt.Errorf("user_id not set; edit %s or set AITREON_USER_ID", c.Path())
	}
	return nil
}

// MaxDuration returns the configured call limit as a duration.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Call.MaxMinutes) * time.Minute
}

// WarningAt returns the configured warning threshold as a duration.
func (c *Config) WarningAt() time.Duration {
	return time.Duration(c.Call.WarningSeconds) * time.Second
}
