package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the local UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LayoutConfig holds the weekly grid constants used by the geometry mapper.
type LayoutConfig struct {
	// StartHour is the first hour row of the grid (0-23).
	StartHour int `yaml:"start_hour"`
	// HourHeight is the pixel height of one hour row.
	HourHeight float64 `yaml:"hour_height"`
	// GapPercent is the horizontal gap between columns, in percent of a
	// day cell.
	GapPercent float64 `yaml:"gap_percent"`
	// MinEventHeight is the pixel floor for very short events.
	MinEventHeight float64 `yaml:"min_event_height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the local UI and API.
	Listen string `yaml:"listen"`

	// APIBaseURL is the remote calendar backend, e.g.
	// "https://api.example.com". All event data lives there; this process
	// keeps nothing beyond the currently displayed week.
	APIBaseURL string `yaml:"api_base_url"`

	// APITimeoutSec bounds a single backend request, in seconds.
	APITimeoutSec int `yaml:"api_timeout_sec"`

	// TokenPath is where the session bearer token is persisted.
	TokenPath string `yaml:"token_path"`

	// Timezone is the IANA timezone used for day bucketing and the grid
	// (e.g. "Europe/London"). Empty means the process-local zone.
	Timezone string `yaml:"timezone"`

	// RefreshCron is a cron expression for the periodic week refresh and
	// preview capture, e.g. "*/15 * * * *".
	RefreshCron string `yaml:"refresh"`

	// Layout holds the grid geometry constants.
	Layout LayoutConfig `yaml:"layout"`

	// PreviewPath is where the captured PNG preview is written. Empty
	// disables capture.
	PreviewPath string `yaml:"preview_path"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8080",
		APIBaseURL:    "",
		APITimeoutSec: 15,
		TokenPath:     "",
		Timezone:      "",
		RefreshCron:   "*/15 * * * *",
		Layout: LayoutConfig{
			StartHour:      6,
			HourHeight:     60,
			GapPercent:     1,
			MinEventHeight: 18,
		},
		PreviewPath: "",
		LogLevel:    "info",
	}
}

// Normalize fills missing or out-of-range values with defaults so partially
// filled config files still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.APITimeoutSec <= 0 {
		c.APITimeoutSec = 15
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.Layout.StartHour < 0 || c.Layout.StartHour > 23 {
		c.Layout.StartHour = 6
	}
	if c.Layout.HourHeight <= 0 {
		c.Layout.HourHeight = 60
	}
	if c.Layout.GapPercent < 0 {
		c.Layout.GapPercent = 1
	}
	if c.Layout.MinEventHeight <= 0 {
		c.Layout.MinEventHeight = 18
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects configurations the process cannot run with.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("config: api_base_url is required")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// APITimeout returns the backend request timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSec) * time.Second
}

// Location resolves the configured timezone, falling back to time.Local.
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

// Load reads configuration from the given YAML path. If the file does not
// exist a default config is written there (0600, parent dir created) and
// returned, so a first run leaves a template behind to fill in.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory when needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".weekcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
