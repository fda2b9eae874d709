package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen        = "127.0.0.1:8080"
	DefaultRefresh       = "*/15 * * * *"
	DefaultColor         = "#0000FF"
	DefaultUpcomingCount = 5
	DefaultCaptureWidth  = 400
	DefaultCaptureHeight = 200
	DefaultCaptureWait   = 30 * time.Second
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig controls the headless-chromium PNG capture of the widget page.
type CaptureConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// URL is the page to capture. Empty means the local /widget page.
	URL        string        `yaml:"url" json:"url"`
	OutputPath string        `yaml:"output_path" json:"output_path"`
	Width      int           `yaml:"width" json:"width"`
	Height     int           `yaml:"height" json:"height"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// WidgetConfig describes the home-screen widget timeline.
type WidgetConfig struct {
	// EventID pins the widget to one record. Empty selects the top
	// presented record.
	EventID      string        `yaml:"event_id" json:"event_id"`
	SnapshotPath string        `yaml:"snapshot_path" json:"snapshot_path"`
	Capture      CaptureConfig `yaml:"capture" json:"capture"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone whose calendar days are used for "today".
	Timezone string `yaml:"timezone" json:"timezone"`

	// Database is the SQLite file path. Empty means the XDG data dir.
	Database string `yaml:"database" json:"database"`

	// RefreshCron is the standard 5-field cron schedule of the widget
	// refresher (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// DefaultColor is the color tag applied when a surface submits none.
	DefaultColor string `yaml:"default_color" json:"default_color"`

	// UpcomingCount is how many future occurrences detail views list.
	UpcomingCount int `yaml:"upcoming_count" json:"upcoming_count"`

	Widget WidgetConfig `yaml:"widget" json:"widget"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultPath returns $XDG_CONFIG_HOME/countdown/config.yaml, falling back
// to ~/.config.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "countdown", "config.yaml"), nil
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        DefaultListen,
		Timezone:      "Local",
		RefreshCron:   DefaultRefresh,
		LogLevel:      "info",
		DefaultColor:  DefaultColor,
		UpcomingCount: DefaultUpcomingCount,
		Widget: WidgetConfig{
			Capture: CaptureConfig{
				Width:   DefaultCaptureWidth,
				Height:  DefaultCaptureHeight,
				Timeout: DefaultCaptureWait,
			},
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefresh
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	if c.DefaultColor == "" {
		c.DefaultColor = DefaultColor
	}
	if c.UpcomingCount <= 0 {
		c.UpcomingCount = DefaultUpcomingCount
	}

	cp := &c.Widget.Capture
	if cp.Width <= 0 {
		cp.Width = DefaultCaptureWidth
	}
	if cp.Height <= 0 {
		cp.Height = DefaultCaptureHeight
	}
	if cp.Timeout <= 0 {
		cp.Timeout = DefaultCaptureWait
	}

	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", c.RefreshCron, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. "Local" maps to the process zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshalled, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
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
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700.
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

	tmp, err := os.CreateTemp(dir, ".countdown-config-*.tmp")
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
