// Package config holds the YAML configuration. A missing file is created
// with defaults on first run.
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
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "/etc/nailsync/config.yaml"

	EnvClientID     = "NAILSYNC_GOOGLE_CLIENT_ID"
	EnvClientSecret = "NAILSYNC_GOOGLE_CLIENT_SECRET"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// SyncConfig controls sync-from-remote.
type SyncConfig struct {
	// WindowMonthsBefore / WindowMonthsAfter bound the listed range
	// around now.
	WindowMonthsBefore int `yaml:"window_months_before" json:"window_months_before"`
	WindowMonthsAfter  int `yaml:"window_months_after" json:"window_months_after"`

	// Keywords is the recognition filter; an event whose summary has none
	// of them is not imported. Empty imports everything.
	Keywords []string `yaml:"keywords" json:"keywords"`

	// Cron schedules sync-from-remote (e.g. "*/30 * * * *"). Empty means
	// manual only.
	Cron string `yaml:"cron" json:"cron"`

	DefaultDurationMinutes int `yaml:"default_duration_minutes" json:"default_duration_minutes"`
}

// GoogleConfig is the linked account's OAuth client and target calendar.
type GoogleConfig struct {
	CalendarID      string `yaml:"calendar_id" json:"calendar_id"`
	ClientID        string `yaml:"client_id" json:"client_id"`
	ClientSecret    string `yaml:"client_secret" json:"-"`
	RedirectURL     string `yaml:"redirect_url" json:"redirect_url"`
	DriveFolderName string `yaml:"drive_folder_name" json:"drive_folder_name"`
}

// AvailabilityConfig lists ICS feeds whose timed events become open slots.
type AvailabilityConfig struct {
	Feeds       []string `yaml:"feeds" json:"feeds"`
	HorizonDays int      `yaml:"horizon_days" json:"horizon_days"`
}

// FeedConfig controls the published ICS feed.
type FeedConfig struct {
	Name                string `yaml:"name" json:"name"`
	IncludeAvailability bool   `yaml:"include_availability" json:"include_availability"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone appointments are written in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataDir holds the store blob, the linked token and the feed cache.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// PricingVersion is "v1" (add-ons) or "v2" (flat + soak-off).
	PricingVersion string `yaml:"pricing_version" json:"pricing_version"`

	// FallbackPrice is used for imported events that carry no price.
	FallbackPrice string `yaml:"fallback_price" json:"fallback_price"`

	Sync         SyncConfig         `yaml:"sync" json:"sync"`
	Google       GoogleConfig       `yaml:"google" json:"google"`
	Availability AvailabilityConfig `yaml:"availability" json:"availability"`
	Feed         FeedConfig         `yaml:"feed" json:"feed"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills zero values so partially written or older files still
// behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/nailsync"
	}
	switch c.PricingVersion {
	case "v1", "v2":
	default:
		c.PricingVersion = "v2"
	}
	if _, err := decimal.NewFromString(c.FallbackPrice); err != nil {
		c.FallbackPrice = "60"
	}

	if c.Sync.WindowMonthsBefore <= 0 {
		c.Sync.WindowMonthsBefore = 3
	}
	if c.Sync.WindowMonthsAfter <= 0 {
		c.Sync.WindowMonthsAfter = 3
	}
	if c.Sync.Keywords == nil {
		c.Sync.Keywords = []string{"GEL", "MANICURE", "BUILDER", "NAIL"}
	}
	if c.Sync.DefaultDurationMinutes <= 0 {
		c.Sync.DefaultDurationMinutes = 90
	}

	if c.Google.CalendarID == "" {
		c.Google.CalendarID = "primary"
	}
	if c.Google.RedirectURL == "" {
		c.Google.RedirectURL = "http://" + c.Listen + "/auth/google/callback"
	}
	if c.Google.DriveFolderName == "" {
		c.Google.DriveFolderName = "Nailsite Appointments"
	}

	if c.Availability.Feeds == nil {
		c.Availability.Feeds = []string{}
	}
	if c.Availability.HorizonDays <= 0 {
		c.Availability.HorizonDays = 60
	}
	if c.Feed.Name == "" {
		c.Feed.Name = "Nail appointments"
	}
}

// ApplyEnv overrides OAuth client credentials from the environment. Call
// after loading any .env file.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvClientID)); v != "" {
		c.Google.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvClientSecret)); v != "" {
		c.Google.ClientSecret = v
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Fallback is FallbackPrice as a decimal.
func (c *Config) Fallback() decimal.Decimal {
	d, err := decimal.NewFromString(c.FallbackPrice)
	if err != nil {
		return decimal.NewFromInt(60)
	}
	return d
}

// EventDuration is the fixed length written for every appointment.
func (c *Config) EventDuration() time.Duration {
	return time.Duration(c.Sync.DefaultDurationMinutes) * time.Minute
}

func (c *Config) StorePath() string { return filepath.Join(c.DataDir, "store.json") }
func (c *Config) TokenPath() string { return filepath.Join(c.DataDir, "tokens.json") }
func (c *Config) CacheDir() string  { return filepath.Join(c.DataDir, "feed-cache") }

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		return errors.New("config: basic_auth needs both username and password")
	}
	if fb, err := decimal.NewFromString(c.FallbackPrice); err != nil || fb.IsNegative() {
		return fmt.Errorf("config: fallback_price %q must be a non-negative amount", c.FallbackPrice)
	}
	if c.Sync.Cron != "" {
		if _, err := cron.ParseStandard(c.Sync.Cron); err != nil {
			return fmt.Errorf("config: sync.cron %q: %w", c.Sync.Cron, err)
		}
	}
	return nil
}

// Load reads the YAML file at path on fsys (nil = OS filesystem). A missing
// file is created with defaults and 0600 permissions.
func Load(fsys afero.Fs, path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			// The defaults are still usable if they cannot be written.
			return cfg, Save(fsys, path, cfg)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg atomically: temp file in the same directory, fsync,
// chmod 0600, rename.
func Save(fsys afero.Fs, path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(fsys, dir, ".nailsync-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer fsys.Remove(tmpName)

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
	if err := fsys.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return fsys.Rename(tmpName, path)
}
