// Package config holds the organizer's scheduling preferences as a YAML
// file. Credentials and provider settings stay in the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"calinvite/internal/candidates"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk preferences file.
type Config struct {
	// OrganizerName is shown to recipients as the inviter.
	OrganizerName string `yaml:"organizer_name"`

	// Timezone is the IANA zone the daily window is read in (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone"`

	// Days lists the allowed weekdays ("sat", "sunday", ...).
	Days []string `yaml:"days"`

	// WindowStart / WindowEnd bound each day, "HH:MM".
	WindowStart string `yaml:"window_start"`
	WindowEnd   string `yaml:"window_end"`

	// DurationMinutes is the slot length. StrideMinutes, if set, spaces
	// slot starts differently from the slot length.
	DurationMinutes int `yaml:"duration_minutes"`
	StrideMinutes   int `yaml:"stride_minutes,omitempty"`

	HorizonDays int `yaml:"horizon_days"`
	MaxSlots    int `yaml:"max_slots"`

	// BaseURL is the URL the encoded query string is attached to.
	BaseURL string `yaml:"base_url"`

	// Feeds are extra ICS subscription URLs consulted for busy time.
	Feeds []string `yaml:"feeds"`
}

// DefaultConfig returns weekend afternoons, one hour each, two weeks ahead.
func DefaultConfig() *Config {
	return &Config{
		OrganizerName:   "You",
		Timezone:        "UTC",
		Days:            []string{"saturday", "sunday"},
		WindowStart:     "14:00",
		WindowEnd:       "18:00",
		DurationMinutes: 60,
		HorizonDays:     14,
		MaxSlots:        5,
		BaseURL:         "calinvite://message",
		Feeds:           []string{},
	}
}

// Normalize fills zero values with defaults so older or partial files still work.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.OrganizerName == "" {
		c.OrganizerName = d.OrganizerName
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if len(c.Days) == 0 {
		c.Days = d.Days
	}
	if c.WindowStart == "" {
		c.WindowStart = d.WindowStart
	}
	if c.WindowEnd == "" {
		c.WindowEnd = d.WindowEnd
	}
	if c.DurationMinutes <= 0 {
		c.DurationMinutes = d.DurationMinutes
	}
	if c.StrideMinutes < 0 {
		c.StrideMinutes = 0
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = d.HorizonDays
	}
	if c.MaxSlots <= 0 {
		c.MaxSlots = d.MaxSlots
	}
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Feeds == nil {
		c.Feeds = []string{}
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// Preferences converts the file into generator preferences.
func (c *Config) Preferences() (candidates.Preferences, error) {
	loc, err := c.Location()
	if err != nil {
		return candidates.Preferences{}, err
	}
	start, err := candidates.ParseTimeOfDay(c.WindowStart)
	if err != nil {
		return candidates.Preferences{}, err
	}
	end, err := candidates.ParseTimeOfDay(c.WindowEnd)
	if err != nil {
		return candidates.Preferences{}, err
	}
	days := make([]time.Weekday, 0, len(c.Days))
	for _, s := range c.Days {
		d, err := candidates.ParseWeekday(s)
		if err != nil {
			return candidates.Preferences{}, err
		}
		days = append(days, d)
	}

	return candidates.Preferences{
		Weekdays:    days,
		WindowStart: start,
		WindowEnd:   end,
		Duration:    time.Duration(c.DurationMinutes) * time.Minute,
		Stride:      time.Duration(c.StrideMinutes) * time.Minute,
		HorizonDays: c.HorizonDays,
		MaxSlots:    c.MaxSlots,
		Location:    loc,
	}, nil
}

// Load reads the YAML file at path. A missing file is created with defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".calinvite-config-*.tmp")
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
