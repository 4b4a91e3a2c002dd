package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/christopherklint97/matterclock/internal/suggest"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Clockify      ClockifyConfig `toml:"clockify"`
	Timer         TimerConfig    `toml:"timer"`
	Suggest       SuggestConfig  `toml:"suggest"`
	Notifications NotifyConfig   `toml:"notifications"`
	Calendar      CalendarConfig `toml:"calendar"`
	DataDir       string         `toml:"data_dir"`
}

type ClockifyConfig struct {
	APIKey      string `toml:"api_key"`
	WorkspaceID string `toml:"workspace_id"`
	BaseURL     string `toml:"base_url"`
	Billable    bool   `toml:"billable"`
}

type TimerConfig struct {
	TickSeconds  int `toml:"tick_seconds"`
	HistoryLimit int `toml:"history_limit"`
}

type SuggestConfig struct {
	RecentActivityMinutes int `toml:"recent_activity_minutes"`
	LastTimerHours        int `toml:"last_timer_hours"`
	MostActiveDays        int `toml:"most_active_days"`
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

type CalendarConfig struct {
	Enabled bool   `toml:"enabled"`
	Source  string `toml:"source"` // ICS URL or file path
}

func DefaultConfig() Config {
	return Config{
		Clockify: ClockifyConfig{
			Billable: true,
		},
		Timer: TimerConfig{
			TickSeconds:  1,
			HistoryLimit: 500,
		},
		Suggest: SuggestConfig{
			RecentActivityMinutes: 5,
			LastTimerHours:        24,
			MostActiveDays:        7,
		},
		Notifications: NotifyConfig{
			Enabled: true,
		},
	}
}

// Remote reports whether a Clockify workspace is configured.
func (c *Config) Remote() bool {
	return c.Clockify.APIKey != ""
}

// TickInterval is the display refresh period of a running timer.
func (c *Config) TickInterval() time.Duration {
	if c.Timer.TickSeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.Timer.TickSeconds) * time.Second
}

// Windows converts the suggestion settings. Non-positive values fall back to defaults.
func (c *Config) Windows() suggest.Windows {
	return suggest.Windows{
		RecentActivity: time.Duration(c.Suggest.RecentActivityMinutes) * time.Minute,
		LastTimer:      time.Duration(c.Suggest.LastTimerHours) * time.Hour,
		MostActive:     time.Duration(c.Suggest.MostActiveDays) * 24 * time.Hour,
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "matterclock"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(path)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLOCKIFY_API_KEY"); v != "" {
		cfg.Clockify.APIKey = v
	}
	if v := os.Getenv("CLOCKIFY_WORKSPACE_ID"); v != "" {
		cfg.Clockify.WorkspaceID = v
	}
	if v := os.Getenv("CLOCKIFY_BASE_URL"); v != "" {
		cfg.Clockify.BaseURL = v
	}
	if v := os.Getenv("MATTERCLOCK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// WriteDefault writes the default config to path unless a file already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	out, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}
