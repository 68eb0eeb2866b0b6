// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AppName is used for the per-user config directory and autostart entries.
const AppName = "oscnode"

// File names inside Dir().
const (
	ConfigFileName   = "config.yaml"
	SettingsFileName = "settings.yaml"
	LogFileName      = "oscnode.log"
	LockFileName     = "oscnode.pid"
	ProfileDirName   = "task-profile"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "15s", "30s", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// Config holds all agent configuration.
type Config struct {
	Homepage      string              `yaml:"homepage"`
	AboutURL      string              `yaml:"about_url"`
	Task          TaskConfig          `yaml:"task"`
	Power         PowerConfig         `yaml:"power"`
	Ping          PingConfig          `yaml:"ping"`
	Auth          AuthConfig          `yaml:"auth"`
	Update        UpdateConfig        `yaml:"update"`
	Autostart     AutostartConfig     `yaml:"autostart"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// TaskConfig describes the hidden background task.
type TaskConfig struct {
	URL     string   `yaml:"url"`
	Browser string   `yaml:"browser"` // empty = auto-detect
	Args    []string `yaml:"args"`    // {url} and {profile} are substituted
}

// PowerConfig holds battery policy settings.
type PowerConfig struct {
	MinBatteryLevel float64  `yaml:"min_battery_level"`
	SettleDelay     Duration `yaml:"settle_delay"`
	PollInterval    Duration `yaml:"poll_interval"`
}

// PingConfig holds the machine ping settings.
type PingConfig struct {
	URL      string   `yaml:"url"`
	Interval Duration `yaml:"interval"`
}

// AuthConfig holds the identity linking settings.
type AuthConfig struct {
	LoginURL       string   `yaml:"login_url"`
	CallbackPath   string   `yaml:"callback_path"`
	IdentityCookie string   `yaml:"identity_cookie"`
	LooseMatch     bool     `yaml:"loose_match"`
	Timeout        Duration `yaml:"timeout"`
}

// UpdateConfig holds auto-update settings.
type UpdateConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Server        string   `yaml:"server"`
	CheckInterval Duration `yaml:"check_interval"`
}

// AutostartConfig controls the login item.
type AutostartConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NotificationsConfig controls desktop notifications.
type NotificationsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Homepage: "http://opensourcecitizen.org",
		AboutURL: "http://github.com/motdotla/oscnode",
		Task: TaskConfig{
			URL: "https://www.opensourcecitizen.org/v1/node/contribute",
			Args: []string{
				"--headless=new",
				"--disable-gpu",
				"--no-first-run",
				"--no-default-browser-check",
				"--user-data-dir={profile}",
				"{url}",
			},
		},
		Power: PowerConfig{
			MinBatteryLevel: 0.3,
			SettleDelay:     Duration{3 * time.Second},
			PollInterval:    Duration{10 * time.Second},
		},
		Ping: PingConfig{
			URL:      "http://www.opensourcecitizen.org/v1/node/ping",
			Interval: Duration{15 * time.Minute},
		},
		Auth: AuthConfig{
			LoginURL:       "https://www.opensourcecitizen.org/login",
			CallbackPath:   "/callback",
			IdentityCookie: "citizen_id",
			Timeout:        Duration{10 * time.Minute},
		},
		Update: UpdateConfig{
			Enabled:       true,
			Server:        "https://oscnode-updates.now.sh",
			CheckInterval: Duration{1 * time.Hour},
		},
		Autostart: AutostartConfig{
			Enabled: true,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(Dir(), LogFileName),
		},
	}
}

// CLIOverrides holds values from command-line flags.
// Empty strings are treated as "not set" and skipped.
type CLIOverrides struct {
	LogLevel string
	TaskURL  string
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value  → use that path ("" means no external file)
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.TaskURL != "" {
		cfg.Task.URL = cli.TaskURL
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("OSC_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if u := os.Getenv("OSC_TASK_URL"); u != "" {
		cfg.Task.URL = u
	}
	if b := os.Getenv("OSC_BROWSER"); b != "" {
		cfg.Task.Browser = b
	}
	if u := os.Getenv("OSC_PING_URL"); u != "" {
		cfg.Ping.URL = u
	}
	if v := os.Getenv("OSC_UPDATE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Update.Enabled = enabled
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"homepage":       c.Homepage,
		"task.url":       c.Task.URL,
		"ping.url":       c.Ping.URL,
		"auth.login_url": c.Auth.LoginURL,
	} {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Update.Enabled {
		if err := validateURL(c.Update.Server); err != nil {
			return fmt.Errorf("update.server: %w", err)
		}
	}
	if c.Power.MinBatteryLevel <= 0 || c.Power.MinBatteryLevel > 1 {
		return fmt.Errorf("power.min_battery_level must be in (0, 1] (got: %v)", c.Power.MinBatteryLevel)
	}
	if c.Power.PollInterval.Duration <= 0 {
		return fmt.Errorf("power.poll_interval must be positive")
	}
	if c.Ping.Interval.Duration <= 0 {
		return fmt.Errorf("ping.interval must be positive")
	}
	if c.Update.Enabled && c.Update.CheckInterval.Duration <= 0 {
		return fmt.Errorf("update.check_interval must be positive")
	}
	if c.Auth.CallbackPath == "" || c.Auth.CallbackPath[0] != '/' {
		return fmt.Errorf("auth.callback_path must start with / (got: %q)", c.Auth.CallbackPath)
	}
	if c.Auth.IdentityCookie == "" {
		return fmt.Errorf("auth.identity_cookie is required")
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must be http(s) (got: %s)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host (got: %s)", raw)
	}
	return nil
}

// Dir returns the per-user configuration directory for the agent.
// Falls back to the working directory when the OS does not report one.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, AppName)
}

// SettingsPath returns the path to the persisted settings store.
func SettingsPath() string {
	return filepath.Join(Dir(), SettingsFileName)
}

// LockPath returns the path to the single-instance lock file.
func LockPath() string {
	return filepath.Join(Dir(), LockFileName)
}

// ProfileDir returns the browser profile directory used by the hidden task.
func ProfileDir() string {
	return filepath.Join(Dir(), ProfileDirName)
}
