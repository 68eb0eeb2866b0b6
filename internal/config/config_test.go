package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadLayered_CLIOverridesEverything(t *testing.T) {
	embedded := []byte("logging:\n  level: \"warn\"\ntask:\n  url: \"https://embedded.example.com/task\"")
	t.Setenv("OSC_LOG_LEVEL", "error")
	cli := CLIOverrides{LogLevel: "debug", TaskURL: "https://cli.example.com/task"}

	cfg, err := LoadLayered(cli, embedded, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want CLI override", cfg.Logging.Level)
	}
	if cfg.Task.URL != "https://cli.example.com/task" {
		t.Errorf("Task URL = %q, want CLI override", cfg.Task.URL)
	}
}

func TestLoadLayered_EnvOverridesEmbed(t *testing.T) {
	embedded := []byte("logging:\n  level: \"warn\"\nping:\n  url: \"https://embedded.example.com/ping\"")
	t.Setenv("OSC_LOG_LEVEL", "error")

	cfg, err := LoadLayered(CLIOverrides{}, embedded, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Level = %q, want env override", cfg.Logging.Level)
	}
	if cfg.Ping.URL != "https://embedded.example.com/ping" {
		t.Errorf("Ping URL = %q, want embedded value", cfg.Ping.URL)
	}
}

func TestLoadLayered_FileOverridesEmbed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("power:\n  min_battery_level: 0.5\n  settle_delay: 5s\n"), 0644); err != nil {
		t.Fatal(err)
	}
	embedded := []byte("power:\n  min_battery_level: 0.2")

	cfg, err := LoadLayered(CLIOverrides{}, embedded, path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Power.MinBatteryLevel != 0.5 {
		t.Errorf("MinBatteryLevel = %v, want file value", cfg.Power.MinBatteryLevel)
	}
	if cfg.Power.SettleDelay.Duration != 5*time.Second {
		t.Errorf("SettleDelay = %v, want 5s", cfg.Power.SettleDelay.Duration)
	}
}

func TestLoadLayered_DefaultsWhenEmpty(t *testing.T) {
	cfg, err := LoadLayered(CLIOverrides{}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ping.Interval.Duration != 15*time.Minute {
		t.Errorf("Ping interval = %v, want 15m default", cfg.Ping.Interval.Duration)
	}
	if cfg.Update.CheckInterval.Duration != time.Hour {
		t.Errorf("Update interval = %v, want 1h default", cfg.Update.CheckInterval.Duration)
	}
	if cfg.Power.MinBatteryLevel != 0.3 {
		t.Errorf("MinBatteryLevel = %v, want 0.3 default", cfg.Power.MinBatteryLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadLayered_InvalidDuration(t *testing.T) {
	_, err := LoadLayered(CLIOverrides{}, []byte("ping:\n  interval: soon"), "")
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"no task url", func(c *Config) { c.Task.URL = "" }, true},
		{"ftp homepage", func(c *Config) { c.Homepage = "ftp://example.com" }, true},
		{"battery level zero", func(c *Config) { c.Power.MinBatteryLevel = 0 }, true},
		{"battery level above one", func(c *Config) { c.Power.MinBatteryLevel = 1.5 }, true},
		{"update server ignored when disabled", func(c *Config) {
			c.Update.Enabled = false
			c.Update.Server = ""
		}, false},
		{"relative callback path", func(c *Config) { c.Auth.CallbackPath = "callback" }, true},
		{"no identity cookie", func(c *Config) { c.Auth.IdentityCookie = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
