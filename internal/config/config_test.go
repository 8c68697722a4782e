package config

import (
	"os"
	"testing"
	"time"
)

const validConfig = `
feed:
  token: "feed_token"
  league_id: "2274"
  poll_interval: 15s

tracker:
  quarter_seconds: 300
  overtime_seconds: 180
  capacity: 2

discord:
  enabled: true
  webhook_urls:
    - "https://discord.example/api/webhooks/1/a"
  timezone: "America/New_York"

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true

storage:
  backend: sqlite
  db_path: "./data/test.db"

logging:
  level: "info"
  format: "json"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify values
	if cfg.Feed.PollInterval != 15*time.Second {
		t.Errorf("Unexpected poll interval: %v", cfg.Feed.PollInterval)
	}
	if cfg.Tracker.QuarterSeconds != 300 || cfg.Tracker.OvertimeSeconds != 180 {
		t.Errorf("Unexpected clock: %d/%d", cfg.Tracker.QuarterSeconds, cfg.Tracker.OvertimeSeconds)
	}
	if cfg.Tracker.Capacity != 2 {
		t.Errorf("Unexpected capacity: %d", cfg.Tracker.Capacity)
	}
	if len(cfg.Discord.WebhookURLs) != 1 {
		t.Errorf("Expected 1 webhook, got %d", len(cfg.Discord.WebhookURLs))
	}

	// Defaults
	if cfg.Tracker.StallThreshold != 8 {
		t.Errorf("Unexpected stall threshold: %d", cfg.Tracker.StallThreshold)
	}
	if cfg.Tracker.MinAlertInterval != 30*time.Second {
		t.Errorf("Unexpected min alert interval: %v", cfg.Tracker.MinAlertInterval)
	}
	if cfg.Tracker.PeriodicMode != "throttled" || cfg.Tracker.TiedFinal != "skip" {
		t.Errorf("Unexpected policies: %s/%s", cfg.Tracker.PeriodicMode, cfg.Tracker.TiedFinal)
	}
	if cfg.Tracker.AbsenceLimit != 3 {
		t.Errorf("Unexpected absence limit: %d", cfg.Tracker.AbsenceLimit)
	}
	if cfg.Storage.MaxSamples != 100000 {
		t.Errorf("Unexpected max samples: %d", cfg.Storage.MaxSamples)
	}
	if cfg.Odds.Token != "feed_token" || cfg.Odds.BaseURL != cfg.Feed.BaseURL {
		t.Errorf("Odds should inherit feed credentials, got %q %q", cfg.Odds.BaseURL, cfg.Odds.Token)
	}

	// Test Validate
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PACE_ORACLE_FEED_TOKEN", "env_token")
	t.Setenv("PACE_ORACLE_TRACKER_CAPACITY", "5")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Feed.Token != "env_token" {
		t.Errorf("Expected env token, got %q", cfg.Feed.Token)
	}
	if cfg.Tracker.Capacity != 5 {
		t.Errorf("Expected capacity 5, got %d", cfg.Tracker.Capacity)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestClockHasNoDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
feed:
  token: "feed_token"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tracker.QuarterSeconds != 0 {
		t.Errorf("quarter_seconds must not default, got %d", cfg.Tracker.QuarterSeconds)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected Validate to reject a config without quarter_seconds")
	}
}

func validBase() Config {
	return Config{
		Feed: FeedConfig{
			BaseURL:           "https://api.example.com",
			Token:             "token",
			PollInterval:      10 * time.Second,
			RequestsPerMinute: 60,
			MaxRetries:        3,
			BreakerFailures:   5,
		},
		Tracker: TrackerConfig{
			QuarterSeconds:        720,
			OvertimeSeconds:       300,
			Capacity:              1,
			EarlyQuarter:          2,
			StallThreshold:        8,
			AlertThresholdPoints:  5,
			ExperimentalThreshold: 1.5,
			BlendRatio:            0.3,
			MinAlertInterval:      30 * time.Second,
			PeriodicMode:          "throttled",
			TiedFinal:             "skip",
			Workers:               4,
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			DBPath:     "./data/test.db",
			MaxSamples: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid base",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing feed token",
			mutate:  func(c *Config) { c.Feed.Token = "" },
			wantErr: true,
		},
		{
			name:    "missing overtime seconds",
			mutate:  func(c *Config) { c.Tracker.OvertimeSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "invalid blend ratio",
			mutate:  func(c *Config) { c.Tracker.BlendRatio = 1.5 },
			wantErr: true,
		},
		{
			name:    "unknown periodic mode",
			mutate:  func(c *Config) { c.Tracker.PeriodicMode = "always" },
			wantErr: true,
		},
		{
			name:    "unknown tie policy",
			mutate:  func(c *Config) { c.Tracker.TiedFinal = "overtime" },
			wantErr: true,
		},
		{
			name:    "missing telegram token when enabled",
			mutate:  func(c *Config) { c.Telegram = TelegramConfig{Enabled: true, ChatID: "1"} },
			wantErr: true,
		},
		{
			name:    "discord enabled without webhooks",
			mutate:  func(c *Config) { c.Discord = DiscordConfig{Enabled: true, Timezone: "UTC"} },
			wantErr: true,
		},
		{
			name: "discord with bad timezone",
			mutate: func(c *Config) {
				c.Discord = DiscordConfig{Enabled: true, WebhookURLs: []string{"https://x"}, Timezone: "Mars/Olympus"}
			},
			wantErr: true,
		},
		{
			name:    "redis backend without address",
			mutate:  func(c *Config) { c.Storage.Backend = "redis"; c.Storage.RedisAddr = "" },
			wantErr: true,
		},
		{
			name:    "redis backend with address",
			mutate:  func(c *Config) { c.Storage.Backend = "redis"; c.Storage.RedisAddr = "localhost:6379" },
			wantErr: false,
		},
		{
			name:    "non-positive max samples",
			mutate:  func(c *Config) { c.Storage.MaxSamples = 0 },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "firestore" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
