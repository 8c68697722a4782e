package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Odds     OddsConfig     `mapstructure:"odds"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// FeedConfig holds the live scores API configuration
type FeedConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Token             string        `mapstructure:"token"`
	SportID           string        `mapstructure:"sport_id"`
	LeagueID          string        `mapstructure:"league_id"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BreakerFailures   int           `mapstructure:"breaker_failures"` // consecutive failures before the circuit opens
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`
}

// OddsConfig holds market line lookup configuration. Base URL and token fall back to the feed's.
type OddsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// TrackerConfig holds pace tracking and alert policy configuration
type TrackerConfig struct {
	// No defaults: leagues disagree on period length.
	QuarterSeconds  int `mapstructure:"quarter_seconds"`
	OvertimeSeconds int `mapstructure:"overtime_seconds"`

	Capacity       int `mapstructure:"capacity"` // 0 = unlimited
	EarlyQuarter   int `mapstructure:"early_quarter"`
	StallThreshold int `mapstructure:"stall_threshold"`
	AbsenceLimit   int `mapstructure:"absence_limit"` // 0 = never release absent games

	AlertThresholdPoints  float64 `mapstructure:"alert_threshold_points"`
	ExperimentalThreshold float64 `mapstructure:"experimental_threshold"`
	BlendRatio            float64 `mapstructure:"blend_ratio"`
	LeaderThreshold       int     `mapstructure:"leader_threshold"`
	AvoidPush             bool    `mapstructure:"avoid_push"`

	MinAlertInterval time.Duration `mapstructure:"min_alert_interval"`
	PeriodicMode     string        `mapstructure:"periodic_mode"` // throttled | pre_decision
	TiedFinal        string        `mapstructure:"tied_final"`    // skip | report
	OvertimeFinal    bool          `mapstructure:"overtime_final"`
	Workers          int           `mapstructure:"workers"`
}

// DiscordConfig holds Discord webhook notification configuration
type DiscordConfig struct {
	WebhookURLs []string      `mapstructure:"webhook_urls"`
	Enabled     bool          `mapstructure:"enabled"`
	Timezone    string        `mapstructure:"timezone"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds state persistence configuration
type StorageConfig struct {
	Backend       string        `mapstructure:"backend"` // sqlite | redis
	DBPath        string        `mapstructure:"db_path"` // also holds the sample and alert audit trail
	MaxSamples    int           `mapstructure:"max_samples"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
	RedisTTL      time.Duration `mapstructure:"redis_ttl"`
}

// ServerConfig holds the HTTP trigger/health server configuration
type ServerConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. PACE_ORACLE_FEED_TOKEN
	v.SetEnvPrefix("PACE_ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Odds.BaseURL == "" {
		cfg.Odds.BaseURL = cfg.Feed.BaseURL
	}
	if cfg.Odds.Token == "" {
		cfg.Odds.Token = cfg.Feed.Token
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Feed defaults
	v.SetDefault("feed.base_url", "https://api.b365api.com")
	v.SetDefault("feed.token", "")
	v.SetDefault("feed.league_id", "")
	v.SetDefault("feed.sport_id", "18")
	v.SetDefault("feed.poll_interval", "10s")
	v.SetDefault("feed.timeout", "15s")
	v.SetDefault("feed.requests_per_minute", 60)
	v.SetDefault("feed.max_retries", 3)
	v.SetDefault("feed.breaker_failures", 5)
	v.SetDefault("feed.breaker_cooldown", "30s")

	// Odds defaults
	v.SetDefault("odds.enabled", true)
	v.SetDefault("odds.base_url", "")
	v.SetDefault("odds.token", "")

	// Tracker defaults (quarter_seconds and overtime_seconds intentionally unset)
	v.SetDefault("tracker.capacity", 1)
	v.SetDefault("tracker.early_quarter", 2)
	v.SetDefault("tracker.stall_threshold", 8)
	v.SetDefault("tracker.absence_limit", 3)
	v.SetDefault("tracker.alert_threshold_points", 5.0)
	v.SetDefault("tracker.experimental_threshold", 1.5)
	v.SetDefault("tracker.blend_ratio", 0.3)
	v.SetDefault("tracker.leader_threshold", 5)
	v.SetDefault("tracker.avoid_push", false)
	v.SetDefault("tracker.min_alert_interval", "30s")
	v.SetDefault("tracker.periodic_mode", "throttled")
	v.SetDefault("tracker.tied_final", "skip")
	v.SetDefault("tracker.overtime_final", true)
	v.SetDefault("tracker.workers", 4)

	// Discord defaults
	v.SetDefault("discord.enabled", false)
	v.SetDefault("discord.timezone", "America/New_York")
	v.SetDefault("discord.max_retries", 3)
	v.SetDefault("discord.timeout", "10s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.db_path", "./data/pace-oracle.db")
	v.SetDefault("storage.max_samples", 100000)
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_prefix", "paceoracle:game:")
	v.SetDefault("storage.redis_ttl", "12h")

	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Feed config
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if c.Feed.Token == "" {
		return fmt.Errorf("feed.token is required")
	}
	if c.Feed.PollInterval < 1*time.Second {
		return fmt.Errorf("feed.poll_interval must be at least 1 second")
	}
	if c.Feed.RequestsPerMinute < 1 {
		return fmt.Errorf("feed.requests_per_minute must be at least 1")
	}
	if c.Feed.MaxRetries < 0 {
		return fmt.Errorf("feed.max_retries must not be negative")
	}
	if c.Feed.BreakerFailures < 1 {
		return fmt.Errorf("feed.breaker_failures must be at least 1")
	}

	// Validate Tracker config
	if c.Tracker.QuarterSeconds <= 0 {
		return fmt.Errorf("tracker.quarter_seconds is required (e.g. 720 or 300)")
	}
	if c.Tracker.OvertimeSeconds <= 0 {
		return fmt.Errorf("tracker.overtime_seconds is required (e.g. 300 or 180)")
	}
	if c.Tracker.Capacity < 0 {
		return fmt.Errorf("tracker.capacity must not be negative")
	}
	if c.Tracker.EarlyQuarter < 1 || c.Tracker.EarlyQuarter > 4 {
		return fmt.Errorf("tracker.early_quarter must be between 1 and 4")
	}
	if c.Tracker.StallThreshold < 1 {
		return fmt.Errorf("tracker.stall_threshold must be at least 1")
	}
	if c.Tracker.AbsenceLimit < 0 {
		return fmt.Errorf("tracker.absence_limit must not be negative")
	}
	if c.Tracker.AlertThresholdPoints < 0 || c.Tracker.ExperimentalThreshold < 0 {
		return fmt.Errorf("tracker alert thresholds must not be negative")
	}
	if c.Tracker.BlendRatio < 0.0 || c.Tracker.BlendRatio > 1.0 {
		return fmt.Errorf("tracker.blend_ratio must be between 0.0 and 1.0")
	}
	validPeriodicModes := map[string]bool{"throttled": true, "pre_decision": true}
	if !validPeriodicModes[c.Tracker.PeriodicMode] {
		return fmt.Errorf("tracker.periodic_mode must be one of: throttled, pre_decision")
	}
	validTiedFinal := map[string]bool{"skip": true, "report": true}
	if !validTiedFinal[c.Tracker.TiedFinal] {
		return fmt.Errorf("tracker.tied_final must be one of: skip, report")
	}
	if c.Tracker.Workers < 1 {
		return fmt.Errorf("tracker.workers must be at least 1")
	}

	// Validate Discord config
	if c.Discord.Enabled {
		if len(c.Discord.WebhookURLs) == 0 {
			return fmt.Errorf("discord.webhook_urls is required when discord is enabled")
		}
		if _, err := time.LoadLocation(c.Discord.Timezone); err != nil {
			return fmt.Errorf("discord.timezone is invalid: %w", err)
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxSamples <= 0 {
		return fmt.Errorf("storage.max_samples must be positive")
	}
	switch c.Storage.Backend {
	case "sqlite":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of: sqlite, redis")
	}

	// Validate Server config
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when the server is enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
