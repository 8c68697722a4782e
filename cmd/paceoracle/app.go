package main

import (
	"fmt"

	"github.com/rewired-gh/paceoracle/internal/config"
	"github.com/rewired-gh/paceoracle/internal/discord"
	"github.com/rewired-gh/paceoracle/internal/feed"
	"github.com/rewired-gh/paceoracle/internal/logger"
	"github.com/rewired-gh/paceoracle/internal/notify"
	"github.com/rewired-gh/paceoracle/internal/projection"
	"github.com/rewired-gh/paceoracle/internal/server"
	"github.com/rewired-gh/paceoracle/internal/storage"
	"github.com/rewired-gh/paceoracle/internal/telegram"
	"github.com/rewired-gh/paceoracle/internal/tracker"
)

// app holds the wired components shared by every command.
type app struct {
	cfg    *config.Config
	audit  *storage.Storage
	redis  *storage.RedisStore
	states tracker.StateStore
	feed   *feed.Client
	engine *tracker.Engine

	notifier *notify.Multi
	telegram *telegram.Client
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", configPath)
	return cfg, nil
}

// newApp opens storage and builds the engine. Notifiers are only built when withNotifiers is set.
func newApp(cfg *config.Config, withNotifiers bool) (*app, error) {
	a := &app{cfg: cfg}

	audit, err := storage.New(cfg.Storage.MaxSamples, cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.audit = audit
	a.states = audit

	if cfg.Storage.Backend == "redis" {
		rs, err := storage.NewRedisStore(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword,
			cfg.Storage.RedisDB, cfg.Storage.RedisPrefix, cfg.Storage.RedisTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize redis store: %w", err)
		}
		a.redis = rs
		a.states = rs
		logger.Info("Game state stored in redis at %s", cfg.Storage.RedisAddr)
	}

	a.feed = feed.NewClient(feed.Options{
		BaseURL:           cfg.Feed.BaseURL,
		Token:             cfg.Feed.Token,
		SportID:           cfg.Feed.SportID,
		LeagueID:          cfg.Feed.LeagueID,
		OddsBaseURL:       cfg.Odds.BaseURL,
		OddsToken:         cfg.Odds.Token,
		Timeout:           cfg.Feed.Timeout,
		RequestsPerMinute: cfg.Feed.RequestsPerMinute,
		MaxRetries:        cfg.Feed.MaxRetries,
		BreakerFailures:   cfg.Feed.BreakerFailures,
		BreakerCooldown:   cfg.Feed.BreakerCooldown,
	})

	opts := []tracker.Option{tracker.WithRecorder(audit)}
	if cfg.Odds.Enabled {
		opts = append(opts, tracker.WithOdds(a.feed))
	} else {
		logger.Info("Odds lookups disabled; decisions will carry no lines")
	}
	engine, err := tracker.New(a.states, trackerConfig(cfg.Tracker), opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}
	a.engine = engine

	if withNotifiers {
		if err := a.buildNotifiers(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) buildNotifiers() error {
	var notifiers []notify.Notifier

	if a.cfg.Discord.Enabled {
		dc, err := discord.NewClient(a.cfg.Discord.WebhookURLs, a.cfg.Discord.Timezone,
			a.cfg.Discord.MaxRetries, a.cfg.Discord.Timeout)
		if err != nil {
			return fmt.Errorf("failed to initialize Discord client: %w", err)
		}
		notifiers = append(notifiers, dc)
		logger.Info("Discord notifications enabled (%d webhooks)", len(a.cfg.Discord.WebhookURLs))
	} else {
		logger.Debug("Discord notifications disabled")
	}

	if a.cfg.Telegram.Enabled {
		tc, err := telegram.NewClient(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID,
			a.cfg.Telegram.MaxRetries, a.cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		a.telegram = tc
		notifiers = append(notifiers, tc)
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	if len(notifiers) == 0 {
		logger.Warn("No notification channels enabled; alerts will only be logged and recorded")
	}
	a.notifier = notify.NewMulti(notifiers...)
	return nil
}

func (a *app) serverDeps(runner server.Runner) server.Deps {
	checks := map[string]server.Pinger{"sqlite": a.audit}
	if a.redis != nil {
		checks["redis"] = a.redis
	}
	return server.Deps{
		Runner:         runner,
		States:         a.states,
		Alerts:         a.audit,
		Checks:         checks,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	}
}

// Close releases storage handles.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Error("Failed to close redis store: %v", err)
		}
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}
}

func trackerConfig(c config.TrackerConfig) tracker.Config {
	return tracker.Config{
		Clock: projection.Clock{
			QuarterSeconds:  c.QuarterSeconds,
			OvertimeSeconds: c.OvertimeSeconds,
		},
		Capacity:              c.Capacity,
		EarlyQuarter:          c.EarlyQuarter,
		StallThreshold:        c.StallThreshold,
		AbsenceLimit:          c.AbsenceLimit,
		AlertThresholdPoints:  c.AlertThresholdPoints,
		ExperimentalThreshold: c.ExperimentalThreshold,
		BlendRatio:            c.BlendRatio,
		LeaderThreshold:       c.LeaderThreshold,
		AvoidPush:             c.AvoidPush,
		MinAlertInterval:      c.MinAlertInterval,
		PeriodicMode:          tracker.PeriodicMode(c.PeriodicMode),
		TiedFinal:             tracker.TiedFinalPolicy(c.TiedFinal),
		OvertimeFinal:         c.OvertimeFinal,
		Workers:               c.Workers,
	}
}
