package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/paceoracle/internal/logger"
	"github.com/rewired-gh/paceoracle/internal/models"
	"github.com/rewired-gh/paceoracle/internal/monitor"
	"github.com/rewired-gh/paceoracle/internal/server"
)

const rotateInterval = time.Hour

var tickDryRun bool

func init() {
	tickCmd.Flags().BoolVar(&tickDryRun, "dry-run", false, "Print alerts without delivering them")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the live feed on an interval and deliver alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := a.engine.Restore(ctx); err != nil {
			logger.Warn("Failed to restore tracked games: %v", err)
		}

		mon := monitor.New(a.feed, a.engine, a.notifier)

		if a.telegram != nil {
			a.telegram.ListenForCommands(ctx, func() string { return mon.Status().Summary() })
		}

		var srv *server.Server
		if cfg.Server.Enabled {
			srv = server.New(cfg.Server.Addr, a.serverDeps(mon))
			srv.Start()
		}

		logger.Info("Starting tracking service (interval: %v, capacity: %d, clock: %ds/%ds)",
			cfg.Feed.PollInterval, cfg.Tracker.Capacity, cfg.Tracker.QuarterSeconds, cfg.Tracker.OvertimeSeconds)

		ticker := time.NewTicker(cfg.Feed.PollInterval)
		defer ticker.Stop()
		rotate := time.NewTicker(rotateInterval)
		defer rotate.Stop()

		runCycle := func() {
			if _, err := mon.RunCycle(ctx); errors.Is(err, monitor.ErrCycleInProgress) {
				logger.Debug("Skipping scheduled cycle: %v", err)
			}
		}

		logger.Debug("Running initial tracking cycle")
		runCycle()

		for {
			select {
			case <-ctx.Done():
				logger.Info("Shutdown signal received, cleaning up...")
				if srv != nil {
					shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
					if err := srv.Shutdown(shutdownCtx); err != nil {
						logger.Warn("HTTP server shutdown: %v", err)
					}
					cancelShutdown()
				}
				logger.Info("Service stopped")
				return nil

			case <-ticker.C:
				logger.Debug("Starting scheduled tracking cycle")
				runCycle()

			case <-rotate.C:
				if err := a.audit.RotateSamples(ctx); err != nil {
					logger.Warn("Failed to rotate samples: %v", err)
				}
			}
		}
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single tracking cycle and print the alerts as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, !tickDryRun)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := a.engine.Restore(ctx); err != nil {
			logger.Warn("Failed to restore tracked games: %v", err)
		}

		var d monitor.Dispatcher
		if a.notifier != nil {
			d = a.notifier
		}
		res, err := monitor.New(a.feed, a.engine, d).RunCycle(ctx)
		if err != nil {
			return err
		}

		alerts := res.Alerts
		if alerts == nil {
			alerts = []models.Alert{}
		}
		return writeJSON(cmd.OutOrStdout(), alerts)
	},
}

var stateCmd = &cobra.Command{
	Use:   "state <game-id>",
	Short: "Print the persisted tracking state of a game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.states.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("no state for game %s", args[0])
		}
		return writeJSON(cmd.OutOrStdout(), st)
	},
}

var samplesCmd = &cobra.Command{
	Use:   "samples <game-id>",
	Short: "Export the recorded pace samples of a game as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.audit.GetSamples(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeSamplesCSV(cmd.OutOrStdout(), recs)
	},
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var sampleHeader = []string{
	"recorded_at", "game_id", "home", "away", "quarter", "minute", "second", "played_seconds",
	"home_score", "away_score", "home_pps", "away_pps", "total_pps",
	"home_raw", "home_avg", "away_raw", "away_avg", "total_raw", "total_avg", "samples",
}

func writeSamplesCSV(w io.Writer, recs []models.SampleRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sampleHeader); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, r := range recs {
		row := []string{
			r.RecordedAt.UTC().Format(time.RFC3339),
			r.GameID, r.HomeName, r.AwayName,
			strconv.Itoa(r.Quarter), strconv.Itoa(r.Minute), strconv.Itoa(r.Second),
			strconv.Itoa(r.PlayedSeconds),
			strconv.Itoa(r.HomeScore), strconv.Itoa(r.AwayScore),
			f(r.HomePPS), f(r.AwayPPS), f(r.TotalPPS),
			f(r.Projections.Home.Raw), f(r.Projections.Home.Avg),
			f(r.Projections.Away.Raw), f(r.Projections.Away.Avg),
			f(r.Projections.Total.Raw), f(r.Projections.Total.Avg),
			strconv.Itoa(r.SampleCount),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
