// Command rallyd runs the household batch: the recurrence sweep that turns
// recurring templates into task instances, and the calendar aggregation
// pass that merges every configured calendar into one schedule.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/rallyhq/rally/internal/batch"
	"github.com/rallyhq/rally/internal/clock"
	"github.com/rallyhq/rally/internal/model"
	"github.com/rallyhq/rally/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", model.DefaultConfigPath(), "path to config file")
		once       = flag.Bool("once", false, "run a single batch tick and exit")
		jsonLogs   = flag.Bool("json-logs", false, "emit logs as JSON")
	)
	flag.Parse()

	logger := newLogger(*jsonLogs)
	slog.SetDefault(logger)

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		logger.Error("loading config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	s, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Error("opening store", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer s.Close()

	runner := batch.NewRunner(s, clock.System{}, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if *once {
		runTick(ctx, runner, logger)
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule, func() {
		runTick(ctx, runner, logger)
	}); err != nil {
		logger.Error("invalid schedule", "schedule", cfg.Schedule, "error", err)
		os.Exit(1)
	}

	logger.Info("rallyd started", "schedule", cfg.Schedule, "timezone", cfg.Timezone)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("rallyd exiting")
}

// runTick executes one scheduling tick: the recurrence sweep first, then
// the calendar pass. The two are independent; a sweep failure never blocks
// the calendar work.
func runTick(ctx context.Context, runner *batch.Runner, logger *slog.Logger) {
	sweep, err := runner.RunRecurrenceSweep(ctx)
	if err != nil {
		logger.Error("recurrence sweep failed", "error", err)
	} else {
		logger.Info("instances generated", "count", sweep.Created)
	}

	agg, results, err := runner.RunCalendarPass(ctx)
	if err != nil {
		logger.Error("calendar pass failed", "error", err)
		return
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	logger.Info("calendar pass finished",
		"sources", len(results), "failed", failed, "events", len(agg.Merged))
}

func newLogger(jsonLogs bool) *slog.Logger {
	if jsonLogs {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
