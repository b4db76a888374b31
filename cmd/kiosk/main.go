// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// kiosk plays the newest presentation or video of a folder for a fixed time,
// then removes the local copy. Each invocation performs one run; scheduling
// repeated runs is left to systemd timers or cron.
//
// Usage:
//
//	kiosk [-config kiosk.yaml] [-dry-run]
//	kiosk config validate|dump [-f kiosk.yaml]
//	kiosk healthcheck [-addr 127.0.0.1:8089]
//
// Exit codes:
//   - 0: the run completed, found nothing to play, or was a dry run
//   - 1: the run failed or configuration was invalid
//   - 2: usage error
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/kiosk/internal/config"
	"github.com/ManuGH/kiosk/internal/health"
	"github.com/ManuGH/kiosk/internal/kiosk"
	xglog "github.com/ManuGH/kiosk/internal/log"
	"github.com/ManuGH/kiosk/internal/metrics"
	"github.com/ManuGH/kiosk/internal/player"
	"github.com/ManuGH/kiosk/internal/status"
	"github.com/ManuGH/kiosk/internal/telemetry"
	"github.com/ManuGH/kiosk/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "config":
			return runConfigCLI(args[1:])
		case "healthcheck":
			return runHealthcheckCLI(args[1:])
		}
	}

	fs := flag.NewFlagSet("kiosk", flag.ContinueOnError)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	dryRun := fs.Bool("dry-run", false, "locate the newest file and exit without playing it")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "kiosk",
		Version: version.Version,
	})
	logger := xglog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
		return 1
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("main")
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("config_path", path).
		Str("source", cfg.Source.Kind).
		Str("media", cfg.Source.Media).
		Dur("run_duration", cfg.Playback.RunDuration).
		Msg("configuration loaded")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
		return 1
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "telemetry.init_failed").Msg("failed to initialize tracing")
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "telemetry.shutdown_failed").Msg("failed to flush traces")
		}
	}()

	runner, err := buildRunner(ctx, cfg, *dryRun, player.ExecLauncher{Output: os.Stderr})
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "pipeline.init_failed").Msg("failed to set up pipeline")
		return 1
	}

	rep := runWithStatus(ctx, cfg, runner)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "metrics.textfile_failed").
				Str(xglog.FieldPath, cfg.Metrics.Textfile).
				Msg("failed to write metrics textfile")
		}
	}
	return exitCode(rep.Outcome)
}

// runWithStatus performs the run while the optional status listener serves
// next to it. A listener failure is logged and does not end the run.
func runWithStatus(ctx context.Context, cfg config.AppConfig, runner *kiosk.Runner) kiosk.Report {
	if cfg.Status.Listen == "" {
		rep, _ := runner.Run(ctx)
		return rep
	}

	srv := status.New(status.Options{
		Listen:      cfg.Status.Listen,
		RateLimit:   cfg.Status.RateLimit,
		Token:       cfg.Status.Token,
		Version:     cfg.Version,
		ServiceName: cfg.LogService,
	}, newHealthManager(cfg, runner.Tracker()), runner.Tracker())

	srvCtx, stopSrv := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		if err := srv.ListenAndServe(srvCtx); err != nil {
			logger := xglog.WithComponent("main")
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "status.unavailable").
				Msg("status listener stopped with error")
		}
		return nil
	})

	var rep kiosk.Report
	g.Go(func() error {
		defer stopSrv()
		rep, _ = runner.Run(ctx)
		return nil
	})
	_ = g.Wait()
	return rep
}

func exitCode(o kiosk.Outcome) int {
	if o.Success() {
		return 0
	}
	return 1
}
