// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ManuGH/kiosk/internal/auth"
	"github.com/ManuGH/kiosk/internal/config"
	"github.com/ManuGH/kiosk/internal/download"
	"github.com/ManuGH/kiosk/internal/drive"
	"github.com/ManuGH/kiosk/internal/health"
	"github.com/ManuGH/kiosk/internal/kiosk"
	"github.com/ManuGH/kiosk/internal/localdir"
	"github.com/ManuGH/kiosk/internal/locator"
	"github.com/ManuGH/kiosk/internal/media"
	"github.com/ManuGH/kiosk/internal/player"
	"github.com/ManuGH/kiosk/internal/transcode"
)

// source lists and opens files of the configured folder.
type source interface {
	locator.Lister
	download.Fetcher
}

func newSource(ctx context.Context, cfg config.AppConfig) (source, kiosk.Awaiter, error) {
	switch cfg.Source.Kind {
	case config.SourceLocal:
		dir := localdir.New(cfg.Source.LocalFolder)
		return dir, dir, nil
	case config.SourceDrive:
		httpClient, err := auth.NewHTTPClient(ctx, auth.Options{
			Mode:            cfg.Auth.Mode,
			CredentialsFile: cfg.Auth.CredentialsFile,
			TokenFile:       cfg.Auth.TokenFile,
			Prompt:          os.Stdin,
			PromptOut:       os.Stderr,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("drive credentials: %w", err)
		}
		client, err := drive.New(ctx, httpClient)
		if err != nil {
			return nil, nil, fmt.Errorf("drive client: %w", err)
		}
		return client, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// buildRunner wires the pipeline stages from the configuration.
func buildRunner(ctx context.Context, cfg config.AppConfig, dryRun bool, launcher player.Launcher) (*kiosk.Runner, error) {
	src, awaiter, err := newSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	loc := locator.New(src, locator.Query{
		FolderID:  cfg.Source.FolderID,
		MimeTypes: cfg.Source.MimeTypes,
		PageSize:  cfg.Source.PageSize,
	})
	dl := download.New(src, download.Options{
		Dir:       cfg.Download.Dir,
		ChunkSize: cfg.Download.ChunkSize,
	})

	timing := player.Timing{
		Duration:     cfg.Playback.RunDuration,
		PollInterval: cfg.Playback.PollInterval,
		StopGrace:    cfg.Playback.StopGrace,
		KillWait:     cfg.Playback.KillWait,
	}
	players := map[media.Category]kiosk.Player{}
	if cfg.Source.Media != config.MediaVideo {
		players[media.CategoryDocument] = player.NewSlideshow(cfg.Viewer.Bin, cfg.Viewer.Args, timing, launcher)
	}
	if cfg.Source.Media != config.MediaPresentation {
		tc := transcode.New(transcode.Options{
			FFmpegBin:        cfg.Transcode.FFmpegBin,
			FFprobeBin:       cfg.Transcode.FFprobeBin,
			Timeout:          cfg.Transcode.Timeout,
			PreferredCodec:   cfg.Transcode.PreferredCodec,
			ProgressInterval: cfg.Transcode.ProgressInterval,
			StallTimeout:     cfg.Transcode.StallTimeout,
		})
		players[media.CategoryVideo] = player.NewVideo(player.VideoOptions{
			Bin:           cfg.Player.Bin,
			Args:          cfg.Player.Args,
			FallbackShell: cfg.Player.FallbackShell,
			Display:       cfg.Player.Display,
			StartupProbe:  cfg.Player.StartupProbe,
			Timing:        timing,
		}, tc, launcher)
	}

	opts := kiosk.Options{
		Locator:    loc,
		Downloader: dl,
		Players:    players,
		Cleaner:    kiosk.NewCleaner(cfg.Cleanup.TolerateMissing),
		DryRun:     dryRun,
	}
	if awaiter != nil && cfg.Source.AwaitTimeout > 0 {
		opts.Awaiter = awaiter
		opts.AwaitTypes = cfg.Source.MimeTypes
		opts.AwaitTimeout = cfg.Source.AwaitTimeout
	}
	return kiosk.NewRunner(opts), nil
}

// newHealthManager registers the checkers served on the status listener.
func newHealthManager(cfg config.AppConfig, tracker *kiosk.Tracker) *health.Manager {
	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewDirChecker("download_dir", cfg.Download.Dir))
	hm.RegisterChecker(health.NewStageChecker(tracker.Snapshot, stageBudgets(cfg)))
	return hm
}

// stageBudgets bounds how long each stage may take before it is reported as stuck.
func stageBudgets(cfg config.AppConfig) map[kiosk.Stage]time.Duration {
	play := cfg.Playback.RunDuration + cfg.Transcode.Timeout + cfg.Player.StartupProbe +
		2*cfg.Playback.PollInterval + cfg.Playback.StopGrace + cfg.Playback.KillWait
	return map[kiosk.Stage]time.Duration{
		kiosk.StageLocating:    cfg.Source.AwaitTimeout + 5*time.Minute,
		kiosk.StageDownloading: 2 * time.Hour,
		kiosk.StagePlaying:     play,
		kiosk.StageCleaning:    time.Minute,
	}
}
