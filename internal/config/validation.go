// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"

	"github.com/ManuGH/kiosk/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("Source.Kind", cfg.Source.Kind, []string{SourceDrive, SourceLocal})
	v.OneOf("Source.Media", cfg.Source.Media, []string{MediaPresentation, MediaVideo, MediaAll})
	switch cfg.Source.Kind {
	case SourceDrive:
		v.NotEmpty("Source.FolderID", cfg.Source.FolderID)
		v.OneOf("Auth.Mode", cfg.Auth.Mode, []string{AuthServiceAccount, AuthOAuth, AuthADC})
		if cfg.Auth.Mode != AuthADC {
			v.NotEmpty("Auth.CredentialsFile", cfg.Auth.CredentialsFile)
		}
		if cfg.Auth.Mode == AuthOAuth {
			v.NotEmpty("Auth.TokenFile", cfg.Auth.TokenFile)
		}
	case SourceLocal:
		v.Directory("Source.LocalFolder", cfg.Source.LocalFolder, true)
	}
	if len(cfg.Source.MimeTypes) == 0 {
		v.AddError("Source.MimeTypes", "at least one MIME type is required", cfg.Source.MimeTypes)
	}
	v.Range("Source.PageSize", cfg.Source.PageSize, 1, 1000)
	if cfg.Source.AwaitTimeout < 0 {
		v.AddError("Source.AwaitTimeout", "duration cannot be negative", cfg.Source.AwaitTimeout)
	}

	v.Directory("Download.Dir", cfg.Download.Dir, false)
	v.Range("Download.ChunkSize", cfg.Download.ChunkSize, 64<<10, 256<<20)

	v.NotEmpty("Viewer.Bin", cfg.Viewer.Bin)
	v.NotEmpty("Player.Bin", cfg.Player.Bin)
	v.PositiveDuration("Player.StartupProbe", cfg.Player.StartupProbe)

	v.PositiveDuration("Playback.RunDuration", cfg.Playback.RunDuration)
	v.PositiveDuration("Playback.PollInterval", cfg.Playback.PollInterval)
	v.PositiveDuration("Playback.StopGrace", cfg.Playback.StopGrace)
	v.PositiveDuration("Playback.KillWait", cfg.Playback.KillWait)
	if cfg.Playback.PollInterval > cfg.Playback.RunDuration {
		v.AddError("Playback.PollInterval",
			fmt.Sprintf("poll interval %s exceeds run duration %s", cfg.Playback.PollInterval, cfg.Playback.RunDuration),
			cfg.Playback.PollInterval)
	}

	v.NotEmpty("Transcode.FFmpegBin", cfg.Transcode.FFmpegBin)
	v.NotEmpty("Transcode.FFprobeBin", cfg.Transcode.FFprobeBin)
	v.NotEmpty("Transcode.PreferredCodec", cfg.Transcode.PreferredCodec)
	v.PositiveDuration("Transcode.Timeout", cfg.Transcode.Timeout)
	v.PositiveDuration("Transcode.ProgressInterval", cfg.Transcode.ProgressInterval)
	v.PositiveDuration("Transcode.StallTimeout", cfg.Transcode.StallTimeout)

	v.ListenAddr("Status.Listen", cfg.Status.Listen)
	v.Positive("Status.RateLimit", cfg.Status.RateLimit)

	if cfg.Tracing.Enabled {
		v.OneOf("Tracing.Exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Tracing.Endpoint", cfg.Tracing.Endpoint)
	}

	return v.Err()
}
