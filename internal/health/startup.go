// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/ManuGH/kiosk/internal/config"
	"github.com/ManuGH/kiosk/internal/log"
)

// PerformStartupChecks validates the environment before a run. Only problems
// that make every run fail are returned; missing programs that a given file
// may not need are logged.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponentFromContext(ctx, "startup-check")
	logger.Debug().Msg("running pre-flight checks")

	if err := os.MkdirAll(cfg.Download.Dir, 0o750); err != nil {
		return fmt.Errorf("download directory check failed: %w", err)
	}
	if err := checkWritableDir(cfg.Download.Dir); err != nil {
		return fmt.Errorf("download directory check failed: %w", err)
	}

	if cfg.Source.Kind == config.SourceDrive && cfg.Auth.CredentialsFile != "" {
		if err := checkFileReadable(cfg.Auth.CredentialsFile); err != nil {
			return fmt.Errorf("credentials file check failed: %w", err)
		}
	}

	switch cfg.Source.Media {
	case config.MediaPresentation:
		checkBinary(logger, "viewer", cfg.Viewer.Bin)
	case config.MediaVideo:
		checkBinary(logger, "player", cfg.Player.Bin)
		checkBinary(logger, "ffmpeg", cfg.Transcode.FFmpegBin)
		checkBinary(logger, "ffprobe", cfg.Transcode.FFprobeBin)
	default:
		checkBinary(logger, "viewer", cfg.Viewer.Bin)
		checkBinary(logger, "player", cfg.Player.Bin)
		checkBinary(logger, "ffmpeg", cfg.Transcode.FFmpegBin)
		checkBinary(logger, "ffprobe", cfg.Transcode.FFprobeBin)
	}

	logger.Info().
		Str(log.FieldEvent, "startup.checked").
		Str(log.FieldPath, cfg.Download.Dir).
		Msg("startup checks passed")
	return nil
}

func checkBinary(logger zerolog.Logger, role, bin string) {
	if _, err := exec.LookPath(bin); err != nil {
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "startup.binary_missing").
			Str("role", role).
			Str(log.FieldBinary, bin).
			Msg("program not found, files that need it will fail")
	}
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config; verifying readability is expected
	if err != nil {
		return err
	}
	return f.Close()
}
