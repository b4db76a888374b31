// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package kiosk

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/kiosk/internal/log"
	"github.com/ManuGH/kiosk/internal/media"
)

// ErrCleanup wraps failures to remove the played file.
var ErrCleanup = errors.New("cleanup failed")

// Cleaner removes local copies once playback is over.
type Cleaner struct {
	// TolerateMissing treats an already deleted file as removed.
	TolerateMissing bool
	logger          zerolog.Logger
}

// NewCleaner creates a Cleaner.
func NewCleaner(tolerateMissing bool) *Cleaner {
	return &Cleaner{TolerateMissing: tolerateMissing, logger: xglog.WithComponent("cleanup")}
}

// Remove deletes the file that was played: the converted copy when there is
// one, otherwise the download. When a converted copy existed, the original
// download is removed as well on a best-effort basis.
// Log lines carry the correlation fields of ctx.
func (c *Cleaner) Remove(ctx context.Context, f media.LocalMediaFile) error {
	logger := xglog.WithContext(ctx, c.logger)
	target := f.PlaybackPath()
	if target == "" {
		return fmt.Errorf("%w: empty path", ErrCleanup)
	}

	if err := os.Remove(target); err != nil {
		if !errors.Is(err, os.ErrNotExist) || !c.TolerateMissing {
			return fmt.Errorf("%w: %w", ErrCleanup, err)
		}
		logger.Warn().
			Str(xglog.FieldEvent, "cleanup.missing").
			Str(xglog.FieldPath, target).
			Msg("file already gone")
	} else {
		logger.Info().
			Str(xglog.FieldEvent, "cleanup.removed").
			Str(xglog.FieldPath, target).
			Msg("removed played file")
	}

	if f.ConvertedPath != "" && f.Path != "" && f.Path != target {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "cleanup.source_kept").
				Str(xglog.FieldPath, f.Path).
				Msg("could not remove original download")
		}
	}
	return nil
}
