// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package localdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/kiosk/internal/log"
	"github.com/ManuGH/kiosk/internal/locator"
	"github.com/ManuGH/kiosk/internal/media"
)

// Await blocks until the folder holds at least one non-empty file matching
// mimeTypes. It returns locator.ErrNoFile when timeout elapses first.
func (d *Dir) Await(ctx context.Context, mimeTypes []string, timeout time.Duration) error {
	logger := xglog.WithContext(ctx, xglog.WithComponent("localdir"))

	// Fast path
	if d.hasMatch(mimeTypes) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(d.root); err != nil {
		return fmt.Errorf("watch directory %s: %w", d.root, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// A file may have landed between the first check and Add.
	if d.hasMatch(mimeTypes) {
		return nil
	}

	logger.Info().
		Str(xglog.FieldEvent, "localdir.await").
		Str(xglog.FieldPath, d.root).
		Dur("timeout", timeout).
		Msg("waiting for media to appear")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%w: nothing appeared in %s within %s", locator.ErrNoFile, d.root, timeout)
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if d.matches(event.Name, mimeTypes, logger) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			logger.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}

func (d *Dir) hasMatch(mimeTypes []string) bool {
	files, err := d.scan(mimeTypes)
	if err != nil {
		return false
	}
	for _, f := range files {
		if f.Size > 0 {
			return true
		}
	}
	return false
}

func (d *Dir) matches(path string, mimeTypes []string, logger zerolog.Logger) bool {
	mt := media.TypeByExtension(path)
	if mt == "" || (len(mimeTypes) > 0 && !slices.Contains(mimeTypes, mt)) {
		return false
	}
	// Create can fire before data is flushed.
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return false
	}
	logger.Info().
		Str(xglog.FieldEvent, "localdir.appeared").
		Str(xglog.FieldFileName, filepath.Base(path)).
		Msg("media file appeared")
	return true
}
