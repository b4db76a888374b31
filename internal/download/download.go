// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package download copies a located file into the local download directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/kiosk/internal/fsutil"
	xglog "github.com/ManuGH/kiosk/internal/log"
	"github.com/ManuGH/kiosk/internal/media"
	"github.com/ManuGH/kiosk/internal/metrics"
)

// ErrDownloadFailed wraps every failure of Download.
var ErrDownloadFailed = errors.New("download failed")

// DefaultChunkSize is used when Options.ChunkSize is not positive.
const DefaultChunkSize = 8 << 20

// Fetcher opens the content of a remote file. size is -1 when unknown.
type Fetcher interface {
	Open(ctx context.Context, d media.FileDescriptor, s media.Strategy) (rc io.ReadCloser, size int64, err error)
}

// Progress is reported after every chunk and once more on completion.
type Progress struct {
	Chunk   int
	Bytes   int64
	Total   int64 // -1 when unknown
	Percent float64
}

// Options configure a Downloader.
type Options struct {
	Dir        string
	ChunkSize  int
	OnProgress func(Progress)
	// LogInterval throttles progress log lines. Zero logs every 2s.
	LogInterval time.Duration
}

// Downloader streams files to Dir.
type Downloader struct {
	fetcher Fetcher
	opts    Options
	logger  zerolog.Logger
}

// New creates a Downloader.
func New(f Fetcher, opts Options) *Downloader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.LogInterval <= 0 {
		opts.LogInterval = 2 * time.Second
	}
	return &Downloader{
		fetcher: f,
		opts:    opts,
		logger:  xglog.WithComponent("download"),
	}
}

// Target returns the local path d would be stored under.
func (dl *Downloader) Target(d media.FileDescriptor) (string, error) {
	name, err := fsutil.SanitizeName(media.LocalName(d, media.StrategyFor(d)))
	if err != nil {
		return "", err
	}
	return fsutil.ConfineRelPath(dl.opts.Dir, name)
}

// Download copies d into the download directory. The file only appears at
// its final path once it is complete.
func (dl *Downloader) Download(ctx context.Context, d media.FileDescriptor) (media.LocalMediaFile, error) {
	strategy := media.StrategyFor(d)
	label := strategyLabel(strategy)
	logger := xglog.WithContext(ctx, dl.logger).With().
		Str(xglog.FieldFileID, d.ID).
		Str("strategy", label).
		Logger()
	start := time.Now()

	path, n, err := dl.download(ctx, d, strategy, logger)
	if err != nil {
		metrics.ObserveDownload(label, "failed", time.Since(start))
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "download.failed").
			Int64("bytes", n).
			Msg("download failed")
		return media.LocalMediaFile{}, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, d.Name, err)
	}

	metrics.ObserveDownload(label, "ok", time.Since(start))
	logger.Info().
		Str(xglog.FieldEvent, "download.completed").
		Str(xglog.FieldPath, path).
		Int64("bytes", n).
		Dur("duration", time.Since(start)).
		Msg("download complete")
	return media.LocalMediaFile{Path: path, Source: d}, nil
}

func (dl *Downloader) download(ctx context.Context, d media.FileDescriptor, s media.Strategy, logger zerolog.Logger) (string, int64, error) {
	path, err := dl.Target(d)
	if err != nil {
		return "", 0, err
	}

	rc, total, err := dl.fetcher.Open(ctx, d, s)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = rc.Close() }()

	logger.Info().
		Str(xglog.FieldEvent, "download.started").
		Str(xglog.FieldPath, path).
		Int64("total", total).
		Msg("downloading")

	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return "", 0, fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	label := strategyLabel(s)
	report := newReporter(total, dl.opts.OnProgress)
	progressLog := rate.Sometimes{First: 1, Interval: dl.opts.LogInterval}
	buf := make([]byte, dl.opts.ChunkSize)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return "", written, err
		}
		n, rerr := io.ReadFull(rc, buf)
		if n > 0 {
			if _, err := pf.Write(buf[:n]); err != nil {
				return "", written, fmt.Errorf("write %s: %w", path, err)
			}
			written += int64(n)
			metrics.AddDownloadBytes(label, n)
			p := report.chunk(written)
			progressLog.Do(func() {
				logger.Debug().
					Str(xglog.FieldEvent, "download.progress").
					Int("chunk", p.Chunk).
					Int64("bytes", p.Bytes).
					Float64("percent", p.Percent).
					Msg("download progress")
			})
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return "", written, fmt.Errorf("read: %w", rerr)
		}
	}

	if total >= 0 && written < total {
		return "", written, fmt.Errorf("short transfer: got %d of %d bytes: %w", written, total, io.ErrUnexpectedEOF)
	}

	if err := pf.CloseAtomicallyReplace(); err != nil {
		return "", written, fmt.Errorf("publish %s: %w", path, err)
	}
	report.done(written)
	return path, written, nil
}

func strategyLabel(s media.Strategy) string {
	if s.Export {
		return "export"
	}
	return "direct"
}

// reporter derives a monotone, clamped percentage from byte counts.
type reporter struct {
	total int64
	fn    func(Progress)
	n     int
	last  float64
}

func newReporter(total int64, fn func(Progress)) *reporter {
	return &reporter{total: total, fn: fn}
}

func (r *reporter) chunkProgress(bytes int64) Progress {
	pct := r.last
	if r.total > 0 {
		pct = min(100, float64(bytes)*100/float64(r.total))
	}
	pct = max(pct, r.last)
	r.last = pct
	return Progress{Chunk: r.n, Bytes: bytes, Total: r.total, Percent: pct}
}

func (r *reporter) chunk(bytes int64) Progress {
	r.n++
	p := r.chunkProgress(bytes)
	if r.fn != nil {
		r.fn(p)
	}
	return p
}

// done emits the closing 100% report unless the last chunk already did.
func (r *reporter) done(bytes int64) {
	if r.n > 0 && r.last >= 100 {
		return
	}
	r.last = 100
	if r.fn != nil {
		r.fn(Progress{Chunk: r.n, Bytes: bytes, Total: r.total, Percent: 100})
	}
}
