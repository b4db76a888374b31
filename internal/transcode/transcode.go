// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package transcode converts videos the player cannot loop reliably into
// H.264 MP4 using ffmpeg.
package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/kiosk/internal/log"
	"github.com/ManuGH/kiosk/internal/media"
	"github.com/ManuGH/kiosk/internal/metrics"
	"github.com/ManuGH/kiosk/internal/procgroup"
)

var (
	// ErrTimeout is returned when ffmpeg did not finish within Options.Timeout.
	ErrTimeout = errors.New("transcode timed out")
	// ErrFailed is returned when ffmpeg could not be started or exited non-zero.
	ErrFailed = errors.New("transcode failed")
	// ErrStalled is returned when ffmpeg stopped making progress.
	ErrStalled = errors.New("transcode stalled")
)

// Defaults.
const (
	DefaultTimeout          = 300 * time.Second
	DefaultProgressInterval = 10 * time.Second
	DefaultStallTimeout     = 60 * time.Second
	DefaultPreferredCodec   = "h264"

	diagnosticLines = 20
	waitDelay       = 5 * time.Second
)

// Progress is a sampled ffmpeg progress report.
type Progress struct {
	OutTime time.Duration
	// Percent is -1 when the source duration is unknown.
	Percent float64
	Done    bool
}

// Options configure a Transcoder.
type Options struct {
	FFmpegBin        string
	FFprobeBin       string
	Timeout          time.Duration
	PreferredCodec   string
	ProgressInterval time.Duration
	// StallTimeout ends a conversion whose output did not grow for this long.
	StallTimeout time.Duration
	OnProgress   func(Progress)
}

// Transcoder probes and converts video files.
type Transcoder struct {
	opts   Options
	prober Prober
	clock  clock
	logger zerolog.Logger
}

// New creates a Transcoder, filling unset options with defaults.
func New(opts Options) *Transcoder {
	if opts.FFmpegBin == "" {
		opts.FFmpegBin = "ffmpeg"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PreferredCodec == "" {
		opts.PreferredCodec = DefaultPreferredCodec
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = DefaultStallTimeout
	}
	return &Transcoder{
		opts:   opts,
		prober: Prober{Bin: opts.FFprobeBin},
		clock:  realClock{},
		logger: xglog.WithComponent("transcode"),
	}
}

// Inspect probes src and reports whether it needs conversion.
func (t *Transcoder) Inspect(ctx context.Context, src string) (Info, bool, error) {
	info, err := t.prober.Probe(ctx, src)
	if err != nil {
		return Info{}, false, err
	}
	return info, NeedsConversion(info, t.opts.PreferredCodec), nil
}

// Convert writes "<stem>_converted.mp4" next to src and returns its path.
// The output is removed when conversion does not succeed.
func (t *Transcoder) Convert(ctx context.Context, src string, info Info) (string, error) {
	dst := filepath.Join(filepath.Dir(src), media.ConvertedName(filepath.Base(src)))
	logger := xglog.WithContext(ctx, t.logger).With().
		Str(xglog.FieldPath, src).
		Str(xglog.FieldFinalPath, dst).
		Logger()

	start := time.Now()
	err := t.run(ctx, src, dst, info, logger)
	if err != nil {
		if rmErr := os.Remove(dst); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn().Err(rmErr).Msg("failed to remove partial output")
		}
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "transcode.failed").
			Dur("elapsed", time.Since(start)).
			Msg("transcode failed")
		return "", err
	}

	metrics.ObserveTranscode(time.Since(start))
	logger.Info().
		Str(xglog.FieldEvent, "transcode.completed").
		Dur("elapsed", time.Since(start)).
		Msg("transcode complete")
	return dst, nil
}

func (t *Transcoder) args(src, dst string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", src,
		"-map", "0:v:0",
		"-map", "0:a?",
		"-c:v", encoderFor(t.opts.PreferredCodec),
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		dst,
	}
}

func encoderFor(codec string) string {
	switch strings.ToLower(codec) {
	case "h264", "avc":
		return "libx264"
	case "hevc", "h265":
		return "libx265"
	default:
		return codec
	}
}

func (t *Transcoder) run(ctx context.Context, src, dst string, info Info, logger zerolog.Logger) error {
	tctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()
	sctx, abort := context.WithCancelCause(tctx)
	defer abort(nil)

	// #nosec G204 -- binary comes from operator config; paths are arguments, not shell input
	cmd := exec.CommandContext(sctx, t.opts.FFmpegBin, t.args(src, dst)...)
	procgroup.Set(cmd)
	cmd.Cancel = func() error {
		return procgroup.Kill(cmd, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %w", ErrFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: stderr pipe: %w", ErrFailed, err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "transcode.started").
		Str(xglog.FieldBinary, t.opts.FFmpegBin).
		Str(xglog.FieldCodec, info.VideoCodec).
		Dur("timeout", t.opts.Timeout).
		Msg("starting ffmpeg")

	if err := cmd.Start(); err != nil {
		metrics.IncTranscodeError("start")
		return fmt.Errorf("%w: start %s: %w", ErrFailed, t.opts.FFmpegBin, err)
	}

	guard := newStallGuard(t.opts.StallTimeout, t.clock)
	watchCtx, stopWatch := context.WithCancel(sctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := guard.watch(watchCtx); err != nil {
			abort(err)
		}
	}()

	ring := NewLineRing(diagnosticLines)
	var g errgroup.Group
	g.Go(func() error {
		return t.readProgress(stdout, info.Duration, guard, logger)
	})
	g.Go(func() error {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			ring.Add(sc.Text())
		}
		return sc.Err()
	})
	readErr := g.Wait()
	waitErr := cmd.Wait()
	stopWatch()
	<-watchDone

	switch {
	case ctx.Err() != nil:
		metrics.IncTranscodeError("canceled")
		return ctx.Err()
	case waitErr != nil && errors.Is(context.Cause(sctx), ErrStalled):
		metrics.IncTranscodeError("stalled")
		return fmt.Errorf("%w: no progress for %s", ErrStalled, t.opts.StallTimeout)
	case errors.Is(tctx.Err(), context.DeadlineExceeded):
		metrics.IncTranscodeError("timeout")
		return fmt.Errorf("%w after %s", ErrTimeout, t.opts.Timeout)
	case waitErr != nil:
		metrics.IncTranscodeError("exit")
		return fmt.Errorf("%w: %w: %s", ErrFailed, waitErr, strings.Join(ring.Lines(), " | "))
	case readErr != nil && !errors.Is(readErr, os.ErrClosed):
		logger.Warn().Err(readErr).Msg("reading ffmpeg output failed")
	}
	return nil
}

// readProgress consumes "-progress" key=value blocks and reports them at most
// once per ProgressInterval. The final block is always reported.
func (t *Transcoder) readProgress(r io.Reader, total time.Duration, guard *stallGuard, logger zerolog.Logger) error {
	sample := rate.Sometimes{First: 1, Interval: t.opts.ProgressInterval}
	var (
		cur  Progress
		size int64
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// Both keys carry microseconds.
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				cur.OutTime = time.Duration(us) * time.Microsecond
			}
		case "total_size":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				size = n
			}
		case "progress":
			guard.observe(cur.OutTime, size)
			cur.Done = value == "end"
			cur.Percent = percentOf(cur.OutTime, total)
			p := cur
			if p.Done {
				p.Percent = 100
				t.report(p, logger)
				continue
			}
			sample.Do(func() { t.report(p, logger) })
		}
	}
	return sc.Err()
}

func percentOf(out, total time.Duration) float64 {
	if total <= 0 {
		return -1
	}
	return min(100, float64(out)*100/float64(total))
}

func (t *Transcoder) report(p Progress, logger zerolog.Logger) {
	logger.Info().
		Str(xglog.FieldEvent, "transcode.progress").
		Dur("out_time", p.OutTime).
		Float64("percent", p.Percent).
		Bool("done", p.Done).
		Msg("transcode progress")
	if t.opts.OnProgress != nil {
		t.opts.OnProgress(p)
	}
}
