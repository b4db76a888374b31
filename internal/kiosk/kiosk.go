// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package kiosk runs one pass of the pipeline: locate the newest file,
// download it, play it for the configured time and remove the local copy.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/kiosk/internal/locator"
	xglog "github.com/ManuGH/kiosk/internal/log"
	"github.com/ManuGH/kiosk/internal/media"
	"github.com/ManuGH/kiosk/internal/metrics"
	"github.com/ManuGH/kiosk/internal/player"
	"github.com/ManuGH/kiosk/internal/telemetry"
)

// ErrNoPlayer means no player is configured for the file's category.
var ErrNoPlayer = errors.New("no player for media category")

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeNoFile          Outcome = "no_file"
	OutcomeLocateFailed    Outcome = "locate_failed"
	OutcomeDownloadFailed  Outcome = "download_failed"
	OutcomeTranscodeFailed Outcome = "transcode_failed"
	OutcomePlaybackFailed  Outcome = "playback_failed"
	OutcomeCleanupFailed   Outcome = "cleanup_failed"
	OutcomeCompleted       Outcome = "completed"
	OutcomeCanceled        Outcome = "canceled"
	OutcomeDryRun          Outcome = "dry_run"
)

// Success reports whether the outcome counts as a clean run.
func (o Outcome) Success() bool {
	switch o {
	case OutcomeCompleted, OutcomeNoFile, OutcomeDryRun:
		return true
	default:
		return false
	}
}

// Locator finds the newest file.
type Locator interface {
	Latest(ctx context.Context) (media.FileDescriptor, error)
}

// Downloader copies a remote file into the download directory.
type Downloader interface {
	Download(ctx context.Context, d media.FileDescriptor) (media.LocalMediaFile, error)
}

// Player shows a local file until its run duration is over.
type Player interface {
	Play(ctx context.Context, f media.LocalMediaFile) (player.Session, error)
}

// Awaiter blocks until a matching file shows up in the source.
type Awaiter interface {
	Await(ctx context.Context, mimeTypes []string, timeout time.Duration) error
}

// Report summarizes a run.
type Report struct {
	RunID     string
	Outcome   Outcome
	File      media.FileDescriptor
	Local     media.LocalMediaFile
	Session   player.Session
	StartedAt time.Time
	EndedAt   time.Time
}

// Options wires the pipeline stages.
type Options struct {
	Locator    Locator
	Downloader Downloader
	Players    map[media.Category]Player
	Cleaner    *Cleaner
	Tracker    *Tracker

	// Awaiter, when set together with a positive AwaitTimeout, is consulted
	// once when the folder is empty.
	Awaiter      Awaiter
	AwaitTypes   []string
	AwaitTimeout time.Duration

	// DryRun stops after locating.
	DryRun bool
}

// Runner executes pipeline runs.
type Runner struct {
	opts   Options
	tracer trace.Tracer
	logger zerolog.Logger
	newID  func() string
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	if opts.Cleaner == nil {
		opts.Cleaner = NewCleaner(false)
	}
	if opts.Tracker == nil {
		opts.Tracker = NewTracker()
	}
	return &Runner{
		opts:   opts,
		tracer: telemetry.Tracer("kiosk"),
		logger: xglog.WithComponent("kiosk"),
		newID:  uuid.NewString,
	}
}

// Tracker returns the stage tracker updated by Run.
func (r *Runner) Tracker() *Tracker { return r.opts.Tracker }

// Run performs one locate, download, play and cleanup pass. The returned
// error is nil for the outcomes that count as success.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: r.newID(), StartedAt: time.Now()}
	ctx = xglog.ContextWithRunID(ctx, rep.RunID)
	logger := xglog.WithContext(ctx, r.logger)
	ctx = logger.WithContext(ctx)

	ctx, span := r.tracer.Start(ctx, "kiosk.run",
		trace.WithAttributes(attribute.String(telemetry.RunIDKey, rep.RunID)))
	r.opts.Tracker.begin(rep.RunID)
	logger.Info().Str(xglog.FieldEvent, "run.started").Msg("run started")

	var err error
	rep.Outcome, err = r.run(ctx, &rep, logger)
	rep.EndedAt = time.Now()

	span.SetAttributes(attribute.String(telemetry.RunOutcomeKey, string(rep.Outcome)))
	telemetry.EndSpan(span, err)
	r.opts.Tracker.finish(rep.Outcome, err)
	metrics.RecordRun(string(rep.Outcome))

	var ev *zerolog.Event
	if err != nil {
		ev = logger.Error().Err(err)
	} else {
		ev = logger.Info()
	}
	ev.Str(xglog.FieldEvent, "run.finished").
		Str(xglog.FieldOutcome, string(rep.Outcome)).
		Dur("duration", rep.EndedAt.Sub(rep.StartedAt)).
		Msg("run finished")
	return rep, err
}

func (r *Runner) run(ctx context.Context, rep *Report, logger zerolog.Logger) (Outcome, error) {
	desc, err := r.locate(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		return OutcomeCanceled, err
	case errors.Is(err, locator.ErrUnavailable):
		return OutcomeLocateFailed, err
	case errors.Is(err, locator.ErrNoFile):
		logger.Info().Str(xglog.FieldEvent, "run.no_file").Msg("nothing to play")
		return OutcomeNoFile, nil
	case err != nil:
		return OutcomeLocateFailed, err
	}
	rep.File = desc
	r.opts.Tracker.file(desc)
	trace.SpanFromContext(ctx).SetAttributes(telemetry.FileAttributes(desc)...)

	if r.opts.DryRun {
		logger.Info().
			Str(xglog.FieldEvent, "run.dry_run").
			Str(xglog.FieldFileID, desc.ID).
			Str(xglog.FieldFileName, desc.Name).
			Msg("dry run, skipping playback")
		return OutcomeDryRun, nil
	}

	p, ok := r.opts.Players[desc.Category()]
	if !ok {
		return OutcomePlaybackFailed, fmt.Errorf("%w: %s (%s)", ErrNoPlayer, desc.Category(), desc.MimeType)
	}

	local, err := r.download(ctx, desc)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeCanceled, err
		}
		return OutcomeDownloadFailed, err
	}
	rep.Local = local

	sess, playErr := r.play(ctx, p, local)
	rep.Session = sess
	if sess.File.PlaybackPath() != "" {
		local = sess.File
		rep.Local = local
	}

	outcome := OutcomeCompleted
	switch {
	case playErr == nil:
	case errors.Is(playErr, player.ErrTerminateFailed):
		logger.Error().
			Err(playErr).
			Str(xglog.FieldEvent, "cleanup.skipped").
			Str(xglog.FieldPath, local.PlaybackPath()).
			Msg("player may still be running, keeping file")
		return OutcomePlaybackFailed, playErr
	case errors.Is(playErr, player.ErrConvertFailed):
		outcome = OutcomeTranscodeFailed
	case errors.Is(playErr, context.Canceled), errors.Is(playErr, context.DeadlineExceeded):
		outcome = OutcomeCanceled
	default:
		outcome = OutcomePlaybackFailed
	}

	if err := r.cleanup(ctx, local); err != nil {
		if playErr != nil {
			return outcome, errors.Join(playErr, err)
		}
		return OutcomeCleanupFailed, err
	}
	return outcome, playErr
}

func (r *Runner) locate(ctx context.Context) (media.FileDescriptor, error) {
	ctx, span := r.tracer.Start(ctx, "kiosk.locate")
	desc, err := r.opts.Locator.Latest(ctx)
	if errors.Is(err, locator.ErrNoFile) && !errors.Is(err, locator.ErrUnavailable) &&
		r.opts.Awaiter != nil && r.opts.AwaitTimeout > 0 {
		xglog.FromContext(ctx).Info().
			Str(xglog.FieldEvent, "locate.await").
			Dur("timeout", r.opts.AwaitTimeout).
			Msg("folder empty, waiting for a file")
		if aerr := r.opts.Awaiter.Await(ctx, r.opts.AwaitTypes, r.opts.AwaitTimeout); aerr == nil {
			desc, err = r.opts.Locator.Latest(ctx)
		} else if !errors.Is(aerr, locator.ErrNoFile) {
			err = aerr
		}
	}
	if errors.Is(err, locator.ErrNoFile) && !errors.Is(err, locator.ErrUnavailable) {
		telemetry.EndSpan(span, nil)
	} else {
		telemetry.EndSpan(span, err)
	}
	return desc, err
}

func (r *Runner) download(ctx context.Context, desc media.FileDescriptor) (media.LocalMediaFile, error) {
	r.opts.Tracker.stage(StageDownloading)
	ctx, span := r.tracer.Start(ctx, "kiosk.download")
	local, err := r.opts.Downloader.Download(ctx, desc)
	telemetry.EndSpan(span, err)
	return local, err
}

func (r *Runner) play(ctx context.Context, p Player, local media.LocalMediaFile) (player.Session, error) {
	r.opts.Tracker.stage(StagePlaying)
	ctx, span := r.tracer.Start(ctx, "kiosk.play")
	sess, err := p.Play(ctx, local)
	span.SetAttributes(telemetry.PlaybackAttributes(string(sess.Reason), sess.Mechanism, sess.PID)...)
	telemetry.EndSpan(span, err)
	return sess, err
}

func (r *Runner) cleanup(ctx context.Context, local media.LocalMediaFile) error {
	r.opts.Tracker.stage(StageCleaning)
	ctx, span := r.tracer.Start(ctx, "kiosk.cleanup")
	err := r.opts.Cleaner.Remove(ctx, local)
	telemetry.EndSpan(span, err)
	return err
}
