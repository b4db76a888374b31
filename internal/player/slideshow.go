// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package player

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/kiosk/internal/log"
	"github.com/ManuGH/kiosk/internal/media"
	"github.com/ManuGH/kiosk/internal/metrics"
)

// Slideshow presents a document in a viewer for a fixed time, then stops it.
// The viewer is launched once and never restarted.
type Slideshow struct {
	Bin    string
	Args   []string
	Timing Timing

	launcher Launcher
	clock    clock
	lookPath func(string) (string, error)
	logger   zerolog.Logger
}

// NewSlideshow creates the document player.
func NewSlideshow(bin string, args []string, timing Timing, launcher Launcher) *Slideshow {
	return &Slideshow{
		Bin:      bin,
		Args:     args,
		Timing:   timing,
		launcher: launcher,
		clock:    realClock{},
		lookPath: exec.LookPath,
		logger:   xglog.WithComponent("player.slideshow"),
	}
}

// Play shows file until Timing.Duration elapsed or ctx is canceled and then
// sends exactly one termination.
func (s *Slideshow) Play(ctx context.Context, file media.LocalMediaFile) (Session, error) {
	sess := Session{File: file, Mechanism: MechanismPrimary}
	logger := xglog.WithContext(ctx, s.logger)

	if _, err := s.lookPath(s.Bin); err != nil {
		return sess, fmt.Errorf("%w: %s: %w", ErrPlayerNotFound, s.Bin, err)
	}

	args := append(append([]string(nil), s.Args...), file.PlaybackPath())
	proc, err := s.launcher.Launch(ctx, s.Bin, args...)
	if err != nil {
		metrics.IncPlayerLaunch(MechanismPrimary, "error")
		return sess, fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	metrics.IncPlayerLaunch(MechanismPrimary, "ok")
	sess.PID = proc.PID()
	sess.StartedAt = s.clock.Now()

	logger.Info().
		Str(xglog.FieldEvent, "player.launched").
		Str(xglog.FieldBinary, s.Bin).
		Int(xglog.FieldPID, sess.PID).
		Str(xglog.FieldPath, file.PlaybackPath()).
		Dur("duration", s.Timing.Duration).
		Msg("slideshow started")

	deadline := s.clock.After(s.Timing.Duration)
	exited := proc.Done()
wait:
	for {
		select {
		case <-deadline:
			sess.Reason = ReasonElapsed
			break wait
		case <-ctx.Done():
			sess.Reason = ReasonCanceled
			break wait
		case <-exited:
			// The slot is kept: the kiosk shows nothing until the duration is over.
			logger.Warn().
				Err(proc.ExitErr()).
				Str(xglog.FieldEvent, "player.exited_early").
				Int(xglog.FieldPID, sess.PID).
				Msg("viewer exited before the duration elapsed")
			exited = nil
		}
	}

	termErr := proc.Terminate(s.Timing.StopGrace, s.Timing.KillWait)
	sess.EndedAt = s.clock.Now()
	metrics.ObservePlayback("document", string(sess.Reason), sess.Duration())

	if termErr != nil {
		logger.Error().
			Err(termErr).
			Str(xglog.FieldEvent, "player.terminate_failed").
			Int(xglog.FieldPID, sess.PID).
			Msg("viewer survived termination")
		return sess, fmt.Errorf("%w: %w", ErrTerminateFailed, termErr)
	}

	logger.Info().
		Str(xglog.FieldEvent, "player.stopped").
		Str("reason", string(sess.Reason)).
		Dur("played", sess.Duration()).
		Msg("slideshow stopped")

	if sess.Reason == ReasonCanceled {
		return sess, ctx.Err()
	}
	return sess, nil
}
