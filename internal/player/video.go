// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package player

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/kiosk/internal/log"
	"github.com/ManuGH/kiosk/internal/media"
	"github.com/ManuGH/kiosk/internal/metrics"
	"github.com/ManuGH/kiosk/internal/transcode"
)

// Converter prepares a video for looping playback.
type Converter interface {
	Inspect(ctx context.Context, src string) (transcode.Info, bool, error)
	Convert(ctx context.Context, src string, info transcode.Info) (string, error)
}

// VideoOptions configure the video player.
type VideoOptions struct {
	Bin  string
	Args []string
	// FallbackShell runs the player through "<shell> -c" with DISPLAY
	// defaulted to Display when the primary launch dies immediately.
	FallbackShell string
	Display       string
	// StartupProbe is how long a fresh launch must survive to count as started.
	StartupProbe time.Duration
	Timing       Timing
}

// Video plays a video fullscreen in a loop, polling the process until the
// duration elapsed, then terminates it gracefully.
type Video struct {
	opts      VideoOptions
	converter Converter

	launcher Launcher
	clock    clock
	lookPath func(string) (string, error)
	logger   zerolog.Logger
}

// NewVideo creates the video player. converter may be nil to disable conversion.
func NewVideo(opts VideoOptions, converter Converter, launcher Launcher) *Video {
	if opts.FallbackShell == "" {
		opts.FallbackShell = "/bin/sh"
	}
	if opts.Display == "" {
		opts.Display = ":0"
	}
	return &Video{
		opts:      opts,
		converter: converter,
		launcher:  launcher,
		clock:     realClock{},
		lookPath:  exec.LookPath,
		logger:    xglog.WithComponent("player.video"),
	}
}

// Play converts file when needed, launches the player and monitors it.
func (v *Video) Play(ctx context.Context, file media.LocalMediaFile) (Session, error) {
	logger := xglog.WithContext(ctx, v.logger)
	sess := Session{File: file}

	if v.converter != nil {
		converted, err := v.convert(ctx, file.Path, logger)
		if err != nil {
			return sess, err
		}
		sess.File.ConvertedPath = converted
	}

	if _, err := v.lookPath(v.opts.Bin); err != nil {
		return sess, fmt.Errorf("%w: %s: %w", ErrPlayerNotFound, v.opts.Bin, err)
	}

	proc, err := v.start(ctx, sess.File.PlaybackPath(), &sess, logger)
	if err != nil {
		return sess, err
	}
	return v.monitor(ctx, proc, sess, logger)
}

func (v *Video) convert(ctx context.Context, src string, logger zerolog.Logger) (string, error) {
	info, needs, err := v.converter.Inspect(ctx, src)
	if err != nil {
		// A file ffprobe cannot read is still handed to ffmpeg, which reports
		// the real problem.
		logger.Warn().Err(err).Str(xglog.FieldPath, src).Msg("probe failed, converting anyway")
		needs = true
	}
	if !needs {
		logger.Info().
			Str(xglog.FieldEvent, "transcode.skipped").
			Str(xglog.FieldCodec, info.VideoCodec).
			Msg("video already in preferred format")
		return "", nil
	}
	dst, err := v.converter.Convert(ctx, src, info)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrConvertFailed, err)
	}
	return dst, nil
}

// start launches the player, falling back to a shell launch when the
// primary process does not survive the startup probe.
func (v *Video) start(ctx context.Context, path string, sess *Session, logger zerolog.Logger) (Process, error) {
	args := append(append([]string(nil), v.opts.Args...), path)

	proc, err := v.launch(ctx, MechanismPrimary, v.opts.Bin, args, logger)
	if err == nil {
		sess.Mechanism = MechanismPrimary
		sess.PID = proc.PID()
		return proc, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "player.fallback").
		Str(xglog.FieldBinary, v.opts.FallbackShell).
		Msg("primary launch failed, trying fallback")

	script := fmt.Sprintf(`DISPLAY="${DISPLAY:-%s}" exec "$@"`, v.opts.Display)
	fbArgs := append([]string{"-c", script, "sh", v.opts.Bin}, args...)
	proc, fbErr := v.launch(ctx, MechanismFallback, v.opts.FallbackShell, fbArgs, logger)
	if fbErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: primary: %w; fallback: %w", ErrLaunchFailed, err, fbErr)
	}
	sess.Mechanism = MechanismFallback
	sess.PID = proc.PID()
	return proc, nil
}

func (v *Video) launch(ctx context.Context, mechanism, bin string, args []string, logger zerolog.Logger) (Process, error) {
	proc, err := v.launcher.Launch(ctx, bin, args...)
	if err != nil {
		metrics.IncPlayerLaunch(mechanism, "error")
		return nil, err
	}

	if v.opts.StartupProbe > 0 {
		select {
		case <-proc.Done():
			metrics.IncPlayerLaunch(mechanism, "exited")
			// The leader is gone but forked children may still hold the display.
			_ = proc.Terminate(v.opts.Timing.StopGrace, v.opts.Timing.KillWait)
			if exitErr := proc.ExitErr(); exitErr != nil {
				return nil, fmt.Errorf("%s exited during startup: %w", bin, exitErr)
			}
			return nil, fmt.Errorf("%s exited during startup with status 0", bin)
		case <-ctx.Done():
			_ = proc.Terminate(v.opts.Timing.StopGrace, v.opts.Timing.KillWait)
			return nil, ctx.Err()
		case <-v.clock.After(v.opts.StartupProbe):
		}
	}

	metrics.IncPlayerLaunch(mechanism, "ok")
	logger.Info().
		Str(xglog.FieldEvent, "player.launched").
		Str("mechanism", mechanism).
		Str(xglog.FieldBinary, bin).
		Int(xglog.FieldPID, proc.PID()).
		Str("args", strings.Join(args, " ")).
		Msg("player started")
	return proc, nil
}

func (v *Video) monitor(ctx context.Context, proc Process, sess Session, logger zerolog.Logger) (Session, error) {
	sess.StartedAt = v.clock.Now()
	deadline := sess.StartedAt.Add(v.opts.Timing.Duration)

	tick := v.clock.NewTicker(v.opts.Timing.PollInterval)
	defer tick.Stop()

	var exitErr error
poll:
	for {
		select {
		case <-ctx.Done():
			sess.Reason = ReasonCanceled
			break poll
		case now := <-tick.C():
			select {
			case <-proc.Done():
				sess.Reason = ReasonExited
				exitErr = proc.ExitErr()
				break poll
			default:
			}
			if !now.Before(deadline) || !v.clock.Now().Before(deadline) {
				sess.Reason = ReasonElapsed
				break poll
			}
			logger.Debug().
				Str(xglog.FieldEvent, "player.poll").
				Int(xglog.FieldPID, sess.PID).
				Dur("remaining", deadline.Sub(v.clock.Now())).
				Msg("player alive")
		}
	}

	termErr := proc.Terminate(v.opts.Timing.StopGrace, v.opts.Timing.KillWait)
	sess.EndedAt = v.clock.Now()
	metrics.ObservePlayback("video", string(sess.Reason), sess.Duration())

	if termErr != nil {
		logger.Error().
			Err(termErr).
			Str(xglog.FieldEvent, "player.terminate_failed").
			Int(xglog.FieldPID, sess.PID).
			Msg("player survived termination")
		return sess, fmt.Errorf("%w: %w", ErrTerminateFailed, termErr)
	}

	switch sess.Reason {
	case ReasonExited:
		logger.Warn().
			Err(exitErr).
			Str(xglog.FieldEvent, "player.exited").
			Int(xglog.FieldPID, sess.PID).
			Dur("played", sess.Duration()).
			Msg("player exited before the duration elapsed")
		return sess, fmt.Errorf("%w after %s: %v", ErrUnexpectedExit, sess.Duration(), exitErr)
	case ReasonCanceled:
		return sess, ctx.Err()
	}

	logger.Info().
		Str(xglog.FieldEvent, "player.stopped").
		Str("reason", string(sess.Reason)).
		Dur("played", sess.Duration()).
		Msg("video stopped")
	return sess, nil
}
