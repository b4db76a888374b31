// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package player shows a downloaded file on the kiosk screen for a bounded
// time and makes sure the program is gone before it returns.
package player

import (
	"errors"
	"time"

	"github.com/ManuGH/kiosk/internal/media"
)

var (
	// ErrPlayerNotFound means the configured program is not on PATH.
	ErrPlayerNotFound = errors.New("player binary not found")
	// ErrLaunchFailed means neither the primary nor the fallback launch stayed up.
	ErrLaunchFailed = errors.New("player launch failed")
	// ErrUnexpectedExit means the player died before the playback duration elapsed.
	ErrUnexpectedExit = errors.New("player exited unexpectedly")
	// ErrTerminateFailed means the process group survived termination. The
	// played file must not be removed in that case.
	ErrTerminateFailed = errors.New("player termination failed")
	// ErrConvertFailed wraps transcoder failures.
	ErrConvertFailed = errors.New("conversion failed")
)

// Reason tells why a session ended.
type Reason string

const (
	ReasonElapsed  Reason = "elapsed"
	ReasonExited   Reason = "exited"
	ReasonCanceled Reason = "canceled"
)

// Launch mechanisms.
const (
	MechanismPrimary  = "primary"
	MechanismFallback = "fallback"
)

// Session describes one playback. File carries the converted path when a
// conversion happened, also when playback itself failed afterwards.
type Session struct {
	File      media.LocalMediaFile
	PID       int
	Mechanism string
	StartedAt time.Time
	EndedAt   time.Time
	Reason    Reason
}

// Duration is the time the program was on screen.
func (s Session) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Timing is shared by both variants.
type Timing struct {
	Duration     time.Duration
	PollInterval time.Duration
	StopGrace    time.Duration
	KillWait     time.Duration
}
