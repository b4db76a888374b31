// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package procgroup

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/kiosk/internal/metrics"
)

// pollInterval is how often Terminate checks whether the group has emptied.
var pollInterval = 25 * time.Millisecond

// Terminate stops a process group in two phases: SIGTERM, then SIGKILL when
// the group has not emptied within grace. After SIGKILL it waits up to
// killWait and returns ErrKillFailed if a member is still around.
//
// done must be closed by whoever owns cmd.Wait once the leader is reaped. The
// group counts as stopped only when done is closed and no member is left, so
// children that outlive the leader are signalled and waited for as well.
// It is safe to call on nil commands and on groups that already ended.
func Terminate(cmd *exec.Cmd, done <-chan struct{}, grace, killWait time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if stopped(cmd, done) {
		metrics.IncProcTerminate("SIGTERM", "already_exited")
		return nil
	}
	if err := Kill(cmd, syscall.SIGTERM); err == nil {
		metrics.IncProcTerminate("SIGTERM", "sent")
	} else {
		metrics.IncProcTerminate("SIGTERM", "error")
	}

	if waitStopped(cmd, done, grace) {
		metrics.IncProcWait("graceful")
		return nil
	}

	if err := Kill(cmd, syscall.SIGKILL); err == nil {
		metrics.IncProcTerminate("SIGKILL", "sent")
	} else {
		metrics.IncProcTerminate("SIGKILL", "error")
	}

	if waitStopped(cmd, done, killWait) {
		metrics.IncProcWait("forced")
		return nil
	}
	metrics.IncProcWait("kill_failed")
	return ErrKillFailed
}

func stopped(cmd *exec.Cmd, done <-chan struct{}) bool {
	select {
	case <-done:
		return !groupAlive(cmd)
	default:
		return false
	}
}

// waitStopped polls until the group is stopped or d elapses.
func waitStopped(cmd *exec.Cmd, done <-chan struct{}, d time.Duration) bool {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		if stopped(cmd, done) {
			return true
		}
		select {
		case <-deadline.C:
			return stopped(cmd, done)
		case <-tick.C:
		}
	}
}
