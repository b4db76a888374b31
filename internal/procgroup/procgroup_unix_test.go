// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startGroup(t *testing.T, script string) (*exec.Cmd, <-chan struct{}) {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	Set(cmd)
	require.NoError(t, cmd.Start())

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	return cmd, done
}

func TestProcessGroupKill(t *testing.T) {
	cmd, done := startGroup(t, "sleep 10 & sleep 10")
	pid := cmd.Process.Pid

	// Give the shell a moment to fork its children.
	time.Sleep(100 * time.Millisecond)

	pgid, err := syscall.Getpgid(pid)
	require.NoError(t, err)
	assert.Equal(t, pid, pgid, "process should be group leader")

	require.NoError(t, Kill(cmd, syscall.SIGKILL))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after SIGKILL")
	}

	time.Sleep(50 * time.Millisecond)
	err = syscall.Kill(-pgid, syscall.Signal(0))
	if err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		t.Fatalf("process group %d still exists after kill", pgid)
	}
	assert.True(t, errors.Is(err, syscall.ESRCH))
}

func TestKill_NilCommand(t *testing.T) {
	assert.NoError(t, Kill(nil, syscall.SIGTERM))
	assert.NoError(t, Kill(&exec.Cmd{}, syscall.SIGTERM))
}

func TestTerminate_Graceful(t *testing.T) {
	cmd, done := startGroup(t, "sleep 30")

	start := time.Now()
	err := Terminate(cmd, done, 2*time.Second, time.Second)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "SIGTERM should be enough for sleep")
}

func TestTerminate_EscalatesToKill(t *testing.T) {
	// The shell ignores SIGTERM, so only SIGKILL ends it.
	cmd, done := startGroup(t, "trap '' TERM; while true; do sleep 0.05; done")
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	err := Terminate(cmd, done, 200*time.Millisecond, 2*time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	select {
	case <-done:
	default:
		t.Fatal("process should be gone after Terminate returned")
	}
}

func TestTerminate_AlreadyExited(t *testing.T) {
	cmd, done := startGroup(t, "exit 0")
	<-done
	assert.NoError(t, Terminate(cmd, done, 10*time.Millisecond, 10*time.Millisecond))
}

// groupGone waits briefly for the group to disappear. Orphans are reaped by
// init, which may lag behind the signal.
func groupGone(t *testing.T, pgid int) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !liveMembers(pgid) {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func TestTerminate_MemberOutlivesLeader(t *testing.T) {
	cmd, done := startGroup(t, "sleep 300 >/dev/null 2>&1 </dev/null & exit 0")
	<-done
	pgid := cmd.Process.Pid
	t.Cleanup(func() { _ = syscall.Kill(-pgid, syscall.SIGKILL) })
	require.True(t, liveMembers(pgid), "background sleep should outlive the shell")

	require.NoError(t, Terminate(cmd, done, time.Second, time.Second))
	assert.False(t, liveMembers(pgid), "no group member may survive Terminate")
}

func TestTerminate_MemberIgnoresTerm(t *testing.T) {
	cmd, done := startGroup(t, "(trap '' TERM; while true; do sleep 0.05; done) >/dev/null 2>&1 </dev/null & exit 0")
	<-done
	pgid := cmd.Process.Pid
	t.Cleanup(func() { _ = syscall.Kill(-pgid, syscall.SIGKILL) })
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, Terminate(cmd, done, 200*time.Millisecond, 2*time.Second))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond, "SIGKILL only after grace")
	assert.True(t, groupGone(t, pgid))
}

func TestKill_AfterLeaderReaped(t *testing.T) {
	cmd, done := startGroup(t, "sleep 300 >/dev/null 2>&1 </dev/null & exit 0")
	<-done
	pgid := cmd.Process.Pid
	t.Cleanup(func() { _ = syscall.Kill(-pgid, syscall.SIGKILL) })

	require.NoError(t, Kill(cmd, syscall.SIGKILL))
	assert.True(t, groupGone(t, pgid))
}
