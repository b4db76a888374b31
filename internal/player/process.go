// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package player

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/ManuGH/kiosk/internal/procgroup"
)

// Process is a launched viewer or player.
type Process interface {
	PID() int
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// ExitErr is the result of waiting for the process; valid after Done.
	ExitErr() error
	// Terminate stops the process group: graceful signal, then a forced
	// kill after grace. It fails only if the group survives the kill.
	Terminate(grace, killWait time.Duration) error
}

// Launcher starts programs.
type Launcher interface {
	Launch(ctx context.Context, name string, args ...string) (Process, error)
}

// ExecLauncher starts programs as OS processes in their own process group.
type ExecLauncher struct {
	// Output receives stdout and stderr of the program. Nil discards.
	Output io.Writer
}

// Launch starts name. The process is not tied to ctx; callers stop it through
// Terminate so that the graceful phase is honored.
func (l ExecLauncher) Launch(ctx context.Context, name string, args ...string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// #nosec G204 -- program and arguments come from operator config and the downloaded file path
	cmd := exec.Command(name, args...)
	procgroup.Set(cmd)
	out := l.Output
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *execProcess) PID() int              { return p.cmd.Process.Pid }
func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) ExitErr() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *execProcess) Terminate(grace, killWait time.Duration) error {
	return procgroup.Terminate(p.cmd, p.done, grace, killWait)
}
