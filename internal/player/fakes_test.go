// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/kiosk/internal/transcode"
)

type fakeAfter struct {
	d  time.Duration
	ch chan time.Time
}

type fakeTicker struct {
	d       time.Duration
	c       chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

// fakeClock hands out timers the test fires explicitly.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	afters  chan *fakeAfter
	tickers chan *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:     time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		afters:  make(chan *fakeAfter, 8),
		tickers: make(chan *fakeTicker, 8),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	a := &fakeAfter{d: d, ch: make(chan time.Time, 1)}
	c.afters <- a
	return a.ch
}

func (c *fakeClock) NewTicker(d time.Duration) ticker {
	tk := &fakeTicker{d: d, c: make(chan time.Time)}
	c.tickers <- tk
	return tk
}

func (c *fakeClock) nextAfter(t *testing.T) *fakeAfter {
	t.Helper()
	select {
	case a := <-c.afters:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("no timer was created")
		return nil
	}
}

func (c *fakeClock) nextTicker(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case tk := <-c.tickers:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatal("no ticker was created")
		return nil
	}
}

// tick advances the clock by the ticker period and delivers the tick.
func (c *fakeClock) tick(t *testing.T, tk *fakeTicker) {
	t.Helper()
	now := c.Advance(tk.d)
	select {
	case tk.c <- now:
	case <-time.After(2 * time.Second):
		t.Fatal("tick was not consumed")
	}
}

type fakeProcess struct {
	pid        int
	done       chan struct{}
	once       sync.Once
	exitErr    error
	terminates atomic.Int32
	termErr    error
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, done: make(chan struct{})}
}

func (p *fakeProcess) PID() int              { return p.pid }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) ExitErr() error        { return p.exitErr }

func (p *fakeProcess) exit(err error) {
	p.once.Do(func() {
		p.exitErr = err
		close(p.done)
	})
}

func (p *fakeProcess) Terminate(time.Duration, time.Duration) error {
	p.terminates.Add(1)
	if p.termErr != nil {
		return p.termErr
	}
	p.exit(errors.New("signal: terminated"))
	return nil
}

type launchCall struct {
	name string
	args []string
}

type fakeLauncher struct {
	mu    sync.Mutex
	procs []*fakeProcess
	errs  []error
	calls []launchCall
}

func (l *fakeLauncher) Launch(_ context.Context, name string, args ...string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := len(l.calls)
	l.calls = append(l.calls, launchCall{name: name, args: args})
	if i < len(l.errs) && l.errs[i] != nil {
		return nil, l.errs[i]
	}
	if i >= len(l.procs) {
		return nil, errors.New("unexpected launch")
	}
	return l.procs[i], nil
}

func (l *fakeLauncher) Calls() []launchCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]launchCall(nil), l.calls...)
}

func foundBinary(string) (string, error) { return "/usr/bin/fake", nil }

type fakeConverter struct {
	needs      bool
	inspectErr error
	dst        string
	convErr    error
	converted  []string
}

func (f *fakeConverter) Inspect(context.Context, string) (transcode.Info, bool, error) {
	return transcode.Info{VideoCodec: "vp9"}, f.needs, f.inspectErr
}

func (f *fakeConverter) Convert(_ context.Context, src string, _ transcode.Info) (string, error) {
	f.converted = append(f.converted, src)
	return f.dst, f.convErr
}

type result struct {
	sess Session
	err  error
}

func playAsync(ctx context.Context, play func(context.Context) (Session, error)) <-chan result {
	ch := make(chan result, 1)
	go func() {
		s, err := play(ctx)
		ch <- result{s, err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("Play did not return")
		return result{}
	}
}
