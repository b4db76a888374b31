// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package transcode

import (
	"context"
	"sync"
	"time"
)

type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                   { return time.Now() }
func (realClock) NewTicker(d time.Duration) ticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// stallGuard fails a conversion whose output stops growing. Progress counts
// only when out_time or total_size increases.
type stallGuard struct {
	mu      sync.Mutex
	timeout time.Duration
	clock   clock

	outTime  time.Duration
	size     int64
	lastBeat time.Time
	stalled  bool
}

func newStallGuard(timeout time.Duration, c clock) *stallGuard {
	return &stallGuard{timeout: timeout, clock: c, lastBeat: c.Now()}
}

func (g *stallGuard) observe(outTime time.Duration, size int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if outTime > g.outTime || size > g.size {
		g.outTime = max(g.outTime, outTime)
		g.size = max(g.size, size)
		g.lastBeat = g.clock.Now()
	}
}

// watch returns ErrStalled once no progress was observed for the timeout, or
// nil when ctx is done.
func (g *stallGuard) watch(ctx context.Context) error {
	t := g.clock.NewTicker(min(time.Second, g.timeout/4))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
			if g.check() {
				return ErrStalled
			}
		}
	}
}

func (g *stallGuard) check() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.clock.Now().Sub(g.lastBeat) > g.timeout {
		g.stalled = true
	}
	return g.stalled
}
