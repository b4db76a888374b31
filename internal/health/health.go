// SPDX-License-Identifier: MIT

// Package health answers the liveness and readiness probes of the kiosk status
// listener. Liveness only says the process is up; readiness folds the state of
// every registered Checker into one verdict.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/kiosk/internal/kiosk"
	"github.com/ManuGH/kiosk/internal/log"
)

// Status is the verdict of a single check or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultCheckTimeout bounds a single Checker call.
const DefaultCheckTimeout = 2 * time.Second

// CheckResult is what a Checker reports.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    int64                  `json:"uptime_seconds"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the /readyz body.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker inspects one part of the kiosk.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers on demand.
type Manager struct {
	version string
	started time.Time
	timeout time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	checkers []Checker
}

// NewManager creates a manager reporting the given build version.
func NewManager(version string) *Manager {
	return &Manager{
		version: version,
		started: time.Now(),
		timeout: DefaultCheckTimeout,
		now:     time.Now,
	}
}

// RegisterChecker adds a checker. Names should be unique; a later checker
// with the same name hides the earlier result.
func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// evaluate runs all checkers concurrently, each under its own timeout.
func (m *Manager) evaluate(ctx context.Context) (Status, map[string]CheckResult) {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	if len(checkers) == 0 {
		return StatusHealthy, nil
	}

	results := make([]CheckResult, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			res := c.Check(cctx)
			if cctx.Err() != nil && res.Status == StatusHealthy {
				res = CheckResult{Status: StatusUnhealthy, Error: fmt.Sprintf("check exceeded %s", m.timeout)}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	checks := make(map[string]CheckResult, len(checkers))
	for i, c := range checkers {
		res := results[i]
		checks[c.Name()] = res
		overall = worse(overall, res.Status)
	}
	return overall, checks
}

func worse(a, b Status) Status {
	rank := func(s Status) int {
		switch s {
		case StatusUnhealthy:
			return 2
		case StatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// Health answers the liveness probe. Component checks only run when verbose
// is set; they change the reported status but never the HTTP code.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: m.now(),
		Uptime:    int64(m.now().Sub(m.started).Seconds()),
	}
	if verbose {
		resp.Status, resp.Checks = m.evaluate(ctx)
	}
	return resp
}

// Ready answers the readiness probe. Degraded components keep the kiosk ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	st, checks := m.evaluate(ctx)
	return ReadinessResponse{
		Ready:     st != StatusUnhealthy,
		Status:    st,
		Timestamp: m.now(),
		Checks:    checks,
	}
}

// ServeHealth handles GET /healthz. It always answers 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"
	resp := m.Health(r.Context(), verbose)
	writeJSON(r.Context(), w, http.StatusOK, resp, "health")

	logger := log.WithComponentFromContext(r.Context(), "health")
	logger.Debug().
		Str(log.FieldEvent, "health.checked").
		Str("status", string(resp.Status)).
		Bool("verbose", verbose).
		Msg("health check performed")
}

// ServeReady handles GET /readyz: 200 when ready, 503 otherwise.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context())
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(r.Context(), w, code, resp, "readiness")

	logger := log.WithComponentFromContext(r.Context(), "health")
	logger.Debug().
		Str(log.FieldEvent, "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, body any, probe string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := log.WithComponentFromContext(ctx, "health")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, probe+".encode_error").
			Msg("failed to encode probe response")
	}
}

// DirChecker checks that a directory exists and accepts new files.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker for a writable directory.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string {
	return c.name
}

func (c *DirChecker) Check(ctx context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusUnhealthy, Error: "not configured"}
	}
	if err := checkWritableDir(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	}
	return CheckResult{Status: StatusHealthy, Message: "directory writable"}
}

// checkWritableDir creates and removes a probe file in path.
func checkWritableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	f, err := os.CreateTemp(path, ".kiosk-write-test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

// StageChecker reports the pipeline state. A run that ended with a failure
// makes the process unhealthy; a stage that takes longer than its budget is
// reported as degraded.
type StageChecker struct {
	snapshot func() kiosk.Snapshot
	budgets  map[kiosk.Stage]time.Duration
	now      func() time.Time
}

// NewStageChecker creates a pipeline checker. Stages without a budget are
// never reported as stuck.
func NewStageChecker(snapshot func() kiosk.Snapshot, budgets map[kiosk.Stage]time.Duration) *StageChecker {
	return &StageChecker{snapshot: snapshot, budgets: budgets, now: time.Now}
}

func (c *StageChecker) Name() string {
	return "pipeline"
}

func (c *StageChecker) Check(ctx context.Context) CheckResult {
	snap := c.snapshot()

	switch snap.Stage {
	case kiosk.StageIdle:
		return CheckResult{Status: StatusHealthy, Message: "no run started yet"}
	case kiosk.StageDone:
		if !snap.Outcome.Success() {
			return CheckResult{
				Status:  StatusUnhealthy,
				Error:   snap.Error,
				Message: "run ended with " + string(snap.Outcome),
			}
		}
		return CheckResult{Status: StatusHealthy, Message: "run ended with " + string(snap.Outcome)}
	}

	if budget, ok := c.budgets[snap.Stage]; ok && budget > 0 && !snap.StageStartedAt.IsZero() {
		if age := c.now().Sub(snap.StageStartedAt); age > budget {
			return CheckResult{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("%s for %s (budget %s)", snap.Stage, age.Truncate(time.Second), budget),
			}
		}
	}
	return CheckResult{Status: StatusHealthy, Message: string(snap.Stage)}
}
