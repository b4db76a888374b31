// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/kiosk/internal/kiosk"
)

func TestNewManager(t *testing.T) {
	m := NewManager("v1.2.3")
	assert.NotNil(t, m)
	assert.Equal(t, "v1.2.3", m.version)
	assert.Empty(t, m.checkers)
}

func TestManager_Health_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0)) // Uptime should be >= 0
	assert.Nil(t, resp.Checks)
}

func TestManager_Health_WithCheckers(t *testing.T) {
	m := NewManager("v1.0.0")

	// Add mock checkers
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	// Non-verbose: no checks included
	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	// Verbose: checks included
	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status) // Overall status degraded
	assert.Len(t, resp.Checks, 2)
	assert.Equal(t, StatusHealthy, resp.Checks["healthy"].Status)
	assert.Equal(t, StatusDegraded, resp.Checks["degraded"].Status)
}

func TestManager_Health_Unhealthy(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "unhealthy", status: StatusUnhealthy})

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Len(t, resp.Checks, 1)
}

func TestManager_Health_Uptime(t *testing.T) {
	m := NewManager("v1.0.0")
	start := m.started
	m.now = func() time.Time { return start.Add(90 * time.Second) }

	resp := m.Health(context.Background(), false)
	assert.Equal(t, int64(90), resp.Uptime)
	assert.Equal(t, start.Add(90*time.Second), resp.Timestamp)
}

func TestManager_SlowChecker(t *testing.T) {
	m := NewManager("v1.0.0")
	m.timeout = 20 * time.Millisecond
	m.RegisterChecker(checkerFunc{name: "slow", fn: func(ctx context.Context) CheckResult {
		<-ctx.Done()
		return CheckResult{Status: StatusHealthy}
	}})
	m.RegisterChecker(&mockChecker{name: "fast", status: StatusHealthy})

	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Checks["slow"].Status)
	assert.Contains(t, resp.Checks["slow"].Error, "exceeded")
	assert.Equal(t, StatusHealthy, resp.Checks["fast"].Status)
}

func TestWorse(t *testing.T) {
	assert.Equal(t, StatusDegraded, worse(StatusHealthy, StatusDegraded))
	assert.Equal(t, StatusUnhealthy, worse(StatusUnhealthy, StatusDegraded))
	assert.Equal(t, StatusDegraded, worse(StatusDegraded, StatusHealthy))
}

func TestManager_Ready_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)
}

func TestManager_Ready_AllHealthy(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "check1", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "check2", status: StatusHealthy})

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready_Degraded(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready) // Degraded is still ready
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestManager_Ready_Unhealthy(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "unhealthy", status: StatusUnhealthy})

	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready) // Unhealthy = not ready
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestManager_ServeHealth(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "test", status: StatusHealthy})

	// Test without verbose
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	m.ServeHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp HealthResponse
	err := json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0)) // Uptime should be present
	assert.Nil(t, resp.Checks)                      // Not verbose

	// Test with verbose
	req = httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil)
	w = httptest.NewRecorder()
	m.ServeHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	err = json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.NotNil(t, resp.Checks)
	assert.Len(t, resp.Checks, 1)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0)) // Uptime present in verbose too
}

func TestManager_ServeHealth_EncodingError(t *testing.T) {
	m := NewManager("v1.0.0")

	// Use a broken ResponseWriter that fails to write
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := &brokenWriter{header: make(http.Header)}

	// Should not panic even if encoding fails
	m.ServeHealth(w, req)
}

func TestManager_ServeReady(t *testing.T) {
	tests := []struct {
		name           string
		checker        Checker
		expectedStatus int
		expectedReady  bool
	}{
		{
			name:           "healthy",
			checker:        &mockChecker{name: "test", status: StatusHealthy},
			expectedStatus: http.StatusOK,
			expectedReady:  true,
		},
		{
			name:           "degraded",
			checker:        &mockChecker{name: "test", status: StatusDegraded},
			expectedStatus: http.StatusOK,
			expectedReady:  true,
		},
		{
			name:           "unhealthy",
			checker:        &mockChecker{name: "test", status: StatusUnhealthy},
			expectedStatus: http.StatusServiceUnavailable,
			expectedReady:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1.0.0")
			m.RegisterChecker(tt.checker)

			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			w := httptest.NewRecorder()
			m.ServeReady(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp ReadinessResponse
			err := json.NewDecoder(w.Body).Decode(&resp)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedReady, resp.Ready)
		})
	}
}

func TestManager_ServeReady_EncodingError(t *testing.T) {
	m := NewManager("v1.0.0")

	// Use a broken ResponseWriter that fails to write
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := &brokenWriter{header: make(http.Header)}

	// Should not panic even if encoding fails
	m.ServeReady(w, req)
}

func TestDirChecker(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name           string
		setup          func() string
		expectedStatus Status
		expectedError  string
	}{
		{
			name:           "writable",
			setup:          func() string { return tempDir },
			expectedStatus: StatusHealthy,
		},
		{
			name:           "missing",
			setup:          func() string { return filepath.Join(tempDir, "missing") },
			expectedStatus: StatusUnhealthy,
			expectedError:  "does not exist",
		},
		{
			name: "is file",
			setup: func() string {
				path := filepath.Join(tempDir, "file.txt")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
				return path
			},
			expectedStatus: StatusUnhealthy,
			expectedError:  "not a directory",
		},
		{
			name:           "not configured",
			setup:          func() string { return "" },
			expectedStatus: StatusUnhealthy,
			expectedError:  "not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewDirChecker("download_dir", tt.setup())
			assert.Equal(t, "download_dir", checker.Name())

			result := checker.Check(context.Background())
			assert.Equal(t, tt.expectedStatus, result.Status)
			if tt.expectedError != "" {
				assert.Contains(t, result.Error, tt.expectedError)
			}
		})
	}

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".kiosk-write-test", "probe file must be removed")
	}
}

func TestStageChecker(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		snap           kiosk.Snapshot
		expectedStatus Status
		expectedMsg    string
	}{
		{
			name:           "idle",
			snap:           kiosk.Snapshot{Stage: kiosk.StageIdle},
			expectedStatus: StatusHealthy,
			expectedMsg:    "no run started yet",
		},
		{
			name:           "playing within budget",
			snap:           kiosk.Snapshot{Stage: kiosk.StagePlaying, StageStartedAt: now.Add(-47 * time.Hour)},
			expectedStatus: StatusHealthy,
			expectedMsg:    "playing",
		},
		{
			name:           "download stuck",
			snap:           kiosk.Snapshot{Stage: kiosk.StageDownloading, StageStartedAt: now.Add(-2 * time.Hour)},
			expectedStatus: StatusDegraded,
			expectedMsg:    "downloading for 2h0m0s",
		},
		{
			name:           "completed",
			snap:           kiosk.Snapshot{Stage: kiosk.StageDone, Outcome: kiosk.OutcomeCompleted},
			expectedStatus: StatusHealthy,
			expectedMsg:    "run ended with completed",
		},
		{
			name:           "failed",
			snap:           kiosk.Snapshot{Stage: kiosk.StageDone, Outcome: kiosk.OutcomeDownloadFailed, Error: "boom"},
			expectedStatus: StatusUnhealthy,
			expectedMsg:    "run ended with download_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewStageChecker(func() kiosk.Snapshot { return tt.snap }, map[kiosk.Stage]time.Duration{
				kiosk.StageDownloading: time.Hour,
			})
			checker.now = func() time.Time { return now }

			assert.Equal(t, "pipeline", checker.Name())
			result := checker.Check(context.Background())
			assert.Equal(t, tt.expectedStatus, result.Status)
			assert.Contains(t, result.Message, tt.expectedMsg)
		})
	}
}

// Mock checker for testing
type mockChecker struct {
	name    string
	status  Status
	message string
	err     string
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(_ context.Context) CheckResult {
	return CheckResult{
		Status:  m.status,
		Message: m.message,
		Error:   m.err,
	}
}

// brokenWriter is a mock ResponseWriter that always fails to write
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header {
	return w.header
}

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, assert.AnError // Always fail
}

func (w *brokenWriter) WriteHeader(statusCode int) {
	// No-op
}

type checkerFunc struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func (c checkerFunc) Name() string { return c.name }

func (c checkerFunc) Check(ctx context.Context) CheckResult { return c.fn(ctx) }
