// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package kiosk

import (
	"sync"
	"time"

	"github.com/ManuGH/kiosk/internal/media"
)

// Stage is the pipeline step a run is in.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageLocating    Stage = "locating"
	StageDownloading Stage = "downloading"
	StagePlaying     Stage = "playing"
	StageCleaning    Stage = "cleaning"
	StageDone        Stage = "done"
)

// Snapshot is the externally visible state of the current run.
type Snapshot struct {
	RunID          string    `json:"run_id,omitempty"`
	Stage          Stage     `json:"stage"`
	FileID         string    `json:"file_id,omitempty"`
	FileName       string    `json:"file_name,omitempty"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	StageStartedAt time.Time `json:"stage_started_at,omitzero"`
	Outcome        Outcome   `json:"outcome,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Tracker records run progress for the status endpoint. Safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker returns a tracker in the idle stage.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Stage: StageIdle}, now: time.Now}
}

func (t *Tracker) begin(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.snap = Snapshot{RunID: runID, Stage: StageLocating, StartedAt: now, StageStartedAt: now}
}

func (t *Tracker) stage(s Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stage = s
	t.snap.StageStartedAt = t.now()
}

func (t *Tracker) file(d media.FileDescriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.FileID = d.ID
	t.snap.FileName = d.Name
}

func (t *Tracker) finish(o Outcome, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stage = StageDone
	t.snap.StageStartedAt = t.now()
	t.snap.Outcome = o
	if err != nil {
		t.snap.Error = err.Error()
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}
