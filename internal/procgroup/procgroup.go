// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup spawns external programs in their own process group so
// that a viewer or transcoder and every child it forks can be stopped together.
package procgroup

import "errors"

// ErrKillFailed is returned when a process group survives SIGKILL past the wait budget.
var ErrKillFailed = errors.New("kill operation failed")
