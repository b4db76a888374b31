// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build linux

package procgroup

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
)

// liveMembers scans /proc for a non-zombie process in group pgid. Orphaned
// members are reparented to init, which may never reap them inside a
// container, so zombies are skipped.
func liveMembers(pgid int) bool {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return signalProbe(pgid)
	}
	for _, e := range entries {
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		stat, err := os.ReadFile(filepath.Join("/proc", e.Name(), "stat"))
		if err != nil {
			continue
		}
		state, group, ok := parseStat(stat)
		if ok && group == pgid && state != 'Z' && state != 'X' {
			return true
		}
	}
	return false
}

// parseStat extracts state and pgrp from /proc/<pid>/stat. The command name
// may contain spaces and parentheses, so fields are read after the last ')'.
func parseStat(stat []byte) (state byte, pgrp int, ok bool) {
	i := bytes.LastIndexByte(stat, ')')
	if i < 0 {
		return 0, 0, false
	}
	fields := bytes.Fields(stat[i+1:])
	// state ppid pgrp ...
	if len(fields) < 3 || len(fields[0]) == 0 {
		return 0, 0, false
	}
	pgrp, err := strconv.Atoi(string(fields[2]))
	if err != nil {
		return 0, 0, false
	}
	return fields[0][0], pgrp, true
}
