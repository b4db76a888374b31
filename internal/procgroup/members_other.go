// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix && !linux

package procgroup

func liveMembers(pgid int) bool {
	return signalProbe(pgid)
}
