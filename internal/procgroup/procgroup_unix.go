// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
)

// Set makes the command the leader of a fresh process group, so its group id
// equals its pid and signals sent by Kill reach everything it forks.
func Set(cmd *exec.Cmd) {
	attr := cmd.SysProcAttr
	if attr == nil {
		attr = &syscall.SysProcAttr{}
	}
	attr.Setpgid = true
	attr.Pgid = 0
	cmd.SysProcAttr = attr
}

// Kill signals the process group led by the command. The group id is the
// leader's pid, so members are reached even after the leader was reaped.
// A command that never started or a group that is already empty is not an error.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil || cmd.Process.Pid <= 0 {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// groupAlive reports whether any member of the command's group still runs.
func groupAlive(cmd *exec.Cmd) bool {
	return liveMembers(cmd.Process.Pid)
}

// signalProbe asks the kernel whether the group has any member left. Zombies
// count as members.
func signalProbe(pgid int) bool {
	err := syscall.Kill(-pgid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
