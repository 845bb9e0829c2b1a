// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build unix

package process

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// sysProcAttr puts the child in its own process group.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killTree kills the process group led by ps, falling back to the process alone.
func killTree(ps *os.Process) error {
	err := unix.Kill(-ps.Pid, unix.SIGKILL)
	if err == nil {
		return nil
	}

	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}

	return ps.Kill()
}
