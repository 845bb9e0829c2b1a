// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package task

import (
	"fmt"
	"time"
)

// Mode says how the target is handed to the command.
type Mode int

const (
	// ModeDirectory runs the command with the target as its working directory.
	ModeDirectory Mode = iota
	// ModeFile appends the target as the last argument.
	ModeFile
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeDirectory:
		return "directories"
	case ModeFile:
		return "files"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Noun returns the plural noun used in log messages for targets of this mode.
func (m Mode) Noun() string {
	if m == ModeFile {
		return "files"
	}

	return "repos"
}

// Task is one (command, target) execution unit. It is not modified after creation.
type Task struct {
	Target   string        // Directory or file the command runs against.
	Command  string        // Executable name or path.
	Args     []string      // Arguments, not including the executable.
	Deadline time.Duration // Maximum run time; zero means no limit.
	Mode     Mode          // How Target is passed to the command.
}

// New creates a task. The argument slice is copied.
func New(target, command string, args []string, deadline time.Duration, mode Mode) Task {
	return Task{
		Target:   target,
		Command:  command,
		Args:     append([]string(nil), args...),
		Deadline: deadline,
		Mode:     mode,
	}
}

// Result is the outcome of a task whose process ran to completion.
type Result struct {
	Target   string
	ExitCode *int // nil when the process was ended by a signal
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Code returns the exit code, or -1 when there is none.
func (r *Result) Code() int {
	if r.ExitCode == nil {
		return -1
	}

	return *r.ExitCode
}

// Success reports whether the process exited with code zero.
func (r *Result) Success() bool {
	return r.ExitCode != nil && *r.ExitCode == 0
}

// Outcome carries exactly one of Result or Error.
type Outcome struct {
	Result *Result
	Error  *Error
}

// Target returns the target the outcome belongs to.
func (o Outcome) Target() string {
	if o.Error != nil {
		return o.Error.Target
	}

	if o.Result != nil {
		return o.Result.Target
	}

	return ""
}

// Ok wraps a result in an outcome.
func Ok(r *Result) Outcome {
	return Outcome{Result: r}
}

// Fail wraps an error in an outcome.
func Fail(e *Error) Outcome {
	return Outcome{Error: e}
}

// IntPtr returns a pointer to i.
func IntPtr(i int) *int {
	return &i
}
