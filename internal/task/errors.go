// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package task

import (
	"errors"
	"fmt"
)

var (
	// ErrSpawn is returned when the process could not be started.
	ErrSpawn = errors.New("spawn failed")
	// ErrWait is returned when the process started but its exit status could not be obtained.
	ErrWait = errors.New("wait failed")
	// ErrTimeout is returned when the process exceeded its deadline.
	ErrTimeout = errors.New("timed out")
	// ErrCancelled is returned when the run was interrupted before the task finished.
	ErrCancelled = errors.New("cancelled")
)

// Kind classifies a task level error.
type Kind int

const (
	// KindSpawn means the process could not be started.
	KindSpawn Kind = iota
	// KindWait means the exit status could not be obtained.
	KindWait
	// KindTimeout means the deadline expired and the process was signalled.
	KindTimeout
	// KindCancelled means the run was interrupted.
	KindCancelled
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindSpawn:
		return "spawn"
	case KindWait:
		return "wait"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindSpawn:
		return ErrSpawn
	case KindWait:
		return ErrWait
	case KindTimeout:
		return ErrTimeout
	default:
		return ErrCancelled
	}
}

// Error is the outcome of a task that did not run to completion.
// Stdout and Stderr hold whatever output was captured before the failure.
type Error struct {
	Target  string
	Kind    Kind
	Message string
	Stdout  string
	Stderr  string
	Err     error // underlying cause, may be nil
}

// NewError creates an Error of the given kind.
func NewError(target string, kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Target:  target,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}

	return e.Message + ": " + e.Err.Error()
}

// Unwrap allows errors.Is to match both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}

	return []error{e.Kind.sentinel(), e.Err}
}
