// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event is a live update about one target.
type Event struct {
	Target    string    // Target the event belongs to.
	Type      EventType // What happened.
	Message   string    // Human-readable detail, for EventOutput the output line.
	Timestamp time.Time // When the event occurred.
	ExitCode  int       // For EventCompleted, -1 when unknown.
	Err       error     // For EventFailed and EventTimedOut.
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventQueued indicates a task was submitted and waits for a slot.
	EventQueued EventType = iota
	// EventStarted indicates a task got a slot and its process is being started.
	EventStarted
	// EventOutput indicates a new line of standard output.
	EventOutput
	// EventCompleted indicates the process ran to completion, with any exit code.
	EventCompleted
	// EventFailed indicates the process could not be started, waited for, or was cancelled.
	EventFailed
	// EventTimedOut indicates the process was killed at its deadline.
	EventTimedOut
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventQueued:
		return "queued"
	case EventStarted:
		return "started"
	case EventOutput:
		return "output"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events follow for the target.
func (et EventType) Terminal() bool {
	return et == EventCompleted || et == EventFailed || et == EventTimedOut
}

// Reporter is the interface for sending progress events.
type Reporter interface {
	// Report sends a progress event. Implementations must not block.
	Report(event Event)
	// Close signals that no more events will be sent and cleans up resources.
	Close()
}

// Listener receives progress events.
type Listener interface {
	// OnEvent is called for every event, from a single goroutine.
	OnEvent(event Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

// OnEvent implements Listener.
func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

// NullReporter is a no-op implementation of Reporter.
// Used when progress reporting is not needed.
type NullReporter struct{}

// Report implements Reporter.Report by doing nothing.
func (NullReporter) Report(Event) {}

// Close implements Reporter.Close by doing nothing.
func (NullReporter) Close() {}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return NullReporter{}
}
