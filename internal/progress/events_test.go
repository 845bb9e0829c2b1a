// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
		expected  string
		terminal  bool
	}{
		{name: "EventQueued", eventType: EventQueued, expected: "queued"},
		{name: "EventStarted", eventType: EventStarted, expected: "started"},
		{name: "EventOutput", eventType: EventOutput, expected: "output"},
		{name: "EventCompleted", eventType: EventCompleted, expected: "completed", terminal: true},
		{name: "EventFailed", eventType: EventFailed, expected: "failed", terminal: true},
		{name: "EventTimedOut", eventType: EventTimedOut, expected: "timed out", terminal: true},
		{name: "Unknown event type", eventType: EventType(999), expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.eventType.String())
			assert.Equal(t, tt.terminal, tt.eventType.Terminal())
		})
	}
}

func TestNullReporter(t *testing.T) {
	reporter := NewNullReporter()
	require.NotNil(t, reporter)

	// These should not panic
	reporter.Report(Event{
		Target:    "test",
		Type:      EventStarted,
		Message:   "test message",
		Timestamp: time.Now(),
	})

	reporter.Close()
}

func TestChannelReporter(t *testing.T) {
	defer goleak.VerifyNone(t)

	reporter := NewChannelReporter(context.Background(), 10)
	require.NotNil(t, reporter)

	event := Event{
		Target:    "/src/repo",
		Type:      EventStarted,
		Message:   "Test started",
		Timestamp: time.Now(),
	}

	reporter.Report(event)

	select {
	case receivedEvent := <-reporter.Events():
		assert.Equal(t, event.Target, receivedEvent.Target)
		assert.Equal(t, event.Type, receivedEvent.Type)
		assert.Equal(t, event.Message, receivedEvent.Message)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Event not received within timeout")
	}

	reporter.Close()
	reporter.Close()

	// Test that closed reporter drops events
	reporter.Report(Event{
		Type:    EventCompleted,
		Message: "Should be dropped",
	})

	require.Error(t, reporter.Context().Err())
}

func TestChannelReporter_BufferOverflow(t *testing.T) {
	reporter := NewChannelReporter(context.Background(), 1)
	require.NotNil(t, reporter)

	reporter.Report(Event{Type: EventStarted, Message: "Event 1"})

	// This should not block due to the non-blocking send
	reporter.Report(Event{Type: EventOutput, Message: "Event 2"})

	assert.Equal(t, int64(1), reporter.Dropped())

	reporter.Close()
}

type mockListener struct {
	mu     sync.Mutex
	events []Event
}

func (ml *mockListener) OnEvent(event Event) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.events = append(ml.events, event)
}

func TestChannelReporter_Listen(t *testing.T) {
	defer goleak.VerifyNone(t)

	reporter := NewChannelReporter(context.Background(), 10)
	require.NotNil(t, reporter)

	listener := &mockListener{}
	reporter.Listen(listener)

	events := []Event{
		{Type: EventStarted, Message: "Started"},
		{Type: EventOutput, Message: "line"},
		{Type: EventCompleted, Message: "Completed"},
	}

	for _, event := range events {
		reporter.Report(event)
	}

	// Close delivers what is buffered before returning.
	reporter.Close()

	listener.mu.Lock()
	defer listener.mu.Unlock()

	assert.Len(t, listener.events, len(events))

	for i, expectedEvent := range events {
		assert.Equal(t, expectedEvent.Type, listener.events[i].Type)
		assert.Equal(t, expectedEvent.Message, listener.events[i].Message)
	}
}

func TestChannelReporter_ConcurrentReportAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	reporter := NewChannelReporter(context.Background(), 4)
	reporter.Listen(ListenerFunc(func(Event) {}))

	wg := sync.WaitGroup{}

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				reporter.Report(Event{Type: EventOutput})
			}
		}()
	}

	reporter.Close()
	wg.Wait()
}

func TestChannelReporter_ParentContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	reporter := NewChannelReporter(ctx, 4)
	reporter.Listen(ListenerFunc(func(Event) {}))

	cancel()
	reporter.Report(Event{Type: EventStarted})
	reporter.Close()
}
