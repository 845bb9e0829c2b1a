// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package process

import (
	"context"
	"fmt"
	"time"

	"github.com/matt-FFFFFF/execute/internal/linebuf"
	"github.com/matt-FFFFFF/execute/internal/task"
)

// DefaultOutputGrace is how long Await waits for the output streams to end
// after the process has exited.
const DefaultOutputGrace = 250 * time.Millisecond

// AwaitOptions tunes Await.
type AwaitOptions struct {
	// OutputGrace bounds the wait for end of output after exit.
	// Zero selects DefaultOutputGrace, a negative value disables the wait.
	OutputGrace time.Duration
}

// Await waits for the process to finish, for the task deadline to expire or for ctx
// to be cancelled, whichever happens first, and converts that into an outcome.
// It never blocks on the kill taking effect.
func Await(ctx context.Context, h *Handle, t task.Task, opts AwaitOptions) task.Outcome {
	var deadline <-chan time.Time

	if t.Deadline > 0 {
		timer := time.NewTimer(t.Deadline - time.Since(h.Started()))
		defer timer.Stop()

		deadline = timer.C
	}

	select {
	case <-h.Exited():
		return finished(h, t, opts)

	case <-deadline:
		h.logger.Debug("deadline exceeded, killing process", "deadline", t.Deadline)
		h.Terminate()

		e := task.NewError(t.Target, task.KindTimeout, nil, "Timed out in '%s' after %s.", t.Target, t.Deadline)
		e.Stdout, e.Stderr = drain(h)

		return task.Fail(e)

	case <-ctx.Done():
		h.logger.Debug("context done, killing process")
		h.Terminate()

		e := task.NewError(t.Target, task.KindCancelled, context.Cause(ctx),
			"Cancelled in '%s' after %s", t.Target, time.Since(h.Started()).Round(time.Millisecond))
		e.Stdout, e.Stderr = drain(h)

		return task.Fail(e)
	}
}

func finished(h *Handle, t task.Task, opts AwaitOptions) task.Outcome {
	grace := opts.OutputGrace
	if grace == 0 {
		grace = DefaultOutputGrace
	}

	if t.Deadline > 0 {
		grace = min(grace, t.Deadline-time.Since(h.Started()))
	}

	waitOutput(h, grace)

	stdout, stderr := drain(h)

	if err := h.WaitErr(); err != nil {
		e := task.NewError(t.Target, task.KindWait, err, "Wait failed for '%s'", t.Target)
		e.Stdout, e.Stderr = stdout, stderr

		return task.Fail(e)
	}

	res := &task.Result{
		Target:   t.Target,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(h.Started()),
	}

	if state, _ := h.State(); state != nil && state.ExitCode() >= 0 {
		res.ExitCode = task.IntPtr(state.ExitCode())
	}

	return task.Ok(res)
}

// waitOutput waits until both streams have ended or the grace period is over.
func waitOutput(h *Handle, grace time.Duration) {
	if grace <= 0 {
		return
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	for _, c := range []*linebuf.Collector{h.stdout, h.stderr} {
		select {
		case <-c.Done():
		case <-timer.C:
			return
		}
	}
}

// drain takes whatever both streams have buffered without blocking.
func drain(h *Handle) (string, string) {
	outLines, _ := h.stdout.Drain()
	errLines, _ := h.stderr.Drain()

	stdout := linebuf.Join(outLines)
	stderr := linebuf.Join(errLines)

	for _, s := range []struct {
		name string
		c    *linebuf.Collector
	}{{"stdout", h.stdout}, {"stderr", h.stderr}} {
		if s.c.Overflowed() {
			stderr = appendLine(stderr, fmt.Sprintf("[!] %s truncated after %d bytes", s.name, h.maxBytes))
		}

		if err := s.c.Err(); err != nil {
			stderr = appendLine(stderr, fmt.Sprintf("[!] reading %s: %v", s.name, err))
		}
	}

	return stdout, stderr
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}

	return s + "\n" + line
}
