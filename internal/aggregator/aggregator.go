// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package aggregator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matt-FFFFFF/execute/internal/color"
	"github.com/matt-FFFFFF/execute/internal/ctxlog"
	"github.com/matt-FFFFFF/execute/internal/task"
)

const (
	// DefaultProgressEvery is how many completions pass between progress lines.
	DefaultProgressEvery = 10

	separator    = "---"
	stderrMarker = "[.] stderr:"
)

// Options controls the output format.
type Options struct {
	ShowHeader    bool   // Print a header line before every result.
	NonZero       Policy // How non-zero exit codes are reported.
	ProgressEvery int    // With headers off, print remaining tasks every this many completions.
	Color         bool   // Decorate markers with ANSI colours.
	Total         int    // Number of outcomes expected, used for the remaining count.
}

// Counters tracks the progress of a run.
type Counters struct {
	Total     int // Tasks submitted.
	Completed int // Outcomes received, of any kind.
	Failed    int // Spawn, wait, timeout and cancelled errors, plus non-zero exits under NonZeroError.
	TimedOut  int // Timeout errors.
	NonZero   int // Results with a non-zero or missing exit code.
}

// Remaining returns the number of outcomes not received yet.
func (c Counters) Remaining() int {
	return max(c.Total-c.Completed, 0)
}

// Summary is the state of the counters after the outcome stream has ended.
type Summary struct {
	Counters
	Elapsed time.Duration
}

// Failed reports whether any task counts as failed.
func (s Summary) Failed() bool {
	return s.Counters.Failed > 0
}

// Aggregator writes outcomes in the order they are received.
// It must be used from a single goroutine.
type Aggregator struct {
	out      io.Writer
	errOut   io.Writer
	opts     Options
	counters Counters
}

// New creates an aggregator writing results to out and errors to errOut.
func New(out, errOut io.Writer, opts Options) *Aggregator {
	if opts.ProgressEvery < 1 {
		opts.ProgressEvery = DefaultProgressEvery
	}

	return &Aggregator{
		out:      out,
		errOut:   errOut,
		opts:     opts,
		counters: Counters{Total: opts.Total},
	}
}

// Counters returns a copy of the current counters.
func (a *Aggregator) Counters() Counters {
	return a.counters
}

// Consume prints every outcome from outcomes until the channel is closed.
// If ctx is cancelled it keeps reading, outcomes of cancelled tasks still arrive.
func (a *Aggregator) Consume(ctx context.Context, outcomes <-chan task.Outcome) Summary {
	start := time.Now()

	for o := range outcomes {
		a.Add(ctx, o)
	}

	ctxlog.Debug(ctx, "all outcomes received",
		"completed", a.counters.Completed,
		"failed", a.counters.Failed,
		"timedOut", a.counters.TimedOut,
		"nonZero", a.counters.NonZero)

	return Summary{Counters: a.counters, Elapsed: time.Since(start)}
}

// Add prints a single outcome and updates the counters.
func (a *Aggregator) Add(ctx context.Context, o task.Outcome) {
	a.counters.Completed++

	switch {
	case o.Error != nil:
		a.writeError(ctx, o.Error)
	case o.Result != nil:
		a.writeResult(ctx, o.Result)
	default:
		ctxlog.Warn(ctx, "empty outcome received")
	}

	if !a.opts.ShowHeader && a.counters.Completed%a.opts.ProgressEvery == 0 {
		a.write(ctx, a.errOut, fmt.Sprintf("%s remaining tasks: %d\n",
			a.paint("[INFO]:", color.FgBlue), a.counters.Remaining()))
	}
}

func (a *Aggregator) writeResult(ctx context.Context, r *task.Result) {
	sb := &strings.Builder{}

	nonZero := !r.Success()
	if nonZero {
		a.counters.NonZero++
	}

	if a.opts.ShowHeader {
		sb.WriteString(a.paint(separator, color.Faint))
		sb.WriteByte('\n')

		switch {
		case r.ExitCode == nil:
			sb.WriteString(a.paint("[-] Killed by signal:", color.FgRed))
			sb.WriteByte(' ')
		case nonZero:
			sb.WriteString(a.paint(fmt.Sprintf("[-] Non-zero %d:", *r.ExitCode), color.FgRed))
			sb.WriteByte(' ')
		}

		sb.WriteString(a.paint("'"+r.Target+"'", color.Bold))
		sb.WriteByte('\n')
	}

	sb.WriteString(r.Stdout)

	if r.Stderr != "" {
		sb.WriteByte('\n')
		sb.WriteString(a.paint(stderrMarker, color.FgYellow))
		sb.WriteByte('\n')
		sb.WriteString(r.Stderr)
	}

	sb.WriteByte('\n')

	a.write(ctx, a.out, sb.String())

	if nonZero && a.opts.NonZero == NonZeroError {
		a.counters.Failed++

		msg := fmt.Sprintf("Non-zero exit %d in '%s'", r.Code(), r.Target)
		a.write(ctx, a.errOut, a.errorBlock(msg))
	}
}

func (a *Aggregator) writeError(ctx context.Context, e *task.Error) {
	a.counters.Failed++

	if e.Kind == task.KindTimeout {
		a.counters.TimedOut++
	}

	msg := e.Error()

	if e.Kind == task.KindTimeout || e.Kind == task.KindCancelled {
		msg += "\n" + e.Stdout

		if e.Stderr != "" {
			msg += "\n" + a.paint(stderrMarker, color.FgYellow) + "\n" + e.Stderr
		}
	}

	a.write(ctx, a.errOut, a.errorBlock(msg))
}

func (a *Aggregator) errorBlock(msg string) string {
	return a.paint(separator, color.Faint) + "\n" + a.paint("!", color.Bold, color.FgRed) + " " + msg + "\n"
}

func (a *Aggregator) paint(s string, codes ...color.Code) string {
	if !a.opts.Color {
		return s
	}

	return color.Paint(s, codes...)
}

func (a *Aggregator) write(ctx context.Context, w io.Writer, s string) {
	if _, err := io.WriteString(w, s); err != nil {
		ctxlog.Warn(ctx, "failed to write output", "error", err)
	}
}
