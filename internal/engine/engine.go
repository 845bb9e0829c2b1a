// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/matt-FFFFFF/execute/internal/aggregator"
	"github.com/matt-FFFFFF/execute/internal/ctxlog"
	"github.com/matt-FFFFFF/execute/internal/prepare"
	"github.com/matt-FFFFFF/execute/internal/process"
	"github.com/matt-FFFFFF/execute/internal/progress"
	"github.com/matt-FFFFFF/execute/internal/scheduler"
	"github.com/matt-FFFFFF/execute/internal/settings"
	"github.com/matt-FFFFFF/execute/internal/task"
)

// reapTimeout bounds how long Run waits for killed processes to be reaped.
const reapTimeout = 5 * time.Second

// ErrNoCommand is returned when Run is called without a command.
var ErrNoCommand = errors.New("no command given")

// Engine runs a command against a list of targets.
type Engine struct {
	cfg      *settings.Config
	prep     *prepare.Preparer
	pool     *scheduler.Pool
	out      io.Writer
	errOut   io.Writer
	reporter progress.Reporter
	env      []string

	mu      sync.Mutex
	handles []*process.Handle
}

// Option configures an Engine.
type Option func(*Engine)

// WithOutput sets where results and errors are written. The defaults are stdout and stderr.
func WithOutput(out, errOut io.Writer) Option {
	return func(e *Engine) {
		e.out = out
		e.errOut = errOut
	}
}

// WithReporter sends progress events to r.
func WithReporter(r progress.Reporter) Option {
	return func(e *Engine) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithEnv adds KEY=value pairs to the environment of every process.
func WithEnv(env ...string) Option {
	return func(e *Engine) {
		e.env = append(e.env, env...)
	}
}

// New creates an engine for cfg. Commands are prepared with prep.
func New(cfg *settings.Config, prep *prepare.Preparer, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		prep:     prep,
		pool:     scheduler.New(cfg.Concurrency),
		out:      os.Stdout,
		errOut:   os.Stderr,
		reporter: progress.NewNullReporter(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Stop stops starting new targets. Running targets finish normally.
func (e *Engine) Stop() {
	e.pool.Stop()
}

// Pool returns the scheduler, for its gauges.
func (e *Engine) Pool() *scheduler.Pool {
	return e.pool
}

// Run runs command once per target and prints every outcome as it completes.
// Cancelling ctx kills running processes; they are reported as cancelled.
func (e *Engine) Run(ctx context.Context, targets []string, command []string) (aggregator.Summary, error) {
	if len(command) == 0 || command[0] == "" {
		return aggregator.Summary{}, ErrNoCommand
	}

	deadline := e.cfg.EffectiveTimeout()
	tasks := make([]task.Task, len(targets))

	for i, target := range targets {
		tasks[i] = task.New(target, command[0], command[1:], deadline, e.cfg.Mode)
		e.reporter.Report(progress.Event{Target: target, Type: progress.EventQueued, Timestamp: time.Now()})
	}

	ctxlog.Info(ctx, "running command",
		"command", command,
		e.cfg.Mode.Noun(), len(tasks),
		"concurrency", e.pool.Limit(),
		"timeout", deadline)

	agg := aggregator.New(e.out, e.errOut, aggregator.Options{
		ShowHeader:    e.cfg.ShowHeader,
		NonZero:       e.cfg.NonZero,
		ProgressEvery: e.cfg.ProgressEvery,
		Color:         e.cfg.Color,
		Total:         len(tasks),
	})

	outcomes := e.pool.Run(ctx, tasks, e.runTask)
	reported := make(chan task.Outcome)

	go func() {
		defer close(reported)

		for o := range outcomes {
			e.reportOutcome(o)
			reported <- o
		}
	}()

	summary := agg.Consume(ctx, reported)

	e.waitReaped(ctx)

	ctxlog.Info(ctx, "run finished",
		"completed", summary.Completed,
		"failed", summary.Counters.Failed,
		"timedOut", summary.TimedOut,
		"nonZero", summary.NonZero,
		"peakConcurrency", e.pool.Peak(),
		"elapsed", summary.Elapsed.Round(time.Millisecond))

	return summary, nil
}

func (e *Engine) runTask(ctx context.Context, t task.Task) task.Outcome {
	e.reporter.Report(progress.Event{Target: t.Target, Type: progress.EventStarted, Timestamp: time.Now()})

	path, args, dir := e.prep.Argv(t)

	h, err := process.Spawn(ctx, process.Spec{
		Target: t.Target,
		Path:   path,
		Args:   args,
		Dir:    dir,
		Env:    e.env,
		OnStdout: func(line string) {
			e.reporter.Report(progress.Event{
				Target:    t.Target,
				Type:      progress.EventOutput,
				Message:   line,
				Timestamp: time.Now(),
			})
		},
	})
	if err != nil {
		var te *task.Error
		if errors.As(err, &te) {
			return task.Fail(te)
		}

		return task.Fail(task.NewError(t.Target, task.KindSpawn, err, "Spawn failed in '%s'", t.Target))
	}

	e.mu.Lock()
	e.handles = append(e.handles, h)
	e.mu.Unlock()

	return process.Await(ctx, h, t, process.AwaitOptions{OutputGrace: e.cfg.OutputGrace})
}

func (e *Engine) reportOutcome(o task.Outcome) {
	ev := progress.Event{Target: o.Target(), Timestamp: time.Now()}

	switch {
	case o.Result != nil:
		ev.Type = progress.EventCompleted
		ev.ExitCode = o.Result.Code()
	case o.Error == nil:
		return
	case o.Error.Kind == task.KindTimeout:
		ev.Type = progress.EventTimedOut
		ev.Err = o.Error
	default:
		ev.Type = progress.EventFailed
		ev.Err = o.Error
	}

	e.reporter.Report(ev)
}

// waitReaped waits until every started process has been reaped, or until reapTimeout.
func (e *Engine) waitReaped(ctx context.Context) {
	e.mu.Lock()
	handles := e.handles
	e.handles = nil
	e.mu.Unlock()

	timer := time.NewTimer(reapTimeout)
	defer timer.Stop()

	for _, h := range handles {
		select {
		case <-h.Reaped():
		case <-timer.C:
			ctxlog.Warn(ctx, "processes still running after the run finished", "pid", h.Pid())
			return
		}
	}
}
