// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/matt-FFFFFF/execute/internal/ctxlog"
	"github.com/matt-FFFFFF/execute/internal/task"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrStopped is the cause given to queued tasks when admission was stopped.
	ErrStopped = errors.New("admission stopped")
	// ErrPanic is wrapped in the outcome of a task whose function panicked.
	ErrPanic = errors.New("task panicked")
)

// Func runs a single task. It is called at most limit times concurrently.
type Func func(ctx context.Context, t task.Task) task.Outcome

// Pool bounds how many tasks run at once.
type Pool struct {
	limit   int
	sem     *semaphore.Weighted
	running atomic.Int64
	peak    atomic.Int64

	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates a pool that runs at most limit tasks at a time.
// A limit below one is treated as one.
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}

	return &Pool{
		limit:   limit,
		sem:     semaphore.NewWeighted(int64(limit)),
		stopped: make(chan struct{}),
	}
}

// Limit returns the maximum number of concurrently running tasks.
func (p *Pool) Limit() int {
	return p.limit
}

// Running returns the number of tasks currently holding a permit.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Peak returns the highest number of tasks that held a permit at the same time.
func (p *Pool) Peak() int {
	return int(p.peak.Load())
}

// Stop stops admitting tasks. Tasks already running are not affected,
// tasks still waiting for a permit finish with a task.KindCancelled error.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopped)
	})
}

// Run starts every task and returns a channel that yields exactly one outcome per task,
// in the order the tasks finish. The channel is closed after the last outcome.
// Cancelling ctx has the same effect as Stop for waiting tasks and is passed on to fn
// for running ones.
func (p *Pool) Run(ctx context.Context, tasks []task.Task, fn Func) <-chan task.Outcome {
	out := make(chan task.Outcome, len(tasks))
	admitCtx, cancelAdmit := context.WithCancelCause(ctx)

	go func() {
		select {
		case <-p.stopped:
			cancelAdmit(ErrStopped)
		case <-admitCtx.Done():
		}
	}()

	wg := &sync.WaitGroup{}

	for _, t := range tasks {
		wg.Add(1)

		go func(t task.Task) {
			defer wg.Done()

			reply := task.NewReply()
			p.runOne(ctx, admitCtx, t, fn, reply)

			out <- <-reply.Wait()
		}(t)
	}

	go func() {
		wg.Wait()
		cancelAdmit(nil)
		close(out)
	}()

	return out
}

func (p *Pool) runOne(ctx, admitCtx context.Context, t task.Task, fn Func, reply *task.Reply) {
	permit, err := p.acquire(admitCtx)
	if err != nil {
		ctxlog.Debug(ctx, "task not admitted", "target", t.Target, "error", err)
		reply.Deliver(task.Fail(task.NewError(t.Target, task.KindCancelled, err,
			"Cancelled before start in '%s'", t.Target)))

		return
	}

	defer permit.Release()

	defer func() {
		if r := recover(); r != nil {
			ctxlog.Error(ctx, "task panicked", "target", t.Target, "panic", r)

			if !reply.Delivered() {
				reply.Deliver(task.Fail(task.NewError(t.Target, task.KindWait,
					fmt.Errorf("%w: %v", ErrPanic, r), "Wait failed for '%s'", t.Target)))
			}
		}
	}()

	reply.Deliver(fn(ctx, t))
}

func (p *Pool) acquire(ctx context.Context) (*Permit, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, context.Cause(ctx)
	}

	// Acquire may succeed even though ctx is already done.
	if ctx.Err() != nil {
		p.sem.Release(1)
		return nil, context.Cause(ctx)
	}

	n := p.running.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	return &Permit{release: func() {
		p.running.Add(-1)
		p.sem.Release(1)
	}}, nil
}

// Permit is a held concurrency slot.
type Permit struct {
	once    sync.Once
	release func()
}

// Release returns the slot to the pool. Calls after the first are no-ops.
func (p *Permit) Release() {
	p.once.Do(p.release)
}
