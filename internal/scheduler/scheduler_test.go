// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matt-FFFFFF/execute/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func makeTasks(n int) []task.Task {
	tasks := make([]task.Task, n)
	for i := range n {
		tasks[i] = task.New(fmt.Sprintf("t%d", i), "true", nil, 0, task.ModeDirectory)
	}

	return tasks
}

func collect(ch <-chan task.Outcome) []task.Outcome {
	var outs []task.Outcome
	for o := range ch {
		outs = append(outs, o)
	}

	return outs
}

func ok(t task.Task) task.Outcome {
	return task.Ok(&task.Result{Target: t.Target, ExitCode: task.IntPtr(0)})
}

func TestNew_CoercesLimit(t *testing.T) {
	assert.Equal(t, 1, New(0).Limit())
	assert.Equal(t, 1, New(-5).Limit())
	assert.Equal(t, 3, New(3).Limit())
}

func TestRun_ExactlyOneOutcomePerTask(t *testing.T) {
	defer goleak.VerifyNone(t)

	tasks := makeTasks(50)
	outs := collect(New(4).Run(t.Context(), tasks, func(_ context.Context, tk task.Task) task.Outcome {
		time.Sleep(time.Millisecond)
		return ok(tk)
	}))

	require.Len(t, outs, len(tasks))

	seen := map[string]int{}
	for _, o := range outs {
		seen[o.Target()]++
	}

	for _, tk := range tasks {
		assert.Equal(t, 1, seen[tk.Target], tk.Target)
	}
}

func TestRun_ConcurrencyNeverExceedsLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, limit := range []int{1, 2, 4, 8} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			var inFlight, maxSeen atomic.Int64

			pool := New(limit)
			outs := collect(pool.Run(t.Context(), makeTasks(20), func(_ context.Context, tk task.Task) task.Outcome {
				n := inFlight.Add(1)
				defer inFlight.Add(-1)

				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}

				time.Sleep(20 * time.Millisecond)

				return ok(tk)
			}))

			require.Len(t, outs, 20)
			assert.LessOrEqual(t, maxSeen.Load(), int64(limit))
			assert.LessOrEqual(t, pool.Peak(), limit)
			assert.Equal(t, limit, pool.Peak(), "enough tasks to fill every slot")
			assert.Zero(t, pool.Running())
		})
	}
}

func TestRun_CompletionOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	tasks := makeTasks(3)
	delays := map[string]time.Duration{
		"t0": 300 * time.Millisecond,
		"t1": 10 * time.Millisecond,
		"t2": 150 * time.Millisecond,
	}

	outs := collect(New(3).Run(t.Context(), tasks, func(_ context.Context, tk task.Task) task.Outcome {
		time.Sleep(delays[tk.Target])
		return ok(tk)
	}))

	require.Len(t, outs, 3)
	assert.Equal(t, "t1", outs[0].Target())
	assert.Equal(t, "t2", outs[1].Target())
	assert.Equal(t, "t0", outs[2].Target())
}

func TestRun_NoTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	outs := collect(New(2).Run(t.Context(), nil, func(_ context.Context, tk task.Task) task.Outcome {
		return ok(tk)
	}))
	assert.Empty(t, outs)
}

func TestRun_PanicBecomesWaitError(t *testing.T) {
	defer goleak.VerifyNone(t)

	tasks := makeTasks(3)
	pool := New(1)

	outs := collect(pool.Run(t.Context(), tasks, func(_ context.Context, tk task.Task) task.Outcome {
		if tk.Target == "t1" {
			panic("boom")
		}

		return ok(tk)
	}))

	require.Len(t, outs, 3)

	var failed int

	for _, o := range outs {
		if o.Error == nil {
			continue
		}

		failed++

		assert.Equal(t, "t1", o.Error.Target)
		assert.Equal(t, task.KindWait, o.Error.Kind)
		require.ErrorIs(t, o.Error, ErrPanic)
	}

	assert.Equal(t, 1, failed)
	assert.Zero(t, pool.Running(), "permit released after panic")
}

func TestRun_StopCancelsQueuedTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := New(1)
	started := make(chan struct{})
	release := make(chan struct{})

	var calls atomic.Int64

	ch := pool.Run(t.Context(), makeTasks(5), func(ctx context.Context, tk task.Task) task.Outcome {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}

		return ok(tk)
	})

	<-started
	pool.Stop()
	pool.Stop()

	// Give the queued tasks time to observe the stop before the slot frees up.
	time.Sleep(50 * time.Millisecond)
	close(release)

	outs := collect(ch)
	require.Len(t, outs, 5)

	var results, cancelled int

	for _, o := range outs {
		switch {
		case o.Result != nil:
			results++
		case o.Error.Kind == task.KindCancelled:
			cancelled++

			require.ErrorIs(t, o.Error, ErrStopped)
			require.ErrorIs(t, o.Error, task.ErrCancelled)
		}
	}

	assert.Equal(t, 1, results, "the running task finishes normally")
	assert.Equal(t, 4, cancelled)
	assert.Equal(t, int64(1), calls.Load())
}

func TestRun_ContextCancelReachesRunningAndQueued(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(t.Context())
	pool := New(2)

	ch := pool.Run(ctx, makeTasks(6), func(ctx context.Context, tk task.Task) task.Outcome {
		<-ctx.Done()
		return task.Fail(task.NewError(tk.Target, task.KindCancelled, ctx.Err(), "Cancelled in '%s'", tk.Target))
	})

	require.Eventually(t, func() bool { return pool.Running() == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	outs := collect(ch)
	require.Len(t, outs, 6)

	for _, o := range outs {
		require.NotNil(t, o.Error)
		assert.Equal(t, task.KindCancelled, o.Error.Kind)
		require.ErrorIs(t, o.Error, context.Canceled)
	}
}

func TestPermit_ReleaseIsIdempotent(t *testing.T) {
	pool := New(1)

	p, err := pool.acquire(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Running())

	p.Release()
	p.Release()
	assert.Zero(t, pool.Running())

	p2, err := pool.acquire(t.Context())
	require.NoError(t, err)
	p2.Release()
}
