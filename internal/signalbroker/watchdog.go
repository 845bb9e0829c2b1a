// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/execute/internal/ctxlog"
)

// Watch monitors the signal channel until ctx is done or the channel is closed.
// The first signal of a type calls drain, which should stop new work from starting.
// The second signal of the same type cancels the context.
func Watch(ctx context.Context, sigCh <-chan os.Signal, drain func(), cancel context.CancelFunc) {
	sigMap := make(map[os.Signal]struct{})
	drained := false

	for {
		select {
		case <-ctx.Done():
			return

		case sig, ok := <-sigCh:
			if !ok {
				return
			}

			if _, seen := sigMap[sig]; seen {
				ctxlog.Logger(ctx).Warn("watchdog", "detail", "received second signal of type, killing running tasks", "signal", sig.String())
				cancel()

				return
			}

			sigMap[sig] = struct{}{}

			if drained {
				ctxlog.Logger(ctx).Info("watchdog", "detail", "received first signal of type, already draining", "signal", sig.String())
				continue
			}

			ctxlog.Logger(ctx).Warn("watchdog",
				"detail", "received first signal of type, waiting for running tasks, send again to kill them",
				"signal", sig.String())

			drained = true

			if drain != nil {
				drain()
			}
		}
	}
}
