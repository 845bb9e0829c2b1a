// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/execute/internal/ctxlog"
	"github.com/matt-FFFFFF/execute/internal/progress"
)

const eventBufferSize = 1024

// ErrViewFailed is returned when the terminal view could not run.
var ErrViewFailed = errors.New("terminal view failed")

// RunFunc performs the run, reporting progress to reporter.
type RunFunc[T any] func(ctx context.Context, reporter progress.Reporter) T

// Runner manages the TUI application and progress event integration.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *progress.ChannelReporter
	mutex    sync.Mutex
}

// NewRunner creates a new TUI runner for total targets.
// Program options are passed to bubbletea, tests use them to disable the terminal.
func NewRunner(ctx context.Context, title string, total int, opts ...tea.ProgramOption) *Runner {
	model := NewModel(ctx, title, total)

	return &Runner{
		model:    model,
		program:  tea.NewProgram(model, opts...),
		reporter: progress.NewChannelReporter(ctx, eventBufferSize),
	}
}

// Model returns the view state.
func (r *Runner) Model() *Model {
	return r.model
}

// Reporter returns the reporter feeding the view.
func (r *Runner) Reporter() progress.Reporter {
	return r.reporter
}

// Run shows the view while fn runs and returns what fn returned.
// When the user leaves the view early, stop is called and Run still waits for fn.
func Run[T any](ctx context.Context, r *Runner, stop func(), fn RunFunc[T]) (T, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.reporter.Listen(progress.ListenerFunc(func(e progress.Event) {
		r.program.Send(EventMsg{Event: e})
	}))

	resultChan := make(chan T, 1)

	go func() {
		defer close(resultChan)

		resultChan <- fn(ctx, r.reporter)
	}()

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	var (
		result  T
		viewErr error
	)

	select {
	case result = <-resultChan:
		// Deliver the remaining events before the final frame.
		r.reporter.Close()
		r.program.Send(DoneMsg{})

		viewErr = <-tuiDone

	case viewErr = <-tuiDone:
		if r.model.Quitting() && stop != nil {
			ctxlog.Info(ctx, "view closed, not starting further targets")
			stop()
		}

		result = <-resultChan

		r.reporter.Close()
	}

	if viewErr != nil {
		return result, errors.Join(ErrViewFailed, viewErr)
	}

	return result, nil
}
