// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package process

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/matt-FFFFFF/execute/internal/ctxlog"
	"github.com/matt-FFFFFF/execute/internal/linebuf"
	"github.com/matt-FFFFFF/execute/internal/task"
)

const (
	// outputLinger is how long the pipes stay open after the child has exited,
	// so that grandchildren still holding them cannot keep the readers alive forever.
	outputLinger = 2 * time.Second
)

var (
	// ErrFailedToCreatePipe is returned when the operating system pipe could not be created.
	ErrFailedToCreatePipe = errors.New("failed to create pipe")
	// ErrNotExited is returned by State when the process is still running.
	ErrNotExited = errors.New("process has not exited")
)

// Spec describes the child to start.
type Spec struct {
	Target   string            // Used in error messages and logs.
	Path     string            // Executable name or path. Names without a separator are looked up in PATH.
	Args     []string          // Arguments, not including the executable.
	Dir      string            // Working directory, empty for the current one.
	Env      []string          // Extra KEY=value pairs appended to the current environment.
	OnStdout func(line string) // Called for every stdout line, may be nil.
	MaxBytes int               // Output kept per stream, defaults to linebuf.DefaultMaxBytes.
	Logger   *slog.Logger      // Defaults to the context logger.
}

// Handle is a running or finished child process.
type Handle struct {
	ps       *os.Process
	stdout   *linebuf.Collector
	stderr   *linebuf.Collector
	pipes    []*os.File
	maxBytes int
	started  time.Time
	logger   *slog.Logger

	exited  chan struct{}
	reaped  chan struct{}
	release sync.Once

	mu      sync.Mutex
	state   *os.ProcessState
	waitErr error
}

// Spawn starts the child described by spec.
// The returned error is a *task.Error of kind task.KindSpawn.
func Spawn(ctx context.Context, spec Spec) (*Handle, error) {
	logger := spec.Logger
	if logger == nil {
		logger = ctxlog.Logger(ctx)
	}

	logger = logger.With("target", spec.Target)

	spawnErr := func(err error) error {
		return task.NewError(spec.Target, task.KindSpawn, err,
			"Spawn failed in '%s'. Cmd: %q, Args: %v", spec.Target, spec.Path, spec.Args)
	}

	path, err := exec.LookPath(spec.Path)
	if err != nil {
		return nil, spawnErr(err)
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, spawnErr(err)
	}
	defer devNull.Close() //nolint:errcheck

	rOut, wOut, err := os.Pipe()
	if err != nil {
		return nil, spawnErr(errors.Join(ErrFailedToCreatePipe, err))
	}

	rErr, wErr, err := os.Pipe()
	if err != nil {
		closeAll(rOut, wOut)
		return nil, spawnErr(errors.Join(ErrFailedToCreatePipe, err))
	}

	env := slices.Concat(os.Environ(), spec.Env)
	argv := slices.Concat([]string{filepath.Base(path)}, spec.Args)

	logger.Debug("starting process", "path", path, "cwd", spec.Dir, "args", spec.Args)

	ps, err := os.StartProcess(path, argv, &os.ProcAttr{
		Dir:   spec.Dir,
		Env:   env,
		Files: []*os.File{devNull, wOut, wErr},
		Sys:   sysProcAttr(),
	})

	// The child holds its own copies of the write ends.
	closeAll(wOut, wErr)

	if err != nil {
		closeAll(rOut, rErr)
		return nil, spawnErr(err)
	}

	logger.Debug("process started", "pid", ps.Pid)

	maxBytes := spec.MaxBytes
	if maxBytes <= 0 {
		maxBytes = linebuf.DefaultMaxBytes
	}

	h := &Handle{
		ps:       ps,
		maxBytes: maxBytes,
		pipes:    []*os.File{rOut, rErr},
		started:  time.Now(),
		logger:   logger,
		exited:   make(chan struct{}),
		reaped:   make(chan struct{}),
	}

	h.stdout = linebuf.New(rOut, linebuf.WithMaxBytes(maxBytes), linebuf.WithLineHook(spec.OnStdout))
	h.stderr = linebuf.New(rErr, linebuf.WithMaxBytes(maxBytes))

	go h.wait()

	return h, nil
}

func (h *Handle) wait() {
	defer close(h.reaped)

	state, err := h.ps.Wait()

	h.mu.Lock()
	h.state = state
	h.waitErr = err
	h.mu.Unlock()

	close(h.exited)

	h.logger.Debug("process exited", "pid", h.ps.Pid, "state", state)

	t := time.NewTimer(outputLinger)
	defer t.Stop()

	for _, c := range []*linebuf.Collector{h.stdout, h.stderr} {
		select {
		case <-c.Done():
		case <-t.C:
			h.Release()
			return
		}
	}

	h.Release()
}

// Exited is closed once the process has exited and its status is available.
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}

// Reaped is closed once the process has exited and both output readers have stopped.
func (h *Handle) Reaped() <-chan struct{} {
	return h.reaped
}

// State returns the exit status. It returns ErrNotExited before Exited is closed.
func (h *Handle) State() (*os.ProcessState, error) {
	select {
	case <-h.exited:
	default:
		return nil, ErrNotExited
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state, nil
}

// WaitErr returns the error reported while waiting for the process, if any.
func (h *Handle) WaitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.waitErr
}

// Stdout returns the collector for the standard output stream.
func (h *Handle) Stdout() *linebuf.Collector {
	return h.stdout
}

// Stderr returns the collector for the standard error stream.
func (h *Handle) Stderr() *linebuf.Collector {
	return h.stderr
}

// Pid returns the operating system process id.
func (h *Handle) Pid() int {
	return h.ps.Pid
}

// Started returns the time the process was started.
func (h *Handle) Started() time.Time {
	return h.started
}

// Terminate sends a kill to the process and, where supported, its process group.
// It does not wait for the process to exit. Failures are logged and otherwise ignored.
func (h *Handle) Terminate() {
	select {
	case <-h.exited:
		h.logger.Debug("process already done", "pid", h.ps.Pid)
		return
	default:
	}

	if err := killTree(h.ps); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			h.logger.Debug("process already done", "pid", h.ps.Pid)
			return
		}

		h.logger.Debug("process kill error", "pid", h.ps.Pid, "error", err)

		return
	}

	h.logger.Debug("process killed", "pid", h.ps.Pid)
}

// Release closes the read ends of the output pipes. Output not read yet is lost.
// It is safe to call more than once.
func (h *Handle) Release() {
	h.release.Do(func() {
		closeAll(h.pipes...)
	})
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
