// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package aggregator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/matt-FFFFFF/execute/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(target string, code int, stdout, stderr string) task.Outcome {
	return task.Ok(&task.Result{Target: target, ExitCode: task.IntPtr(code), Stdout: stdout, Stderr: stderr})
}

func feed(outcomes ...task.Outcome) <-chan task.Outcome {
	ch := make(chan task.Outcome, len(outcomes))
	for _, o := range outcomes {
		ch <- o
	}

	close(ch)

	return ch
}

func TestConsume_ResultFormats(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		outcome task.Outcome
		want    string
	}{
		{
			name:    "success with header",
			opts:    Options{ShowHeader: true},
			outcome: result("/r/a", 0, "hello", ""),
			want:    "---\n'/r/a'\nhello\n",
		},
		{
			name:    "non-zero with header",
			opts:    Options{ShowHeader: true},
			outcome: result("/r/b", 2, "", ""),
			want:    "---\n[-] Non-zero 2: '/r/b'\n\n",
		},
		{
			name:    "stderr block",
			opts:    Options{ShowHeader: true},
			outcome: result("/r/c", 0, "out", "err"),
			want:    "---\n'/r/c'\nout\n[.] stderr:\nerr\n",
		},
		{
			name:    "no header",
			opts:    Options{},
			outcome: result("/r/d", 1, "out", ""),
			want:    "out\n",
		},
		{
			name:    "killed by signal",
			opts:    Options{ShowHeader: true},
			outcome: task.Ok(&task.Result{Target: "/r/e"}),
			want:    "---\n[-] Killed by signal: '/r/e'\n\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			New(out, errOut, tc.opts).Consume(t.Context(), feed(tc.outcome))

			assert.Equal(t, tc.want, out.String())
			assert.Empty(t, errOut.String())
		})
	}
}

func TestConsume_ErrorsGoToErrOut(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}

	spawn := task.NewError("/r/a", task.KindSpawn, errors.New("no such file"),
		"Spawn failed in '/r/a'. Cmd: %q, Args: %v", "nope", []string{"x"})

	timeout := task.NewError("/r/b", task.KindTimeout, nil, "Timed out in '/r/b' after 3s.")
	timeout.Stdout = "partial"
	timeout.Stderr = "warn"

	sum := New(out, errOut, Options{ShowHeader: true, Total: 2}).
		Consume(t.Context(), feed(task.Fail(spawn), task.Fail(timeout)))

	assert.Empty(t, out.String())
	assert.Equal(t,
		"---\n! Spawn failed in '/r/a'. Cmd: \"nope\", Args: [x]: no such file\n"+
			"---\n! Timed out in '/r/b' after 3s.\npartial\n[.] stderr:\nwarn\n",
		errOut.String())

	assert.Equal(t, 2, sum.Completed)
	assert.Equal(t, 2, sum.Counters.Failed)
	assert.Equal(t, 1, sum.TimedOut)
	assert.True(t, sum.Failed())
}

func TestConsume_CompletionOrderPreserved(t *testing.T) {
	out := &bytes.Buffer{}

	New(out, &bytes.Buffer{}, Options{ShowHeader: true}).Consume(t.Context(), feed(
		result("c", 0, "3", ""),
		result("a", 0, "1", ""),
		result("b", 0, "2", ""),
	))

	assert.Equal(t, "---\n'c'\n3\n---\n'a'\n1\n---\n'b'\n2\n", out.String())
}

func TestConsume_NonZeroPolicy(t *testing.T) {
	t.Run("annotate", func(t *testing.T) {
		errOut := &bytes.Buffer{}
		sum := New(&bytes.Buffer{}, errOut, Options{ShowHeader: true}).
			Consume(t.Context(), feed(result("x", 1, "", ""), result("y", 0, "", "")))

		assert.Empty(t, errOut.String())
		assert.Equal(t, 1, sum.NonZero)
		assert.False(t, sum.Failed())
	})

	t.Run("error", func(t *testing.T) {
		errOut := &bytes.Buffer{}
		sum := New(&bytes.Buffer{}, errOut, Options{ShowHeader: true, NonZero: NonZeroError}).
			Consume(t.Context(), feed(result("x", 1, "", ""), result("y", 0, "", "")))

		assert.Equal(t, "---\n! Non-zero exit 1 in 'x'\n", errOut.String())
		assert.Equal(t, 1, sum.NonZero)
		assert.True(t, sum.Failed())
	})
}

func TestConsume_ProgressLines(t *testing.T) {
	const total = 25

	outcomes := make([]task.Outcome, total)
	for i := range total {
		outcomes[i] = result(fmt.Sprintf("t%d", i), 0, "", "")
	}

	t.Run("every tenth completion without headers", func(t *testing.T) {
		errOut := &bytes.Buffer{}
		New(&bytes.Buffer{}, errOut, Options{Total: total}).Consume(t.Context(), feed(outcomes...))

		assert.Equal(t, "[INFO]: remaining tasks: 15\n[INFO]: remaining tasks: 5\n", errOut.String())
	})

	t.Run("custom interval", func(t *testing.T) {
		errOut := &bytes.Buffer{}
		New(&bytes.Buffer{}, errOut, Options{Total: total, ProgressEvery: 20}).Consume(t.Context(), feed(outcomes...))

		assert.Equal(t, "[INFO]: remaining tasks: 5\n", errOut.String())
	})

	t.Run("no progress with headers", func(t *testing.T) {
		errOut := &bytes.Buffer{}
		New(&bytes.Buffer{}, errOut, Options{Total: total, ShowHeader: true}).Consume(t.Context(), feed(outcomes...))

		assert.Empty(t, errOut.String())
	})
}

func TestConsume_Color(t *testing.T) {
	out := &bytes.Buffer{}
	New(out, &bytes.Buffer{}, Options{ShowHeader: true, Color: true}).
		Consume(t.Context(), feed(result("x", 1, "body", "")))

	s := out.String()
	assert.Contains(t, s, "\x1b[")
	assert.Contains(t, s, "Non-zero 1:")
	assert.True(t, strings.HasSuffix(s, "body\n"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestConsume_WriteErrorsDoNotStopTheRun(t *testing.T) {
	sum := New(failingWriter{}, failingWriter{}, Options{ShowHeader: true}).
		Consume(context.Background(), feed(result("a", 0, "", ""), result("b", 0, "", "")))

	assert.Equal(t, 2, sum.Completed)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, NonZeroAnnotate, p)

	p, err = ParsePolicy("ERROR")
	require.NoError(t, err)
	assert.Equal(t, NonZeroError, p)
	assert.Equal(t, "error", p.String())

	_, err = ParsePolicy("explode")
	require.ErrorIs(t, err, ErrUnknownPolicy)
}
