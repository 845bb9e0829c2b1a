// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package task

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCopiesArgs(t *testing.T) {
	args := []string{"status", "-s"}
	tk := New("/srv/repo", "git", args, time.Second, ModeDirectory)

	args[0] = "mutated"

	assert.Equal(t, []string{"status", "-s"}, tk.Args)
	assert.Equal(t, time.Second, tk.Deadline)
}

func TestResultCode(t *testing.T) {
	assert.Equal(t, -1, (&Result{}).Code())
	assert.False(t, (&Result{}).Success())
	assert.Equal(t, 3, (&Result{ExitCode: IntPtr(3)}).Code())
	assert.True(t, (&Result{ExitCode: IntPtr(0)}).Success())
}

func TestOutcomeTarget(t *testing.T) {
	assert.Equal(t, "a", Ok(&Result{Target: "a"}).Target())
	assert.Equal(t, "b", Fail(&Error{Target: "b"}).Target())
	assert.Empty(t, Outcome{}.Target())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		cause    error
		sentinel error
	}{
		{"spawn", KindSpawn, os.ErrNotExist, ErrSpawn},
		{"wait", KindWait, errors.New("no child"), ErrWait},
		{"timeout", KindTimeout, nil, ErrTimeout},
		{"cancelled", KindCancelled, nil, ErrCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewError("/srv/repo", tt.kind, tt.cause, "something in '%s'", "/srv/repo")

			require.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.name, tt.kind.String())

			if tt.cause != nil {
				require.ErrorIs(t, err, tt.cause)
				assert.Equal(t, "something in '/srv/repo': "+tt.cause.Error(), err.Error())
			} else {
				assert.Equal(t, "something in '/srv/repo'", err.Error())
			}
		})
	}
}

func TestReplyDeliversOnce(t *testing.T) {
	r := NewReply()
	assert.False(t, r.Delivered())

	r.Deliver(Ok(&Result{Target: "x"}))
	assert.True(t, r.Delivered())

	o, ok := <-r.Wait()
	require.True(t, ok)
	assert.Equal(t, "x", o.Target())

	_, ok = <-r.Wait()
	assert.False(t, ok, "channel is closed after the single outcome")

	assert.PanicsWithValue(t, ErrAlreadyDelivered, func() {
		r.Deliver(Ok(&Result{Target: "x"}))
	})
}

func TestReplyConcurrentDeliverPanicsExactlyOnce(t *testing.T) {
	r := NewReply()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		panics int
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			defer func() {
				if recover() != nil {
					mu.Lock()
					panics++
					mu.Unlock()
				}
			}()

			r.Deliver(Fail(&Error{Target: "y"}))
		}()
	}

	wg.Wait()
	assert.Equal(t, 7, panics)
}

func TestModeStrings(t *testing.T) {
	assert.Equal(t, "directories", ModeDirectory.String())
	assert.Equal(t, "files", ModeFile.String())
	assert.Equal(t, "repos", ModeDirectory.Noun())
	assert.Equal(t, "files", ModeFile.Noun())
}
