// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package task

import (
	"errors"
	"sync/atomic"
)

// ErrAlreadyDelivered is the panic value when a Reply is delivered twice.
var ErrAlreadyDelivered = errors.New("outcome already delivered")

// Reply is a single assignment slot for a task outcome.
// Delivering twice is a programming error and panics.
type Reply struct {
	ch   chan Outcome
	sent atomic.Bool
}

// NewReply creates an empty reply slot.
func NewReply() *Reply {
	return &Reply{ch: make(chan Outcome, 1)}
}

// Deliver stores the outcome. It never blocks.
func (r *Reply) Deliver(o Outcome) {
	if !r.sent.CompareAndSwap(false, true) {
		panic(ErrAlreadyDelivered)
	}

	r.ch <- o
	close(r.ch)
}

// Delivered reports whether an outcome has been stored.
func (r *Reply) Delivered() bool {
	return r.sent.Load()
}

// Wait returns a channel that yields the outcome once and is then closed.
func (r *Reply) Wait() <-chan Outcome {
	return r.ch
}
