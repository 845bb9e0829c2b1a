// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package linebuf

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync"
)

const (
	// DefaultMaxBytes caps the output kept per stream.
	DefaultMaxBytes = 8 * 1024 * 1024 // 8MB
	readerSize      = 64 * 1024
	maxLineLength   = readerSize
)

// State tells a caller of Drain whether more output may follow.
type State int

const (
	// StateOpen means no more data is available yet, but the stream is still open.
	StateOpen State = iota
	// StateClosed means the stream has ended and everything has been drained.
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == StateClosed {
		return "closed"
	}

	return "open"
}

// Collector reads lines from a stream in the background and buffers them
// until they are drained. It is safe for concurrent use.
type Collector struct {
	mu         sync.Mutex
	pending    []string
	lastLine   string
	size       int
	maxBytes   int
	overflowed bool
	closed     bool
	err        error
	onLine     func(string)
	done       chan struct{}
}

// Option configures a Collector.
type Option func(*Collector)

// WithLineHook calls fn for every complete line, outside the collector's lock.
func WithLineHook(fn func(line string)) Option {
	return func(c *Collector) {
		c.onLine = fn
	}
}

// WithMaxBytes sets how many bytes of output are kept. Further output is read and discarded.
func WithMaxBytes(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// New starts collecting lines from r.
func New(r io.Reader, opts ...Option) *Collector {
	c := &Collector{
		maxBytes: DefaultMaxBytes,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.read(r)

	return c
}

func (c *Collector) read(r io.Reader) {
	defer close(c.done)

	br := bufio.NewReaderSize(r, readerSize)
	partial := strings.Builder{}

	for {
		chunk, isPrefix, err := br.ReadLine()
		if len(chunk) > 0 {
			partial.Write(chunk)
		}

		switch {
		case err != nil:
			if partial.Len() > 0 {
				c.push(partial.String())
			}

			c.finish(err)

			return
		case isPrefix && partial.Len() < maxLineLength:
			continue
		}

		c.push(partial.String())
		partial.Reset()
	}
}

func (c *Collector) push(line string) {
	c.mu.Lock()

	if c.overflowed || c.size+len(line)+1 > c.maxBytes {
		c.overflowed = true
		c.mu.Unlock()

		return
	}

	c.size += len(line) + 1
	c.pending = append(c.pending, line)
	c.lastLine = line
	hook := c.onLine
	c.mu.Unlock()

	if hook != nil {
		hook(line)
	}
}

func (c *Collector) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		c.err = err
	}

	c.closed = true
}

// Drain returns the lines buffered since the last call without blocking.
// StateClosed is returned once the stream has ended and nothing is left.
func (c *Collector) Drain() ([]string, State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := c.pending
	c.pending = nil

	if c.closed {
		return lines, StateClosed
	}

	return lines, StateOpen
}

// Done is closed when the stream has ended.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

// LastLine returns the last complete line read so far.
// If maxLength > 3, longer lines are truncated and end in "...".
func (c *Collector) LastLine(maxLength int) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := c.lastLine
	if maxLength > 3 && len(result) > maxLength {
		result = result[:maxLength-3] + "..."
	}

	return result
}

// Overflowed reports whether output was discarded because of the size cap.
func (c *Collector) Overflowed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.overflowed
}

// Err returns the read error that ended the stream, if it was not EOF.
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// Join concatenates drained lines the way they are displayed.
func Join(lines []string) string {
	return strings.Join(lines, "\n")
}
