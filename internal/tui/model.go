// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/execute/internal/progress"
)

// TargetStatus represents the current state of a target in the TUI.
type TargetStatus int

const (
	StatusPending TargetStatus = iota
	StatusRunning
	StatusSuccess
	StatusNonZero
	StatusFailed
	StatusTimedOut
)

// String returns a string representation of the target status.
func (s TargetStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusNonZero:
		return "non-zero"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Finished reports whether the target will not change state again.
func (s TargetStatus) Finished() bool {
	return s > StatusRunning
}

// TargetNode is the view state of one target.
type TargetNode struct {
	Target     string
	Status     TargetStatus
	StartTime  *time.Time
	EndTime    *time.Time
	LastOutput string
	ErrorMsg   string
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	title    string
	total    int
	nodes    map[string]*TargetNode
	running  []string // targets in the order they started
	counts   map[TargetStatus]int
	width    int
	height   int
	quitting bool
	done     bool
	mutex    sync.RWMutex

	bar     progressbar.Model
	spinner spinner.Model
	styles  *Styles
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title    lipgloss.Style
	Running  lipgloss.Style
	Success  lipgloss.Style
	NonZero  lipgloss.Style
	Failed   lipgloss.Style
	Output   lipgloss.Style
	Counts   lipgloss.Style
	Help     lipgloss.Style
	Duration lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		NonZero: lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Output: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Counts: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			MarginTop(1),
		Duration: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
	}
}

// NewModel creates a new TUI model for a run of total targets.
func NewModel(ctx context.Context, title string, total int) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return &Model{
		ctx:     ctx,
		title:   title,
		total:   total,
		nodes:   make(map[string]*TargetNode, total),
		counts:  make(map[TargetStatus]int),
		bar:     progressbar.New(progressbar.WithDefaultGradient(), progressbar.WithoutPercentage()),
		spinner: s,
		styles:  NewStyles(),
		width:   defaultWidth,
	}
}

func (m *Model) node(target string) *TargetNode {
	n, ok := m.nodes[target]
	if !ok {
		n = &TargetNode{Target: target}
		m.nodes[target] = n
	}

	return n
}

// processProgressEvent applies a progress event to the model.
func (m *Model) processProgressEvent(event progress.Event) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	n := m.node(event.Target)
	if n.Status.Finished() {
		return
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	switch event.Type {
	case progress.EventQueued:
		n.Status = StatusPending

	case progress.EventStarted:
		n.Status = StatusRunning
		n.StartTime = &ts
		m.running = append(m.running, event.Target)

	case progress.EventOutput:
		if line := strings.TrimSpace(event.Message); line != "" {
			n.LastOutput = line
		}

	case progress.EventCompleted:
		if event.ExitCode == 0 {
			m.finish(n, StatusSuccess, ts)
		} else {
			m.finish(n, StatusNonZero, ts)
		}

	case progress.EventFailed:
		m.finish(n, StatusFailed, ts)

		if event.Err != nil {
			n.ErrorMsg = event.Err.Error()
		}

	case progress.EventTimedOut:
		m.finish(n, StatusTimedOut, ts)
	}
}

func (m *Model) finish(n *TargetNode, status TargetStatus, ts time.Time) {
	n.Status = status
	n.EndTime = &ts
	m.counts[status]++
	m.running = slices.DeleteFunc(m.running, func(t string) bool { return t == n.Target })
}

// Finished returns how many targets have reached a final state.
func (m *Model) Finished() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.finished()
}

func (m *Model) finished() int {
	var n int
	for _, c := range m.counts {
		n += c
	}

	return n
}

// Running returns the targets currently running, oldest first.
func (m *Model) Running() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return slices.Clone(m.running)
}

// Count returns how many targets finished with the given status.
func (m *Model) Count(status TargetStatus) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.counts[status]
}

// Node returns a copy of the view state of target.
func (m *Model) Node(target string) (TargetNode, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	n, ok := m.nodes[target]
	if !ok {
		return TargetNode{}, false
	}

	return *n, true
}
