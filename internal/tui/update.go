// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/execute/internal/progress"
)

const (
	defaultWidth     = 80
	minTargetWidth   = 20
	reservedLines    = 8
	ellipsis         = "..."
	durationRounding = 100 * time.Millisecond
)

// EventMsg wraps a progress event for the tea framework.
type EventMsg struct {
	Event progress.Event
}

// DoneMsg indicates that every target has finished.
type DoneMsg struct{}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mutex.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-4, minTargetWidth) //nolint:mnd
		m.mutex.Unlock()

		return m, nil

	case EventMsg:
		m.processProgressEvent(msg.Event)
		return m, nil

	case DoneMsg:
		m.mutex.Lock()
		m.done = true
		m.mutex.Unlock()

		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd

		m.mutex.Lock()
		m.spinner, cmd = m.spinner.Update(msg)
		m.mutex.Unlock()

		return m, cmd
	}

	return m, nil
}

// handleKeyPress processes keyboard input.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// Quitting reports whether the user asked to leave the view.
func (m *Model) Quitting() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.quitting
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.quitting {
		return "Stopping, waiting for running targets...\n"
	}

	var view strings.Builder

	view.WriteString(m.styles.Title.Render(m.title))
	view.WriteString("\n")

	finished := m.finished()

	percent := 1.0
	if m.total > 0 {
		percent = float64(finished) / float64(m.total)
	}

	view.WriteString(m.bar.ViewAs(percent))
	view.WriteString("\n")
	view.WriteString(m.renderCounts(finished))
	view.WriteString("\n\n")

	for i, target := range m.running {
		if m.height > reservedLines && i >= m.height-reservedLines {
			fmt.Fprintf(&view, "  ... and %d more\n", len(m.running)-i)
			break
		}

		m.renderRunning(&view, m.nodes[target])
	}

	if !m.done {
		view.WriteString(m.styles.Help.Render("'q' to stop starting new targets"))
		view.WriteString("\n")
	}

	return view.String()
}

func (m *Model) renderCounts(finished int) string {
	parts := []string{
		fmt.Sprintf("%d/%d done", finished, m.total),
		m.styles.Running.Render(fmt.Sprintf("%d running", len(m.running))),
		m.styles.Success.Render(fmt.Sprintf("%d ok", m.counts[StatusSuccess])),
	}

	if c := m.counts[StatusNonZero]; c > 0 {
		parts = append(parts, m.styles.NonZero.Render(fmt.Sprintf("%d non-zero", c)))
	}

	if c := m.counts[StatusFailed]; c > 0 {
		parts = append(parts, m.styles.Failed.Render(fmt.Sprintf("%d failed", c)))
	}

	if c := m.counts[StatusTimedOut]; c > 0 {
		parts = append(parts, m.styles.Failed.Render(fmt.Sprintf("%d timed out", c)))
	}

	return m.styles.Counts.Render(strings.Join(parts, "  "))
}

// renderRunning renders a running target with its last output line.
func (m *Model) renderRunning(b *strings.Builder, n *TargetNode) {
	if n == nil {
		return
	}

	available := max(m.width-4, minTargetWidth) //nolint:mnd
	leftWidth := available / 2                  //nolint:mnd
	rightWidth := available - leftWidth

	left := truncate(n.Target, leftWidth)
	if n.StartTime != nil {
		elapsed := time.Since(*n.StartTime).Round(durationRounding)
		left = truncate(fmt.Sprintf("%s (%v)", n.Target, elapsed), leftWidth)
	}

	right := truncate(n.LastOutput, rightWidth)

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.styles.Running.Render(left))
	b.WriteString(strings.Repeat(" ", max(leftWidth-len(left), 1)))
	b.WriteString(m.styles.Output.Render(right))
	b.WriteString("\n")
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}

	if width > len(ellipsis) {
		return s[:width-len(ellipsis)] + ellipsis
	}

	return s[:width]
}
