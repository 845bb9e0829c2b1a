// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package prepare builds the final argument vector and working directory for a task.
package prepare

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/matt-FFFFFF/execute/internal/settings"
	"github.com/matt-FFFFFF/execute/internal/task"
)

// Preparer applies command rules to tasks. It holds no mutable state.
type Preparer struct {
	rules    map[string]settings.Rule
	useColor bool
}

// New creates a preparer. Rules are matched on the base name of the command;
// with duplicate commands the last rule wins.
func New(rules []settings.Rule, useColor bool) *Preparer {
	p := &Preparer{
		rules:    make(map[string]settings.Rule, len(rules)),
		useColor: useColor,
	}

	for _, r := range rules {
		p.rules[r.Command] = r
	}

	return p
}

// Argv returns the executable, its arguments and the working directory for t.
// Rule arguments are inserted before the task's own arguments. In file mode the
// target is appended as the last argument, in directory mode it becomes the
// working directory.
func (p *Preparer) Argv(t task.Task) (string, []string, string) {
	var injected []string

	if r, ok := p.rules[commandName(t.Command)]; ok {
		if p.useColor {
			injected = append(injected, r.ColorArgs...)
		}

		injected = append(injected, r.Args...)
	}

	args := slices.Concat(injected, t.Args)

	if t.Mode == task.ModeFile {
		return t.Command, append(args, t.Target), ""
	}

	return t.Command, args, t.Target
}

// commandName returns the executable name without directory or ".exe" suffix.
func commandName(cmd string) string {
	name := filepath.Base(cmd)
	return strings.TrimSuffix(name, ".exe")
}
