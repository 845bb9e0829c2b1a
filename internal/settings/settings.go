// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package settings

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/execute/internal/aggregator"
	"github.com/matt-FFFFFF/execute/internal/task"
)

const (
	// DefaultConcurrency is the number of targets processed at once.
	DefaultConcurrency = 4
	// DefaultDirectoryTimeout applies in directory mode when no timeout is configured.
	DefaultDirectoryTimeout = 3 * time.Second
	// DefaultTargetList is the target list used when none is given.
	DefaultTargetList = "repo.conf"
	// DefaultOutputGrace bounds the wait for the end of output after a process exits.
	DefaultOutputGrace = 250 * time.Millisecond
)

var (
	// ErrInvalidConcurrency is returned when the concurrency limit is below one.
	ErrInvalidConcurrency = errors.New("max concurrent tasks must be at least 1")
	// ErrInvalidTimeout is returned when a timeout cannot be parsed or is negative.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidMode is returned for an unknown target mode.
	ErrInvalidMode = errors.New("invalid target mode")
	// ErrInvalidProgressEvery is returned when the progress interval is below one.
	ErrInvalidProgressEvery = errors.New("progress interval must be at least 1")
	// ErrInvalidRule is returned for a rule without a command.
	ErrInvalidRule = errors.New("invalid command rule")
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Rule adds arguments to commands with a given base name.
type Rule struct {
	Command   string   `yaml:"command"`    // Base name of the executable, e.g. "grep".
	ColorArgs []string `yaml:"color_args"` // Inserted first, only when colour is enabled.
	Args      []string `yaml:"args"`       // Inserted after the colour arguments.
}

// Config is the complete run configuration.
type Config struct {
	Concurrency   int
	Timeout       *time.Duration // nil selects the default for the mode
	Mode          task.Mode
	ShowHeader    bool
	Color         bool
	NonZero       aggregator.Policy
	ProgressEvery int
	TargetList    string
	OutputGrace   time.Duration
	Rules         []Rule
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Concurrency:   DefaultConcurrency,
		Mode:          task.ModeDirectory,
		ShowHeader:    true,
		Color:         true,
		NonZero:       aggregator.NonZeroAnnotate,
		ProgressEvery: aggregator.DefaultProgressEvery,
		TargetList:    DefaultTargetList,
		OutputGrace:   DefaultOutputGrace,
		Rules:         DefaultRules(),
	}
}

// DefaultRules returns the rules for git and grep.
func DefaultRules() []Rule {
	return []Rule{
		{
			Command:   "git",
			ColorArgs: []string{"-c", "color.status=always"},
		},
		{
			Command:   "grep",
			ColorArgs: []string{"--color=always"},
			Args: []string{
				"--exclude-dir=.git",
				"--exclude-dir=.helm",
				"--exclude-dir=.tox",
				"--exclude-dir=.pulumi",
				"--exclude-dir=.cache",
				"--exclude-dir=.mypy_cache",
				"--exclude-dir=.eggs",
				"--exclude-dir=*.egg-info",
				"--exclude-dir=*venv*",
				"--exclude-dir=_build",
				"--exclude-dir=__pycache__",
				"--exclude-dir=.ruff_cache",
				"--exclude=*.pyc",
				"--exclude-dir=.pytest_cache",
				"--exclude=poetry.lock",
				"--exclude-dir=htmlcov",
				"--exclude=*.html",
				"--exclude=build.*trace",
				"--exclude=Session.vim",
			},
		},
	}
}

// EffectiveTimeout returns the per task deadline. Zero means no limit.
func (c *Config) EffectiveTimeout() time.Duration {
	if c.Timeout != nil {
		return *c.Timeout
	}

	if c.Mode == task.ModeDirectory {
		return DefaultDirectoryTimeout
	}

	return 0
}

// SetTimeout sets an explicit timeout.
func (c *Config) SetTimeout(d time.Duration) {
	c.Timeout = &d
}

// MergeRules adds rules, replacing existing rules for the same command.
func (c *Config) MergeRules(rules ...Rule) {
	for _, r := range rules {
		i := slices.IndexFunc(c.Rules, func(existing Rule) bool { return existing.Command == r.Command })
		if i >= 0 {
			c.Rules[i] = r
			continue
		}

		c.Rules = append(c.Rules, r)
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var result error

	if c.Concurrency < 1 {
		result = multierror.Append(result, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, c.Concurrency))
	}

	if c.Timeout != nil && *c.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: %s is negative", ErrInvalidTimeout, *c.Timeout))
	}

	if c.Mode != task.ModeDirectory && c.Mode != task.ModeFile {
		result = multierror.Append(result, fmt.Errorf("%w: %s", ErrInvalidMode, c.Mode))
	}

	if c.NonZero != aggregator.NonZeroAnnotate && c.NonZero != aggregator.NonZeroError {
		result = multierror.Append(result, fmt.Errorf("%w: %s", aggregator.ErrUnknownPolicy, c.NonZero))
	}

	if c.ProgressEvery < 1 {
		result = multierror.Append(result, fmt.Errorf("%w: got %d", ErrInvalidProgressEvery, c.ProgressEvery))
	}

	if c.OutputGrace < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: output grace %s is negative", ErrInvalidTimeout, c.OutputGrace))
	}

	for i, r := range c.Rules {
		if strings.TrimSpace(r.Command) == "" {
			result = multierror.Append(result, fmt.Errorf("%w: rule %d has no command", ErrInvalidRule, i))
		}
	}

	if result != nil {
		return errors.Join(ErrInvalidConfig, result)
	}

	return nil
}

// ParseTimeout accepts "none", a whole number of seconds or a Go duration such as "1m30s".
// "none" and "0" mean no limit.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if strings.EqualFold(s, "none") {
		return 0, nil
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("%w: %q is negative", ErrInvalidTimeout, s)
		}

		if secs > math.MaxInt64/int64(time.Second) {
			return 0, fmt.Errorf("%w: %q is too large", ErrInvalidTimeout, s)
		}

		return time.Duration(secs) * time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q (want seconds, a duration like 90s, or none)", ErrInvalidTimeout, s)
	}

	if d < 0 {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidTimeout, s)
	}

	return d, nil
}

// ParseMode accepts "directories"/"dirs"/"repos" and "files".
func ParseMode(s string) (task.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "directories", "directory", "dirs", "repos":
		return task.ModeDirectory, nil
	case "files", "file":
		return task.ModeFile, nil
	default:
		return task.ModeDirectory, fmt.Errorf("%w: %q (want directories or files)", ErrInvalidMode, s)
	}
}

// ModeFromFlag is a helper for the command line: files selects task.ModeFile.
func ModeFromFlag(files bool) task.Mode {
	if files {
		return task.ModeFile
	}

	return task.ModeDirectory
}
