// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmd contains the command-line interface (CLI) for the module.
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/matt-FFFFFF/execute/internal/aggregator"
	"github.com/matt-FFFFFF/execute/internal/color"
	"github.com/matt-FFFFFF/execute/internal/ctxlog"
	"github.com/matt-FFFFFF/execute/internal/engine"
	"github.com/matt-FFFFFF/execute/internal/prepare"
	"github.com/matt-FFFFFF/execute/internal/progress"
	"github.com/matt-FFFFFF/execute/internal/settings"
	"github.com/matt-FFFFFF/execute/internal/signalbroker"
	"github.com/matt-FFFFFF/execute/internal/targets"
	"github.com/matt-FFFFFF/execute/internal/tui"
	"github.com/urfave/cli/v3"
)

const (
	configFlag      = "config"
	concurrencyFlag = "max-concurrent-tasks"
	timeoutFlag     = "timeout"
	filesFlag       = "files"
	noHeaderFlag    = "no-header"
	noColorFlag     = "no-color"
	nonZeroFlag     = "non-zero"
	settingsFlag    = "settings"
	tuiFlag         = "tui"
	logJSONFlag     = "log-json"
)

var (
	// ErrNoCommand is returned when no command is given after the flags.
	ErrNoCommand = errors.New("no command given, use: execute [flags] -- <command> [args...]")
	// ErrNoTargets is returned when the target list does not name a single target.
	ErrNoTargets = errors.New("target list is empty")
	// ErrTasksFailed is returned when the non-zero policy is error and a task failed.
	ErrTasksFailed = errors.New("one or more targets failed")
	// ErrInterrupted is returned when the run was cancelled by a signal.
	ErrInterrupted = errors.New("run interrupted")
)

// NewRootCmd creates the root command for the CLI.
// A new command is created for each run because urfave/cli keeps parsed flag state on it.
func NewRootCmd() *cli.Command {
	return &cli.Command{
		Name:      "execute",
		Usage:     "run a command in every directory, or on every file, of a target list",
		UsageText: "execute [flags] -- <command> [args...]",
		Description: `Execute runs the same command once per target, with a bounded number of
commands running at once. Targets are read from a target list, one per line.
Lines may use ~, $VARS, brace expansion and globs, and a list may be fetched
with Hashicorp's go-getter syntax (see https://github.com/hashicorp/go-getter).

In directory mode (the default) the command runs with each target as its
working directory. With --files the target is appended as the last argument.

Results are printed to stdout as each target completes. Errors, timeouts and
progress go to stderr.`,
		Version:   fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
		Authors: []any{
			"Matt White (matt-FFFFFF)",
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage: "Target list to read. Relative names are looked up in ~/" + targets.ConfigDir + ". " +
					"Supports Hashicorp's go-getter syntax for fetching lists from other sources.",
				TakesFile: true,
				OnlyOnce:  true,
				Sources:   cli.EnvVars("EXECUTE_CONFIG"),
			},
			&cli.IntFlag{
				Name:     concurrencyFlag,
				Aliases:  []string{"w"},
				Usage:    "Maximum number of commands running at once",
				Value:    settings.DefaultConcurrency,
				OnlyOnce: true,
				Sources:  cli.EnvVars("EXECUTE_MAX_CONCURRENT_TASKS"),
			},
			&cli.StringFlag{
				Name:    timeoutFlag,
				Aliases: []string{"t"},
				Usage: "Per target time limit, in seconds, as a duration such as 1m30s, or none. " +
					"Defaults to " + settings.DefaultDirectoryTimeout.String() + " for directories and none for files.",
				OnlyOnce: true,
				Sources:  cli.EnvVars("EXECUTE_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:     filesFlag,
				Usage:    "Targets are files, appended to the command as the last argument",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     noHeaderFlag,
				Usage:    "Do not print a header before each result, print the number of remaining targets instead",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     noColorFlag,
				Usage:    "Do not add colour flags to known commands or colour the output markers",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     nonZeroFlag,
				Usage:    "How non-zero exit codes are reported: annotate or error",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:      settingsFlag,
				Usage:     "YAML or HCL settings file",
				TakesFile: true,
				OnlyOnce:  true,
				Sources:   cli.EnvVars("EXECUTE_SETTINGS"),
			},
			&cli.BoolFlag{
				Name:     tuiFlag,
				Usage:    "Show live progress while running, results are printed when the run ends",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     logJSONFlag,
				Usage:    "Write logs to stderr as JSON",
				OnlyOnce: true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool(logJSONFlag) {
		ctx = ctxlog.New(ctx, ctxlog.JSONLogger)
	}

	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	command := cmd.Args().Slice()
	if len(command) == 0 {
		return ErrNoCommand
	}

	cfg, err := buildConfig(ctx, cmd)
	if err != nil {
		return err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		logger.Debug("home directory unknown", "error", err)
	}

	list, err := targets.Load(ctx, cfg.TargetList, home)
	if err != nil {
		if len(list) == 0 {
			return err
		}

		logger.Warn("some target list entries were skipped", "error", err)
	}

	if len(list) == 0 {
		return fmt.Errorf("%w: %s", ErrNoTargets, cfg.TargetList)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	summary, err := run(runCtx, cmd, cfg, list, command, cancel)
	if err != nil {
		return err
	}

	if runCtx.Err() != nil && ctx.Err() == nil {
		return ErrInterrupted
	}

	if cfg.NonZero == aggregator.NonZeroError && summary.Failed() {
		return fmt.Errorf("%w: %d of %d", ErrTasksFailed, summary.Counters.Failed, summary.Total)
	}

	return nil
}

type runResult struct {
	summary aggregator.Summary
	err     error
}

func run(
	ctx context.Context, cmd *cli.Command, cfg *settings.Config, list, command []string, cancel context.CancelFunc,
) (aggregator.Summary, error) {
	prep := prepare.New(cfg.Rules, cfg.Color)

	if !cmd.Bool(tuiFlag) {
		e := engine.New(cfg, prep, engine.WithOutput(cmd.Writer, cmd.ErrWriter))
		stopSignals := watchSignals(ctx, e, cancel)

		defer stopSignals()

		return e.Run(ctx, list, command)
	}

	// The view owns the terminal, everything else is written once it has closed.
	var outBuf, errBuf, logBuf bytes.Buffer

	title := fmt.Sprintf("%s in %d %s", strings.Join(command, " "), len(list), cfg.Mode.Noun())
	runner := tui.NewRunner(ctx, title, len(list))
	e := engine.New(cfg, prep,
		engine.WithOutput(&outBuf, &errBuf),
		engine.WithReporter(runner.Reporter()))

	stopSignals := watchSignals(ctx, e, cancel)
	defer stopSignals()

	viewCtx := ctxlog.NewWriter(ctx, &logBuf)

	res, viewErr := tui.Run(viewCtx, runner, e.Stop, func(ctx context.Context, _ progress.Reporter) runResult {
		s, err := e.Run(ctx, list, command)
		return runResult{summary: s, err: err}
	})

	for _, w := range []struct {
		dst io.Writer
		src *bytes.Buffer
	}{
		{cmd.ErrWriter, &logBuf},
		{cmd.Writer, &outBuf},
		{cmd.ErrWriter, &errBuf},
	} {
		if _, err := w.src.WriteTo(w.dst); err != nil {
			ctxlog.Warn(ctx, "could not write buffered output", "error", err)
		}
	}

	if viewErr != nil {
		ctxlog.Error(ctx, "live view failed", "error", viewErr)
	}

	return res.summary, res.err
}

// watchSignals stops admitting targets on the first interrupt and cancels the run on the second.
// The returned function releases the signal channel.
func watchSignals(ctx context.Context, e *engine.Engine, cancel context.CancelFunc) func() {
	sigCh := signalbroker.New(ctx)
	go signalbroker.Watch(ctx, sigCh, e.Stop, cancel)

	return func() {
		signalbroker.Stop(sigCh)
	}
}

// buildConfig layers the defaults, the settings file and the flags, in that order.
func buildConfig(ctx context.Context, cmd *cli.Command) (*settings.Config, error) {
	cfg := settings.Default()

	if path := cmd.String(settingsFlag); path != "" {
		if err := settings.LoadFile(ctx, cfg, path); err != nil {
			return nil, err
		}
	}

	if cmd.IsSet(configFlag) {
		cfg.TargetList = cmd.String(configFlag)
	}

	if cmd.IsSet(concurrencyFlag) {
		cfg.Concurrency = cmd.Int(concurrencyFlag)
	}

	if cmd.IsSet(filesFlag) {
		cfg.Mode = settings.ModeFromFlag(cmd.Bool(filesFlag))
	}

	if cmd.IsSet(timeoutFlag) {
		d, err := settings.ParseTimeout(cmd.String(timeoutFlag))
		if err != nil {
			return nil, errors.Join(settings.ErrInvalidConfig, err)
		}

		cfg.SetTimeout(d)
	}

	if cmd.Bool(noHeaderFlag) {
		cfg.ShowHeader = false
	}

	if cmd.Bool(noColorFlag) || os.Getenv(color.NoColor) != "" {
		cfg.Color = false
	}

	if cmd.IsSet(nonZeroFlag) {
		p, err := aggregator.ParsePolicy(cmd.String(nonZeroFlag))
		if err != nil {
			return nil, errors.Join(settings.ErrInvalidConfig, err)
		}

		cfg.NonZero = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctxlog.Debug(ctx, "configuration",
		"targetList", cfg.TargetList,
		"concurrency", cfg.Concurrency,
		"mode", cfg.Mode.String(),
		"timeout", cfg.EffectiveTimeout(),
		"nonZero", cfg.NonZero.String())

	return cfg, nil
}
