// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package settings

import (
	"context"
	"testing"
	"time"

	"github.com/matt-FFFFFF/execute/internal/aggregator"
	"github.com/matt-FFFFFF/execute/internal/task"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubFs(t *testing.T, files map[string]string) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	stubs := gostub.Stub(&FsFactory, func() afero.Fs {
		return fs
	})
	t.Cleanup(stubs.Reset)
}

func TestLoadFile_YAML(t *testing.T) {
	stubFs(t, map[string]string{
		"/etc/execute.yaml": `
max_concurrent_tasks: 8
timeout: 90s
mode: files
show_header: false
color: false
non_zero: error
progress_every: 5
targets: work.conf
output_grace: 1s
rules:
  - command: rg
    color_args: ["--color=always"]
    args: ["--hidden"]
`,
	})

	cfg := Default()
	require.NoError(t, LoadFile(context.Background(), cfg, "/etc/execute.yaml"))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 90*time.Second, cfg.EffectiveTimeout())
	assert.Equal(t, task.ModeFile, cfg.Mode)
	assert.False(t, cfg.ShowHeader)
	assert.False(t, cfg.Color)
	assert.Equal(t, aggregator.NonZeroError, cfg.NonZero)
	assert.Equal(t, 5, cfg.ProgressEvery)
	assert.Equal(t, "work.conf", cfg.TargetList)
	assert.Equal(t, time.Second, cfg.OutputGrace)
	require.Len(t, cfg.Rules, 3)
	assert.Equal(t, Rule{Command: "rg", ColorArgs: []string{"--color=always"}, Args: []string{"--hidden"}}, cfg.Rules[2])
}

func TestLoadFile_YAMLPartialKeepsDefaults(t *testing.T) {
	stubFs(t, map[string]string{"/s.yml": "max_concurrent_tasks: 2\n"})

	cfg := Default()
	require.NoError(t, LoadFile(context.Background(), cfg, "/s.yml"))

	assert.Equal(t, 2, cfg.Concurrency)
	assert.True(t, cfg.ShowHeader)
	assert.Equal(t, 3*time.Second, cfg.EffectiveTimeout())
	assert.Len(t, cfg.Rules, 2)
}

func TestLoadFile_YAMLUnknownKey(t *testing.T) {
	stubFs(t, map[string]string{"/s.yaml": "max_concurent_tasks: 2\n"})

	err := LoadFile(context.Background(), Default(), "/s.yaml")
	require.ErrorIs(t, err, ErrParseSettingsFile)
}

func TestLoadFile_HCL(t *testing.T) {
	t.Setenv("EXECUTE_TEST_JOBS_DIR", "/srv/jobs")

	stubFs(t, map[string]string{
		"/s.hcl": `
max_concurrent_tasks = 6
timeout              = "none"
non_zero             = "annotate"
targets              = "${env.EXECUTE_TEST_JOBS_DIR}/repos.conf"

rule "grep" {
  color_args = ["--color=always"]
  args       = ["--exclude-dir=node_modules"]
}
`,
	})

	cfg := Default()
	require.NoError(t, LoadFile(context.Background(), cfg, "/s.hcl"))

	assert.Equal(t, 6, cfg.Concurrency)
	assert.Zero(t, cfg.EffectiveTimeout())
	assert.Equal(t, "/srv/jobs/repos.conf", cfg.TargetList)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, []string{"--exclude-dir=node_modules"}, cfg.Rules[1].Args)
}

func TestLoadFile_InvalidValues(t *testing.T) {
	stubFs(t, map[string]string{"/s.yaml": "timeout: soon\nnon_zero: explode\nmode: sockets\n"})

	err := LoadFile(context.Background(), Default(), "/s.yaml")
	require.ErrorIs(t, err, ErrParseSettingsFile)
	require.ErrorIs(t, err, ErrInvalidTimeout)
	require.ErrorIs(t, err, aggregator.ErrUnknownPolicy)
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestLoadFile_Errors(t *testing.T) {
	stubFs(t, map[string]string{
		"/s.toml":    "x = 1",
		"/bad.hcl":   "max_concurrent_tasks = ",
		"/other.hcl": `unknown = 1`,
	})

	require.ErrorIs(t, LoadFile(context.Background(), Default(), "/missing.yaml"), ErrReadSettingsFile)
	require.ErrorIs(t, LoadFile(context.Background(), Default(), "/s.toml"), ErrUnknownFormat)
	require.ErrorIs(t, LoadFile(context.Background(), Default(), "/bad.hcl"), ErrParseSettingsFile)
	require.ErrorIs(t, LoadFile(context.Background(), Default(), "/other.hcl"), ErrParseSettingsFile)
}
