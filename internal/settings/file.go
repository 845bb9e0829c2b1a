// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/matt-FFFFFF/execute/internal/aggregator"
	"github.com/matt-FFFFFF/execute/internal/ctxlog"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrReadSettingsFile is returned when the settings file cannot be read.
	ErrReadSettingsFile = errors.New("failed to read settings file")
	// ErrParseSettingsFile is returned when the settings file cannot be decoded.
	ErrParseSettingsFile = errors.New("failed to parse settings file")
	// ErrUnknownFormat is returned for settings files that are neither YAML nor HCL.
	ErrUnknownFormat = errors.New("unknown settings file format, want .yaml, .yml or .hcl")
)

// fileSettings is the on-disk form. Unset fields leave the current value untouched.
type fileSettings struct {
	MaxConcurrentTasks *int       `yaml:"max_concurrent_tasks" hcl:"max_concurrent_tasks,optional"`
	Timeout            *string    `yaml:"timeout"              hcl:"timeout,optional"`
	Mode               *string    `yaml:"mode"                 hcl:"mode,optional"`
	ShowHeader         *bool      `yaml:"show_header"          hcl:"show_header,optional"`
	Color              *bool      `yaml:"color"                hcl:"color,optional"`
	NonZero            *string    `yaml:"non_zero"             hcl:"non_zero,optional"`
	ProgressEvery      *int       `yaml:"progress_every"       hcl:"progress_every,optional"`
	Targets            *string    `yaml:"targets"              hcl:"targets,optional"`
	OutputGrace        *string    `yaml:"output_grace"         hcl:"output_grace,optional"`
	Rules              []fileRule `yaml:"rules"                hcl:"rule,block"`
}

type fileRule struct {
	Command   string   `yaml:"command"    hcl:"command,label"`
	ColorArgs []string `yaml:"color_args" hcl:"color_args,optional"`
	Args      []string `yaml:"args"       hcl:"args,optional"`
}

// LoadFile reads a YAML or HCL settings file and applies it on top of cfg.
// HCL files can refer to environment variables as env.NAME.
func LoadFile(ctx context.Context, cfg *Config, path string) error {
	fs := FsFactory()

	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return errors.Join(ErrReadSettingsFile, err)
	}

	var fsettings fileSettings

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalWithOptions(content, &fsettings, yaml.Strict()); err != nil {
			return errors.Join(ErrParseSettingsFile, err)
		}
	case ".hcl":
		if err := hclsimple.Decode(path, content, evalContext(os.Environ()), &fsettings); err != nil {
			return errors.Join(ErrParseSettingsFile, err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	ctxlog.Debug(ctx, "settings file loaded", "path", path, "rules", len(fsettings.Rules))

	return fsettings.apply(cfg)
}

func (f *fileSettings) apply(cfg *Config) error {
	var result error

	if f.MaxConcurrentTasks != nil {
		cfg.Concurrency = *f.MaxConcurrentTasks
	}

	if f.Timeout != nil {
		d, err := ParseTimeout(*f.Timeout)
		if err != nil {
			result = multierror.Append(result, err)
		} else {
			cfg.SetTimeout(d)
		}
	}

	if f.Mode != nil {
		m, err := ParseMode(*f.Mode)
		if err != nil {
			result = multierror.Append(result, err)
		} else {
			cfg.Mode = m
		}
	}

	if f.ShowHeader != nil {
		cfg.ShowHeader = *f.ShowHeader
	}

	if f.Color != nil {
		cfg.Color = *f.Color
	}

	if f.NonZero != nil {
		p, err := aggregator.ParsePolicy(*f.NonZero)
		if err != nil {
			result = multierror.Append(result, err)
		} else {
			cfg.NonZero = p
		}
	}

	if f.ProgressEvery != nil {
		cfg.ProgressEvery = *f.ProgressEvery
	}

	if f.Targets != nil {
		cfg.TargetList = *f.Targets
	}

	if f.OutputGrace != nil {
		d, err := ParseTimeout(*f.OutputGrace)
		if err != nil {
			result = multierror.Append(result, err)
		} else {
			cfg.OutputGrace = d
		}
	}

	for _, r := range f.Rules {
		cfg.MergeRules(Rule(r))
	}

	if result != nil {
		return errors.Join(ErrParseSettingsFile, result)
	}

	return nil
}

// evalContext exposes the environment to HCL expressions as env.NAME.
func evalContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(environ))

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}

		vars[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}
