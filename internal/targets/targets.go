// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package targets

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/execute/internal/ctxlog"
	"github.com/spf13/afero"
)

// ConfigDir is where relative target list names are looked up, below the home directory.
const ConfigDir = ".config/personal"

var (
	// ErrReadTargetList is returned when the target list cannot be read.
	ErrReadTargetList = errors.New("failed to read target list")
	// ErrInvalidEntry is returned for a target list line that cannot be expanded.
	ErrInvalidEntry = errors.New("invalid target list entry")
)

// LookupFunc returns the value of an environment variable and whether it is set.
type LookupFunc func(key string) (string, bool)

// Resolve returns the location of a target list. Relative names are resolved
// below home/.config/personal, absolute paths and go-getter URLs are returned unchanged.
func Resolve(source, home string) string {
	if IsURL(source) || filepath.IsAbs(source) {
		return source
	}

	return filepath.Join(home, filepath.FromSlash(ConfigDir), source)
}

// Load reads the target list named by source and expands it.
// When some lines fail to expand, the targets from the other lines are
// returned together with an error describing every failed line.
func Load(ctx context.Context, source, home string) ([]string, error) {
	location := Resolve(source, home)
	ctxlog.Debug(ctx, "loading target list", "source", source, "location", location)

	var (
		content []byte
		err     error
	)

	if IsURL(location) {
		content, err = getURL(ctx, location)
	} else {
		content, err = afero.ReadFile(FsFactory(), location)
	}

	if err != nil {
		return nil, errors.Join(ErrReadTargetList, fmt.Errorf("%s: %w", location, err))
	}

	return Parse(ctx, FsFactory(), content, os.LookupEnv)
}

// Parse expands the lines of a target list. Globs are matched against fs.
func Parse(ctx context.Context, fs afero.Fs, content []byte, lookup LookupFunc) ([]string, error) {
	var (
		result  []string
		lineErr error
		lineNo  int
	)

	scanner := bufio.NewScanner(bytes.NewReader(content))

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		expanded, err := expandEnv(line, lookup)
		if err != nil {
			lineErr = multierror.Append(lineErr, fmt.Errorf("%w: line %d: %w", ErrInvalidEntry, lineNo, err))
			continue
		}

		if !strings.ContainsAny(expanded, "*{") {
			result = append(result, expanded)
			continue
		}

		patterns, err := expandBraces(expanded)
		if err != nil {
			lineErr = multierror.Append(lineErr, fmt.Errorf("%w: line %d: %w", ErrInvalidEntry, lineNo, err))
			continue
		}

		matches, err := globAll(fs, patterns)
		if err != nil {
			lineErr = multierror.Append(lineErr, fmt.Errorf("%w: line %d: %w", ErrInvalidEntry, lineNo, err))
			continue
		}

		if len(matches) == 0 {
			ctxlog.Warn(ctx, "target pattern matched nothing", "line", lineNo, "pattern", expanded)
		}

		result = append(result, matches...)
	}

	if err := scanner.Err(); err != nil {
		lineErr = multierror.Append(lineErr, errors.Join(ErrReadTargetList, err))
	}

	ctxlog.Debug(ctx, "target list expanded", "targets", len(result))

	return result, lineErr
}

// globAll globs every pattern in turn. Matches of one pattern are sorted,
// the order of the patterns is kept.
func globAll(fs afero.Fs, patterns []string) ([]string, error) {
	var result []string

	for _, p := range patterns {
		matches, err := glob(fs, p)
		if err != nil {
			return nil, err
		}

		result = append(result, matches...)
	}

	return result, nil
}

func glob(fs afero.Fs, pattern string) ([]string, error) {
	base, rel := doublestar.SplitPattern(filepath.ToSlash(pattern))

	root := filepath.FromSlash(base)
	if !filepath.IsAbs(root) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}

		root = abs
	}

	fsys := afero.NewIOFS(afero.NewBasePathFs(fs, root))

	matches, err := doublestar.Glob(fsys, rel)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", pattern, err)
	}

	slices.Sort(matches)

	for i, m := range matches {
		matches[i] = filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m))
	}

	return matches, nil
}
