// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package targets

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const (
	// maxRangeItems bounds a single {a..b} range.
	maxRangeItems = 10000
	// maxExpansions bounds the strings produced by all groups of one entry together.
	maxExpansions = 10000
)

var (
	// ErrUnsetVariable is returned when an entry refers to an environment variable that is not set.
	ErrUnsetVariable = errors.New("environment variable not set")
	// ErrTooManyExpansions is returned when brace expansion of an entry produces too many strings.
	ErrTooManyExpansions = errors.New("brace expansion produces too many entries")

	numericRange = regexp.MustCompile(`^(-?\d+)\.\.(-?\d+)(?:\.\.(-?\d+))?$`)
	letterRange  = regexp.MustCompile(`^([a-zA-Z])\.\.([a-zA-Z])$`)
)

// expandEnv replaces a leading "~" with $HOME and expands $VAR and ${VAR}.
// Unset variables are an error.
func expandEnv(s string, lookup LookupFunc) (string, error) {
	if s == "~" || strings.HasPrefix(s, "~/") {
		s = "$HOME" + s[1:]
	}

	var missing []string

	expanded := os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}

		v, ok := lookup(name)
		if !ok {
			missing = append(missing, name)
		}

		return v
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnsetVariable, strings.Join(missing, ", "))
	}

	return expanded, nil
}

// expandBraces performs shell style brace expansion, e.g. "a{b,c}d" becomes
// "abd" and "acd", and "v{1..3}" becomes "v1", "v2" and "v3". Groups nest.
// Braces that do not form a valid group are kept literally.
// An entry expanding to more than maxExpansions strings is an error.
func expandBraces(s string) ([]string, error) {
	result, ok := appendExpansions(nil, s)
	if !ok {
		return nil, fmt.Errorf("%w: more than %d", ErrTooManyExpansions, maxExpansions)
	}

	return result, nil
}

func appendExpansions(dst []string, s string) ([]string, bool) {
	open, end, alternatives, ok := firstBraceGroup(s)
	if !ok {
		if len(dst) >= maxExpansions {
			return dst, false
		}

		return append(dst, s), true
	}

	prefix, suffix := s[:open], s[end+1:]

	for _, alt := range alternatives {
		if dst, ok = appendExpansions(dst, prefix+alt+suffix); !ok {
			return dst, false
		}
	}

	return dst, true
}

// firstBraceGroup finds the first '{' that opens a valid group and returns
// the positions of both braces and the alternatives inside.
func firstBraceGroup(s string) (int, int, []string, bool) {
	for open := 0; open < len(s); open++ {
		if s[open] != '{' {
			continue
		}

		end := matchingBrace(s, open)
		if end < 0 {
			continue
		}

		body := s[open+1 : end]

		if parts := splitTopLevel(body); len(parts) > 1 {
			return open, end, parts, true
		}

		if items, ok := expandRange(body); ok {
			return open, end, items, true
		}
	}

	return 0, 0, nil, false
}

func matchingBrace(s string, open int) int {
	depth := 0

	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// splitTopLevel splits on commas that are not inside nested braces.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)

	for i := range len(s) {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}

	return append(parts, s[start:])
}

func expandRange(body string) ([]string, bool) {
	if m := letterRange.FindStringSubmatch(body); m != nil {
		from, to := m[1][0], m[2][0]
		step := 1

		if from > to {
			step = -1
		}

		var items []string
		for c := int(from); ; c += step {
			items = append(items, string(rune(c)))
			if c == int(to) {
				break
			}
		}

		return items, true
	}

	m := numericRange.FindStringSubmatch(body)
	if m == nil {
		return nil, false
	}

	from, err1 := strconv.Atoi(m[1])
	to, err2 := strconv.Atoi(m[2])

	step := 1

	if m[3] != "" {
		s, err := strconv.Atoi(m[3])
		if err != nil || s == 0 {
			return nil, false
		}

		step = max(s, -s)
	}

	if err1 != nil || err2 != nil {
		return nil, false
	}

	if from > to {
		step = -step
	}

	if (to-from)/step+1 > maxRangeItems {
		return nil, false
	}

	width := 0
	if zeroPadded(m[1]) || zeroPadded(m[2]) {
		width = max(len(m[1]), len(m[2]))
	}

	var items []string
	for n := from; (step > 0 && n <= to) || (step < 0 && n >= to); n += step {
		items = append(items, pad(n, width))
	}

	return items, true
}

func zeroPadded(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0'
}

func pad(n, width int) string {
	if width == 0 {
		return strconv.Itoa(n)
	}

	if n < 0 {
		return "-" + fmt.Sprintf("%0*d", width-1, -n)
	}

	return fmt.Sprintf("%0*d", width, n)
}
