// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package aggregator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPolicy is returned by ParsePolicy for unrecognised names.
var ErrUnknownPolicy = errors.New("unknown non-zero policy")

// Policy decides how a process that exits with a non-zero code is reported.
type Policy int

const (
	// NonZeroAnnotate marks the result header and carries on.
	NonZeroAnnotate Policy = iota
	// NonZeroError additionally reports the exit as an error and counts it as a failure.
	NonZeroError
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case NonZeroAnnotate:
		return "annotate"
	case NonZeroError:
		return "error"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a policy name. The empty string selects NonZeroAnnotate.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "annotate":
		return NonZeroAnnotate, nil
	case "error":
		return NonZeroError, nil
	default:
		return NonZeroAnnotate, fmt.Errorf("%w: %q (want annotate or error)", ErrUnknownPolicy, s)
	}
}
