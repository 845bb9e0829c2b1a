// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a live terminal view of a run. It shows a progress bar,
// the targets currently running with the last line each one printed, and the
// counts of finished, failed and timed out targets.
//
// The view is fed from progress events. Results are not shown here, they are
// printed once the view has exited.
package tui
