// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries live updates about running tasks to interested listeners,
// such as the terminal view. Reporting never blocks the run: events that cannot be
// delivered immediately are dropped.
package progress
