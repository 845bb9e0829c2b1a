// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package scheduler runs a function for every task with bounded concurrency
// and streams the outcomes back in completion order.
package scheduler
