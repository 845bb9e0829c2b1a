// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package task holds the data model shared by the scheduler, the process
// runner and the aggregator: the Task itself, the Result of a completed
// process, the classified Error of one that did not complete, and a one-shot
// Reply that makes a second report for the same task impossible.
package task
