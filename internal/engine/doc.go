// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package engine runs one command against every target.
//
// It builds a task per target, hands the tasks to a bounded scheduler, starts
// each process under its deadline and prints every outcome as soon as it is
// known. Run only returns an error for invalid input; failures of individual
// targets are part of the printed output and of the returned summary.
package engine
