// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package aggregator prints task outcomes as they arrive and keeps the run counters.
//
// Results go to the output writer, errors and progress lines to the error writer.
// Nothing is reordered: the first outcome received is the first one printed.
package aggregator
