// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color wraps strings in ANSI escape codes.
//
// Colour is decided per output stream: NO_COLOR disables it, FORCE_COLOR
// enables it, and otherwise it follows golang.org/x/term terminal detection.
package color
