// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package linebuf collects the lines of a process output stream in the
// background so that they can be drained without blocking.
//
// Drain distinguishes "nothing more yet" (StateOpen) from "stream ended"
// (StateClosed). A caller that gave up on a stuck process can take what is
// buffered right now and leave.
package linebuf
