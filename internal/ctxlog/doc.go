// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog provides a context-aware logger built on log/slog.
//
// The logger travels in the context so that every task can add its own
// attributes (target, pid) without global state. The default handler is a
// pretty console handler writing to stderr; stdout belongs to command output.
//
// The level is read from an environment variable derived from the executable
// name, e.g. EXECUTE_LOG_LEVEL=DEBUG. Unknown values fall back to INFO.
package ctxlog
