// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package settings holds the run configuration.
//
// A Config starts from Default, may be overlaid by a YAML or HCL settings file
// and is then adjusted from environment variables and command line flags.
// The command rules that inject colour and exclude flags live here as data,
// so the preparer stays a pure function of its inputs.
package settings
