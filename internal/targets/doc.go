// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package targets turns a target list file into the list of directories or files
// a command is run against.
//
// Each non-empty line that does not start with '#' is one entry. Entries have
// "~" and environment variables expanded. Entries containing '*' or '{' are then
// brace expanded and globbed ("**" matches any depth), anything else is used as is.
// Target lists can be local files or go-getter URLs.
package targets
