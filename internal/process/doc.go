// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package process starts one external command per task and supervises it.
//
// Spawn starts the child with both output streams connected to pipes that are
// read line by line in the background. Await races the child's exit against the
// task deadline and the run context. When the deadline wins, the child is
// killed without waiting for the kill to take effect and whatever output was
// captured so far is reported with the timeout error.
package process
