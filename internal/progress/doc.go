// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries progress events from the snapshot pipeline to a display.
// Reporting is an observer concern only: every Reporter may drop or sample
// events, and the pipeline produces identical output with a NullReporter.
package progress
