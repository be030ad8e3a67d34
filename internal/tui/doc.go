// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui renders progress events in the terminal with bubbletea.
//
// Every event label gets one row. Rows counting bytes show a progress bar
// against their total, rows counting items show a spinner, the rate and the
// running total. The program quits by itself once the pipeline returns,
// leaving the final frame on screen.
package tui
