// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color colorizes strings with ANSI escape codes.
// Output is plain when NO_COLOR is set, or when stderr is not a terminal
// and FORCE_COLOR is unset.
package color
