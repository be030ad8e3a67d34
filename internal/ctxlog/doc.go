// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a *slog.Logger in a context.Context.
//
// The default logger is a pretty console handler writing to stderr.
// The level comes from the SNAPETL_LOG_LEVEL environment variable
// and defaults to INFO.
package ctxlog
