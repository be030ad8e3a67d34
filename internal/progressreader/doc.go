// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progressreader decorates an io.Reader with byte progress reporting.
//
// The decorator never alters the bytes delivered to the caller. Its display row
// is finalized exactly once by Close, so callers should defer Close as soon as
// the Reader is created.
package progressreader
