// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progressreader

import (
	"io"

	"github.com/matt-FFFFFF/snapetl/internal/progress"
)

// ManifestLabel is the display label used for snapshot manifest reads.
const ManifestLabel = "manifest"

// Tracking creates progress readers for a loader's read path.
// It satisfies snapshot.ReadProgressTracking.
type Tracking struct {
	Reporter progress.Reporter
	Label    string
}

// NewTracking returns a Tracking labelled ManifestLabel.
func NewTracking(reporter progress.Reporter) *Tracking {
	return &Tracking{
		Reporter: reporter,
		Label:    ManifestLabel,
	}
}

// NewReadProgressTracker wraps rd in a Reader. The path is not displayed.
func (t *Tracking) NewReadProgressTracker(_ string, rd io.Reader, size int64) io.ReadCloser {
	return New(rd, size, t.Label, t.Reporter)
}
