// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
)

// DefaultLogInterval is the minimum time between two progress lines for one row.
const DefaultLogInterval = 2 * time.Second

// LogReporter renders progress as structured log lines.
// It is used when stderr is not a terminal.
type LogReporter struct {
	logger   *slog.Logger
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

// NewLogReporter creates a LogReporter logging through the context logger.
// An interval of zero logs every progress event.
func NewLogReporter(ctx context.Context, interval time.Duration) *LogReporter {
	return &LogReporter{
		logger:   ctxlog.Logger(ctx),
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Report implements Reporter.Report.
func (lr *LogReporter) Report(event Event) {
	switch event.Type {
	case EventStarted:
		lr.last[event.Label] = lr.now()
		lr.logger.Info("progress started", "label", event.Label, "total", formatPosition(event.Data.Total, event.Data.Unit))
	case EventProgress:
		now := lr.now()
		if now.Sub(lr.last[event.Label]) < lr.interval {
			return
		}

		lr.last[event.Label] = now
		lr.logger.Info("progress", "label", event.Label, "position", formatPosition(event.Data.Position, event.Data.Unit))
	case EventCompleted:
		delete(lr.last, event.Label)
		lr.logger.Info("progress completed", "label", event.Label, "position", formatPosition(event.Data.Position, event.Data.Unit))
	case EventFailed:
		delete(lr.last, event.Label)
		lr.logger.Warn("progress failed", "label", event.Label, "position", formatPosition(event.Data.Position, event.Data.Unit), "error", event.Data.Error)
	}
}

// Close implements Reporter.Close.
func (lr *LogReporter) Close() {}

func formatPosition(n uint64, unit Unit) string {
	if unit == UnitBytes {
		return humanize.Bytes(n)
	}

	return humanize.Comma(int64(n)) //nolint:gosec // account counts fit in int64
}
