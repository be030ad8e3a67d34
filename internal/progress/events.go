// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event is a single progress update for one labelled display row,
// e.g. "manifest" for the byte stream or "accs" for the account counter.
type Event struct {
	Label     string    // Display row the event belongs to
	Type      EventType // What happened
	Message   string    // Optional human-readable status
	Timestamp time.Time // When the event occurred
	Data      EventData // Position information
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventStarted opens a display row.
	EventStarted EventType = iota
	// EventProgress moves the position of a row.
	EventProgress
	// EventCompleted finalizes a row successfully.
	EventCompleted
	// EventFailed finalizes a row after an error.
	EventFailed
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventStarted:
		return "started"
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the event finalizes its row.
func (et EventType) Terminal() bool {
	return et == EventCompleted || et == EventFailed
}

// Unit is the unit of Position and Total.
type Unit int

const (
	// UnitItems counts discrete items such as accounts.
	UnitItems Unit = iota
	// UnitBytes counts bytes.
	UnitBytes
)

// EventData contains the position of a row.
type EventData struct {
	Position uint64 // Cumulative position
	Total    uint64 // Expected total, 0 when unknown
	Unit     Unit
	Error    error // Set on EventFailed
}

// Reporter is the interface for sending progress events.
type Reporter interface {
	// Report sends a progress event. Implementations must not block the
	// pipeline for longer than it takes to hand the event over.
	Report(event Event)
	// Close signals that no more events will be sent and cleans up resources.
	Close()
}

// Listener receives progress events.
type Listener interface {
	// OnEvent is called for every event received.
	OnEvent(event Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(Event)

// OnEvent implements Listener.
func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

// NullReporter is a no-op implementation of Reporter.
// Used when progress reporting is disabled.
type NullReporter struct{}

// Report implements Reporter.Report by doing nothing.
func (nr *NullReporter) Report(_ Event) {}

// Close implements Reporter.Close by doing nothing.
func (nr *NullReporter) Close() {}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return &NullReporter{}
}
