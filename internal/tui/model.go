// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"time"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/snapetl/internal/progress"
)

const (
	defaultBarWidth = 40
	maxBarWidth     = 60
	// reservedWidth is the room left for the label and the counters of a row.
	reservedWidth = 48
)

// RowStatus represents the current state of a display row.
type RowStatus int

// Row states.
const (
	StatusRunning RowStatus = iota
	StatusSuccess
	StatusFailed
)

// String returns a string representation of the row status.
func (s RowStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Row is the display state of one progress label.
type Row struct {
	Label     string
	Status    RowStatus
	Unit      progress.Unit
	Position  uint64
	Total     uint64
	StartTime time.Time
	EndTime   time.Time
	ErrorMsg  string
}

// Percent returns the completed fraction, 0 when the total is unknown.
func (r *Row) Percent() float64 {
	if r.Total == 0 {
		if r.Status == StatusSuccess {
			return 1
		}

		return 0
	}

	return min(float64(r.Position)/float64(r.Total), 1)
}

// Rate returns the position per second since the row started.
func (r *Row) Rate(now time.Time) float64 {
	end := now
	if !r.EndTime.IsZero() {
		end = r.EndTime
	}

	elapsed := end.Sub(r.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}

	return float64(r.Position) / elapsed
}

// Model represents the TUI application state.
type Model struct {
	rows      []*Row
	index     map[string]*Row
	bar       bprogress.Model
	spinner   spinner.Model
	width     int
	done      bool
	err       error
	interrupt bool
	now       func() time.Time

	styles *Styles
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Label   lipgloss.Style
	Running lipgloss.Style
	Success lipgloss.Style
	Failed  lipgloss.Style
	Counter lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Label: lipgloss.NewStyle().
			Bold(true).
			Faint(true).
			Width(10).
			Align(lipgloss.Right),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Counter: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Italic(true),
	}
}

// NewModel creates a new TUI model.
func NewModel() *Model {
	return &Model{
		index: make(map[string]*Row),
		bar: bprogress.New(
			bprogress.WithGradient("#5FAFFF", "#0087D7"),
			bprogress.WithWidth(defaultBarWidth),
			bprogress.WithoutPercentage(),
		),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		now:     time.Now,
		styles:  NewStyles(),
	}
}

// Rows returns the rows in the order their labels first appeared.
func (m *Model) Rows() []Row {
	rows := make([]Row, len(m.rows))
	for i, r := range m.rows {
		rows[i] = *r
	}

	return rows
}

// Done reports whether the pipeline has returned.
func (m *Model) Done() bool {
	return m.done
}

// Interrupted reports whether the user quit before the pipeline returned.
func (m *Model) Interrupted() bool {
	return m.interrupt
}

func (m *Model) row(label string) *Row {
	if r, ok := m.index[label]; ok {
		return r
	}

	r := &Row{Label: label, StartTime: m.now()}
	m.index[label] = r
	m.rows = append(m.rows, r)

	return r
}

// apply folds an event into its row. Terminal rows ignore later events.
func (m *Model) apply(e progress.Event) {
	r := m.row(e.Label)
	if r.Status != StatusRunning {
		return
	}

	r.Unit = e.Data.Unit
	r.Position = e.Data.Position

	if e.Data.Total > 0 {
		r.Total = e.Data.Total
	}

	switch e.Type {
	case progress.EventStarted:
		if !e.Timestamp.IsZero() {
			r.StartTime = e.Timestamp
		}
	case progress.EventCompleted:
		r.Status = StatusSuccess
		r.EndTime = m.now()
	case progress.EventFailed:
		r.Status = StatusFailed
		r.EndTime = m.now()

		if e.Data.Error != nil {
			r.ErrorMsg = e.Data.Error.Error()
		}
	}
}
