// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/matt-FFFFFF/snapetl/internal/progress"
)

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// DoneMsg indicates that the pipeline has returned.
type DoneMsg struct {
	Err error
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.done {
				m.interrupt = true
			}

			return m, tea.Quit
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(min(msg.Width-reservedWidth, maxBarWidth), 10)

		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case ProgressEventMsg:
		m.apply(msg.Event)
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err

		return m, tea.Quit
	}

	return m, nil
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	var b strings.Builder

	for _, r := range m.rows {
		m.renderRow(&b, r)
	}

	return b.String()
}

func (m *Model) renderRow(b *strings.Builder, r *Row) {
	b.WriteString(m.styles.Label.Render(r.Label))
	b.WriteString(" ")

	switch r.Status {
	case StatusSuccess:
		b.WriteString(m.styles.Success.Render("✔"))
	case StatusFailed:
		b.WriteString(m.styles.Failed.Render("✘"))
	default:
		b.WriteString(m.styles.Running.Render(m.spinner.View()))
	}

	b.WriteString(" ")

	if r.Unit == progress.UnitBytes && r.Total > 0 {
		b.WriteString(m.bar.ViewAs(r.Percent()))
		b.WriteString(m.styles.Counter.Render(fmt.Sprintf(" %s/%s (%d%%)",
			humanize.Bytes(r.Position),
			humanize.Bytes(r.Total),
			int(r.Percent()*100),
		)))
	} else {
		b.WriteString(m.styles.Counter.Render(fmt.Sprintf("rate=%s/s total=%s",
			rateString(r.Rate(m.now()), r.Unit),
			positionString(r.Position, r.Unit),
		)))
	}

	if r.ErrorMsg != "" {
		b.WriteString(" ")
		b.WriteString(m.styles.Error.Render(r.ErrorMsg))
	}

	b.WriteString("\n")
}

func positionString(n uint64, unit progress.Unit) string {
	if unit == progress.UnitBytes {
		return humanize.Bytes(n)
	}

	return humanize.Comma(int64(n)) //nolint:gosec
}

func rateString(rate float64, unit progress.Unit) string {
	if unit == progress.UnitBytes {
		return humanize.Bytes(uint64(rate))
	}

	return humanize.Comma(int64(rate))
}
