// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
	"github.com/matt-FFFFFF/snapetl/internal/progress"
)

// eventBuffer is the capacity of the channel between the pipeline and the TUI.
const eventBuffer = 256

// ErrInterrupted is returned when the user quits the TUI before the pipeline returns.
var ErrInterrupted = errors.New("interrupted")

// Pipeline is the work displayed by a Runner.
type Pipeline func(ctx context.Context, reporter progress.Reporter) error

// Runner displays the progress of a pipeline.
type Runner struct {
	model   *Model
	program *tea.Program
	logOut  io.Writer
}

// NewRunner creates a new TUI runner. Logs written while the TUI owns the
// terminal are held back and written to logOut afterwards.
func NewRunner(logOut io.Writer, opts ...tea.ProgramOption) *Runner {
	if logOut == nil {
		logOut = os.Stderr
	}

	model := NewModel()
	opts = append([]tea.ProgramOption{tea.WithOutput(os.Stderr)}, opts...)

	return &Runner{
		model:   model,
		program: tea.NewProgram(model, opts...),
		logOut:  logOut,
	}
}

// Model returns the model driven by the runner.
func (r *Runner) Model() *Model {
	return r.model
}

// Run calls fn on the calling goroutine while the TUI runs on another one.
// Quitting the TUI cancels the context given to fn.
func (r *Runner) Run(ctx context.Context, fn Pipeline) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var logs bytes.Buffer
	ctx = ctxlog.NewForTUI(ctx, &logs)

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		cancel()
		tuiDone <- err
	}()

	reporter := progress.NewChannelReporter(ctx, eventBuffer)
	reporter.Listen(progress.ListenerFunc(func(e progress.Event) {
		r.program.Send(ProgressEventMsg{Event: e})
	}))

	err := fn(ctx, reporter)

	// Close waits for the listener, so every event is sent before DoneMsg.
	reporter.Close()
	r.program.Send(DoneMsg{Err: err})

	tuiErr := <-tuiDone

	if logs.Len() > 0 {
		r.logOut.Write(logs.Bytes()) //nolint:errcheck
	}

	if r.model.Interrupted() && err == nil {
		err = ErrInterrupted
	}

	return errors.Join(err, tuiErr)
}
