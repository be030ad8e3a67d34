// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
	"github.com/matt-FFFFFF/snapetl/internal/geyser"
	"github.com/matt-FFFFFF/snapetl/internal/progress"
	"github.com/matt-FFFFFF/snapetl/internal/snapshot"
)

// ProgressInterval is the number of records between two progress events.
const ProgressInterval = 1024

// DefaultLabel is the progress label used unless WithLabel is given.
const DefaultLabel = "accs"

var (
	// ErrNotIdle is returned when Run is called on a dispatcher that already ran.
	ErrNotIdle = errors.New("dispatcher has already run")
	// ErrNotificationsDisabled is returned when the plugin does not accept account notifications.
	ErrNotificationsDisabled = errors.New("plugin does not accept account data notifications")
	// ErrReadRecord is returned when the record source fails.
	ErrReadRecord = errors.New("failed to read account record")
	// ErrAccessAccount is returned when a record cannot be decoded.
	ErrAccessAccount = errors.New("failed to access account")
	// ErrUpdateAccount is returned when the plugin rejects an account.
	ErrUpdateAccount = errors.New("plugin failed to update account")
	// ErrCancelled is returned when the context is done before the records are exhausted.
	ErrCancelled = errors.New("dispatch cancelled")
)

// State is the lifecycle state of a Dispatcher.
type State int32

const (
	// StateIdle is the state of a new Dispatcher.
	StateIdle State = iota
	// StateStreaming is the state during Run.
	StateStreaming
	// StateCompleted is the state after every record was dispatched.
	StateCompleted
	// StateFailed is the state after Run stopped on an error.
	StateFailed
)

// String implements the Stringer interface for State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStreaming:
		return "Streaming"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Notifier receives account notifications. geyser.Plugin implements it.
type Notifier interface {
	AccountDataNotificationsEnabled() bool
	UpdateAccount(ctx context.Context, account geyser.ReplicaAccountInfoVersions, slot uint64, isStartup bool) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSlot sets the slot passed with every notification.
func WithSlot(slot uint64) Option {
	return func(d *Dispatcher) {
		d.slot = slot
	}
}

// WithReporter sets the reporter receiving progress events.
func WithReporter(r progress.Reporter) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.reporter = r
		}
	}
}

// WithLabel sets the progress label.
func WithLabel(label string) Option {
	return func(d *Dispatcher) {
		d.label = label
	}
}

// WithStartup sets the isStartup flag passed with every notification.
func WithStartup(startup bool) Option {
	return func(d *Dispatcher) {
		d.startup = startup
	}
}

// Dispatcher feeds account records to a Notifier. It runs once.
type Dispatcher struct {
	notifier Notifier
	reporter progress.Reporter
	label    string
	slot     uint64
	startup  bool

	state atomic.Int32
	count atomic.Uint64
}

// New returns an idle Dispatcher.
func New(notifier Notifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		reporter: progress.NewNullReporter(),
		label:    DefaultLabel,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// State returns the current state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Count returns the number of accounts the notifier accepted.
func (d *Dispatcher) Count() uint64 {
	return d.count.Load()
}

// Run dispatches every record in order and stops at the first error.
// The returned error wraps one of the package sentinels and, except for
// ErrNotIdle and ErrNotificationsDisabled, names the failing record index.
func (d *Dispatcher) Run(ctx context.Context, records iter.Seq2[snapshot.Record, error]) error {
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateStreaming)) {
		return fmt.Errorf("%w: state %s", ErrNotIdle, d.State())
	}

	if !d.notifier.AccountDataNotificationsEnabled() {
		d.state.Store(int32(StateFailed))
		return ErrNotificationsDisabled
	}

	ctxlog.Debug(ctx, "dispatching accounts", "slot", d.slot, "startup", d.startup)
	d.report(progress.EventStarted, nil)

	start := time.Now()

	if err := d.stream(ctx, records); err != nil {
		d.state.Store(int32(StateFailed))
		d.report(progress.EventFailed, err)

		return err
	}

	d.state.Store(int32(StateCompleted))
	d.report(progress.EventCompleted, nil)

	ctxlog.Info(ctx, "accounts dispatched", "count", d.Count(), "elapsed", time.Since(start).Round(time.Millisecond))

	return nil
}

func (d *Dispatcher) stream(ctx context.Context, records iter.Seq2[snapshot.Record, error]) error {
	var info geyser.ReplicaAccountInfoV2

	for rec, err := range records {
		index := d.Count()

		if err != nil {
			return fmt.Errorf("%w: record %d: %w", ErrReadRecord, index, err)
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: record %d: %w", ErrCancelled, index, err)
		}

		acc, err := rec.Access()
		if err != nil {
			return fmt.Errorf("%w: record %d: %w", ErrAccessAccount, index, err)
		}

		info = geyser.ReplicaAccountInfoV2{
			Pubkey:       acc.Pubkey[:],
			Lamports:     acc.Lamports,
			Owner:        acc.Owner[:],
			Executable:   acc.Executable,
			RentEpoch:    acc.RentEpoch,
			Data:         acc.Data,
			WriteVersion: acc.WriteVersion,
		}

		if err := d.notifier.UpdateAccount(ctx, &info, d.slot, d.startup); err != nil {
			return fmt.Errorf("%w: record %d (%s): %w", ErrUpdateAccount, index, acc.Pubkey, err)
		}

		if n := d.count.Add(1); n%ProgressInterval == 0 {
			d.report(progress.EventProgress, nil)
		}
	}

	return nil
}

func (d *Dispatcher) report(t progress.EventType, err error) {
	d.reporter.Report(progress.Event{
		Label:     d.label,
		Type:      t,
		Timestamp: time.Now(),
		Data: progress.EventData{
			Position: d.Count(),
			Unit:     progress.UnitItems,
			Error:    err,
		},
	})
}
