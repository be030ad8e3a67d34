// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/matt-FFFFFF/snapetl/internal/geyser"
	"github.com/matt-FFFFFF/snapetl/internal/progress"
	"github.com/matt-FFFFFF/snapetl/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errBroken = errors.New("broken record")

type fakeRecord struct {
	acc *snapshot.StoredAccount
	err error
}

func (r fakeRecord) Access() (*snapshot.StoredAccount, error) {
	return r.acc, r.err
}

type notification struct {
	info      geyser.ReplicaAccountInfoV2
	slot      uint64
	isStartup bool
}

// recorder keeps a copy of every notification it accepts.
type recorder struct {
	disabled bool
	failAt   int
	onUpdate func(n int)
	got      []notification
	calls    int
}

func (r *recorder) AccountDataNotificationsEnabled() bool { return !r.disabled }

func (r *recorder) UpdateAccount(_ context.Context, account geyser.ReplicaAccountInfoVersions, slot uint64, isStartup bool) error {
	r.calls++

	if r.onUpdate != nil {
		r.onUpdate(r.calls)
	}

	if r.failAt == r.calls {
		return errors.New("disk full")
	}

	info, err := geyser.AccountInfoV2(account)
	if err != nil {
		return err
	}

	cp := *info
	cp.Pubkey = append([]byte(nil), info.Pubkey...)
	cp.Owner = append([]byte(nil), info.Owner...)
	cp.Data = append([]byte(nil), info.Data...)
	r.got = append(r.got, notification{info: cp, slot: slot, isStartup: isStartup})

	return nil
}

type eventLog struct {
	events []progress.Event
}

func (l *eventLog) Report(e progress.Event) { l.events = append(l.events, e) }
func (l *eventLog) Close()                  {}

func (l *eventLog) ofType(t progress.EventType) []uint64 {
	var positions []uint64

	for _, e := range l.events {
		if e.Type == t {
			positions = append(positions, e.Data.Position)
		}
	}

	return positions
}

func (l *eventLog) terminal() int {
	var n int

	for _, e := range l.events {
		if e.Type.Terminal() {
			n++
		}
	}

	return n
}

func account(i int) *snapshot.StoredAccount {
	return &snapshot.StoredAccount{
		Pubkey:       solana.PublicKey{byte(i), byte(i >> 8), 1},
		Lamports:     uint64(i) * 10,
		Owner:        solana.PublicKey{byte(i), 2},
		Executable:   i%3 == 0,
		RentEpoch:    uint64(i) + 1,
		Data:         []byte{byte(i), byte(i + 1)},
		WriteVersion: uint64(i) + 1000,
	}
}

// records yields n accounts, replacing the record at index brokenAt (if >= 0)
// with one that fails to decode. pulled counts the records yielded.
func records(n, brokenAt int, pulled *int) iter.Seq2[snapshot.Record, error] {
	return func(yield func(snapshot.Record, error) bool) {
		for i := range n {
			if pulled != nil {
				*pulled++
			}

			rec := fakeRecord{acc: account(i)}
			if i == brokenAt {
				rec = fakeRecord{err: errBroken}
			}

			if !yield(rec, nil) {
				return
			}
		}
	}
}

func TestRun_NotifiesEveryRecordInOrder(t *testing.T) {
	const n = 5

	r := &recorder{}
	log := &eventLog{}
	d := New(r, WithSlot(250), WithReporter(log))

	require.NoError(t, d.Run(context.Background(), records(n, -1, nil)))
	assert.Equal(t, StateCompleted, d.State())
	assert.Equal(t, uint64(n), d.Count())
	require.Len(t, r.got, n)

	for i, got := range r.got {
		want := account(i)
		assert.Equal(t, want.Pubkey[:], got.info.Pubkey)
		assert.Equal(t, want.Lamports, got.info.Lamports)
		assert.Equal(t, want.Owner[:], got.info.Owner)
		assert.Equal(t, want.Executable, got.info.Executable)
		assert.Equal(t, want.RentEpoch, got.info.RentEpoch)
		assert.Equal(t, want.Data, got.info.Data)
		assert.Equal(t, want.WriteVersion, got.info.WriteVersion)
		assert.Nil(t, got.info.TxnSignature)
		assert.Equal(t, uint64(250), got.slot)
		assert.False(t, got.isStartup)
	}

	assert.Equal(t, []uint64{0}, log.ofType(progress.EventStarted))
	assert.Equal(t, []uint64{n}, log.ofType(progress.EventCompleted))

	for _, e := range log.events {
		assert.Equal(t, DefaultLabel, e.Label)
		assert.Equal(t, progress.UnitItems, e.Data.Unit)
	}
}

func TestRun_ProgressCadence(t *testing.T) {
	tests := []struct {
		name         string
		n            int
		wantProgress []uint64
	}{
		{name: "empty", n: 0},
		{name: "below interval", n: ProgressInterval - 1},
		{name: "exactly one interval", n: ProgressInterval, wantProgress: []uint64{1024}},
		{name: "several intervals", n: 2*ProgressInterval + 5, wantProgress: []uint64{1024, 2048}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &eventLog{}
			d := New(&recorder{}, WithReporter(log), WithLabel("accounts"))

			require.NoError(t, d.Run(context.Background(), records(tt.n, -1, nil)))
			assert.Equal(t, tt.wantProgress, log.ofType(progress.EventProgress))
			assert.Equal(t, []uint64{uint64(tt.n)}, log.ofType(progress.EventCompleted), "exactly one final update")
			assert.Equal(t, 1, log.terminal())
			assert.Equal(t, "accounts", log.events[0].Label)
		})
	}
}

func TestRun_NotificationsDisabled(t *testing.T) {
	r := &recorder{disabled: true}
	log := &eventLog{}
	pulled := 0
	d := New(r, WithReporter(log))

	err := d.Run(context.Background(), records(10, -1, &pulled))
	require.ErrorIs(t, err, ErrNotificationsDisabled)
	assert.Equal(t, StateFailed, d.State())
	assert.Zero(t, r.calls)
	assert.Zero(t, pulled, "no record is read")
	assert.Empty(t, log.events)
}

func TestRun_AccessFailureStopsBeforeRecord(t *testing.T) {
	for _, n := range []int{1, 2, 1500} {
		r := &recorder{}
		log := &eventLog{}
		pulled := 0
		d := New(r, WithReporter(log))

		err := d.Run(context.Background(), records(n+10, n-1, &pulled))
		require.ErrorIs(t, err, ErrAccessAccount)
		require.ErrorIs(t, err, errBroken)
		assert.Len(t, r.got, n-1)
		assert.Equal(t, uint64(n-1), d.Count())
		assert.Equal(t, n, pulled, "no record is pulled after the failure")
		assert.Equal(t, StateFailed, d.State())
		assert.Equal(t, []uint64{uint64(n - 1)}, log.ofType(progress.EventFailed))
		assert.Empty(t, log.ofType(progress.EventCompleted))
	}
}

func TestRun_ReadFailure(t *testing.T) {
	r := &recorder{}
	d := New(r)

	seq := func(yield func(snapshot.Record, error) bool) {
		if !yield(fakeRecord{acc: account(1)}, nil) {
			return
		}

		yield(nil, snapshot.ErrOpenStorage)
	}

	err := d.Run(context.Background(), seq)
	require.ErrorIs(t, err, ErrReadRecord)
	require.ErrorIs(t, err, snapshot.ErrOpenStorage)
	assert.Contains(t, err.Error(), "record 1")
	assert.Len(t, r.got, 1)
}

func TestRun_PluginFailure(t *testing.T) {
	r := &recorder{failAt: 3}
	log := &eventLog{}
	d := New(r, WithReporter(log))

	err := d.Run(context.Background(), records(10, -1, nil))
	require.ErrorIs(t, err, ErrUpdateAccount)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 3, r.calls)
	assert.Equal(t, uint64(2), d.Count())
	assert.Equal(t, 1, log.terminal())
	assert.Equal(t, StateFailed, d.State())
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &recorder{onUpdate: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	d := New(r)

	err := d.Run(ctx, records(10, -1, nil))
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, r.calls)
	assert.Equal(t, StateFailed, d.State())
}

func TestRun_OnlyOnce(t *testing.T) {
	d := New(&recorder{})
	require.NoError(t, d.Run(context.Background(), records(1, -1, nil)))

	err := d.Run(context.Background(), records(1, -1, nil))
	require.ErrorIs(t, err, ErrNotIdle)
	assert.Equal(t, StateCompleted, d.State())

	failed := New(&recorder{disabled: true})
	require.Error(t, failed.Run(context.Background(), records(1, -1, nil)))
	require.ErrorIs(t, failed.Run(context.Background(), records(1, -1, nil)), ErrNotIdle)
	assert.Equal(t, StateFailed, failed.State())
}

// A rerun over the same snapshot notifies every account again.
// The plugin owns any deduplication.
func TestRun_RerunNotifiesAgain(t *testing.T) {
	const n = 7

	r := &recorder{}

	require.NoError(t, New(r).Run(context.Background(), records(n, -1, nil)))
	require.NoError(t, New(r).Run(context.Background(), records(n, -1, nil)))

	require.Len(t, r.got, 2*n)
	assert.Equal(t, r.got[:n], r.got[n:])
}

func TestRun_StartupFlag(t *testing.T) {
	r := &recorder{}
	require.NoError(t, New(r, WithStartup(true)).Run(context.Background(), records(1, -1, nil)))
	require.Len(t, r.got, 1)
	assert.True(t, r.got[0].isStartup)
}

func TestNew_NilReporter(t *testing.T) {
	d := New(&recorder{}, WithReporter(nil))
	require.NoError(t, d.Run(context.Background(), records(3, -1, nil)))
	assert.Equal(t, uint64(3), d.Count())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Streaming", StateStreaming.String())
	assert.Equal(t, "Completed", StateCompleted.String())
	assert.Equal(t, "Failed", StateFailed.String())
	assert.Equal(t, "Unknown", State(42).String())
}
