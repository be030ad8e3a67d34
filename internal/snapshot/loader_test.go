// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package snapshot

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testManifest = []byte("bank fields and accounts db fields, not decoded")

func dummyFsWithFiles(t *testing.T, fs afero.Fs, files map[string][]byte) {
	t.Helper()

	for name, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, afero.WriteFile(fs, name, content, 0o644))
	}
}

func stubFs(t *testing.T, files map[string][]byte) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	dummyFsWithFiles(t, fs, files)

	stubs := gostub.Stub(&FsFactory, func() afero.Fs {
		return fs
	})
	t.Cleanup(stubs.Reset)

	return fs
}

type countingTracking struct {
	path    string
	size    int64
	created int
	closed  int
}

type trackedReader struct {
	io.ReadCloser
	t *countingTracking
}

func (tr *trackedReader) Close() error {
	tr.t.closed++
	return tr.ReadCloser.Close()
}

func (c *countingTracking) NewReadProgressTracker(path string, rd io.Reader, size int64) io.ReadCloser {
	c.path = path
	c.size = size
	c.created++

	rc, ok := rd.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(rd)
	}

	return &trackedReader{ReadCloser: rc, t: c}
}

func TestOpenUnpacked(t *testing.T) {
	a0, a1, a2, a3 := testAccount(0, 10), testAccount(1, 0), testAccount(2, 33), testAccount(3, 7)

	stubFs(t, map[string][]byte{
		"/snap/version":                  []byte("1.2.0\n"),
		"/snap/snapshots/250/250":        testManifest,
		"/snap/snapshots/status_cache":   []byte("ignored"),
		"/snap/accounts/250.10":          encodeStorage(a3),
		"/snap/accounts/250.9":           encodeStorage(a2),
		"/snap/accounts/12.4":            encodeStorage(a0, a1),
		"/snap/accounts/250.11":          {},
		"/snap/snapshots/notaslot/x":     []byte("ignored"),
		"/snap/snapshots/251/incomplete": []byte("no manifest named 251 here"),
	})

	tracking := &countingTracking{}

	l, err := OpenUnpacked(context.Background(), "/snap", WithProgressTracking(tracking))
	require.NoError(t, err)

	assert.Equal(t, uint64(250), l.Slot())
	assert.Equal(t, "1.2.0", l.Version())
	assert.Equal(t, xxhash.Sum64(testManifest), l.ManifestDigest())

	assert.Equal(t, 1, tracking.created)
	assert.Equal(t, 1, tracking.closed, "the tracked manifest reader is closed once")
	assert.Equal(t, filepath.Join("/snap", "snapshots", "250", "250"), tracking.path)
	assert.Equal(t, int64(len(testManifest)), tracking.size)

	var order []string
	for _, st := range l.Storages() {
		order = append(order, filepath.Base(st.Path))
	}

	assert.Equal(t, []string{"12.4", "250.9", "250.10", "250.11"}, order)

	var got []StoredAccount

	for rec, err := range l.Iter() {
		require.NoError(t, err)

		acc, err := rec.Access()
		require.NoError(t, err)

		owned := *acc
		owned.Data = append([]byte(nil), acc.Data...)
		got = append(got, owned)
	}

	require.Len(t, got, 4)
	assert.Equal(t, a0.Pubkey, got[0].Pubkey)
	assert.Equal(t, a1.Pubkey, got[1].Pubkey)
	assert.Equal(t, a2.Pubkey, got[2].Pubkey)
	assert.Equal(t, a3.Pubkey, got[3].Pubkey)
	assert.Equal(t, a2.Data, got[2].Data)
}

func TestOpenUnpacked_WithoutTracking(t *testing.T) {
	stubFs(t, map[string][]byte{
		"/snap/snapshots/7/7":  testManifest,
		"/snap/accounts/7.0":   encodeStorage(testAccount(0, 1)),
		"/snap/accounts/7.1":   encodeStorage(testAccount(1, 1)),
		"/snap/accounts/6.100": encodeStorage(testAccount(2, 1)),
	})

	l, err := OpenUnpacked(context.Background(), "/snap")
	require.NoError(t, err)
	assert.Empty(t, l.Version())

	var n int
	for _, err := range l.Iter() {
		require.NoError(t, err)
		n++

		if n == 2 {
			break
		}
	}

	assert.Equal(t, 2, n, "breaking out of the loop stops the iteration")
}

func TestOpenUnpacked_Errors(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		files   map[string][]byte
		wantErr error
	}{
		{
			name:    "missing root",
			root:    "/nope",
			files:   map[string][]byte{"/snap/snapshots/1/1": testManifest},
			wantErr: ErrOpenSnapshot,
		},
		{
			name:    "root is a file",
			root:    "/snap/file",
			files:   map[string][]byte{"/snap/file": []byte("x")},
			wantErr: ErrOpenSnapshot,
		},
		{
			name:    "no snapshots dir",
			root:    "/snap",
			files:   map[string][]byte{"/snap/accounts/1.0": {}},
			wantErr: ErrNoManifest,
		},
		{
			name:    "no manifest in slot dir",
			root:    "/snap",
			files:   map[string][]byte{"/snap/snapshots/1/other": testManifest},
			wantErr: ErrNoManifest,
		},
		{
			name: "multiple manifests",
			root: "/snap",
			files: map[string][]byte{
				"/snap/snapshots/1/1": testManifest,
				"/snap/snapshots/2/2": testManifest,
			},
			wantErr: ErrMultipleManifests,
		},
		{
			name: "empty manifest",
			root: "/snap",
			files: map[string][]byte{
				"/snap/snapshots/1/1": {},
				"/snap/accounts/1.0":  {},
			},
			wantErr: ErrMalformedManifest,
		},
		{
			name: "missing accounts dir",
			root: "/snap",
			files: map[string][]byte{
				"/snap/snapshots/1/1": testManifest,
			},
			wantErr: ErrListStorages,
		},
		{
			name: "bad storage name",
			root: "/snap",
			files: map[string][]byte{
				"/snap/snapshots/1/1":       testManifest,
				"/snap/accounts/1.0":        {},
				"/snap/accounts/README.txt": []byte("hello"),
			},
			wantErr: ErrBadStorageName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubFs(t, tt.files)

			l, err := OpenUnpacked(context.Background(), tt.root)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, l)
		})
	}
}

func TestOpenUnpacked_TrackingClosedOnReadError(t *testing.T) {
	stubFs(t, map[string][]byte{
		"/snap/snapshots/1/1": {},
		"/snap/accounts/1.0":  {},
	})

	tracking := &countingTracking{}

	_, err := OpenUnpacked(context.Background(), "/snap", WithProgressTracking(tracking))
	require.ErrorIs(t, err, ErrMalformedManifest)
	assert.Equal(t, 1, tracking.closed)
}

type panicTracking struct {
	countingTracking
}

type panicReader struct{}

func (panicReader) Read([]byte) (int, error) { panic("decoder exploded") }

func (p *panicTracking) NewReadProgressTracker(path string, rd io.Reader, size int64) io.ReadCloser {
	tr := p.countingTracking.NewReadProgressTracker(path, rd, size).(*trackedReader) //nolint:forcetypeassert
	tr.ReadCloser = struct {
		io.Reader
		io.Closer
	}{panicReader{}, tr.ReadCloser}

	return tr
}

func TestOpenUnpacked_TrackingClosedOnPanic(t *testing.T) {
	stubFs(t, map[string][]byte{
		"/snap/snapshots/1/1": testManifest,
		"/snap/accounts/1.0":  {},
	})

	tracking := &panicTracking{}

	assert.PanicsWithValue(t, "decoder exploded", func() {
		OpenUnpacked(context.Background(), "/snap", WithProgressTracking(tracking)) //nolint:errcheck
	})
	assert.Equal(t, 1, tracking.closed)
}

var errTrackerClose = errors.New("tracker close failed")

type failingCloseTracking struct {
	countingTracking
}

func (f *failingCloseTracking) NewReadProgressTracker(path string, rd io.Reader, size int64) io.ReadCloser {
	f.countingTracking.NewReadProgressTracker(path, rd, size)

	return struct {
		io.Reader
		io.Closer
	}{rd, closerFunc(func() error {
		f.closed++
		return errTrackerClose
	})}
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

func TestOpenUnpacked_TrackingCloseError(t *testing.T) {
	stubFs(t, map[string][]byte{
		"/snap/snapshots/1/1": testManifest,
		"/snap/accounts/1.0":  {},
	})

	tracking := &failingCloseTracking{}

	_, err := OpenUnpacked(context.Background(), "/snap", WithProgressTracking(tracking))
	require.ErrorIs(t, err, ErrReadManifest)
	require.ErrorIs(t, err, errTrackerClose)
	assert.Equal(t, 1, tracking.closed)
}

func TestParseStorageName(t *testing.T) {
	tests := []struct {
		name     string
		wantSlot uint64
		wantID   uint64
		wantErr  bool
	}{
		{name: "12.4", wantSlot: 12, wantID: 4},
		{name: "18446744073709551615.0", wantSlot: 1<<64 - 1},
		{name: "12", wantErr: true},
		{name: "a.1", wantErr: true},
		{name: "1.b", wantErr: true},
		{name: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, id, err := parseStorageName(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadStorageName)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantSlot, slot)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

// TestOpenUnpacked_OsFs exercises the memory mapped storage path.
func TestOpenUnpacked_OsFs(t *testing.T) {
	root := t.TempDir()
	want := []StoredAccount{testAccount(0, 64), testAccount(1, 3)}

	files := map[string][]byte{
		filepath.Join(root, "snapshots", "99", "99"): testManifest,
		filepath.Join(root, "accounts", "99.0"):      append(encodeStorage(want...), make([]byte, 512)...),
		filepath.Join(root, "accounts", "99.1"):      {},
	}

	for name, content := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, os.WriteFile(name, content, 0o644))
	}

	l, err := OpenUnpacked(context.Background(), root)
	require.NoError(t, err)

	var i int

	for rec, err := range l.Iter() {
		require.NoError(t, err)

		acc, err := rec.Access()
		require.NoError(t, err)
		require.Less(t, i, len(want))

		assert.Equal(t, want[i].Pubkey, acc.Pubkey)
		assert.Equal(t, want[i].Data, acc.Data)
		assert.Equal(t, want[i].WriteVersion, acc.WriteVersion)
		i++
	}

	assert.Equal(t, len(want), i)
}
