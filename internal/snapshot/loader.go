// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
	"github.com/spf13/afero"
)

const (
	snapshotsDir = "snapshots"
	accountsDir  = "accounts"
	versionFile  = "version"
)

var (
	// ErrOpenSnapshot is returned when the snapshot directory cannot be opened.
	ErrOpenSnapshot = errors.New("failed to open snapshot")
	// ErrNoManifest is returned when no snapshots/<slot>/<slot> manifest exists.
	ErrNoManifest = errors.New("no snapshot manifest found")
	// ErrMultipleManifests is returned when more than one slot directory holds a manifest.
	ErrMultipleManifests = errors.New("more than one snapshot manifest found")
	// ErrReadManifest is returned when the manifest cannot be read.
	ErrReadManifest = errors.New("failed to read snapshot manifest")
	// ErrMalformedManifest is returned when the manifest is empty.
	ErrMalformedManifest = errors.New("malformed snapshot manifest")
	// ErrListStorages is returned when the account storages cannot be listed.
	ErrListStorages = errors.New("failed to list account storages")
	// ErrOpenStorage is returned when an account storage cannot be opened.
	ErrOpenStorage = errors.New("failed to open account storage")
	// ErrReleaseStorage is returned when an account storage cannot be released.
	ErrReleaseStorage = errors.New("failed to release account storage")
)

// ReadProgressTracking decorates the loader's manifest read.
// The returned reader is closed by the loader once the manifest is read,
// whatever the outcome, and must close rd.
type ReadProgressTracking interface {
	NewReadProgressTracker(path string, rd io.Reader, size int64) io.ReadCloser
}

// Option configures OpenUnpacked.
type Option func(*options)

type options struct {
	tracking ReadProgressTracking
}

// WithProgressTracking observes the manifest read through t.
func WithProgressTracking(t ReadProgressTracking) Option {
	return func(o *options) {
		o.tracking = t
	}
}

// UnpackedLoader iterates the accounts of an unpacked snapshot.
type UnpackedLoader struct {
	fs             afero.Fs
	root           string
	slot           uint64
	version        string
	manifestPath   string
	manifestSize   uint64
	manifestDigest uint64
	storages       []Storage
}

// OpenUnpacked opens the snapshot at root, reads its manifest and lists its
// account storages. No account is read until Iter is ranged over.
func OpenUnpacked(ctx context.Context, root string, opts ...Option) (*UnpackedLoader, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	fs := FsFactory()

	fi, err := fs.Stat(root)
	if err != nil {
		return nil, errors.Join(ErrOpenSnapshot, err)
	}

	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrOpenSnapshot, root)
	}

	l := &UnpackedLoader{
		fs:   fs,
		root: root,
	}

	if b, err := afero.ReadFile(fs, filepath.Join(root, versionFile)); err == nil {
		l.version = strings.TrimSpace(string(b))
	}

	if err := l.findManifest(); err != nil {
		return nil, err
	}

	if err := l.readManifest(o.tracking); err != nil {
		return nil, err
	}

	l.storages, err = listStorages(fs, filepath.Join(root, accountsDir))
	if err != nil {
		return nil, errors.Join(ErrListStorages, err)
	}

	ctxlog.Debug(ctx, "snapshot opened",
		"path", root,
		"version", l.version,
		"slot", l.slot,
		"manifest_bytes", l.manifestSize,
		"manifest_xxhash", strconv.FormatUint(l.manifestDigest, 16),
		"storages", len(l.storages),
	)

	return l, nil
}

// Slot returns the slot the snapshot was taken at, from the manifest directory name.
func (l *UnpackedLoader) Slot() uint64 {
	return l.slot
}

// Version returns the snapshot format version, or "" if the version file is missing.
func (l *UnpackedLoader) Version() string {
	return l.version
}

// ManifestDigest returns the xxhash64 of the manifest bytes.
func (l *UnpackedLoader) ManifestDigest() uint64 {
	return l.manifestDigest
}

// Storages returns the account storages in iteration order.
func (l *UnpackedLoader) Storages() []Storage {
	return slices.Clone(l.storages)
}

// Iter returns the accounts of every storage in (slot, id, offset) order.
// Each Record is only valid during its own iteration step: the storage
// backing it is released before the next storage is opened.
func (l *UnpackedLoader) Iter() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rec := &appendVecRecord{}

		for _, st := range l.storages {
			data, release, err := openStorage(l.fs, st.Path)
			if err != nil {
				yield(nil, fmt.Errorf("%w: %s: %w", ErrOpenStorage, st.Path, err))
				return
			}

			more := walkAppendVec(data, rec, yield)
			rec.storage = nil

			if err := release(); err != nil {
				if more {
					yield(nil, fmt.Errorf("%w: %s: %w", ErrReleaseStorage, st.Path, err))
				}

				return
			}

			if !more {
				return
			}
		}
	}
}

func (l *UnpackedLoader) findManifest() error {
	dir := filepath.Join(l.root, snapshotsDir)

	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return errors.Join(ErrNoManifest, err)
	}

	var found []uint64

	for _, fi := range infos {
		if !fi.IsDir() {
			continue
		}

		slot, err := strconv.ParseUint(fi.Name(), 10, 64)
		if err != nil {
			continue
		}

		if ok, _ := afero.Exists(l.fs, filepath.Join(dir, fi.Name(), fi.Name())); ok {
			found = append(found, slot)
		}
	}

	switch len(found) {
	case 0:
		return fmt.Errorf("%w in %s", ErrNoManifest, dir)
	case 1:
		l.slot = found[0]
		name := strconv.FormatUint(l.slot, 10)
		l.manifestPath = filepath.Join(dir, name, name)

		return nil
	default:
		return fmt.Errorf("%w: slots %v", ErrMultipleManifests, found)
	}
}

func (l *UnpackedLoader) readManifest(tracking ReadProgressTracking) (err error) {
	f, err := l.fs.Open(l.manifestPath)
	if err != nil {
		return errors.Join(ErrReadManifest, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck
		return errors.Join(ErrReadManifest, err)
	}

	var rd io.ReadCloser = f
	if tracking != nil {
		rd = tracking.NewReadProgressTracker(l.manifestPath, f, fi.Size())
	}

	// The tracker is finalized on every exit path, panics included.
	defer func() {
		if cerr := rd.Close(); cerr != nil {
			err = errors.Join(err, ErrReadManifest, cerr)
		}
	}()

	h := xxhash.New()

	n, err := io.Copy(h, rd)
	if err != nil {
		return errors.Join(ErrReadManifest, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s is empty", ErrMalformedManifest, l.manifestPath)
	}

	l.manifestSize = uint64(n)
	l.manifestDigest = h.Sum64()

	return nil
}
