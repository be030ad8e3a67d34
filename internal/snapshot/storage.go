// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package snapshot

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// ErrBadStorageName is returned for account storage files not named <slot>.<id>.
var ErrBadStorageName = errors.New("account storage name is not <slot>.<id>")

// Storage identifies one append-vec file.
type Storage struct {
	Path string
	Slot uint64
	ID   uint64
	Size int64
}

func parseStorageName(name string) (slot, id uint64, err error) {
	s, i, ok := strings.Cut(name, ".")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadStorageName, name)
	}

	if slot, err = strconv.ParseUint(s, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadStorageName, name)
	}

	if id, err = strconv.ParseUint(i, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadStorageName, name)
	}

	return slot, id, nil
}

// listStorages returns the storages under dir ordered by slot then id.
func listStorages(fs afero.Fs, dir string) ([]Storage, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	storages := make([]Storage, 0, len(infos))

	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}

		slot, id, err := parseStorageName(fi.Name())
		if err != nil {
			return nil, err
		}

		storages = append(storages, Storage{
			Path: filepath.Join(dir, fi.Name()),
			Slot: slot,
			ID:   id,
			Size: fi.Size(),
		})
	}

	slices.SortFunc(storages, func(a, b Storage) int {
		if a.Slot != b.Slot {
			if a.Slot < b.Slot {
				return -1
			}

			return 1
		}

		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return storages, nil
}

func noRelease() error { return nil }

// readStorage loads a whole storage into memory. Used when the file cannot
// be memory mapped, e.g. on in-memory filesystems.
func readStorage(f afero.File) ([]byte, func() error, error) {
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	return data, noRelease, nil
}
