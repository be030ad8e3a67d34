// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build linux || darwin

package snapshot

import (
	"os"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// openStorage maps a storage read-only. The returned release func unmaps it;
// the data must not be used afterwards.
func openStorage(fs afero.Fs, name string) ([]byte, func() error, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	osFile, ok := f.(*os.File)
	if !ok {
		return readStorage(f)
	}

	defer osFile.Close() //nolint:errcheck

	fi, err := osFile.Stat()
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	if fi.Size() == 0 {
		return nil, noRelease, nil
	}

	data, err := unix.Mmap(int(osFile.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	return data, func() error { return unix.Munmap(data) }, nil
}
