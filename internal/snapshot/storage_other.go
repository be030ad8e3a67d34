// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build !linux && !darwin

package snapshot

import "github.com/spf13/afero"

func openStorage(fs afero.Fs, name string) ([]byte, func() error, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	return readStorage(f)
}
