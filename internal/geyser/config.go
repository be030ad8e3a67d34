// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package geyser

import (
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

var (
	// ErrReadConfig is returned when a plugin config file cannot be read or decoded.
	ErrReadConfig = errors.New("failed to read plugin config")
)

// Config holds the keys of a plugin config file used by the host.
type Config struct {
	// LibPath is the path of a Go plugin shared object, relative to the config file.
	LibPath string `yaml:"libpath"`
	// Kind is the name of a built-in plugin.
	Kind string `yaml:"kind"`
}

// ReadConfig decodes the JSON or YAML file into v.
// Keys v does not declare are ignored.
func ReadConfig(file string, v any) error {
	b, err := afero.ReadFile(FsFactory(), file)
	if err != nil {
		return errors.Join(ErrReadConfig, err)
	}

	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReadConfig, file, err)
	}

	return nil
}
