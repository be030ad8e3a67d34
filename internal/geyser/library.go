// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package geyser

import (
	"errors"
	"fmt"
	"plugin"
)

// SymbolName is the symbol a plugin shared object must export.
const SymbolName = "NewGeyserPlugin"

var (
	// ErrOpenLibrary is returned when a plugin shared object cannot be opened.
	ErrOpenLibrary = errors.New("failed to open plugin library")
	// ErrPluginSymbol is returned when the plugin symbol is missing or has the wrong type.
	ErrPluginSymbol = errors.New("invalid plugin symbol")
)

// openLibrary loads a Go plugin built with -buildmode=plugin.
var openLibrary = func(path string) (Plugin, error) {
	lib, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenLibrary, path, err)
	}

	sym, err := lib.Lookup(SymbolName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPluginSymbol, err)
	}

	return pluginFromSymbol(sym)
}

func pluginFromSymbol(sym plugin.Symbol) (Plugin, error) {
	var factory func() Plugin

	switch f := sym.(type) {
	case func() Plugin:
		factory = f
	case *func() Plugin:
		if f != nil {
			factory = *f
		}
	default:
		return nil, fmt.Errorf("%w: %s has type %T, want func() geyser.Plugin", ErrPluginSymbol, SymbolName, sym)
	}

	if factory == nil {
		return nil, fmt.Errorf("%w: %s is nil", ErrPluginSymbol, SymbolName)
	}

	p := factory()
	if p == nil {
		return nil, fmt.Errorf("%w: %s returned nil", ErrPluginSymbol, SymbolName)
	}

	return p, nil
}
