// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package geyser

import (
	"iter"
	"maps"
	"slices"
	"sync"
)

// Factory creates an unloaded plugin.
type Factory func() Plugin

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a built-in plugin available under kind.
// Registering the same kind twice replaces the earlier factory.
func Register(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[kind] = factory
}

// Kinds returns the registered kinds in sorted order.
func Kinds() iter.Seq[string] {
	registryMu.RLock()
	kinds := slices.Sorted(maps.Keys(registry))
	registryMu.RUnlock()

	return slices.Values(kinds)
}

func lookup(kind string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[kind]

	return f, ok
}
