// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package allplugins imports all built-in plugin packages to ensure their registration.
package allplugins

import (
	// Import all plugin packages to trigger their init() functions.
	_ "github.com/matt-FFFFFF/snapetl/internal/geyser/badgersink"
	_ "github.com/matt-FFFFFF/snapetl/internal/geyser/csvsink"
	_ "github.com/matt-FFFFFF/snapetl/internal/geyser/postgressink"
)
