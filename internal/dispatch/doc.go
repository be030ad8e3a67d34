// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package dispatch streams snapshot account records into a plugin.
//
// A Dispatcher pulls records one at a time, converts each into a
// geyser.ReplicaAccountInfoV2 and hands it to the plugin synchronously.
// Nothing is buffered: the record is released before the next one is pulled.
// The first failure stops the run. There is no retry and no deduplication,
// so running a new Dispatcher over the same snapshot notifies every account
// again.
//
// Progress is reported under a single label, every ProgressInterval records
// and once more when the run ends.
package dispatch
