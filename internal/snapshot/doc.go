// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package snapshot reads accounts from an unpacked Solana snapshot directory.
//
// The directory layout is:
//
//	<root>/version                 snapshot format version (optional)
//	<root>/snapshots/<slot>/<slot> bank manifest
//	<root>/accounts/<slot>.<id>    append-vec account storages
//
// The manifest is streamed once through an optional ReadProgressTracking hook
// and fingerprinted; bank fields are not decoded. Accounts are decoded lazily
// from the append-vec storages, one record at a time.
package snapshot
