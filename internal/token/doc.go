// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package token decodes SPL token accounts found in a snapshot.
package token
