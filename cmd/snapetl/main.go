// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the snapetl command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/snapetl"
	"github.com/matt-FFFFFF/snapetl/cmd/snapetl/etl"
	"github.com/matt-FFFFFF/snapetl/cmd/snapetl/plugins"
	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
	"github.com/matt-FFFFFF/snapetl/internal/signalbroker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh, stopSignals := signalbroker.New(ctx)
	defer stopSignals()

	go signalbroker.Watch(ctx, sigCh, cancel)

	rootCmd := etl.NewCommand()
	rootCmd.Commands = append(rootCmd.Commands, plugins.NewCommand())
	rootCmd.Writer = os.Stdout
	rootCmd.ErrWriter = os.Stderr
	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", snapetl.Version, snapetl.Commit)
	rootCmd.Copyright = "Copyright (c) matt-FFFFFF 2025. All rights reserved."
	rootCmd.EnableShellCompletion = true

	if err := rootCmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err) //nolint:errcheck
		stopSignals()
		cancel()
		os.Exit(1) //nolint:gocritic
	}
}
