// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker relays OS termination signals to the running extraction.
// By default it listens for SIGINT and SIGTERM.
//
// The watchdog cancels a context on the first signal, so the run stops after
// the account in flight and the plugin is still unloaded. A second signal of
// the same type terminates the process.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
)

// DefaultSignals are the signals New subscribes to when none are given.
var DefaultSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}

// New subscribes a channel to sigs, or DefaultSignals when sigs is empty.
// The returned stop function unsubscribes and closes the channel, which ends Watch.
// It is safe to call stop more than once.
func New(ctx context.Context, sigs ...os.Signal) (chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)

	if len(sigs) == 0 {
		sigs = DefaultSignals
	}

	ctxlog.Debug(ctx, "signalbroker", "detail", "subscribing", "signals", sigs)
	signal.Notify(ch, sigs...)

	var once sync.Once

	stop := func() {
		once.Do(func() {
			signal.Stop(ch)
			close(ch)
		})
	}

	return ch, stop
}
