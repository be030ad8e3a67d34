// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
)

// ExitCodeForced is the process exit code after a second signal.
const ExitCodeForced = 130

var exit = os.Exit

// Watch monitors the signal channel and handles signals.
// The first signal cancels the context. A second signal of the same type
// exits the process without waiting for teardown.
func Watch(ctx context.Context, sigCh chan os.Signal, cancel context.CancelFunc) {
	sigMap := make(map[os.Signal]struct{})
	for sig := range sigCh {
		if _, ok := sigMap[sig]; ok {
			ctxlog.Error(ctx, "watchdog", "detail", "received second signal of type, forcefully terminating", "signal", sig.String())
			exit(ExitCodeForced)

			return
		}

		if len(sigMap) == 0 {
			ctxlog.Warn(ctx, "watchdog", "detail", "received signal, stopping after the current account", "signal", sig.String())
			cancel()
		}

		sigMap[sig] = struct{}{}
	}
}
