// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package plugins lists the built-in Geyser plugins.
package plugins

import (
	"context"
	"fmt"

	"github.com/matt-FFFFFF/snapetl/internal/geyser"
	_ "github.com/matt-FFFFFF/snapetl/internal/geyser/allplugins" // built-in plugins
	"github.com/urfave/cli/v3"
)

// NewCommand returns the plugins subcommand.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "plugins",
		Usage: "List the built-in plugin kinds usable as \"kind\" in a plugin config",
		Action: func(_ context.Context, cmd *cli.Command) error {
			w := cmd.Root().Writer

			fmt.Fprintf(w, "Available plugins:\n\n") //nolint:errcheck

			for kind := range geyser.Kinds() {
				fmt.Fprintf(w, "- %s\n", kind) //nolint:errcheck
			}

			return nil
		},
	}
}
