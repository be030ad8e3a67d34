// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package etl is the root action of snapetl: it streams the accounts of an
// unpacked snapshot into a Geyser plugin.
package etl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
	"github.com/matt-FFFFFF/snapetl/internal/dispatch"
	"github.com/matt-FFFFFF/snapetl/internal/geyser"
	_ "github.com/matt-FFFFFF/snapetl/internal/geyser/allplugins" // built-in plugins
	"github.com/matt-FFFFFF/snapetl/internal/progress"
	"github.com/matt-FFFFFF/snapetl/internal/progressreader"
	"github.com/matt-FFFFFF/snapetl/internal/snapshot"
	"github.com/matt-FFFFFF/snapetl/internal/tui"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

const (
	pathArg      = "path"
	geyserFlag   = "geyser"
	tokensFlag   = "tokens"
	slotFlag     = "slot"
	progressFlag = "progress"

	geyserEnvVar   = "SNAPETL_GEYSER"
	progressEnvVar = "SNAPETL_PROGRESS"

	// DoneMessage is written to stdout after a successful run.
	DoneMessage = "Done!"
)

// Progress display modes.
const (
	ProgressAuto = "auto"
	ProgressTUI  = "tui"
	ProgressLog  = "log"
	ProgressNone = "none"
)

var progressModes = []string{ProgressAuto, ProgressTUI, ProgressLog, ProgressNone}

var (
	// ErrNoAction is returned when no action flag is given.
	ErrNoAction = errors.New("an action is required: --" + geyserFlag)
	// ErrNoPath is returned when no snapshot path is given.
	ErrNoPath = errors.New("path to snapshot is required")
	// ErrProgressMode is returned for an unknown --progress value.
	ErrProgressMode = errors.New("invalid progress mode")
	// ErrUnloadPlugin is returned when the plugin fails to unload after the run.
	ErrUnloadPlugin = errors.New("failed to unload plugin")
)

// isTerminal reports whether the progress display can own stderr.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stderr.Fd())) //nolint:gosec
}

// Options is the parsed command line.
type Options struct {
	Path         string
	GeyserConfig string
	IndexTokens  bool
	Slot         uint64
	SlotSet      bool
	Progress     string
}

// NewCommand returns the root command with fresh flags.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapetl",
		Usage: "snapetl --geyser geyser.json /path/to/unpacked/snapshot",
		Description: `Stream every account of an unpacked Solana snapshot into a Geyser plugin.

The snapshot directory must hold the snapshots/<slot>/<slot> manifest and the
accounts/<slot>.<id> storages. The plugin config is a JSON or YAML file naming
either a built-in plugin with "kind" (see "snapetl plugins") or a Go plugin
shared object with "libpath". Config URLs use Hashicorp's go-getter syntax.
See https://github.com/hashicorp/go-getter.`,
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      pathArg,
				UsageText: "Path to snapshot",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      geyserFlag,
				Usage:     "Load Geyser plugin from given config file",
				Sources:   cli.EnvVars(geyserEnvVar),
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.BoolFlag{
				Name:        tokensFlag,
				Usage:       "Index token program data",
				Value:       false,
				DefaultText: "false",
				OnlyOnce:    true,
			},
			&cli.Uint64Flag{
				Name:     slotFlag,
				Usage:    "Slot passed to the plugin. Defaults to the slot of the snapshot manifest",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     progressFlag,
				Usage:    "Progress display: " + strings.Join(progressModes, ", "),
				Sources:  cli.EnvVars(progressEnvVar),
				Value:    ProgressAuto,
				OnlyOnce: true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	opts := Options{
		Path:         cmd.StringArg(pathArg),
		GeyserConfig: cmd.String(geyserFlag),
		IndexTokens:  cmd.Bool(tokensFlag),
		Slot:         cmd.Uint64(slotFlag),
		SlotSet:      cmd.IsSet(slotFlag),
		Progress:     cmd.String(progressFlag),
	}

	if opts.GeyserConfig == "" {
		return ErrNoAction
	}

	if opts.Path == "" {
		return ErrNoPath
	}

	if !slices.Contains(progressModes, opts.Progress) {
		return fmt.Errorf("%w: %q, want one of %s", ErrProgressMode, opts.Progress, strings.Join(progressModes, ", "))
	}

	configPath, cleanup, err := fetchConfig(ctx, opts.GeyserConfig)
	if err != nil {
		return err
	}

	defer cleanup()

	opts.GeyserConfig = configPath

	if err := runWithProgress(ctx, opts); err != nil {
		return err
	}

	fmt.Fprintln(cmd.Root().Writer, DoneMessage) //nolint:errcheck

	return nil
}

func runWithProgress(ctx context.Context, opts Options) error {
	mode := opts.Progress
	if mode == ProgressAuto {
		mode = ProgressLog
		if isTerminal() {
			mode = ProgressTUI
		}
	}

	switch mode {
	case ProgressTUI:
		return tui.NewRunner(os.Stderr).Run(ctx, func(ctx context.Context, reporter progress.Reporter) error {
			return Run(ctx, opts, reporter)
		})
	case ProgressLog:
		reporter := progress.NewLogReporter(ctx, progress.DefaultLogInterval)
		defer reporter.Close()

		return Run(ctx, opts, reporter)
	default:
		return Run(ctx, opts, progress.NewNullReporter())
	}
}

// Run opens the snapshot, loads the plugin and dispatches every account.
// The plugin is unloaded whatever the outcome; an unload error is combined
// with the run error.
func Run(ctx context.Context, opts Options, reporter progress.Reporter) (err error) {
	loader, err := snapshot.OpenUnpacked(ctx, opts.Path,
		snapshot.WithProgressTracking(progressreader.NewTracking(reporter)),
	)
	if err != nil {
		return err //nolint:wrapcheck
	}

	ctxlog.Info(ctx, "Dumping to Geyser plugin", "config", opts.GeyserConfig)

	plugin, err := geyser.Load(ctx, opts.GeyserConfig, geyser.WithIndexTokens(opts.IndexTokens))
	if err != nil {
		return err //nolint:wrapcheck
	}

	defer func() {
		if uerr := plugin.OnUnload(context.WithoutCancel(ctx)); uerr != nil {
			err = multierror.Append(err, fmt.Errorf("%w: %s: %w", ErrUnloadPlugin, plugin.Name(), uerr))
		}
	}()

	slot := loader.Slot()
	if opts.SlotSet {
		slot = opts.Slot
	}

	d := dispatch.New(plugin,
		dispatch.WithSlot(slot),
		dispatch.WithReporter(reporter),
	)

	return d.Run(ctx, loader.Iter()) //nolint:wrapcheck
}
