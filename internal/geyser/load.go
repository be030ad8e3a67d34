// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package geyser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
)

var (
	// ErrNoPluginSource is returned when a config has neither kind nor libpath.
	ErrNoPluginSource = errors.New("plugin config must set kind or libpath")
	// ErrUnknownKind is returned when kind names no built-in plugin.
	ErrUnknownKind = errors.New("unknown plugin kind")
	// ErrPluginLoad is returned when the plugin's OnLoad fails.
	ErrPluginLoad = errors.New("plugin failed to load")
	// ErrPluginUnload is returned when OnUnload fails after a failed OnLoad.
	ErrPluginUnload = errors.New("plugin failed to unload")
)

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	indexTokens bool
}

// WithIndexTokens enables token indexing on plugins implementing TokenIndexer.
func WithIndexTokens(enabled bool) LoadOption {
	return func(o *loadOptions) {
		o.indexTokens = enabled
	}
}

// Load resolves the plugin described by configFile and calls its OnLoad.
// The caller owns the returned plugin and must call OnUnload.
// When OnLoad fails, Load calls OnUnload itself and returns no plugin.
func Load(ctx context.Context, configFile string, opts ...LoadOption) (Plugin, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var cfg Config
	if err := ReadConfig(configFile, &cfg); err != nil {
		return nil, err
	}

	p, err := resolve(configFile, cfg)
	if err != nil {
		return nil, err
	}

	if ti, ok := p.(TokenIndexer); ok {
		ti.SetIndexTokens(o.indexTokens)
	} else if o.indexTokens {
		ctxlog.Warn(ctx, "plugin does not index tokens", "plugin", p.Name())
	}

	ctxlog.Debug(ctx, "loading plugin", "plugin", p.Name(), "config", configFile)

	if err := p.OnLoad(ctx, configFile); err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrPluginLoad, p.Name(), err)

		// OnLoad may fail after acquiring resources.
		if uerr := p.OnUnload(context.WithoutCancel(ctx)); uerr != nil {
			err = errors.Join(err, fmt.Errorf("%w: %s: %w", ErrPluginUnload, p.Name(), uerr))
		}

		return nil, err
	}

	return p, nil
}

func resolve(configFile string, cfg Config) (Plugin, error) {
	switch {
	case cfg.Kind != "":
		factory, ok := lookup(cfg.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
		}

		return factory(), nil
	case cfg.LibPath != "":
		lib := cfg.LibPath
		if !filepath.IsAbs(lib) {
			lib = filepath.Join(filepath.Dir(configFile), lib)
		}

		return openLibrary(lib)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoPluginSource, configFile)
	}
}
