// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package csvsink is a built-in plugin writing one CSV row per account.
//
// Config:
//
//	{"kind": "csv", "path": "accounts.csv"}
package csvsink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/matt-FFFFFF/snapetl/internal/geyser"
	"github.com/matt-FFFFFF/snapetl/internal/token"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
)

// Kind is the config kind of this plugin.
const Kind = "csv"

// DefaultPath is the output file used when the config sets no path.
const DefaultPath = "accounts.csv"

const lamportsPerSOLExp = -9

var (
	// ErrCreateFile is returned when the output file cannot be created.
	ErrCreateFile = errors.New("failed to create csv file")
	// ErrWriteRow is returned when a row cannot be written.
	ErrWriteRow = errors.New("failed to write csv row")
)

var (
	header      = []string{"pubkey", "owner", "data_len", "lamports", "sol"}
	tokenHeader = []string{"mint", "token_owner", "amount"}
)

// FsFactory is a function that returns an afero filesystem.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

func init() {
	geyser.Register(Kind, New)
}

// Config is the plugin config.
type Config struct {
	Path string `yaml:"path"`
}

// Plugin writes accounts to a CSV file.
type Plugin struct {
	file        afero.File
	w           *csv.Writer
	indexTokens bool
	row         []string
}

var (
	_ geyser.Plugin       = (*Plugin)(nil)
	_ geyser.TokenIndexer = (*Plugin)(nil)
)

// New returns an unloaded plugin.
func New() geyser.Plugin {
	return &Plugin{}
}

// Name implements geyser.Plugin.
func (p *Plugin) Name() string { return Kind }

// SetIndexTokens implements geyser.TokenIndexer.
func (p *Plugin) SetIndexTokens(enabled bool) { p.indexTokens = enabled }

// AccountDataNotificationsEnabled implements geyser.Plugin.
func (p *Plugin) AccountDataNotificationsEnabled() bool { return true }

// OnLoad creates the output file and writes the header row.
func (p *Plugin) OnLoad(_ context.Context, configFile string) error {
	cfg := Config{Path: DefaultPath}
	if err := geyser.ReadConfig(configFile, &cfg); err != nil {
		return err //nolint:wrapcheck
	}

	f, err := FsFactory().Create(cfg.Path)
	if err != nil {
		return errors.Join(ErrCreateFile, err)
	}

	p.file = f
	p.w = csv.NewWriter(f)

	cols := header
	if p.indexTokens {
		cols = append(cols[:len(cols):len(cols)], tokenHeader...)
	}

	if err := p.w.Write(cols); err != nil {
		return errors.Join(ErrWriteRow, err)
	}

	p.row = make([]string, len(cols))

	return nil
}

// UpdateAccount writes one row.
func (p *Plugin) UpdateAccount(_ context.Context, account geyser.ReplicaAccountInfoVersions, _ uint64, _ bool) error {
	info, err := geyser.AccountInfoV2(account)
	if err != nil {
		return err //nolint:wrapcheck
	}

	owner := info.OwnerKey()

	p.row[0] = info.PubkeyKey().String()
	p.row[1] = owner.String()
	p.row[2] = strconv.Itoa(len(info.Data))
	p.row[3] = strconv.FormatUint(info.Lamports, 10)
	p.row[4] = LamportsToSOL(info.Lamports).String()

	if p.indexTokens {
		p.row[5], p.row[6], p.row[7] = "", "", ""

		if token.IsTokenAccount(owner, len(info.Data)) {
			if acc, err := token.Decode(owner, info.Data); err == nil {
				p.row[5] = acc.Mint.String()
				p.row[6] = acc.Owner.String()
				p.row[7] = strconv.FormatUint(acc.Amount, 10)
			}
		}
	}

	if err := p.w.Write(p.row); err != nil {
		return errors.Join(ErrWriteRow, err)
	}

	return nil
}

// OnUnload flushes and closes the output file.
func (p *Plugin) OnUnload(_ context.Context) error {
	if p.file == nil {
		return nil
	}

	p.w.Flush()
	werr := p.w.Error()
	cerr := p.file.Close()
	p.file = nil

	if werr != nil || cerr != nil {
		return fmt.Errorf("%w: %w", ErrWriteRow, errors.Join(werr, cerr))
	}

	return nil
}

// LamportsToSOL converts lamports to SOL without losing precision.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), lamportsPerSOLExp)
}
