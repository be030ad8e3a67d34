// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package postgressink is a built-in plugin upserting accounts into PostgreSQL.
// Unsigned 64-bit values are stored as NUMERIC(20).
//
// Config:
//
//	{"kind": "postgres", "connection_str": "postgres://user@localhost/solana?sslmode=disable"}
package postgressink

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gchaincl/dotsql"
	_ "github.com/lib/pq" // postgres driver
	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
	"github.com/matt-FFFFFF/snapetl/internal/geyser"
	"github.com/matt-FFFFFF/snapetl/internal/token"
)

// Kind is the config kind of this plugin.
const Kind = "postgres"

const driverName = "postgres"

// Named queries in queries.sql.
const (
	queryCreateAccountTable = "create-account-table"
	queryCreateTokenTable   = "create-token-table"
	queryUpsertAccount      = "upsert-account"
	queryUpsertToken        = "upsert-token-account"
)

//go:embed queries.sql
var queriesSQL string

var (
	// ErrNoConnection is returned when the config has no connection string.
	ErrNoConnection = errors.New("postgres plugin needs connection_str")
	// ErrConnect is returned when the database cannot be reached.
	ErrConnect = errors.New("failed to connect to postgres")
	// ErrSchema is returned when the tables cannot be created.
	ErrSchema = errors.New("failed to create postgres schema")
	// ErrUpsert is returned when an account cannot be upserted.
	ErrUpsert = errors.New("failed to upsert account")
)

// openDB opens and pings the database. It is a variable so tests can replace the driver.
var openDB = func(ctx context.Context, connStr string) (dotsql.Execer, io.Closer, error) {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, nil, err //nolint:wrapcheck
	}

	return db, db, nil
}

func init() {
	geyser.Register(Kind, New)
}

// Config is the plugin config.
type Config struct {
	ConnectionStr string `yaml:"connection_str"`
}

// Plugin upserts accounts into PostgreSQL.
type Plugin struct {
	dot         *dotsql.DotSql
	db          dotsql.Execer
	closer      io.Closer
	indexTokens bool
	upserts     uint64
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

// OnLoad connects and creates the tables if needed.
func (p *Plugin) OnLoad(ctx context.Context, configFile string) error {
	var cfg Config
	if err := geyser.ReadConfig(configFile, &cfg); err != nil {
		return err //nolint:wrapcheck
	}

	if cfg.ConnectionStr == "" {
		return ErrNoConnection
	}

	dot, err := loadQueries()
	if err != nil {
		return err
	}

	db, closer, err := openDB(ctx, cfg.ConnectionStr)
	if err != nil {
		return errors.Join(ErrConnect, err)
	}

	p.dot, p.db, p.closer = dot, db, closer

	schema := []string{queryCreateAccountTable}
	if p.indexTokens {
		schema = append(schema, queryCreateTokenTable)
	}

	for _, name := range schema {
		if _, err := p.dot.Exec(p.db, name); err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrSchema, name, err)
			if cerr := p.OnUnload(ctx); cerr != nil {
				err = errors.Join(err, cerr)
			}

			return err
		}
	}

	ctxlog.Debug(ctx, "postgres schema ready", "tokens", p.indexTokens)

	return nil
}

// UpdateAccount upserts the account unless a newer write version is stored.
func (p *Plugin) UpdateAccount(_ context.Context, account geyser.ReplicaAccountInfoVersions, slot uint64, _ bool) error {
	info, err := geyser.AccountInfoV2(account)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if _, err := p.dot.Exec(p.db, queryUpsertAccount,
		info.Pubkey,
		info.Owner,
		u64(info.Lamports),
		info.Executable,
		u64(info.RentEpoch),
		info.Data,
		u64(info.WriteVersion),
		u64(slot),
	); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUpsert, info.PubkeyKey(), err)
	}

	p.upserts++

	if !p.indexTokens {
		return nil
	}

	owner := info.OwnerKey()
	if !token.IsTokenAccount(owner, len(info.Data)) {
		return nil
	}

	acc, err := token.Decode(owner, info.Data)
	if err != nil {
		return nil //nolint:nilerr
	}

	if _, err := p.dot.Exec(p.db, queryUpsertToken,
		info.Pubkey,
		acc.Mint[:],
		acc.Owner[:],
		u64(acc.Amount),
		u64(info.WriteVersion),
		u64(slot),
	); err != nil {
		return fmt.Errorf("%w: token %s: %w", ErrUpsert, info.PubkeyKey(), err)
	}

	return nil
}

// OnUnload closes the connection pool.
func (p *Plugin) OnUnload(ctx context.Context) error {
	if p.closer == nil {
		return nil
	}

	ctxlog.Debug(ctx, "closing postgres connection", "upserts", p.upserts)

	err := p.closer.Close()
	p.closer, p.db = nil, nil

	return err //nolint:wrapcheck
}

// u64 formats v for a NUMERIC(20) column.
func u64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func loadQueries() (*dotsql.DotSql, error) {
	dot, err := dotsql.LoadFromString(queriesSQL)
	if err != nil {
		return nil, fmt.Errorf("loading queries: %w", err)
	}

	return dot, nil
}
