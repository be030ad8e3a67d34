// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package badgersink is a built-in plugin persisting accounts to BadgerDB.
//
// Accounts are RLP encoded and keyed by pubkey. An update carrying a lower
// write version than the stored account is skipped.
//
// Config:
//
//	{"kind": "badger", "path": "accounts-db", "cache_size": 65536, "in_memory": false}
package badgersink

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"
	lru "github.com/hashicorp/golang-lru"
	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
	"github.com/matt-FFFFFF/snapetl/internal/geyser"
	"github.com/matt-FFFFFF/snapetl/internal/token"
)

// Kind is the config kind of this plugin.
const Kind = "badger"

// DefaultCacheSize is the number of write versions cached when the config sets none.
const DefaultCacheSize = 1 << 16

// runUpdate runs fn in a read-write transaction and commits it.
// It is a variable so tests can fail the commit.
var runUpdate = func(db *badger.DB, fn func(txn *badger.Txn) error) error {
	return db.Update(fn)
}

var (
	accountPrefix = []byte("acc/")
	tokenPrefix   = []byte("tok/")
)

var (
	// ErrNoPath is returned when an on-disk database has no path configured.
	ErrNoPath = errors.New("badger plugin needs a path unless in_memory is set")
	// ErrOpenDB is returned when the database cannot be opened.
	ErrOpenDB = errors.New("failed to open badger database")
	// ErrWrite is returned when an account cannot be stored.
	ErrWrite = errors.New("failed to store account")
	// ErrNotFound is returned by Account for unknown pubkeys.
	ErrNotFound = errors.New("account not found")
)

func init() {
	geyser.Register(Kind, New)
}

// Config is the plugin config.
type Config struct {
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cache_size"`
	InMemory  bool   `yaml:"in_memory"`
}

// Account is the stored form of an account.
type Account struct {
	Lamports     uint64
	Owner        solana.PublicKey
	Executable   bool
	RentEpoch    uint64
	WriteVersion uint64
	Data         []byte
}

// TokenEntry is stored under tok/<mint><pubkey> when token indexing is on.
type TokenEntry struct {
	Owner  solana.PublicKey
	Amount uint64
}

// Stats counts what the plugin did with the accounts it was given.
type Stats struct {
	Written uint64
	Skipped uint64
	Tokens  uint64
}

// Plugin stores accounts in BadgerDB.
type Plugin struct {
	db          *badger.DB
	versions    *lru.Cache
	indexTokens bool
	stats       Stats
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

// Stats returns the counters since OnLoad.
func (p *Plugin) Stats() Stats { return p.stats }

// OnLoad opens the database.
func (p *Plugin) OnLoad(ctx context.Context, configFile string) error {
	cfg := Config{CacheSize: DefaultCacheSize}
	if err := geyser.ReadConfig(configFile, &cfg); err != nil {
		return err //nolint:wrapcheck
	}

	var opts badger.Options

	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case cfg.Path == "":
		return ErrNoPath
	default:
		opts = badger.DefaultOptions(cfg.Path)
	}

	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	versions, err := lru.New(cfg.CacheSize)
	if err != nil {
		return errors.Join(ErrOpenDB, err)
	}

	db, err := badger.Open(opts.WithLogger(nil).WithSyncWrites(false))
	if err != nil {
		return errors.Join(ErrOpenDB, err)
	}

	p.db = db
	p.versions = versions
	p.stats = Stats{}

	ctxlog.Debug(ctx, "badger database opened", "path", cfg.Path, "in_memory", cfg.InMemory, "cache_size", cfg.CacheSize)

	return nil
}

// UpdateAccount stores the account unless a newer write version is already stored.
func (p *Plugin) UpdateAccount(_ context.Context, account geyser.ReplicaAccountInfoVersions, _ uint64, _ bool) error {
	info, err := geyser.AccountInfoV2(account)
	if err != nil {
		return err //nolint:wrapcheck
	}

	pubkey := info.PubkeyKey()
	key := accountKey(pubkey)

	var skipped, indexed bool

	err = runUpdate(p.db, func(txn *badger.Txn) error {
		skipped, indexed = false, false

		stored, ok, err := p.storedVersion(txn, pubkey, key)
		if err != nil {
			return err
		}

		if ok && stored > info.WriteVersion {
			skipped = true
			return nil
		}

		value, err := rlp.EncodeToBytes(&Account{
			Lamports:     info.Lamports,
			Owner:        info.OwnerKey(),
			Executable:   info.Executable,
			RentEpoch:    info.RentEpoch,
			WriteVersion: info.WriteVersion,
			Data:         info.Data,
		})
		if err != nil {
			return err //nolint:wrapcheck
		}

		if err := txn.Set(key, value); err != nil {
			return err //nolint:wrapcheck
		}

		if p.indexTokens {
			indexed, err = p.indexToken(txn, pubkey, info)
		}

		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, pubkey, err)
	}

	// Only committed writes reach the cache and the stats.
	switch {
	case skipped:
		p.stats.Skipped++
	case indexed:
		p.stats.Tokens++
		fallthrough
	default:
		p.versions.Add(pubkey, info.WriteVersion)
		p.stats.Written++
	}

	return nil
}

// OnUnload closes the database.
func (p *Plugin) OnUnload(ctx context.Context) error {
	if p.db == nil {
		return nil
	}

	ctxlog.Debug(ctx, "closing badger database",
		"written", p.stats.Written,
		"skipped", p.stats.Skipped,
		"tokens", p.stats.Tokens,
	)

	err := p.db.Close()
	p.db = nil

	return err //nolint:wrapcheck
}

// Account returns the stored account for pubkey.
func (p *Plugin) Account(pubkey solana.PublicKey) (*Account, error) {
	var acc Account

	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(accountKey(pubkey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}

		if err != nil {
			return err //nolint:wrapcheck
		}

		return item.Value(func(val []byte) error {
			return rlp.DecodeBytes(val, &acc)
		})
	})
	if err != nil {
		return nil, err
	}

	return &acc, nil
}

// Token returns the token entry of the token account pubkey holding mint.
func (p *Plugin) Token(mint, pubkey solana.PublicKey) (*TokenEntry, error) {
	var entry TokenEntry

	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tokenKey(mint, pubkey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}

		if err != nil {
			return err //nolint:wrapcheck
		}

		return item.Value(func(val []byte) error {
			return rlp.DecodeBytes(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (p *Plugin) storedVersion(txn *badger.Txn, pubkey solana.PublicKey, key []byte) (uint64, bool, error) {
	if v, ok := p.versions.Get(pubkey); ok {
		return v.(uint64), true, nil //nolint:forcetypeassert
	}

	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, err //nolint:wrapcheck
	}

	var acc Account

	if err := item.Value(func(val []byte) error {
		return rlp.DecodeBytes(val, &acc)
	}); err != nil {
		return 0, false, err //nolint:wrapcheck
	}

	return acc.WriteVersion, true, nil
}

// indexToken stores the token entry of a token account and reports whether it did.
func (p *Plugin) indexToken(txn *badger.Txn, pubkey solana.PublicKey, info *geyser.ReplicaAccountInfoV2) (bool, error) {
	owner := info.OwnerKey()
	if !token.IsTokenAccount(owner, len(info.Data)) {
		return false, nil
	}

	acc, err := token.Decode(owner, info.Data)
	if err != nil {
		return false, nil //nolint:nilerr
	}

	value, err := rlp.EncodeToBytes(&TokenEntry{Owner: acc.Owner, Amount: acc.Amount})
	if err != nil {
		return false, err //nolint:wrapcheck
	}

	if err := txn.Set(tokenKey(acc.Mint, pubkey), value); err != nil {
		return false, err //nolint:wrapcheck
	}

	return true, nil
}

func accountKey(pubkey solana.PublicKey) []byte {
	return append(accountPrefix[:len(accountPrefix):len(accountPrefix)], pubkey[:]...)
}

func tokenKey(mint, pubkey solana.PublicKey) []byte {
	key := make([]byte, 0, len(tokenPrefix)+2*solana.PublicKeyLength)
	key = append(key, tokenPrefix...)
	key = append(key, mint[:]...)

	return append(key, pubkey[:]...)
}
