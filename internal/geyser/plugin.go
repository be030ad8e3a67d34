// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package geyser

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrUnsupportedVersion is returned by plugins given a payload version they do not handle.
var ErrUnsupportedVersion = errors.New("unsupported account info version")

// Plugin consumes account update notifications.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string
	// OnLoad is called once with the path of the plugin config file.
	OnLoad(ctx context.Context, configFile string) error
	// OnUnload is called once when the host is done with the plugin.
	OnUnload(ctx context.Context) error
	// AccountDataNotificationsEnabled reports whether UpdateAccount should be called.
	AccountDataNotificationsEnabled() bool
	// UpdateAccount is called for every account. The account and the slices
	// it refers to are only valid for the duration of the call.
	UpdateAccount(ctx context.Context, account ReplicaAccountInfoVersions, slot uint64, isStartup bool) error
}

// ReplicaAccountInfoVersions is a versioned account update payload.
// The only implementation is *ReplicaAccountInfoV2.
type ReplicaAccountInfoVersions interface {
	Version() string
	replicaAccountInfo()
}

// ReplicaAccountInfoV2 is the state of one account.
type ReplicaAccountInfoV2 struct {
	Pubkey       []byte
	Lamports     uint64
	Owner        []byte
	Executable   bool
	RentEpoch    uint64
	Data         []byte
	WriteVersion uint64
	// TxnSignature is the transaction that last wrote the account, nil when unknown.
	TxnSignature *solana.Signature
}

var _ ReplicaAccountInfoVersions = (*ReplicaAccountInfoV2)(nil)

// Version implements ReplicaAccountInfoVersions.
func (*ReplicaAccountInfoV2) Version() string { return "0.0.2" }

func (*ReplicaAccountInfoV2) replicaAccountInfo() {}

// PubkeyKey returns the account address as a public key.
func (a *ReplicaAccountInfoV2) PubkeyKey() solana.PublicKey {
	return solana.PublicKeyFromBytes(a.Pubkey)
}

// OwnerKey returns the owning program as a public key.
func (a *ReplicaAccountInfoV2) OwnerKey() solana.PublicKey {
	return solana.PublicKeyFromBytes(a.Owner)
}

// AccountInfoV2 returns the V2 payload of account, or ErrUnsupportedVersion.
func AccountInfoV2(account ReplicaAccountInfoVersions) (*ReplicaAccountInfoV2, error) {
	info, ok := account.(*ReplicaAccountInfoV2)
	if !ok || info == nil {
		return nil, ErrUnsupportedVersion
	}

	return info, nil
}

// TokenIndexer is implemented by plugins that can index SPL token accounts.
type TokenIndexer interface {
	SetIndexTokens(enabled bool)
}
