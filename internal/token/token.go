// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package token

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// AccountLen is the size of an SPL token account.
const AccountLen = 165

const (
	offMint   = 0
	offOwner  = 32
	offAmount = 64
	offState  = 108
)

// AccountState is the state byte of a token account.
type AccountState uint8

// Token account states.
const (
	StateUninitialized AccountState = iota
	StateInitialized
	StateFrozen
)

var (
	// ErrNotTokenAccount is returned when the account is not owned by the token program.
	ErrNotTokenAccount = errors.New("not a token account")
	// ErrBadLength is returned when the account data is not AccountLen bytes.
	ErrBadLength = errors.New("invalid token account length")
	// ErrUninitialized is returned for token accounts that were never initialized.
	ErrUninitialized = errors.New("token account is not initialized")
)

// Account is the part of an SPL token account that gets indexed.
type Account struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
	State  AccountState
}

// IsTokenAccount reports whether an account owned by owner with data of
// length dataLen can be decoded.
func IsTokenAccount(owner solana.PublicKey, dataLen int) bool {
	return owner.Equals(solana.TokenProgramID) && dataLen == AccountLen
}

// Decode decodes the token account data of an account owned by owner.
func Decode(owner solana.PublicKey, data []byte) (*Account, error) {
	if !owner.Equals(solana.TokenProgramID) {
		return nil, fmt.Errorf("%w: owner %s", ErrNotTokenAccount, owner)
	}

	if len(data) != AccountLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadLength, len(data))
	}

	acc := &Account{
		Mint:   solana.PublicKeyFromBytes(data[offMint:offOwner]),
		Owner:  solana.PublicKeyFromBytes(data[offOwner:offAmount]),
		Amount: binary.LittleEndian.Uint64(data[offAmount:]),
		State:  AccountState(data[offState]),
	}

	if acc.State == StateUninitialized {
		return nil, ErrUninitialized
	}

	return acc, nil
}
