// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrRecordOutOfBounds is returned when a record extends past the end of its storage.
	ErrRecordOutOfBounds = errors.New("account record out of bounds")
	// ErrInvalidExecutable is returned when the executable flag is neither 0 nor 1.
	ErrInvalidExecutable = errors.New("invalid executable flag")
)

// Append-vec record layout. All integers are little endian.
const (
	storedMetaSize  = 8 + 8 + solana.PublicKeyLength     // write_version, data_len, pubkey
	accountMetaSize = 8 + 8 + solana.PublicKeyLength + 8 // lamports, rent_epoch, owner, executable + padding
	hashSize        = 32
	recordHeaderLen = storedMetaSize + accountMetaSize + hashSize
	recordAlign     = 8

	offWriteVersion = 0
	offDataLen      = 8
	offPubkey       = 16
	offLamports     = storedMetaSize
	offRentEpoch    = offLamports + 8
	offOwner        = offRentEpoch + 8
	offExecutable   = offOwner + solana.PublicKeyLength
)

// StoredAccount is a decoded account. Data aliases the loader's storage and is
// only valid until the iterator that produced it advances.
type StoredAccount struct {
	Pubkey       solana.PublicKey
	Lamports     uint64
	Owner        solana.PublicKey
	Executable   bool
	RentEpoch    uint64
	Data         []byte
	WriteVersion uint64
}

// Record is a handle to an account that has not been decoded yet.
// A Record and the StoredAccount it returns are borrowed: both are invalid
// once the iteration step that yielded them returns.
type Record interface {
	// Access decodes and validates the account.
	Access() (*StoredAccount, error)
}

// appendVecRecord is reused for every record of an iteration.
type appendVecRecord struct {
	storage []byte
	offset  int
	account StoredAccount
}

var _ Record = (*appendVecRecord)(nil)

// Access implements Record.
func (r *appendVecRecord) Access() (*StoredAccount, error) {
	end, ok := recordEnd(r.storage, r.offset)
	if !ok {
		return nil, fmt.Errorf("%w: offset %d, storage length %d", ErrRecordOutOfBounds, r.offset, len(r.storage))
	}

	hdr := r.storage[r.offset : r.offset+recordHeaderLen]

	var executable bool

	switch hdr[offExecutable] {
	case 0:
	case 1:
		executable = true
	default:
		return nil, fmt.Errorf("%w: %d at offset %d", ErrInvalidExecutable, hdr[offExecutable], r.offset)
	}

	r.account = StoredAccount{
		Pubkey:       solana.PublicKeyFromBytes(hdr[offPubkey : offPubkey+solana.PublicKeyLength]),
		Lamports:     binary.LittleEndian.Uint64(hdr[offLamports:]),
		Owner:        solana.PublicKeyFromBytes(hdr[offOwner : offOwner+solana.PublicKeyLength]),
		Executable:   executable,
		RentEpoch:    binary.LittleEndian.Uint64(hdr[offRentEpoch:]),
		Data:         r.storage[r.offset+recordHeaderLen : end : end],
		WriteVersion: binary.LittleEndian.Uint64(hdr[offWriteVersion:]),
	}

	return &r.account, nil
}

// recordEnd returns the end of the data of the record at offset.
func recordEnd(storage []byte, offset int) (int, bool) {
	if offset < 0 || len(storage)-offset < recordHeaderLen {
		return 0, false
	}

	dataLen := binary.LittleEndian.Uint64(storage[offset+offDataLen:])
	if dataLen > uint64(len(storage)-offset-recordHeaderLen) {
		return 0, false
	}

	return offset + recordHeaderLen + int(dataLen), true //nolint:gosec // bounded by len(storage)
}

func alignUp(n int) int {
	return (n + recordAlign - 1) &^ (recordAlign - 1)
}
