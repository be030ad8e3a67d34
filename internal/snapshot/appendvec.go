// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package snapshot

// walkAppendVec yields every record of an append-vec storage, reusing rec.
// It stops at the end of the storage, at zero padding, or after yielding a
// record that does not fit. It returns false if yield asked to stop.
func walkAppendVec(storage []byte, rec *appendVecRecord, yield func(Record, error) bool) bool {
	offset := 0

	for len(storage)-offset >= recordHeaderLen {
		if isZeroHeader(storage[offset : offset+recordHeaderLen]) {
			return true
		}

		rec.storage = storage
		rec.offset = offset
		rec.account = StoredAccount{}

		end, ok := recordEnd(storage, offset)

		if !yield(rec, nil) {
			return false
		}

		if !ok {
			return true
		}

		offset = alignUp(end)
	}

	return true
}

// isZeroHeader reports whether the meta part of a header is zero filled,
// which marks the unused tail of a preallocated storage.
func isZeroHeader(hdr []byte) bool {
	for _, b := range hdr[:storedMetaSize+accountMetaSize] {
		if b != 0 {
			return false
		}
	}

	return true
}
