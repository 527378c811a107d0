// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package cache implements the blob cache: a bounded, refcounted, in-memory
// store of decoded blob values keyed by file and offset, with an optional
// secondary tier for compressed or off-heap storage.
package cache

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/gangliao/rocksdb/internal/base"
)

// BaseKey is a cache key fingerprint derived once per blob file, from
// identifiers that are stable for the lifetime of that file: the owning
// database's identity, its current session, the file number, and the
// file's size. WithOffset mixes in a per-blob offset cheaply, without
// re-hashing the file-level fields on every lookup.
type BaseKey struct {
	fingerprint uint64
}

// NewBaseKey derives a file-level cache-key base. dbID and dbSessionID
// identify the database instance (so that two databases, or two sessions of
// the same database after a crash, never collide in a shared cache);
// fileNumber and fileSize identify the blob file within that instance.
//
// fileSize must be the file's final size. A blob file builder does not know
// this until the file is closed (on rollover inside Add, or in Finish), so
// any cache entries
// warmed while the file is still open are necessarily keyed with a
// placeholder size and must be re-keyed with NewBaseKey once the true size
// is known -- see Cache.Rekey.
func NewBaseKey(dbID, dbSessionID string, fileNumber base.DiskFileNum, fileSize uint64) BaseKey {
	h := xxhash.New()
	_, _ = h.WriteString(dbID)
	_, _ = h.WriteString(dbSessionID)
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(fileNumber))
	binary.LittleEndian.PutUint64(buf[8:], fileSize)
	_, _ = h.Write(buf[:])
	return BaseKey{fingerprint: h.Sum64()}
}

// sizeSentinel is the placeholder file size used to key cache entries
// warmed while a blob file is still being written. It can never collide
// with a real file size (files are capped well below this).
const sizeSentinel = ^uint64(0)

// NewBuilderBaseKey derives a provisional cache-key base for use while a
// blob file is still open for writes, before its final size is known. Every
// entry warmed under this key must be re-inserted under NewBaseKey's result
// once the file closes; the provisional key is never looked up by readers
// (the file does not exist as a readable file yet) so it never needs to
// match an open-time key precisely -- it only needs to be unique enough
// that concurrent builders for distinct files don't collide, which the real
// file number (not the sentinel) already guarantees.
func NewBuilderBaseKey(dbID, dbSessionID string, fileNumber base.DiskFileNum) BaseKey {
	return NewBaseKey(dbID, dbSessionID, fileNumber, sizeSentinel)
}

// Key is a fully-specified cache key: a file-level BaseKey plus a byte
// offset within that file.
type Key struct {
	fingerprint uint64
	offset      uint64
}

// WithOffset mixes offset into b, producing the key used to look up or
// insert a single blob's cached value. The offset is XORed in after a
// cheap avalanche so that two offsets differing in only a few bits don't
// produce adjacent (and therefore LRU-correlated) keys.
func (b BaseKey) WithOffset(offset uint64) Key {
	mixed := offset * 0x9e3779b97f4a7c15 // Fibonacci hashing multiplier.
	mixed ^= mixed >> 32
	return Key{fingerprint: b.fingerprint ^ mixed, offset: offset}
}

// mapKey is the comparable value actually used as a Go map key; Key itself
// is kept as two fields (rather than a single combined uint64) so that
// WithOffset can be cheap while mapKey stays a plain comparable struct.
type mapKey struct {
	fingerprint uint64
	offset      uint64
}

func (k Key) mapKey() mapKey {
	return mapKey{fingerprint: k.fingerprint, offset: k.offset}
}
