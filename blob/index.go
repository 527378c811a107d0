// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package blob

import (
	"encoding/binary"

	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/internal/compress"
)

// Index is the compact reference stored as a value in the main sorted-table
// index in place of a large value. It carries no key: the key is
// re-verified against the on-disk record at read time.
type Index struct {
	FileNumber  base.DiskFileNum
	Offset      uint64
	Size        uint64
	Compression compress.Type
}

// IsEmpty reports whether idx is the zero value, returned by the builder
// when a value is stored inline rather than out-of-line.
func (idx Index) IsEmpty() bool {
	return idx == Index{}
}

// EncodeIndex appends idx's wire encoding to dst:
// compression(1) || varint(file_number) || varint(offset) || varint(size)
func EncodeIndex(dst []byte, idx Index) []byte {
	var buf [binary.MaxVarintLen64]byte
	dst = append(dst, byte(idx.Compression))
	n := binary.PutUvarint(buf[:], uint64(idx.FileNumber))
	dst = append(dst, buf[:n]...)
	n = binary.PutUvarint(buf[:], idx.Offset)
	dst = append(dst, buf[:n]...)
	n = binary.PutUvarint(buf[:], idx.Size)
	dst = append(dst, buf[:n]...)
	return dst
}

// DecodeIndex parses a blob index from exactly len(b) bytes: trailing bytes
// after the three varints are rejected as corruption, as is an unrecognized
// compression tag.
func DecodeIndex(b []byte) (Index, error) {
	if len(b) < 1 {
		return Index{}, base.CorruptionErrorf("blob: empty blob index")
	}
	compression := compress.Type(b[0])
	if !compression.Valid() {
		return Index{}, base.CorruptionErrorf("blob: unrecognized compression type %d in blob index", b[0])
	}
	rest := b[1:]

	fileNumber, n := binary.Uvarint(rest)
	if n <= 0 {
		return Index{}, base.CorruptionErrorf("blob: malformed file number varint in blob index")
	}
	rest = rest[n:]

	offset, n := binary.Uvarint(rest)
	if n <= 0 {
		return Index{}, base.CorruptionErrorf("blob: malformed offset varint in blob index")
	}
	rest = rest[n:]

	size, n := binary.Uvarint(rest)
	if n <= 0 {
		return Index{}, base.CorruptionErrorf("blob: malformed size varint in blob index")
	}
	rest = rest[n:]

	if len(rest) != 0 {
		return Index{}, base.CorruptionErrorf("blob: %d trailing bytes in blob index", len(rest))
	}

	return Index{
		FileNumber:  base.DiskFileNum(fileNumber),
		Offset:      offset,
		Size:        size,
		Compression: compression,
	}, nil
}
