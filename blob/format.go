// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package blob implements the on-disk blob log format (header, record,
// footer) and the compact blob index encoding stored as a value in the main
// sorted-table index. The layout is bit-exact and must round-trip:
// decode(encode(x)) == x for every field.
package blob

import (
	"encoding/binary"

	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/internal/compress"
	"github.com/gangliao/rocksdb/internal/crc"
)

// fileMagic identifies a blob log file. It appears once at the start of the
// header and once at the start of the footer.
const fileMagic uint32 = 0xf09fa6b3

// FormatVersion identifies the on-disk layout version. There is currently
// only one.
const FormatVersion uint32 = 1

// HeaderSize is the fixed size in bytes of a blob file header:
// magic(4) | version(4) | column_family_id(4) | compression(1) | has_ttl(1)
// | expiration_min(8) | expiration_max(8) | header_crc(4)
const HeaderSize = 4 + 4 + 4 + 1 + 1 + 8 + 8 + 4

// RecordHeaderSize is the fixed size in bytes of a record's header, not
// counting the key and value bytes that follow it:
// record_crc(4) | key_len(8) | value_len(8)
//
// A record's on-disk size is RecordHeaderSize + len(key) + len(value), plus
// 8 more bytes if the file has_ttl (an expiration field is inserted between
// the header and the key bytes).
const RecordHeaderSize = 4 + 8 + 8

// FooterSize is the fixed size in bytes of a blob file footer:
// magic(4) | blob_count(8) | expiration_min(8) | expiration_max(8) |
// checksum_method_id(4) | checksum_value(8) | footer_crc(4)
const FooterSize = 4 + 8 + 8 + 8 + 4 + 8 + 4

// checksumMethodPrefixSize is the size, in bytes, of the footer fields that
// precede checksum_value: magic, blob_count, expiration_min, expiration_max,
// checksum_method_id.
const checksumMethodPrefixSize = 4 + 8 + 8 + 8 + 4

// ChecksumMethodCRC32C is the only checksum method this implementation
// writes, stored as a 4-byte ASCII tag rather than a numeric id so the
// field is self-describing on disk. A tag this reader doesn't recognize is
// corruption, not a silently-ignored unknown field.
var ChecksumMethodCRC32C = [4]byte{'C', '3', '2', 'C'}

// Header is the fixed-size region at the start of every blob file.
type Header struct {
	Version        uint32
	ColumnFamilyID base.ColumnFamilyID
	Compression    compress.Type
	HasTTL         bool
	ExpirationMin  uint64
	ExpirationMax  uint64
}

// Encode writes the header (including its CRC) into buf, which must be at
// least HeaderSize bytes.
func (h *Header) Encode(buf []byte) {
	_ = buf[HeaderSize-1]
	binary.LittleEndian.PutUint32(buf[0:], fileMagic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint32(buf[8:], uint32(h.ColumnFamilyID))
	buf[12] = byte(h.Compression)
	if h.HasTTL {
		buf[13] = 1
	} else {
		buf[13] = 0
	}
	binary.LittleEndian.PutUint64(buf[14:], h.ExpirationMin)
	binary.LittleEndian.PutUint64(buf[22:], h.ExpirationMax)
	binary.LittleEndian.PutUint32(buf[30:], crc.MaskedValue(buf[:30]))
}

// DecodeHeader parses a header from buf, which must be exactly HeaderSize
// bytes (the caller reads that many bytes off the front of the file).
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) != HeaderSize {
		return h, base.InvalidArgumentErrorf("blob: header must be %d bytes, got %d", HeaderSize, len(buf))
	}
	magic := binary.LittleEndian.Uint32(buf[0:])
	if magic != fileMagic {
		return h, base.CorruptionErrorf("blob: bad header magic 0x%08x", magic)
	}
	wantCRC := crc.MaskedValue(buf[:30])
	gotCRC := binary.LittleEndian.Uint32(buf[30:])
	if wantCRC != gotCRC {
		return h, base.CorruptionErrorf("blob: header checksum mismatch (want 0x%08x, got 0x%08x)", wantCRC, gotCRC)
	}
	h.Version = binary.LittleEndian.Uint32(buf[4:])
	h.ColumnFamilyID = base.ColumnFamilyID(binary.LittleEndian.Uint32(buf[8:]))
	h.Compression = compress.Type(buf[12])
	if !h.Compression.Valid() {
		return h, base.CorruptionErrorf("blob: unrecognized compression type %d in header", buf[12])
	}
	h.HasTTL = buf[13] != 0
	h.ExpirationMin = binary.LittleEndian.Uint64(buf[14:])
	h.ExpirationMax = binary.LittleEndian.Uint64(buf[22:])
	return h, nil
}

// RecordHeader is the fixed-size portion of a record, preceding the
// (optional expiration,) key and value bytes.
type RecordHeader struct {
	KeyLen   uint64
	ValueLen uint64
	// Expiration is only present on disk when the owning file's header has
	// HasTTL set; the core treats it as an opaque pass-through field and
	// never enforces it.
	Expiration uint64
}

// RecordSize returns the total on-disk size of a record with this header's
// key/value lengths, including the per-record expiration field iff hasTTL.
func (rh RecordHeader) RecordSize(hasTTL bool) uint64 {
	sz := uint64(RecordHeaderSize) + rh.KeyLen + rh.ValueLen
	if hasTTL {
		sz += 8
	}
	return sz
}

// EncodeRecord appends one complete record (header, optional expiration,
// key, value) to dst and returns the extended slice. The record CRC covers
// everything after the CRC field itself (key_len through value bytes).
func EncodeRecord(dst []byte, hasTTL bool, expiration uint64, key, value []byte) []byte {
	headerLen := RecordHeaderSize
	if hasTTL {
		headerLen += 8
	}
	start := len(dst)
	dst = append(dst, make([]byte, headerLen)...)
	body := dst[start+4:]
	binary.LittleEndian.PutUint64(body[0:], uint64(len(key)))
	binary.LittleEndian.PutUint64(body[8:], uint64(len(value)))
	off := 16
	if hasTTL {
		binary.LittleEndian.PutUint64(body[off:], expiration)
		off += 8
	}
	dst = append(dst, key...)
	dst = append(dst, value...)
	sum := crc.MaskedValue(dst[start+4:])
	binary.LittleEndian.PutUint32(dst[start:], sum)
	return dst
}

// DecodedRecord is a record parsed off disk, with Key/Value as views into
// the buffer passed to DecodeRecord.
type DecodedRecord struct {
	Expiration uint64
	Key        []byte
	Value      []byte
}

// DecodeRecord parses one record from buf, which must hold at least the
// fixed header for the file's hasTTL setting; it reads exactly as many bytes
// as the encoded key_len/value_len call for and returns the number of bytes
// consumed. If verifyChecksum is true, the record CRC is validated first.
func DecodeRecord(buf []byte, hasTTL bool, verifyChecksum bool) (DecodedRecord, int, error) {
	headerLen := RecordHeaderSize
	if hasTTL {
		headerLen += 8
	}
	if len(buf) < headerLen {
		return DecodedRecord{}, 0, base.IOErrorf(nil, "blob: short read, need %d header bytes, have %d", headerLen, len(buf))
	}
	keyLen := binary.LittleEndian.Uint64(buf[4:])
	valueLen := binary.LittleEndian.Uint64(buf[12:])
	off := 20
	var expiration uint64
	if hasTTL {
		expiration = binary.LittleEndian.Uint64(buf[off:])
		off += 8
	}
	total := off + int(keyLen) + int(valueLen)
	if len(buf) < total {
		return DecodedRecord{}, 0, base.IOErrorf(nil, "blob: short read, need %d record bytes, have %d", total, len(buf))
	}
	if verifyChecksum {
		wantCRC := binary.LittleEndian.Uint32(buf[0:])
		gotCRC := crc.MaskedValue(buf[4:total])
		if wantCRC != gotCRC {
			return DecodedRecord{}, 0, base.CorruptionErrorf("blob: record checksum mismatch (want 0x%08x, got 0x%08x)", wantCRC, gotCRC)
		}
	}
	rec := DecodedRecord{
		Expiration: expiration,
		Key:        buf[off : off+int(keyLen)],
		Value:      buf[off+int(keyLen) : total],
	}
	return rec, total, nil
}

// Footer is the fixed-size region at the end of every blob file, written
// exactly once, when the file is sealed.
type Footer struct {
	BlobCount      uint64
	ExpirationMin  uint64
	ExpirationMax  uint64
	ChecksumMethod [4]byte
	ChecksumValue  uint64
}

// Encode writes the footer into buf, which must be exactly FooterSize bytes.
// fileDigest must already have accumulated every byte of the file preceding
// the footer (the header and all records, via crc.Digest.Write as they were
// written); Encode feeds it the footer's own leading fields too, so that
// ChecksumValue covers the entire file up to the footer-checksum field
// itself, then separately computes footer_crc over the footer struct.
func (f *Footer) Encode(buf []byte, fileDigest *crc.Digest) {
	_ = buf[FooterSize-1]
	f.ChecksumMethod = ChecksumMethodCRC32C
	binary.LittleEndian.PutUint32(buf[0:], fileMagic)
	binary.LittleEndian.PutUint64(buf[4:], f.BlobCount)
	binary.LittleEndian.PutUint64(buf[12:], f.ExpirationMin)
	binary.LittleEndian.PutUint64(buf[20:], f.ExpirationMax)
	copy(buf[28:32], f.ChecksumMethod[:])

	fileDigest.Write(buf[:checksumMethodPrefixSize])
	f.ChecksumValue = uint64(fileDigest.Sum())
	binary.LittleEndian.PutUint64(buf[32:], f.ChecksumValue)

	// footer_crc spans everything in the footer up to this field and
	// protects the footer independently of the whole-file checksum (a
	// corrupt blob_count is caught even if nobody ever rereads the whole
	// file to verify ChecksumValue).
	binary.LittleEndian.PutUint32(buf[40:], crc.MaskedValue(buf[:40]))
}

// DecodeFooter parses a footer from buf, which must be exactly FooterSize
// bytes.
func DecodeFooter(buf []byte) (Footer, error) {
	var f Footer
	if len(buf) != FooterSize {
		return f, base.InvalidArgumentErrorf("blob: footer must be %d bytes, got %d", FooterSize, len(buf))
	}
	magic := binary.LittleEndian.Uint32(buf[0:])
	if magic != fileMagic {
		return f, base.CorruptionErrorf("blob: bad footer magic 0x%08x", magic)
	}
	wantCRC := crc.MaskedValue(buf[:40])
	gotCRC := binary.LittleEndian.Uint32(buf[40:])
	if wantCRC != gotCRC {
		return f, base.CorruptionErrorf("blob: footer checksum mismatch (want 0x%08x, got 0x%08x)", wantCRC, gotCRC)
	}
	f.BlobCount = binary.LittleEndian.Uint64(buf[4:])
	f.ExpirationMin = binary.LittleEndian.Uint64(buf[12:])
	f.ExpirationMax = binary.LittleEndian.Uint64(buf[20:])
	copy(f.ChecksumMethod[:], buf[28:32])
	if f.ChecksumMethod != ChecksumMethodCRC32C {
		return f, base.CorruptionErrorf("blob: unrecognized checksum method %q", f.ChecksumMethod)
	}
	f.ChecksumValue = binary.LittleEndian.Uint64(buf[32:])
	return f, nil
}

// VerifyFileChecksum reports whether the whole-file checksum recorded in f
// matches recomputing over every byte of the file preceding the footer plus
// the footer's own leading fields (magic through checksum_method_id),
// exactly as Encode computed it.
func (f Footer) VerifyFileChecksum(dataBeforeFooter []byte, footerPrefix [checksumMethodPrefixSize]byte) bool {
	var d crc.Digest
	d.Write(dataBeforeFooter)
	d.Write(footerPrefix[:])
	return uint64(d.Sum()) == f.ChecksumValue
}
