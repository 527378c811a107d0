// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package blob

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/internal/compress"
	"github.com/gangliao/rocksdb/internal/crc"
)

func TestHeaderRoundTrip(t *testing.T) {
	for _, ct := range []compress.Type{compress.None, compress.Snappy, compress.Zstd, compress.LZ4} {
		h := Header{
			Version:        FormatVersion,
			ColumnFamilyID: 7,
			Compression:    ct,
			HasTTL:         false,
		}
		buf := make([]byte, HeaderSize)
		h.Encode(buf)
		got, err := DecodeHeader(buf)
		require.NoError(t, err)
		require.Equal(t, h, got)
	}
}

func TestHeaderBadMagic(t *testing.T) {
	h := Header{Version: FormatVersion, Compression: compress.None}
	buf := make([]byte, HeaderSize)
	h.Encode(buf)
	buf[0] ^= 0xff
	_, err := DecodeHeader(buf)
	require.Error(t, err)
	require.True(t, base.IsCorruptionError(err))
}

func TestHeaderCorruptByteDetected(t *testing.T) {
	h := Header{Version: FormatVersion, Compression: compress.Snappy}
	buf := make([]byte, HeaderSize)
	h.Encode(buf)
	// Flip a byte in the middle of the header (not the magic, not the CRC).
	buf[9] ^= 0xff
	_, err := DecodeHeader(buf)
	require.Error(t, err)
	require.True(t, base.IsCorruptionError(err))
}

func TestRecordRoundTrip(t *testing.T) {
	for _, hasTTL := range []bool{false, true} {
		var buf []byte
		buf = EncodeRecord(buf, hasTTL, 42, []byte("key0"), []byte("value-of-key0"))
		rec, n, err := DecodeRecord(buf, hasTTL, true)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, []byte("key0"), rec.Key)
		require.Equal(t, []byte("value-of-key0"), rec.Value)
		if hasTTL {
			require.Equal(t, uint64(42), rec.Expiration)
		}
	}
}

func TestRecordChecksumDetectsCorruption(t *testing.T) {
	var buf []byte
	buf = EncodeRecord(buf, false, 0, []byte("k"), []byte("a reasonably long value for testing"))
	// Flip a byte in the value region.
	buf[len(buf)-5] ^= 0xff
	_, _, err := DecodeRecord(buf, false, true)
	require.Error(t, err)
	require.True(t, base.IsCorruptionError(err))

	// With verification disabled, decoding still succeeds (but returns the
	// corrupted bytes) -- callers that don't ask for verification get no
	// detection, as documented.
	rec, _, err := DecodeRecord(buf, false, false)
	require.NoError(t, err)
	require.NotEqual(t, []byte("a reasonably long value for testing"), rec.Value)
}

func TestFooterRoundTrip(t *testing.T) {
	data := []byte("header-and-records-go-here")

	f := Footer{BlobCount: 16, ExpirationMin: 0, ExpirationMax: 0}
	buf := make([]byte, FooterSize)

	var d crc.Digest
	d.Write(data)
	f.Encode(buf, &d)

	got, err := DecodeFooter(buf)
	require.NoError(t, err)
	require.Equal(t, f.BlobCount, got.BlobCount)
	require.Equal(t, f.ChecksumMethod, got.ChecksumMethod)
	require.Equal(t, f.ChecksumValue, got.ChecksumValue)

	var prefix [checksumMethodPrefixSize]byte
	copy(prefix[:], buf[:checksumMethodPrefixSize])
	require.True(t, got.VerifyFileChecksum(data, prefix))
}

func TestFooterBadChecksumDetected(t *testing.T) {
	data := []byte("some file bytes")
	f := Footer{BlobCount: 1}
	buf := make([]byte, FooterSize)
	var d crc.Digest
	d.Write(data)
	f.Encode(buf, &d)

	buf[5] ^= 0xff // corrupt blob_count
	_, err := DecodeFooter(buf)
	require.Error(t, err)
	require.True(t, base.IsCorruptionError(err))
}
