// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package blob

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/internal/compress"
)

func TestIndexRoundTrip(t *testing.T) {
	cases := []Index{
		{FileNumber: 1, Offset: 0, Size: 0, Compression: compress.None},
		{FileNumber: 123456, Offset: 987654321, Size: 42, Compression: compress.Snappy},
		{FileNumber: ^base.DiskFileNum(0) >> 1, Offset: 1 << 40, Size: 1 << 30, Compression: compress.Zstd},
	}
	for _, idx := range cases {
		enc := EncodeIndex(nil, idx)
		got, err := DecodeIndex(enc)
		require.NoError(t, err)
		require.Equal(t, idx, got)
	}
}

func TestIndexRejectsTrailingBytes(t *testing.T) {
	enc := EncodeIndex(nil, Index{FileNumber: 1, Offset: 2, Size: 3})
	enc = append(enc, 0xff)
	_, err := DecodeIndex(enc)
	require.Error(t, err)
	require.True(t, base.IsCorruptionError(err))
}

func TestIndexRejectsUnknownCompression(t *testing.T) {
	enc := EncodeIndex(nil, Index{FileNumber: 1, Offset: 2, Size: 3})
	enc[0] = 0xfe
	_, err := DecodeIndex(enc)
	require.Error(t, err)
	require.True(t, base.IsCorruptionError(err))
}

func TestIndexIsEmpty(t *testing.T) {
	require.True(t, Index{}.IsEmpty())
	require.False(t, (Index{FileNumber: 1}).IsEmpty())
}
