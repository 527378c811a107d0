// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gangliao/rocksdb/internal/base"
)

func TestBaseKeyStableForSameIdentity(t *testing.T) {
	k1 := NewBaseKey("db1", "session1", base.DiskFileNum(42), 1024)
	k2 := NewBaseKey("db1", "session1", base.DiskFileNum(42), 1024)
	require.Equal(t, k1, k2)
}

func TestBaseKeyDiffersAcrossIdentity(t *testing.T) {
	base1 := NewBaseKey("db1", "session1", base.DiskFileNum(42), 1024)

	cases := []BaseKey{
		NewBaseKey("db2", "session1", base.DiskFileNum(42), 1024),
		NewBaseKey("db1", "session2", base.DiskFileNum(42), 1024),
		NewBaseKey("db1", "session1", base.DiskFileNum(43), 1024),
		NewBaseKey("db1", "session1", base.DiskFileNum(42), 2048),
	}
	for _, c := range cases {
		require.NotEqual(t, base1, c)
	}
}

func TestKeyOffsetsDoNotCollide(t *testing.T) {
	b := NewBaseKey("db1", "session1", base.DiskFileNum(1), 4096)

	seen := make(map[mapKey]uint64)
	for offset := uint64(0); offset < 256; offset++ {
		k := b.WithOffset(offset).mapKey()
		if prior, ok := seen[k]; ok {
			t.Fatalf("offsets %d and %d collided", prior, offset)
		}
		seen[k] = offset
	}
}

func TestKeyDistinctAcrossFiles(t *testing.T) {
	k1 := NewBaseKey("db1", "session1", base.DiskFileNum(1), 4096).WithOffset(128)
	k2 := NewBaseKey("db1", "session1", base.DiskFileNum(2), 4096).WithOffset(128)
	require.NotEqual(t, k1.mapKey(), k2.mapKey())
}

func TestBuilderBaseKeyDistinctFromAnyRealSize(t *testing.T) {
	provisional := NewBuilderBaseKey("db1", "session1", base.DiskFileNum(7))
	real := NewBaseKey("db1", "session1", base.DiskFileNum(7), 1<<20)
	require.NotEqual(t, provisional, real)
}
