// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package crc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskUnmaskRoundTrip(t *testing.T) {
	for _, raw := range []uint32{0, 1, 0xdeadbeef, 0xffffffff} {
		require.Equal(t, raw, Unmask(Mask(raw)))
	}
}

func TestMaskNeverEqualsRawForEmptyInput(t *testing.T) {
	require.NotEqual(t, Value(nil), MaskedValue(nil))
}

func TestDigestMatchesMaskedValue(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	var d Digest
	_, _ = d.Write(data[:10])
	_, _ = d.Write(data[10:])

	require.Equal(t, MaskedValue(data), d.Sum())
}

func TestMaskedValueDetectsMutation(t *testing.T) {
	a := []byte("blob-value-a")
	b := []byte("blob-value-b")
	require.NotEqual(t, MaskedValue(a), MaskedValue(b))
}
