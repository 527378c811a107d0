// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package crc computes the masked CRC32C checksums used throughout the blob
// file format (header CRC, per-record CRC, footer whole-file checksum). The
// mask is RocksDB's: rotate the raw CRC right by 15 bits and add a constant,
// so that the all-zero checksum of an empty buffer never appears as a valid
// "real" checksum and so that masked/unmasked values are never confused.
package crc

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

const maskDelta uint32 = 0xa282ead8

// Value computes the raw (unmasked) CRC32C of b.
func Value(b []byte) uint32 {
	return crc32.Checksum(b, table)
}

// Mask transforms a raw CRC so it can be stored safely, per RocksDB's
// crc32c::Mask.
func Mask(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Unmask is the inverse of Mask, per RocksDB's crc32c::Unmask.
func Unmask(masked uint32) uint32 {
	rot := masked - maskDelta
	return (rot >> 17) | (rot << 15)
}

// MaskedValue computes the masked CRC32C of b directly.
func MaskedValue(b []byte) uint32 {
	return Mask(Value(b))
}

// Digest accumulates a CRC32C over a byte stream fed in multiple Write
// calls, used to compute a blob file's whole-file checksum without
// re-reading the file at close time.
type Digest struct {
	raw uint32
}

// Write extends the running checksum by b. It never returns an error.
func (d *Digest) Write(b []byte) (int, error) {
	d.raw = crc32.Update(d.raw, table, b)
	return len(b), nil
}

// Sum returns the masked CRC32C of every byte written so far.
func (d *Digest) Sum() uint32 {
	return Mask(d.raw)
}
