// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package base

// StatsSink is the statistics collector passed to builders and sources. It
// is intentionally narrow: a named ticker (monotonic counter) and a named
// histogram observation, enough to cover cache hit/miss/add, bytes
// read/written, and compression latency.
type StatsSink interface {
	// Tick increments the named counter by one.
	Tick(name string)
	// TickBy increments the named counter by delta.
	TickBy(name string, delta uint64)
	// Observe records a single sample against the named histogram.
	Observe(name string, seconds float64)
}

// Well-known stat names, mirroring RocksDB's BLOB_DB_* ticker family.
const (
	StatCacheHit            = "blob.cache.hit"
	StatCacheMiss           = "blob.cache.miss"
	StatCacheAdd            = "blob.cache.add"
	StatCacheAddFailures    = "blob.cache.add_failures"
	StatCacheBytesRead      = "blob.cache.bytes_read"
	StatCacheBytesWrite     = "blob.cache.bytes_write"
	StatBytesRead           = "blob.file.bytes_read"
	StatCompressionSeconds  = "blob.compression_seconds"
	StatDecompressionErrors = "blob.decompression_errors"
)

// NoopStats discards every observation. Useful as a zero-value default.
type NoopStats struct{}

func (NoopStats) Tick(string)                 {}
func (NoopStats) TickBy(string, uint64)        {}
func (NoopStats) Observe(string, float64)      {}
