// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package blobsource implements BlobSource, the reader-side facade that
// resolves (file-number, offset, size) triples into values, coordinating
// the primary blob cache and the per-file reader cache.
package blobsource

import (
	"sort"

	"github.com/gangliao/rocksdb/blobfile"
	"github.com/gangliao/rocksdb/cache"
	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/internal/compress"
	"github.com/gangliao/rocksdb/internal/filecache"
)

// ReadTier selects how far get_blob/multi_get_blob may go to satisfy a
// request.
type ReadTier int

const (
	// ReadAll permits filesystem reads on a cache miss.
	ReadAll ReadTier = iota
	// BlockCacheOnly turns a cache miss into base.ErrIncomplete rather than
	// opening a file.
	BlockCacheOnly
)

// ReadOptions are the per-call knobs recognized by BlobSource.
type ReadOptions struct {
	VerifyChecksums bool
	FillCache       bool
	ReadTier        ReadTier
}

// Source is the reader-side facade (C7): it derives cache keys via the
// cache package, consults the primary blob cache, and falls back to a
// BlobFileReader obtained through a filecache.Cache on a miss.
type Source struct {
	dbID, dbSessionID string
	files             *filecache.Cache
	blobCache         *cache.Cache // may be nil: every lookup misses, straight to disk
	stats             base.StatsSink
}

// New constructs a Source. blobCache may be nil, in which case every GetBlob
// call reads through to the file (no caching at all).
func New(dbID, dbSessionID string, files *filecache.Cache, blobCache *cache.Cache, stats base.StatsSink) *Source {
	if stats == nil {
		stats = base.NoopStats{}
	}
	return &Source{dbID: dbID, dbSessionID: dbSessionID, files: files, blobCache: blobCache, stats: stats}
}

func (s *Source) cacheKey(fileNumber base.DiskFileNum, fileSize, offset uint64) cache.Key {
	return cache.NewBaseKey(s.dbID, s.dbSessionID, fileNumber, fileSize).WithOffset(offset)
}

// GetBlob resolves a single blob: cache lookup, cache-only short-circuit,
// file read, conditional fill.
func (s *Source) GetBlob(
	opts ReadOptions,
	key []byte,
	fileNumber base.DiskFileNum,
	offset, fileSize, size uint64,
	compression compress.Type,
) ([]byte, uint64, error) {
	if s.blobCache != nil {
		ck := s.cacheKey(fileNumber, fileSize, offset)
		if h := s.blobCache.Get(ck); h.Valid() {
			defer h.Release()
			buf := make([]byte, len(h.Bytes()))
			copy(buf, h.Bytes())
			return buf, 0, nil
		}
	}

	if opts.ReadTier == BlockCacheOnly {
		return nil, 0, base.ErrIncomplete
	}

	reader, err := s.files.GetOrOpen(fileNumber)
	if err != nil {
		return nil, 0, base.IOErrorf(err, "blobsource: open %s", fileNumber)
	}

	value, bytesRead, err := reader.ReadBlob(key, offset, size, opts.VerifyChecksums)
	if err != nil {
		return nil, 0, err
	}
	s.stats.TickBy(base.StatBytesRead, bytesRead)

	if opts.FillCache && s.blobCache != nil {
		owned := make([]byte, len(value))
		copy(owned, value)
		ck := s.cacheKey(fileNumber, fileSize, offset)
		s.blobCache.Set(ck, owned).Release()
	}

	return value, bytesRead, nil
}

// GetBlobFileReader returns the open BlobFileReader for fileNumber,
// delegating to the per-file reader cache (C4). Exposed so callers that
// already hold a file number (e.g. an iterator warming its own working set)
// don't have to route through GetBlob/MultiGetBlob to reach a reader.
func (s *Source) GetBlobFileReader(fileNumber base.DiskFileNum) (*blobfile.Reader, error) {
	return s.files.GetOrOpen(fileNumber)
}

// TestBlobInCache probes the primary cache for (fileNumber, fileSize,
// offset) without performing a file read. It counts as a cache lookup for
// statistics purposes.
func (s *Source) TestBlobInCache(fileNumber base.DiskFileNum, fileSize, offset uint64) bool {
	if s.blobCache == nil {
		s.stats.Tick(base.StatCacheMiss)
		return false
	}
	h := s.blobCache.Get(s.cacheKey(fileNumber, fileSize, offset))
	defer h.Release()
	return h.Valid()
}

// Request is a single blob lookup handed to MultiGetBlob. Key, FileNumber,
// Offset, FileSize, Size and Compression identify the blob as in GetBlob.
// Value, BytesRead and Err are populated in place.
type Request struct {
	Key         []byte
	FileNumber  base.DiskFileNum
	Offset      uint64
	FileSize    uint64
	Size        uint64
	Compression compress.Type

	Value     []byte
	BytesRead uint64
	Err       error
}

// MultiGetBlob resolves a batch of requests, grouped by file number so that
// each file's misses are serviced with one coalesced multi-read. It returns
// the total number of on-disk bytes read across every file actually opened;
// cache hits contribute zero. Per-request statuses are independent: one
// request's error never aborts the others.
func (s *Source) MultiGetBlob(opts ReadOptions, reqs []*Request) uint64 {
	byFile := make(map[base.DiskFileNum][]*Request)
	order := make([]base.DiskFileNum, 0)
	for _, r := range reqs {
		if _, ok := byFile[r.FileNumber]; !ok {
			order = append(order, r.FileNumber)
		}
		byFile[r.FileNumber] = append(byFile[r.FileNumber], r)
	}

	var totalBytesRead uint64
	for _, fileNum := range order {
		group := byFile[fileNum]
		totalBytesRead += s.MultiGetBlobFromOneFile(opts, fileNum, group[0].FileSize, group)
	}
	return totalBytesRead
}

// MultiGetBlobFromOneFile resolves every request in reqs against a single,
// already-identified file, taking fileSize once rather than per request
// since the caller (typically MultiGetBlob, after grouping) already knows
// every request shares the same file. Misses are serviced with one
// coalesced blobfile.Reader.MultiRead call; per-request statuses are
// independent, same as MultiGetBlob.
func (s *Source) MultiGetBlobFromOneFile(opts ReadOptions, fileNumber base.DiskFileNum, fileSize uint64, reqs []*Request) uint64 {
	var misses []*Request
	for _, r := range reqs {
		if s.blobCache != nil {
			ck := s.cacheKey(fileNumber, fileSize, r.Offset)
			if h := s.blobCache.Get(ck); h.Valid() {
				buf := make([]byte, len(h.Bytes()))
				copy(buf, h.Bytes())
				h.Release()
				r.Value = buf
				continue
			}
		}
		misses = append(misses, r)
	}
	if len(misses) == 0 {
		return 0
	}

	if opts.ReadTier == BlockCacheOnly {
		for _, r := range misses {
			r.Err = base.ErrIncomplete
		}
		return 0
	}

	reader, err := s.files.GetOrOpen(fileNumber)
	if err != nil {
		ioErr := base.IOErrorf(err, "blobsource: open %s", fileNumber)
		for _, r := range misses {
			r.Err = ioErr
		}
		return 0
	}

	sort.Slice(misses, func(i, j int) bool { return misses[i].Offset < misses[j].Offset })
	fileReqs := make([]*blobfile.Request, len(misses))
	for i, r := range misses {
		fileReqs[i] = &blobfile.Request{Key: r.Key, Offset: r.Offset, Size: r.Size}
	}
	reader.MultiRead(fileReqs, opts.VerifyChecksums)

	var totalBytesRead uint64
	for i, r := range misses {
		fr := fileReqs[i]
		if fr.Err != nil {
			r.Err = fr.Err
			continue
		}
		r.Value = fr.Value
		r.BytesRead = fr.BytesRead
		totalBytesRead += fr.BytesRead
		s.stats.TickBy(base.StatBytesRead, fr.BytesRead)

		if opts.FillCache && s.blobCache != nil {
			owned := make([]byte, len(fr.Value))
			copy(owned, fr.Value)
			ck := s.cacheKey(fileNumber, fileSize, r.Offset)
			s.blobCache.Set(ck, owned).Release()
		}
	}
	return totalBytesRead
}
