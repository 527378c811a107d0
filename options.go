// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package rocksdb wires together the blob storage subsystem: the
// BlobFileBuilder writer and the BlobSource reader, sharing a file-reader
// cache and an optional blob value cache.
package rocksdb

import (
	"github.com/gangliao/rocksdb/blobfile"
	"github.com/gangliao/rocksdb/blobsource"
	"github.com/gangliao/rocksdb/cache"
	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/internal/compress"
	"github.com/gangliao/rocksdb/internal/filecache"
	"github.com/gangliao/rocksdb/internal/stats"
	"github.com/gangliao/rocksdb/vfs"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheTier gates how far a read may reach into the cache hierarchy,
// restricting which cache tiers a read is allowed to consult.
type CacheTier int

const (
	// VolatileTier restricts lookups to the in-memory primary cache.
	VolatileTier CacheTier = iota
	// NonVolatileBlockTier additionally permits the secondary (compressed,
	// possibly off-heap) cache tier.
	NonVolatileBlockTier
)

// Options aggregates every blob storage configuration axis, plus the
// ambient collaborators (filesystem, clock, logger, stats, file-number
// generator) that a complete implementation needs. A zero Options is
// completed into usable defaults by EnsureDefaults.
type Options struct {
	// FS is the filesystem blob files are created on and read from.
	FS vfs.FS
	// Dir is the column-family path blob files are written under.
	Dir string

	DBID, DBSessionID string
	ColumnFamilyID    base.ColumnFamilyID
	ColumnFamilyName  string

	// MinBlobSize: values shorter than this are stored inline by the
	// builder (an empty blob.Index is returned from Add).
	MinBlobSize uint64
	// BlobFileSize is the target rollover size; advisory, the current
	// record is never split across files.
	BlobFileSize uint64
	// BlobCompressionType is fixed per file at creation.
	BlobCompressionType compress.Type
	// PrepopulateBlobCache controls warm-up of freshly written blobs.
	PrepopulateBlobCache blobfile.PrepopulatePolicy
	// UseFsync selects fsync over fdatasync-equivalent durability at file
	// close. vfs.File.Sync is the durability primitive either way; this
	// flag is carried for configuration fidelity with the source system
	// and does not change vfs's behavior, since Go's os.File.Sync is
	// already a full fsync.
	UseFsync bool
	// ChecksumHandoffFileTypes gates whether blob files participate in
	// checksum handoff to the filesystem layer (unused by vfs.Default,
	// which always lets the OS compute its own checksums; retained so
	// callers can express the policy regardless).
	ChecksumHandoffFileTypes map[string]bool

	// BlobCacheCapacity sizes the primary blob cache; zero disables
	// caching entirely. Ignored if BlobCache is set directly.
	BlobCacheCapacity int
	// BlobCache, if non-nil, is used in place of a cache constructed from
	// BlobCacheCapacity.
	BlobCache *cache.Cache
	// SecondaryCache, if non-nil, backs BlobCache's second tier.
	SecondaryCache cache.SecondaryCache
	// LowestUsedCacheTier gates secondary-tier use.
	LowestUsedCacheTier CacheTier

	// FileCacheCapacity sizes the open-blob-file-reader cache.
	FileCacheCapacity int

	Logger base.Logger
	Stats  base.StatsSink
	Clock  base.Clock

	// NextFileNumber must be externally synchronized across every builder
	// sharing this database.
	NextFileNumber func() base.DiskFileNum

	OnCreationStarted blobfile.OnCreationStarted
	OnCompleted       blobfile.OnCompleted
}

// EnsureDefaults fills in every unset field with a usable default and
// returns o for chaining.
func (o *Options) EnsureDefaults() *Options {
	if o.FS == nil {
		o.FS = vfs.Default
	}
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.DBSessionID == "" {
		o.DBSessionID = "default-session"
	}
	if o.BlobFileSize == 0 {
		o.BlobFileSize = 1 << 28
	}
	if o.Logger == nil {
		o.Logger = base.NewLogrusLogger(nil)
	}
	if o.Stats == nil {
		o.Stats = stats.NewPrometheusSink(prometheus.DefaultRegisterer)
	}
	if o.Clock == nil {
		o.Clock = base.SystemClock{}
	}
	if o.FileCacheCapacity == 0 {
		o.FileCacheCapacity = 256
	}
	if o.NextFileNumber == nil {
		var n uint64
		o.NextFileNumber = func() base.DiskFileNum {
			n++
			return base.DiskFileNum(n)
		}
	}
	if o.BlobCache == nil && o.BlobCacheCapacity > 0 {
		secondary := o.SecondaryCache
		if o.LowestUsedCacheTier == VolatileTier {
			// Secondary tier is non-volatile by construction; the
			// configured tier excludes it.
			secondary = nil
		}
		o.BlobCache = cache.New(o.BlobCacheCapacity, secondary, o.Stats)
	}
	return o
}

// DB bundles a BlobFileBuilder factory and a shared BlobSource over one set
// of Options, the shape an embedding storage engine wires into its flush,
// compaction and read paths.
type DB struct {
	opts  Options
	files *filecache.Cache
}

// Open validates opts (filling defaults) and returns a DB ready to create
// builders and service reads.
func Open(opts Options) *DB {
	opts.EnsureDefaults()
	files := filecache.New(opts.FS, opts.Dir, opts.FileCacheCapacity, nil)
	return &DB{opts: opts, files: files}
}

// NewBuilder creates a Builder for one flush or compaction job. paths and
// additions are the job-owned output collectors described in
// blobfile.Config.
func (db *DB) NewBuilder(jobID int, reason blobfile.CreationReason, paths *[]string, additions *[]blobfile.Addition) *blobfile.Builder {
	return blobfile.New(blobfile.Config{
		FS:                db.opts.FS,
		Dir:                db.opts.Dir,
		DBID:               db.opts.DBID,
		DBSessionID:        db.opts.DBSessionID,
		ColumnFamilyID:     db.opts.ColumnFamilyID,
		ColumnFamilyName:   db.opts.ColumnFamilyName,
		JobID:              jobID,
		Reason:             reason,
		NextFileNumber:     db.opts.NextFileNumber,
		MinBlobSize:        db.opts.MinBlobSize,
		TargetFileSize:     db.opts.BlobFileSize,
		Compression:        db.opts.BlobCompressionType,
		PrepopulatePolicy:  db.opts.PrepopulateBlobCache,
		BlobCache:          db.opts.BlobCache,
		Logger:             db.opts.Logger,
		Stats:              db.opts.Stats,
		Clock:              db.opts.Clock,
		OnCreationStarted:  db.opts.OnCreationStarted,
		OnCompleted:        db.opts.OnCompleted,
		Paths:              paths,
		Additions:          additions,
	})
}

// Source returns a blobsource.Source wired against this DB's file cache and
// blob cache.
func (db *DB) Source() *blobsource.Source {
	return blobsource.New(db.opts.DBID, db.opts.DBSessionID, db.files, db.opts.BlobCache, db.opts.Stats)
}
