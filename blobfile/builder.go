// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package blobfile

import (
	"github.com/dustin/go-humanize"

	"github.com/gangliao/rocksdb/blob"
	"github.com/gangliao/rocksdb/cache"
	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/internal/compress"
	"github.com/gangliao/rocksdb/internal/crc"
	"github.com/gangliao/rocksdb/vfs"
)

// CreationReason identifies why a builder's file is being written, used to
// gate cache warm-up under the flush-only prepopulate policy.
type CreationReason int

const (
	CreationFlush CreationReason = iota
	CreationCompaction
)

func (r CreationReason) String() string {
	if r == CreationFlush {
		return "flush"
	}
	return "compaction"
}

// PrepopulatePolicy controls whether newly-written blobs are warmed into
// the read cache as they're appended.
type PrepopulatePolicy int

const (
	// PrepopulateDisabled never warms the cache from the builder.
	PrepopulateDisabled PrepopulatePolicy = iota
	// PrepopulateFlushOnly warms the cache only for builders created with
	// CreationFlush; compaction output is not warmed.
	PrepopulateFlushOnly
)

// OnCreationStarted is invoked immediately after a new blob file's path is
// chosen, before the file is created.
type OnCreationStarted func(path, cfName string, jobID int, reason CreationReason)

// Addition is the record published to the addition collector when a blob
// file is sealed: everything the engine needs to make the file discoverable
// after restart.
type Addition struct {
	FileNumber     base.DiskFileNum
	BlobCount      uint64
	BlobBytes      uint64
	ChecksumMethod [4]byte
	ChecksumValue  uint64
}

// OnCompleted is invoked when a blob file is sealed (footer written), with
// the same fields as the Addition that's about to be published. A non-nil
// return value is surfaced to the caller of Finish/Add, but the Addition is
// appended to the builder's addition collector regardless, since by then
// the footer has been written and the file is complete on disk.
type OnCompleted func(path, cfName string, jobID int, reason CreationReason, add Addition, err error) error

// Config holds a Builder's immutable construction inputs.
type Config struct {
	FS  vfs.FS
	Dir string // column-family path; files are named <Dir>/<file_number>.blob

	DBID, DBSessionID string
	ColumnFamilyID    base.ColumnFamilyID
	ColumnFamilyName  string
	JobID             int
	Reason            CreationReason

	NextFileNumber func() base.DiskFileNum

	MinBlobSize       uint64
	TargetFileSize    uint64
	Compression       compress.Type
	PrepopulatePolicy PrepopulatePolicy

	BlobCache *cache.Cache // may be nil: no warm-up, no cache dependency at all

	Logger base.Logger
	Stats  base.StatsSink
	Clock  base.Clock

	OnCreationStarted OnCreationStarted
	OnCompleted       OnCompleted

	// Paths and Additions are the job-owned output collectors: Paths records every file path this builder
	// has ever attempted to create (so a crash or abandon leaves a
	// discoverable trail for cleanup); Additions records only files that
	// were successfully sealed.
	Paths     *[]string
	Additions *[]Addition
}

func (c *Config) ensureDefaults() {
	if c.Logger == nil {
		c.Logger = base.NoopLogger{}
	}
	if c.Stats == nil {
		c.Stats = base.NoopStats{}
	}
	if c.Clock == nil {
		c.Clock = base.SystemClock{}
	}
	if c.TargetFileSize == 0 {
		c.TargetFileSize = 1 << 28 // 256 MiB, matching typical blob_file_size defaults.
	}
}

// Builder is the append-only writer for a sequence of blob files (C6). A
// single Builder is not safe for concurrent Add/Finish/Abandon calls: the
// caller guarantees one writer goroutine per builder.
type Builder struct {
	cfg Config

	// state of the currently-open file, zero when no file is open.
	open          bool
	file          vfs.File
	fileNum       base.DiskFileNum
	path          string
	writer        *crcWriter
	blobCount     uint64
	blobBytes     uint64
	warmedOffsets []uint64
	builderKey    cache.BaseKey
}

// New constructs a Builder. cfg is copied; cfg.Paths and cfg.Additions must
// be non-nil (they are the job's output collectors).
func New(cfg Config) *Builder {
	cfg.ensureDefaults()
	return &Builder{cfg: cfg}
}

// Add implements the per-record algorithm: values shorter than MinBlobSize are stored inline (an
// empty Index is returned); otherwise the value is optionally compressed,
// appended to the currently-open file (opening or rolling one over as
// needed), opportunistically warmed into the cache, and referenced by the
// returned Index.
func (b *Builder) Add(key, value []byte) (blob.Index, error) {
	if uint64(len(value)) < b.cfg.MinBlobSize {
		return blob.Index{}, nil
	}

	if !b.open {
		if err := b.openFile(); err != nil {
			return blob.Index{}, err
		}
	}

	compression := b.cfg.Compression
	stored := value
	if compression != compress.None {
		codec, err := compress.Get(compression)
		if err != nil {
			return blob.Index{}, err
		}
		sw := base.NewStopWatch(b.cfg.Clock)
		stored, err = codec.Compress(nil, value)
		b.cfg.Stats.Observe(base.StatCompressionSeconds, sw.Elapsed().Seconds())
		if err != nil {
			b.cfg.Stats.Tick(base.StatDecompressionErrors)
			return blob.Index{}, base.CorruptionErrorf("blobfile: %s: compress record for key %q: %s", b.fileNum, key, err)
		}
	}

	valueOffset, err := b.writer.appendRecord(key, stored)
	if err != nil {
		return blob.Index{}, err
	}
	b.blobCount++
	b.blobBytes += uint64(blob.RecordHeaderSize) + uint64(len(key)) + uint64(len(stored))

	b.maybeWarm(valueOffset, value, compression)

	if b.writer.size() >= b.cfg.TargetFileSize {
		if err := b.closeFile(); err != nil {
			return blob.Index{}, err
		}
	}

	return blob.Index{
		FileNumber:  b.fileNum,
		Offset:      valueOffset,
		Size:        uint64(len(stored)),
		Compression: compression,
	}, nil
}

// Finish seals any currently-open file. It is a no-op if no file is open.
func (b *Builder) Finish() error {
	if !b.open {
		return nil
	}
	return b.closeFile()
}

// Abandon discards the in-flight file without writing a footer: the
// completion callback (if any) is invoked with cause, counters are reset,
// and the file is dropped from the builder's open state. The path is left
// in the Paths collector -- the caller (engine) is responsible for deleting
// the garbage file it names.
func (b *Builder) Abandon(cause error) error {
	if !b.open {
		return nil
	}
	path, reason := b.path, b.cfg.Reason
	_ = b.file.Close()
	b.resetOpenState()

	if b.cfg.OnCompleted != nil {
		return b.cfg.OnCompleted(path, b.cfg.ColumnFamilyName, b.cfg.JobID, reason, Addition{}, cause)
	}
	return nil
}

func (b *Builder) resetOpenState() {
	b.open = false
	b.file = nil
	b.writer = nil
	b.blobCount = 0
	b.blobBytes = 0
	b.warmedOffsets = nil
}

// openFile generates a file number, emits the creation-started callback,
// creates the file, records the path immediately (before the header is even
// written) so crash-cleanup can find partial files, then writes the header.
func (b *Builder) openFile() error {
	fileNum := b.cfg.NextFileNumber()
	path := base.BlobFileName(b.cfg.Dir, fileNum)

	if b.cfg.OnCreationStarted != nil {
		b.cfg.OnCreationStarted(path, b.cfg.ColumnFamilyName, b.cfg.JobID, b.cfg.Reason)
	}

	f, err := b.cfg.FS.Create(path)
	if err != nil {
		return base.IOErrorf(err, "blobfile: create %s", path)
	}
	*b.cfg.Paths = append(*b.cfg.Paths, path)
	b.cfg.Logger.Infof("blobfile: opened %s (cf=%s reason=%s target_size=%s)",
		path, b.cfg.ColumnFamilyName, b.cfg.Reason, humanize.IBytes(b.cfg.TargetFileSize))

	w := newCRCWriter(f)
	header := blob.Header{Version: blob.FormatVersion, ColumnFamilyID: b.cfg.ColumnFamilyID, Compression: b.cfg.Compression}
	if err := w.writeHeader(header); err != nil {
		return err
	}

	b.open = true
	b.file = f
	b.fileNum = fileNum
	b.path = path
	b.writer = w
	b.blobCount = 0
	b.blobBytes = 0
	b.warmedOffsets = nil
	if b.cfg.BlobCache != nil {
		b.builderKey = cache.NewBuilderBaseKey(b.cfg.DBID, b.cfg.DBSessionID, fileNum)
	}
	return nil
}

// maybeWarm fires warm-up only for flush-created files under the
// flush-only policy, and only for uncompressed blobs (the cache stores
// uncompressed values; a compressed on-disk blob would need decompressing
// just to warm it, defeating the point). Warm-up uses the provisional
// builder-time cache key (the real size isn't known until Close); the
// entries are re-keyed once the file seals.
func (b *Builder) maybeWarm(offset uint64, uncompressedValue []byte, compression compress.Type) {
	if b.cfg.BlobCache == nil {
		return
	}
	if b.cfg.PrepopulatePolicy != PrepopulateFlushOnly || b.cfg.Reason != CreationFlush {
		return
	}
	if compression != compress.None {
		return
	}
	owned := make([]byte, len(uncompressedValue))
	copy(owned, uncompressedValue)
	h := b.cfg.BlobCache.Set(b.builderKey.WithOffset(offset), owned)
	h.Release()
	b.warmedOffsets = append(b.warmedOffsets, offset)
}

// closeFile writes the footer, invokes the completion callback, appends the
// addition record, and drops the writer. If the cache was warmed during
// this file's lifetime, its entries are re-keyed from the provisional
// builder key to the real, size-stable key.
func (b *Builder) closeFile() error {
	path, fileNum, reason := b.path, b.fileNum, b.cfg.Reason
	blobCount, blobBytes := b.blobCount, b.blobBytes

	footer := blob.Footer{BlobCount: blobCount}
	if err := b.writer.writeFooter(footer); err != nil {
		_ = b.file.Close()
		b.resetOpenState()
		return err
	}

	var syncErr error
	if err := b.file.Sync(); err != nil {
		syncErr = base.IOErrorf(err, "blobfile: sync %s", path)
	}
	closeErr := b.file.Close()

	if b.cfg.BlobCache != nil && len(b.warmedOffsets) > 0 {
		finalSize := b.writer.size()
		realKey := cache.NewBaseKey(b.cfg.DBID, b.cfg.DBSessionID, fileNum, finalSize)
		b.cfg.BlobCache.Rekey(b.builderKey, realKey, b.warmedOffsets)
	}

	add := Addition{
		FileNumber:     fileNum,
		BlobCount:      blobCount,
		BlobBytes:      blobBytes,
		ChecksumMethod: b.writer.footerChecksumMethod,
		ChecksumValue:  b.writer.footerChecksumValue,
	}
	*b.cfg.Additions = append(*b.cfg.Additions, add)
	b.cfg.Logger.Infof("blobfile: sealed %s (blob_count=%d blob_bytes=%s)",
		path, blobCount, humanize.IBytes(blobBytes))

	b.resetOpenState()

	if syncErr != nil {
		return syncErr
	}
	if closeErr != nil {
		return base.IOErrorf(closeErr, "blobfile: close %s", path)
	}
	if b.cfg.OnCompleted != nil {
		if err := b.cfg.OnCompleted(path, b.cfg.ColumnFamilyName, b.cfg.JobID, reason, add, nil); err != nil {
			return err
		}
	}
	return nil
}

// crcWriter writes a blob file's header and records straight through to the
// file and tracks a running whole-file checksum so the footer can be finalized without
// rereading the file.
type crcWriter struct {
	file   vfs.File
	digest crc.Digest
	offset uint64

	footerChecksumMethod [4]byte
	footerChecksumValue  uint64
}

func newCRCWriter(f vfs.File) *crcWriter {
	return &crcWriter{file: f}
}

func (w *crcWriter) size() uint64 { return w.offset }

func (w *crcWriter) writeBytes(b []byte) error {
	if _, err := w.file.Write(b); err != nil {
		return base.IOErrorf(err, "blobfile: write")
	}
	w.digest.Write(b)
	w.offset += uint64(len(b))
	return nil
}

func (w *crcWriter) writeHeader(h blob.Header) error {
	buf := make([]byte, blob.HeaderSize)
	h.Encode(buf)
	return w.writeBytes(buf)
}

// appendRecord writes one record and returns the offset of its value bytes
// within the file.
func (w *crcWriter) appendRecord(key, value []byte) (uint64, error) {
	var buf []byte
	buf = blob.EncodeRecord(buf, false, 0, key, value)
	valueOffset := w.offset + uint64(blob.RecordHeaderSize) + uint64(len(key))
	if err := w.writeBytes(buf); err != nil {
		return 0, err
	}
	return valueOffset, nil
}

func (w *crcWriter) writeFooter(f blob.Footer) error {
	buf := make([]byte, blob.FooterSize)
	f.Encode(buf, &w.digest)
	w.footerChecksumMethod = f.ChecksumMethod
	w.footerChecksumValue = f.ChecksumValue
	if _, err := w.file.Write(buf); err != nil {
		return base.IOErrorf(err, "blobfile: write footer")
	}
	w.offset += uint64(len(buf))
	return nil
}
