// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package blobfile implements random-access reading (BlobFileReader) and
// append-only writing (BlobFileBuilder) of individual blob files.
package blobfile

import (
	"sort"

	"github.com/gangliao/rocksdb/blob"
	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/internal/compress"
	"github.com/gangliao/rocksdb/vfs"
)

// Reader provides random access to the records of one blob file. A Reader is
// safe for concurrent use by multiple goroutines: all state below is set
// once at Open and never mutated again.
type Reader struct {
	file        vfs.File
	fileNum     base.DiskFileNum
	fileSize    uint64
	compression compress.Type
}

// Open validates a blob file's header and footer and returns a Reader ready
// to serve ReadBlob/MultiRead. The header's compression type is cached so
// callers don't need to supply it on every read (it is fixed per file).
func Open(f vfs.File, fileNum base.DiskFileNum) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, base.IOErrorf(err, "blobfile: stat %s", fileNum)
	}
	size := uint64(info.Size())
	if size < uint64(blob.HeaderSize+blob.FooterSize) {
		return nil, base.CorruptionErrorf("blobfile: %s is too small to contain a header and footer (%d bytes)", fileNum, size)
	}

	headerBuf := make([]byte, blob.HeaderSize)
	if _, err := f.ReadAt(headerBuf, 0); err != nil {
		return nil, base.IOErrorf(err, "blobfile: read header of %s", fileNum)
	}
	header, err := blob.DecodeHeader(headerBuf)
	if err != nil {
		return nil, errWrap(err, fileNum)
	}

	footerBuf := make([]byte, blob.FooterSize)
	if _, err := f.ReadAt(footerBuf, int64(size)-int64(blob.FooterSize)); err != nil {
		return nil, base.IOErrorf(err, "blobfile: read footer of %s", fileNum)
	}
	if _, err := blob.DecodeFooter(footerBuf); err != nil {
		return nil, errWrap(err, fileNum)
	}

	return &Reader{
		file:        f,
		fileNum:     fileNum,
		fileSize:    size,
		compression: header.Compression,
	}, nil
}

func errWrap(err error, fileNum base.DiskFileNum) error {
	if base.IsCorruptionError(err) {
		return base.CorruptionErrorf("blobfile: %s: %s", fileNum, err)
	}
	return err
}

// FileNumber returns the file number this reader was opened for.
func (r *Reader) FileNumber() base.DiskFileNum { return r.fileNum }

// FileSize returns the file's size as observed at Open time.
func (r *Reader) FileSize() uint64 { return r.fileSize }

// Compression returns the file's fixed, header-declared compression type.
func (r *Reader) Compression() compress.Type { return r.compression }

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.file.Close() }

// ReadBlob reads the record whose value begins at offset and whose key and
// (possibly compressed) value together occupy size bytes on disk, per the
// layout blobfile's builder wrote: the record header immediately precedes
// offset. It verifies the record CRC iff verifyChecksum, confirms the
// on-disk key matches key, and decompresses using the file's compression
// type. It returns the decompressed value and the number of bytes read from
// the underlying file (record header + key + on-disk value size).
func (r *Reader) ReadBlob(key []byte, offset, size uint64, verifyChecksum bool) ([]byte, uint64, error) {
	recordStart := offset - uint64(blob.RecordHeaderSize) - uint64(len(key))
	readLen := uint64(blob.RecordHeaderSize) + uint64(len(key)) + size
	if offset < uint64(blob.RecordHeaderSize)+uint64(len(key)) || recordStart+readLen > r.fileSize-uint64(blob.FooterSize) {
		return nil, 0, base.CorruptionErrorf("blobfile: %s: record at offset %d out of bounds", r.fileNum, offset)
	}

	buf := make([]byte, readLen)
	n, err := r.file.ReadAt(buf, int64(recordStart))
	if err != nil {
		return nil, 0, base.IOErrorf(err, "blobfile: %s: short read at offset %d", r.fileNum, recordStart)
	}
	if uint64(n) != readLen {
		return nil, 0, base.IOErrorf(nil, "blobfile: %s: short read at offset %d (%d of %d bytes)", r.fileNum, recordStart, n, readLen)
	}

	rec, _, err := blob.DecodeRecord(buf, false, verifyChecksum)
	if err != nil {
		return nil, 0, errWrap(err, r.fileNum)
	}
	if string(rec.Key) != string(key) {
		return nil, 0, base.CorruptionErrorf("blobfile: %s: key mismatch at offset %d", r.fileNum, offset)
	}

	value := rec.Value
	if r.compression != compress.None {
		codec, err := compress.Get(r.compression)
		if err != nil {
			return nil, 0, err
		}
		value, err = codec.Decompress(value)
		if err != nil {
			return nil, 0, errWrap(err, r.fileNum)
		}
	}
	return value, readLen, nil
}

// Request is a single blob read handed to MultiRead. Key, Offset and Size
// identify the blob as in ReadBlob. Value and Err are populated in place.
type Request struct {
	Key    []byte
	Offset uint64
	Size   uint64

	Value     []byte
	BytesRead uint64
	Err       error
}

// maxCoalesceGap bounds how far apart (in bytes) two requests' on-disk
// record ranges may be and still be merged into a single ReadAt. Chosen to
// amortize syscall overhead for nearby small blobs without risking large
// wasted reads across sparse offsets.
const maxCoalesceGap = 4096

// MultiRead services a batch of reads against this file, sorting by offset
// and merging adjacent-or-near requests into single ReadAt calls. Each
// request's Value/BytesRead/Err is set independently; one request's error
// never prevents the others encoded in a different coalesced group from
// succeeding. verifyChecksum applies to every request in the batch.
func (r *Reader) MultiRead(reqs []*Request, verifyChecksum bool) {
	type span struct {
		start, end uint64 // on-disk byte range, end exclusive
		reqs       []*Request
	}

	order := make([]*Request, len(reqs))
	copy(order, reqs)
	sort.Slice(order, func(i, j int) bool { return order[i].Offset < order[j].Offset })

	var spans []span
	for _, req := range order {
		recordStart := req.Offset - uint64(blob.RecordHeaderSize) - uint64(len(req.Key))
		recordEnd := req.Offset + req.Size
		if len(spans) > 0 {
			last := &spans[len(spans)-1]
			if recordStart <= last.end+maxCoalesceGap {
				if recordEnd > last.end {
					last.end = recordEnd
				}
				last.reqs = append(last.reqs, req)
				continue
			}
		}
		spans = append(spans, span{start: recordStart, end: recordEnd, reqs: []*Request{req}})
	}

	for _, sp := range spans {
		if sp.end > r.fileSize-uint64(blob.FooterSize) || sp.start >= sp.end {
			err := base.CorruptionErrorf("blobfile: %s: coalesced read [%d,%d) out of bounds", r.fileNum, sp.start, sp.end)
			for _, req := range sp.reqs {
				req.Err = err
			}
			continue
		}
		buf := make([]byte, sp.end-sp.start)
		n, err := r.file.ReadAt(buf, int64(sp.start))
		if err != nil || uint64(n) != uint64(len(buf)) {
			ioErr := base.IOErrorf(err, "blobfile: %s: short coalesced read at %d", r.fileNum, sp.start)
			for _, req := range sp.reqs {
				req.Err = ioErr
			}
			continue
		}
		for _, req := range sp.reqs {
			recordStart := req.Offset - uint64(blob.RecordHeaderSize) - uint64(len(req.Key))
			recordLen := uint64(blob.RecordHeaderSize) + uint64(len(req.Key)) + req.Size
			recBuf := buf[recordStart-sp.start : recordStart-sp.start+recordLen]
			rec, _, err := blob.DecodeRecord(recBuf, false, verifyChecksum)
			if err != nil {
				req.Err = errWrap(err, r.fileNum)
				continue
			}
			if string(rec.Key) != string(req.Key) {
				req.Err = base.CorruptionErrorf("blobfile: %s: key mismatch at offset %d", r.fileNum, req.Offset)
				continue
			}
			value := rec.Value
			if r.compression != compress.None {
				codec, cerr := compress.Get(r.compression)
				if cerr != nil {
					req.Err = cerr
					continue
				}
				value, err = codec.Decompress(value)
				if err != nil {
					req.Err = errWrap(err, r.fileNum)
					continue
				}
			}
			req.Value = value
			req.BytesRead = recordLen
		}
	}
}
