// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package compress is the blob-file compression codec registry. A blob
// file's compression type is fixed at header-write time and applies to
// every record in the file.
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"

	"github.com/gangliao/rocksdb/internal/base"
)

// Type identifies a blob file's compression algorithm. The byte value is
// part of the on-disk format (header and blob index) and must never change
// meaning once assigned.
type Type byte

const (
	None Type = iota
	Snappy
	Zstd
	LZ4
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// Valid reports whether t is a recognized compression tag. An unrecognized
// tag read from disk is a corruption, not a program error.
func (t Type) Valid() bool {
	switch t {
	case None, Snappy, Zstd, LZ4:
		return true
	default:
		return false
	}
}

// Codec compresses and decompresses a single blob value.
type Codec interface {
	Compress(dst, src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Get returns the codec for t, or an error if t is not a recognized
// compression tag.
func Get(t Type) (Codec, error) {
	switch t {
	case None:
		return noneCodec{}, nil
	case Snappy:
		return snappyCodec{}, nil
	case Zstd:
		return zstdCodec{}, nil
	case LZ4:
		return lz4Codec{}, nil
	default:
		return nil, base.CorruptionErrorf("blobstore: unrecognized compression type %d", byte(t))
	}
}

type noneCodec struct{}

func (noneCodec) Compress(dst, src []byte) ([]byte, error) { return append(dst[:0], src...), nil }
func (noneCodec) Decompress(src []byte) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

type snappyCodec struct{}

func (snappyCodec) Compress(dst, src []byte) ([]byte, error) {
	return snappy.Encode(dst, src), nil
}

func (snappyCodec) Decompress(src []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, base.CorruptionErrorf("blobstore: snappy decompress: %s", err)
	}
	return out, nil
}

type zstdCodec struct{}

func (zstdCodec) Compress(dst, src []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "blobstore: zstd compress")
	}
	defer enc.Close()
	return enc.EncodeAll(src, dst[:0]), nil
}

func (zstdCodec) Decompress(src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "blobstore: zstd decompress")
	}
	defer dec.Close()
	out, err := dec.DecodeAll(src, nil)
	if err != nil {
		return nil, base.CorruptionErrorf("blobstore: zstd decompress: %s", err)
	}
	return out, nil
}

type lz4Codec struct{}

func (lz4Codec) Compress(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst[:0])
	w := lz4.NewWriter(buf)
	if _, err := w.Write(src); err != nil {
		return nil, errors.Wrap(err, "blobstore: lz4 compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "blobstore: lz4 compress close")
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(src []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, base.CorruptionErrorf("blobstore: lz4 decompress: %s", err)
	}
	return out, nil
}
