// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package base

import (
	"github.com/cockroachdb/errors"
)

// ErrNotFound means that a lookup did not find the requested entry.
var ErrNotFound = errors.New("blobstore: not found")

// ErrIncomplete is returned when a cache-only read misses in every tier. It
// is not a fault: callers are expected to retry with I/O permitted if they
// want the value.
var ErrIncomplete = errors.New("blobstore: incomplete (cache miss, no I/O permitted)")

// errCorruption is the sentinel every corruption error is marked with, so
// IsCorruptionError can recognize it regardless of the message text.
var errCorruption = errors.New("blobstore: corruption")

// CorruptionErrorf builds a corruption error (bad CRC, bad magic, key
// mismatch, unrecognized compression tag, ...). Corruption errors are fatal
// to the operation that raised them: the caller must not retry using the
// same bytes.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), errCorruption)
}

// IsCorruptionError reports whether err (or one of its wrapped causes) is a
// corruption error produced by CorruptionErrorf.
func IsCorruptionError(err error) bool {
	return errors.Is(err, errCorruption)
}

// errInvalidArgument is the sentinel for decoder-input-shape errors.
var errInvalidArgument = errors.New("blobstore: invalid argument")

// InvalidArgumentErrorf builds an invalid-argument error: the decoder was
// handed bytes that cannot possibly represent the encoded type (wrong
// length, trailing garbage, etc).
func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), errInvalidArgument)
}

// IsInvalidArgumentError reports whether err was produced by
// InvalidArgumentErrorf.
func IsInvalidArgumentError(err error) bool {
	return errors.Is(err, errInvalidArgument)
}

// IsIncomplete reports whether err is (or wraps) ErrIncomplete.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}

// errIO is the sentinel for filesystem-level failures (short reads, missing
// files, failed opens).
var errIO = errors.New("blobstore: io error")

// IOErrorf builds an io_error: a filesystem-level failure (short read,
// missing file, failed open). cause may be nil, e.g. for a short read that
// the reader detected by comparing byte counts rather than from an
// underlying error.
func IOErrorf(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.Mark(errors.Newf(format, args...), errIO)
	}
	return errors.Mark(errors.Wrapf(cause, format, args...), errIO)
}

// IsIOError reports whether err was produced by IOErrorf.
func IsIOError(err error) bool {
	return errors.Is(err, errIO)
}
