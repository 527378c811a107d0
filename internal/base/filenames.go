// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package base

import (
	"fmt"
	"path/filepath"
)

// DiskFileNum identifies a blob file on disk. File numbers are assigned by a
// caller-supplied generator and are never reused within a database's
// lifetime.
type DiskFileNum uint64

// String returns the zero-padded decimal representation used in filenames
// and log messages.
func (n DiskFileNum) String() string { return fmt.Sprintf("%06d", uint64(n)) }

// FileNum is an alias for DiskFileNum, kept distinct in the API surface for
// readability at call sites that talk about "the blob file" rather than "the
// file on disk".
type FileNum = DiskFileNum

// ColumnFamilyID identifies the column family a blob file belongs to. It is
// recorded in the blob file header so that a reader can detect a blob file
// being associated with the wrong column family.
type ColumnFamilyID uint32

// BlobFileName returns the path for the blob file with the given number
// under cfPath, e.g. "<cfPath>/000123.blob".
func BlobFileName(cfPath string, fileNum DiskFileNum) string {
	return filepath.Join(cfPath, fmt.Sprintf("%s.blob", fileNum))
}
