// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package blobfile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/vfs"
)

type writtenRecord struct {
	key, val     []byte
	offset, size uint64
}

func writeSixteen(t *testing.T, fs vfs.FS) (path string, fileNum base.DiskFileNum, records []writtenRecord) {
	var paths []string
	var additions []Addition
	cfg := newTestConfig(fs, &paths, &additions)
	cfg.TargetFileSize = 1e9
	b := New(cfg)

	for i := 0; i < 16; i++ {
		key := []byte(fmt.Sprintf("key%d", i))
		val := []byte(fmt.Sprintf("value-of-record-number-%d", i))
		idx, err := b.Add(key, val)
		require.NoError(t, err)
		records = append(records, writtenRecord{key, val, idx.Offset, idx.Size})
	}
	require.NoError(t, b.Finish())
	require.Len(t, additions, 1)
	return paths[0], additions[0].FileNumber, records
}

// Flipping a byte in one record's value detects corruption on that record
// without affecting its siblings.
func TestReaderChecksumDetection(t *testing.T) {
	fs := vfs.NewMem()
	path, fileNum, records := writeSixteen(t, fs)

	f, err := fs.Open(path)
	require.NoError(t, err)
	info, err := f.Stat()
	require.NoError(t, err)
	buf := make([]byte, info.Size())
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	target := records[7]
	flipAt := target.offset // first byte of the value region
	buf[flipAt] ^= 0xff

	require.NoError(t, fs.Remove(path))
	wf, err := fs.Create(path)
	require.NoError(t, err)
	_, err = wf.Write(buf)
	require.NoError(t, err)
	require.NoError(t, wf.Close())

	rf, err := fs.Open(path)
	require.NoError(t, err)
	r, err := Open(rf, fileNum)
	require.NoError(t, err)
	defer r.Close()

	for i, rec := range records {
		_, _, err := r.ReadBlob(rec.key, rec.offset, rec.size, true)
		if i == 7 {
			require.Error(t, err)
			require.True(t, base.IsCorruptionError(err))
		} else {
			require.NoError(t, err)
		}
	}
}

func TestReaderMultiRead(t *testing.T) {
	fs := vfs.NewMem()
	path, fileNum, records := writeSixteen(t, fs)

	rf, err := fs.Open(path)
	require.NoError(t, err)
	r, err := Open(rf, fileNum)
	require.NoError(t, err)
	defer r.Close()

	reqs := make([]*Request, len(records))
	for i, rec := range records {
		reqs[i] = &Request{Key: rec.key, Offset: rec.offset, Size: rec.size}
	}
	r.MultiRead(reqs, true)

	for i, req := range reqs {
		require.NoError(t, req.Err)
		require.Equal(t, records[i].val, req.Value)
		require.Greater(t, req.BytesRead, uint64(0))
	}
}
