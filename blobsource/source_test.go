// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package blobsource

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gangliao/rocksdb/blobfile"
	"github.com/gangliao/rocksdb/cache"
	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/internal/filecache"
	"github.com/gangliao/rocksdb/vfs"
)

type testFile struct {
	fileNum base.DiskFileNum
	path    string
	keys    [][]byte
	vals    [][]byte
	offsets []uint64
	sizes   []uint64
	size    uint64
}

func writeTestFile(t *testing.T, fs vfs.FS, n int) testFile {
	var paths []string
	var additions []blobfile.Addition
	var num uint64
	cfg := blobfile.Config{
		FS:             fs,
		DBID:           "db1",
		DBSessionID:    "session1",
		NextFileNumber: func() base.DiskFileNum { num++; return base.DiskFileNum(num) },
		TargetFileSize: 1e9,
		Paths:          &paths,
		Additions:      &additions,
	}
	b := blobfile.New(cfg)
	var tf testFile
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key%d", i))
		val := []byte(fmt.Sprintf("value-of-record-number-%d", i))
		idx, err := b.Add(key, val)
		require.NoError(t, err)
		tf.keys = append(tf.keys, key)
		tf.vals = append(tf.vals, val)
		tf.offsets = append(tf.offsets, idx.Offset)
		tf.sizes = append(tf.sizes, idx.Size)
	}
	require.NoError(t, b.Finish())
	require.Len(t, additions, 1)
	tf.fileNum = additions[0].FileNumber
	tf.path = paths[0]

	info, err := fs.Stat(tf.path)
	require.NoError(t, err)
	tf.size = uint64(info.Size())
	return tf
}

func TestSourceGetBlobReadsThrough(t *testing.T) {
	fs := vfs.NewMem()
	tf := writeTestFile(t, fs, 4)

	files := filecache.New(fs, "", 8, nil)
	bc := cache.New(16, nil, nil)
	s := New("db1", "session1", files, bc, nil)

	opts := ReadOptions{VerifyChecksums: true, FillCache: true, ReadTier: ReadAll}
	val, bytesRead, err := s.GetBlob(opts, tf.keys[0], tf.fileNum, tf.offsets[0], tf.size, tf.sizes[0], 0)
	require.NoError(t, err)
	require.Equal(t, tf.vals[0], val)
	require.Greater(t, bytesRead, uint64(0))
}

// A filled cache hit reports bytes_read == 0.
func TestSourceCacheHitSkipsDisk(t *testing.T) {
	fs := vfs.NewMem()
	tf := writeTestFile(t, fs, 4)

	files := filecache.New(fs, "", 8, nil)
	bc := cache.New(16, nil, nil)
	s := New("db1", "session1", files, bc, nil)

	opts := ReadOptions{VerifyChecksums: true, FillCache: true, ReadTier: ReadAll}
	_, _, err := s.GetBlob(opts, tf.keys[0], tf.fileNum, tf.offsets[0], tf.size, tf.sizes[0], 0)
	require.NoError(t, err)

	val, bytesRead, err := s.GetBlob(opts, tf.keys[0], tf.fileNum, tf.offsets[0], tf.size, tf.sizes[0], 0)
	require.NoError(t, err)
	require.Equal(t, tf.vals[0], val)
	require.Equal(t, uint64(0), bytesRead)
}

// Cache-only mode with an empty cache returns incomplete and never opens
// the file.
func TestSourceCacheOnlyMiss(t *testing.T) {
	fs := vfs.NewMem()
	tf := writeTestFile(t, fs, 16)

	files := filecache.New(fs, "", 8, nil)
	bc := cache.New(16, nil, nil)
	s := New("db1", "session1", files, bc, nil)

	opts := ReadOptions{VerifyChecksums: true, ReadTier: BlockCacheOnly}
	for i := range tf.keys {
		_, _, err := s.GetBlob(opts, tf.keys[i], tf.fileNum, tf.offsets[i], tf.size, tf.sizes[i], 0)
		require.Error(t, err)
		require.True(t, base.IsIncomplete(err))
	}
	require.Equal(t, 0, files.Len())
}

// One bad file number in a MultiGet batch fails only its own requests.
func TestSourceMultiGetBatchedIndependence(t *testing.T) {
	fs := vfs.NewMem()
	tf1 := writeTestFile(t, fs, 4)

	files := filecache.New(fs, "", 8, nil)
	bc := cache.New(16, nil, nil)
	s := New("db1", "session1", files, bc, nil)

	var reqs []*Request
	for i := range tf1.keys {
		reqs = append(reqs, &Request{
			Key: tf1.keys[i], FileNumber: tf1.fileNum, Offset: tf1.offsets[i],
			FileSize: tf1.size, Size: tf1.sizes[i],
		})
	}
	reqs = append(reqs, &Request{
		Key: []byte("ghost"), FileNumber: base.DiskFileNum(999), Offset: 100, FileSize: 100, Size: 10,
	})

	opts := ReadOptions{VerifyChecksums: true, ReadTier: ReadAll}
	s.MultiGetBlob(opts, reqs)

	for i := range tf1.keys {
		require.NoError(t, reqs[i].Err)
		require.Equal(t, tf1.vals[i], reqs[i].Value)
	}
	last := reqs[len(reqs)-1]
	require.Error(t, last.Err)
	require.True(t, base.IsIOError(last.Err))
}

func TestSourceTestBlobInCache(t *testing.T) {
	fs := vfs.NewMem()
	tf := writeTestFile(t, fs, 2)

	files := filecache.New(fs, "", 8, nil)
	bc := cache.New(16, nil, nil)
	s := New("db1", "session1", files, bc, nil)

	require.False(t, s.TestBlobInCache(tf.fileNum, tf.size, tf.offsets[0]))

	opts := ReadOptions{VerifyChecksums: true, FillCache: true, ReadTier: ReadAll}
	_, _, err := s.GetBlob(opts, tf.keys[0], tf.fileNum, tf.offsets[0], tf.size, tf.sizes[0], 0)
	require.NoError(t, err)

	require.True(t, s.TestBlobInCache(tf.fileNum, tf.size, tf.offsets[0]))
}

func TestSourceGetBlobFileReader(t *testing.T) {
	fs := vfs.NewMem()
	tf := writeTestFile(t, fs, 2)

	files := filecache.New(fs, "", 8, nil)
	bc := cache.New(16, nil, nil)
	s := New("db1", "session1", files, bc, nil)

	r1, err := s.GetBlobFileReader(tf.fileNum)
	require.NoError(t, err)
	r2, err := s.GetBlobFileReader(tf.fileNum)
	require.NoError(t, err)
	require.Same(t, r1, r2)

	_, err = s.GetBlobFileReader(base.DiskFileNum(999))
	require.Error(t, err)
	require.True(t, base.IsIOError(err))
}

func TestSourceMultiGetBlobFromOneFile(t *testing.T) {
	fs := vfs.NewMem()
	tf := writeTestFile(t, fs, 8)

	files := filecache.New(fs, "", 8, nil)
	bc := cache.New(16, nil, nil)
	s := New("db1", "session1", files, bc, nil)

	var reqs []*Request
	for i := range tf.keys {
		reqs = append(reqs, &Request{Key: tf.keys[i], FileNumber: tf.fileNum, Offset: tf.offsets[i], Size: tf.sizes[i]})
	}

	opts := ReadOptions{VerifyChecksums: true, FillCache: true, ReadTier: ReadAll}
	bytesRead := s.MultiGetBlobFromOneFile(opts, tf.fileNum, tf.size, reqs)
	require.Greater(t, bytesRead, uint64(0))
	for i, r := range reqs {
		require.NoError(t, r.Err)
		require.Equal(t, tf.vals[i], r.Value)
	}

	bytesRead = s.MultiGetBlobFromOneFile(opts, tf.fileNum, tf.size, reqs)
	require.Equal(t, uint64(0), bytesRead)
	for i, r := range reqs {
		require.NoError(t, r.Err)
		require.Equal(t, tf.vals[i], r.Value)
	}
}
