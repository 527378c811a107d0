// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package filecache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gangliao/rocksdb/blobfile"
	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/vfs"
)

func writeBlobFile(t *testing.T, fs vfs.FS, dir string, fileNum base.DiskFileNum) {
	var paths []string
	var additions []blobfile.Addition
	var n uint64
	cfg := blobfile.Config{
		FS:             fs,
		Dir:            dir,
		DBID:           "db1",
		DBSessionID:    "session1",
		NextFileNumber: func() base.DiskFileNum { n++; return fileNum },
		TargetFileSize: 1e9,
		Paths:          &paths,
		Additions:      &additions,
	}
	b := blobfile.New(cfg)
	_, err := b.Add([]byte("k"), []byte("a reasonably long test value"))
	require.NoError(t, err)
	require.NoError(t, b.Finish())
}

func TestFileCacheGetOrOpen(t *testing.T) {
	fs := vfs.NewMem()
	writeBlobFile(t, fs, "", 1)

	c := New(fs, "", 8, nil)
	r1, err := c.GetOrOpen(1)
	require.NoError(t, err)
	r2, err := c.GetOrOpen(1)
	require.NoError(t, err)
	require.Same(t, r1, r2)
}

func TestFileCacheMissingFile(t *testing.T) {
	fs := vfs.NewMem()
	c := New(fs, "", 8, nil)
	_, err := c.GetOrOpen(99)
	require.Error(t, err)
	require.True(t, base.IsIOError(err))
}

func TestFileCacheEviction(t *testing.T) {
	fs := vfs.NewMem()
	for i := 1; i <= 3; i++ {
		writeBlobFile(t, fs, fmt.Sprintf("cf%d", i), base.DiskFileNum(i))
	}
	c := New(fs, "", 2, func(fs vfs.FS, dir string, fileNum base.DiskFileNum) (*blobfile.Reader, error) {
		return DefaultOpen(fs, fmt.Sprintf("cf%d", fileNum), fileNum)
	})
	for i := base.DiskFileNum(1); i <= 3; i++ {
		_, err := c.GetOrOpen(i)
		require.NoError(t, err)
	}
	require.Equal(t, 2, c.Len())
}

func TestFileCacheConcurrentOpensCoalesce(t *testing.T) {
	fs := vfs.NewMem()
	writeBlobFile(t, fs, "", 1)

	var openCount int
	var mu sync.Mutex
	c := New(fs, "", 8, func(fs vfs.FS, dir string, fileNum base.DiskFileNum) (*blobfile.Reader, error) {
		mu.Lock()
		openCount++
		mu.Unlock()
		return DefaultOpen(fs, dir, fileNum)
	})

	var wg sync.WaitGroup
	results := make([]*blobfile.Reader, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.GetOrOpen(1)
			require.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.Same(t, results[0], r)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, openCount)
}
