// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package filecache memoizes open blobfile.Reader instances behind a
// bounded LRU keyed by file number, coalescing concurrent opens for the
// same file into a single underlying Open call.
package filecache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/gangliao/rocksdb/blobfile"
	"github.com/gangliao/rocksdb/internal/base"
	"github.com/gangliao/rocksdb/vfs"
)

// OpenFunc opens the blob file named fileNum, grounded via fs.
type OpenFunc func(fs vfs.FS, dir string, fileNum base.DiskFileNum) (*blobfile.Reader, error)

// DefaultOpen is the OpenFunc used outside of tests: it opens the file at
// base.BlobFileName(dir, fileNum) through fs and validates it via
// blobfile.Open.
func DefaultOpen(fs vfs.FS, dir string, fileNum base.DiskFileNum) (*blobfile.Reader, error) {
	f, err := fs.Open(base.BlobFileName(dir, fileNum))
	if err != nil {
		return nil, base.IOErrorf(err, "filecache: open %s", fileNum)
	}
	r, err := blobfile.Open(f, fileNum)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Cache is a bounded LRU of open blobfile.Reader handles, keyed by file
// number. At most one open is ever in flight per file number; concurrent
// callers for the same file number block on, and share the result of, that
// single open.
type Cache struct {
	fs   vfs.FS
	dir  string
	open OpenFunc

	lru   *lru.Cache
	group singleflight.Group

	mu sync.Mutex
}

// New creates a Cache with room for at most capacity open readers. Readers
// evicted from the LRU are closed once they have no outstanding references
// from a concurrent GetOrOpen that handed them out via singleflight (the LRU
// eviction callback runs synchronously with the Cache's own lock held, and
// by that point every in-flight open for that key has already completed and
// returned, so there is no reader handed out mid-close).
func New(fs vfs.FS, dir string, capacity int, open OpenFunc) *Cache {
	if open == nil {
		open = DefaultOpen
	}
	c := &Cache{fs: fs, dir: dir, open: open}
	l, err := lru.NewWithEvict(capacity, func(_, value interface{}) {
		value.(*blobfile.Reader).Close()
	})
	if err != nil {
		// Only returned for a non-positive capacity.
		panic(err)
	}
	c.lru = l
	return c
}

// GetOrOpen returns the Reader for fileNum, opening it if it is not already
// cached. Errors from Open are reported to every caller currently waiting on
// that file number (singleflight.Group shares one result across all
// concurrent callers for the same key); a subsequent call retries the open.
func (c *Cache) GetOrOpen(fileNum base.DiskFileNum) (*blobfile.Reader, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(fileNum); ok {
		c.mu.Unlock()
		return v.(*blobfile.Reader), nil
	}
	c.mu.Unlock()

	key := fileNum.String()
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		if v, ok := c.lru.Get(fileNum); ok {
			c.mu.Unlock()
			return v.(*blobfile.Reader), nil
		}
		c.mu.Unlock()

		r, err := c.open(c.fs, c.dir, fileNum)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.lru.Add(fileNum, r)
		c.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*blobfile.Reader), nil
}

// Evict removes fileNum from the cache, closing its reader if present. Used
// when a file is deleted or found to be corrupt, to keep a bad reader from
// being handed out again.
func (c *Cache) Evict(fileNum base.DiskFileNum) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(fileNum)
}

// Len reports the number of readers currently held open.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
