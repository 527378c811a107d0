// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cache

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/gangliao/rocksdb/internal/base"
)

// Value is a refcounted cache payload. A value starts with one reference
// held by the cache; Get hands callers an additional reference, so the
// buffer stays valid until every Handle obtained for it is released, even
// if the cache evicts its own entry in the meantime.
type Value struct {
	buf  []byte
	refs int32
}

func newValue(buf []byte) *Value {
	return &Value{buf: buf, refs: 1}
}

// Bytes returns the cached payload. The returned slice must not be
// retained past the Handle's Release call.
func (v *Value) Bytes() []byte { return v.buf }

func (v *Value) acquire() *Value {
	atomic.AddInt32(&v.refs, 1)
	return v
}

func (v *Value) release() {
	if atomic.AddInt32(&v.refs, -1) == 0 {
		v.buf = nil
	}
}

// Handle is a single reference to a cached Value. The holder must call
// Release exactly once.
type Handle struct {
	v *Value
}

// Bytes returns the cached payload, or nil if the handle is the zero value
// (a cache miss).
func (h Handle) Bytes() []byte {
	if h.v == nil {
		return nil
	}
	return h.v.Bytes()
}

// Valid reports whether h refers to a live value.
func (h Handle) Valid() bool { return h.v != nil }

// Release drops this handle's reference. It is a no-op on the zero Handle.
func (h Handle) Release() {
	if h.v != nil {
		h.v.release()
	}
}

// Cache is a bounded, in-memory store of blob values keyed by (file,
// offset). Eviction is delegated to a size-bounded LRU; entries that are
// evicted from the LRU but still referenced by an outstanding Handle stay
// valid (the backing buffer is freed only once the last reference drops),
// but are no longer reachable by Get -- matching the upstream expectation
// that a cache is a lookup-and-fill accelerator, not a source of truth.
//
// A Cache optionally delegates evicted entries to a SecondaryCache, which
// Get also consults transparently on a primary miss. Callers never talk to
// the secondary tier directly.
type Cache struct {
	mu        sync.Mutex
	lru       *lru.Cache
	secondary SecondaryCache
	stats     base.StatsSink
}

// New creates a Cache holding at most capacity entries. A capacity of zero
// disables the primary tier entirely (every Get misses, every Set is a
// no-op); this is used when a caller wants only a secondary-cache-backed
// store, or no caching at all.
func New(capacity int, secondary SecondaryCache, stats base.StatsSink) *Cache {
	if stats == nil {
		stats = base.NoopStats{}
	}
	c := &Cache{secondary: secondary, stats: stats}
	if capacity > 0 {
		l, err := lru.NewWithEvict(capacity, c.onEvict)
		if err != nil {
			// Only returned for a non-positive size, already excluded above.
			panic(err)
		}
		c.lru = l
	}
	return c
}

// onEvict runs with c.mu held (hashicorp/golang-lru invokes the eviction
// callback synchronously from within Add/Remove).
func (c *Cache) onEvict(key, value interface{}) {
	v := value.(*Value)
	if c.secondary != nil {
		c.secondary.Set(key.(mapKey), v.buf)
	}
	v.release()
}

// Get looks up key, consulting the secondary tier transparently on a
// primary miss and promoting any secondary hit back into the primary tier.
func (c *Cache) Get(key Key) Handle {
	mk := key.mapKey()

	c.mu.Lock()
	if c.lru != nil {
		if v, ok := c.lru.Get(mk); ok {
			val := v.(*Value)
			val.acquire()
			c.mu.Unlock()
			c.stats.Tick(base.StatCacheHit)
			c.stats.TickBy(base.StatCacheBytesRead, uint64(len(val.buf)))
			return Handle{v: val}
		}
	}
	c.mu.Unlock()

	if c.secondary != nil {
		if buf, ok := c.secondary.Get(mk); ok {
			c.stats.Tick(base.StatCacheHit)
			c.stats.TickBy(base.StatCacheBytesRead, uint64(len(buf)))
			return c.Set(key, buf)
		}
	}

	c.stats.Tick(base.StatCacheMiss)
	return Handle{}
}

// Set inserts buf under key and returns a Handle holding one reference to
// the freshly-inserted value.
func (c *Cache) Set(key Key, buf []byte) Handle {
	v := newValue(buf)
	if c.lru != nil {
		c.mu.Lock()
		c.lru.Add(key.mapKey(), v.acquire())
		c.mu.Unlock()
		c.stats.Tick(base.StatCacheAdd)
		c.stats.TickBy(base.StatCacheBytesWrite, uint64(len(buf)))
	}
	return Handle{v: v}
}

// Delete removes key from the primary tier, if present. The removal goes
// through the same eviction callback as an LRU eviction, so with a
// secondary tier configured the entry is written to that tier; an entry
// already held by the secondary tier is not removed from it. It does not
// invalidate Handles already held by other callers.
func (c *Cache) Delete(key Key) {
	if c.lru != nil {
		c.mu.Lock()
		c.lru.Remove(key.mapKey())
		c.mu.Unlock()
	}
}

// Rekey moves every entry inserted under oldBase to newBase, preserving
// each entry's offset. It is used to fix up cache entries warmed under a
// blob file builder's provisional NewBuilderBaseKey once the file closes
// and its real NewBaseKey is known; see the BaseKey doc comment.
//
// Rekey only affects the primary tier: secondary-cache entries set during
// warm-up are looked up by the same mapKey the primary tier would have
// produced, so a stale secondary entry under the provisional key is simply
// never read again and ages out on its own.
func (c *Cache) Rekey(oldBase, newBase BaseKey, offsets []uint64) {
	if c.lru == nil || oldBase == newBase {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, off := range offsets {
		oldKey := oldBase.WithOffset(off).mapKey()
		v, ok := c.lru.Peek(oldKey)
		if !ok {
			continue
		}
		// Remove runs onEvict, which drops the cache's reference; take a
		// fresh one first so the value survives the move to newBase.
		v.(*Value).acquire()
		c.lru.Remove(oldKey)
		c.lru.Add(newBase.WithOffset(off).mapKey(), v)
	}
}

// Len reports the number of entries currently held in the primary tier.
func (c *Cache) Len() int {
	if c.lru == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
