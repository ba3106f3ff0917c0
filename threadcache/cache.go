// Package threadcache provides the per-worker-goroutine fast tier: an
// unsynchronized slab.Pool that batch-fills pages from the host allocator
// itself and spills into the global pool on Release. Go has no OS-thread TLS to auto-destruct a cache the way a
// pthread key would, so a Cache is an explicit handle: callers construct
// one per worker goroutine with New and must call Release when the
// goroutine is done with it. A finalizer is registered as a backstop for
// callers that forget, mirroring how *os.File and net.Conn guard against
// a missing Close.
package threadcache

import (
	"runtime"
	"sync"
	"unsafe"

	"slabpool/global"
	"slabpool/slab"
)

// Cache is a single goroutine's private slab pool. It is not safe for
// concurrent use — callers must not share a Cache across goroutines.
type Cache struct {
	base     *slab.Pool
	upstream *global.Pool

	mu       sync.Mutex // guards released; Allocate/Deallocate assume single-owner use
	released bool
}

// New constructs a thread cache backed by the process-wide global pool.
func New() *Cache {
	return newCache(global.Default())
}

// NewWithUpstream constructs a thread cache backed by an explicit global
// pool, for tests and for callers that do not want to share the
// process-wide singleton.
func NewWithUpstream(upstream *global.Pool) *Cache {
	return newCache(upstream)
}

func newCache(upstream *global.Pool) *Cache {
	c := &Cache{base: slab.NewPool(), upstream: upstream}
	runtime.SetFinalizer(c, func(c *Cache) { c.Release() })
	return c
}

// Allocate serves userSize bytes from this cache's local pool, which
// batch-fills a fresh page from the host allocator when its free list is
// empty. When the local pool returns nil (a request larger than
// slab.MaxUserSize, or host exhaustion while batch-filling) it falls back
// to the upstream global pool, and finally to a plain host allocation.
// The returned pointer is always
// non-nil; this is the full three-tier cascade spec.md §4.3 describes.
func (c *Cache) Allocate(userSize int) unsafe.Pointer {
	if ptr := c.base.Allocate(userSize); ptr != nil {
		return ptr
	}
	if ptr := c.upstream.Allocate(userSize); ptr != nil {
		return ptr
	}
	return hostAllocate(userSize)
}

func hostAllocate(userSize int) unsafe.Pointer {
	if userSize <= 0 {
		userSize = 1
	}
	buf := make([]byte, userSize)
	return unsafe.Pointer(&buf[0])
}

// Deallocate returns ptr to this cache's local free lists. A pointer
// originally issued by a different cache or by the global pool is not
// dropped: slab.Pool.Deallocate recycles any address that falls inside a
// page some pool is tracking onto this cache's own free list regardless of
// which pool's batch-fill produced that page — the spec-correct
// cross-thread-free path (scenario 6). Only a pointer that never came from
// any pool's page at all (the host-fallback case above) is dropped, since
// there is nothing to recycle it into.
func (c *Cache) Deallocate(ptr unsafe.Pointer) {
	c.base.Deallocate(ptr)
}

// Stats returns a snapshot of this cache's local bookkeeping counters.
// It does not include anything already spilled upstream.
func (c *Cache) Stats() slab.Stats {
	return c.base.Stats()
}

// Release transfers every free block this cache still holds, with the pages
// of each size class that had free blocks, to the upstream global pool and
// detaches the finalizer. It is idempotent and
// safe to call more than once; only the first call does any work.
func (c *Cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	c.released = true
	c.upstream.TransferFrom(c.base)
	runtime.SetFinalizer(c, nil)
}
