// Package slabpool is a tiered, thread-caching slab allocator: a
// size-classed free-list pool batch-filled from page-sized host
// allocations, with an explicit per-goroutine fast tier in front of a
// shared, mutex-guarded global pool.
//
// Three tiers are available, each a thin wrapper over the same engine in
// slab.Pool:
//
//   - threadcache.Cache: unsynchronized, one per worker goroutine.
//   - global.Pool: mutex-guarded, shared process-wide via global.Default.
//   - the host allocator (plain Go heap), used as the fallback for
//     requests larger than slab.MaxUserSize.
//
// The functions in this file are a convenience facade over the global and
// host tiers only. Go has no goroutine-local storage, so a package-level
// Allocate cannot transparently bind to a caller's thread cache the way
// the reference design's TLS-backed API does; callers that want the full
// three-tier path with a private fast cache should call NewCache and use
// the returned Cache directly.
package slabpool

import (
	"unsafe"

	"slabpool/global"
	"slabpool/slab"
	"slabpool/threadcache"
)

// NewCache returns a new per-goroutine thread cache backed by the
// process-wide global pool. The caller owns the returned Cache and should
// call its Release method when the goroutine is done with it.
func NewCache() *threadcache.Cache {
	return threadcache.New()
}

// Allocate serves userSize bytes directly from the process-wide global
// pool, skipping any thread cache, falling back to a plain host
// allocation for requests the pool declines (larger than
// slab.MaxUserSize, or on host exhaustion while batch-filling).
func Allocate(userSize int) unsafe.Pointer {
	if ptr := global.Default().Allocate(userSize); ptr != nil {
		return ptr
	}
	return hostAllocate(userSize)
}

// Deallocate returns ptr to the process-wide global pool. It is always
// valid to call, including with a pointer this package never issued —
// such pointers are silently dropped (see slab.Pool.Deallocate) and left
// for the garbage collector.
func Deallocate(ptr unsafe.Pointer) {
	global.Default().Deallocate(ptr)
}

// GlobalStats returns a snapshot of the process-wide global pool's
// bookkeeping counters. It does not include any thread cache's local,
// not-yet-released state.
func GlobalStats() slab.Stats {
	return global.Default().Stats()
}

// hostAllocate services a request the slab tiers declined with a plain
// Go allocation. The returned pointer is GC-managed; there is no matching
// host-free call in Go, so Deallocate on such a pointer is a no-op.
func hostAllocate(userSize int) unsafe.Pointer {
	if userSize <= 0 {
		userSize = 1
	}
	buf := make([]byte, userSize)
	return unsafe.Pointer(&buf[0])
}
