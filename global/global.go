// Package global provides the process-wide slab pool that thread caches
// spill into when released. It is the shared, mutex-guarded tier; a thread
// cache's own pool batch-fills pages from the host allocator itself and
// consults this pool only when its local pool returns nil.
package global

import (
	"sync"
	"unsafe"

	"slabpool/slab"
)

// MaxGlobalFreeMemory caps how much idle free memory the global pool will
// hold onto before ReclaimIdle is invoked opportunistically on the
// deallocation path. Expressed in bytes.
const MaxGlobalFreeMemory = 10 * 1024 * 1024

// Pool is the mutex-serialized global tier. The zero value is not usable;
// construct with New, or use Default for the process-wide singleton.
type Pool struct {
	mu   sync.Mutex
	base *slab.Pool
}

// New returns a standalone global pool. Most callers want Default instead;
// New exists for tests and for processes that want isolated pools instead
// of sharing process-wide state.
func New() *Pool {
	return &Pool{base: slab.NewPool()}
}

var (
	defaultOnce sync.Once
	defaultPool *Pool
)

// Default returns the process-wide global pool, constructing it on first
// use.
func Default() *Pool {
	defaultOnce.Do(func() {
		defaultPool = New()
	})
	return defaultPool
}

// Allocate serves userSize bytes from the global pool, batch-filling a
// fresh page from the host allocator if every matching free list is empty.
func (g *Pool) Allocate(userSize int) unsafe.Pointer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.base.Allocate(userSize)
}

// Deallocate returns ptr to the global pool's free lists. If the pool's
// free bytes exceed MaxGlobalFreeMemory afterward, idle pages are reclaimed
// back to the host before returning.
func (g *Pool) Deallocate(ptr unsafe.Pointer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.base.Deallocate(ptr)
	if g.base.Stats().FreeBytes > MaxGlobalFreeMemory {
		g.base.ReclaimIdle()
	}
}

// TransferFrom absorbs every free block src currently holds, together with
// src's pages of each size class that had free blocks, typically called when
// a thread cache is released. src's free lists are left empty.
func (g *Pool) TransferFrom(src *slab.Pool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	src.TransferTo(g.base)
	if g.base.Stats().FreeBytes > MaxGlobalFreeMemory {
		g.base.ReclaimIdle()
	}
}

// Stats returns a snapshot of the global pool's bookkeeping counters.
func (g *Pool) Stats() slab.Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.base.Stats()
}

// ReclaimIdle forces an opportunistic reclaim pass regardless of the
// MaxGlobalFreeMemory threshold, returning bytes released.
func (g *Pool) ReclaimIdle() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.base.ReclaimIdle()
}
