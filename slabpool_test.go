package slabpool

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestAllocateDeallocateThroughFacade(t *testing.T) {
	ptr := Allocate(64)
	require.NotNil(t, ptr)
	Deallocate(ptr)
}

func TestAllocateOversizeFallsBackToHost(t *testing.T) {
	before := GlobalStats().AllocCount
	ptr := Allocate(4096)
	require.NotNil(t, ptr, "an oversize request must still return usable memory via the host fallback")
	require.Equal(t, before, GlobalStats().AllocCount, "an oversize request must never touch the pool's counters")

	// spec.md's literal scenario 3: deallocate(p) on the oversize pointer
	// must complete without error, including the bare host-fallback
	// pointer shape (offset 0, no header room reserved in front of it).
	require.NotPanics(t, func() { Deallocate(ptr) })
}

func TestNewCacheRoundTrip(t *testing.T) {
	c := NewCache()
	ptr := c.Allocate(32)
	require.NotNil(t, ptr)
	c.Deallocate(ptr)
	c.Release()
}

func TestCacheOversizeAllocateNeverReturnsNil(t *testing.T) {
	c := NewCache()
	defer c.Release()

	ptr := c.Allocate(4096)
	require.NotNil(t, ptr, "Cache.Allocate must cascade all the way to a host allocation")
	require.NotPanics(t, func() { c.Deallocate(ptr) })
}

func TestDeallocateForeignInteriorPointerFromFacadeIsSafe(t *testing.T) {
	foreign := make([]byte, 64)
	require.NotPanics(t, func() { Deallocate(unsafe.Pointer(&foreign[8])) })
}

func TestDeallocateHostFallbackShapedPointerFromFacadeIsSafe(t *testing.T) {
	foreign := make([]byte, 64)
	require.NotPanics(t, func() { Deallocate(unsafe.Pointer(&foreign[0])) })
}
