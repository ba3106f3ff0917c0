package threadcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"slabpool/global"
)

func TestAllocateServesFromLocalFreeListFirst(t *testing.T) {
	up := global.New()
	c := NewWithUpstream(up)

	ptr := c.Allocate(64)
	require.NotNil(t, ptr)
	c.Deallocate(ptr)

	before := up.Stats().AllocCount
	again := c.Allocate(64)
	require.Equal(t, ptr, again, "a local free block must be reused without touching the upstream pool")
	require.Equal(t, before, up.Stats().AllocCount)
}

func TestReleaseTransfersToUpstream(t *testing.T) {
	up := global.New()
	c := NewWithUpstream(up)

	var ptrs []any
	for i := 0; i < 10; i++ {
		p := c.Allocate(64)
		require.NotNil(t, p)
		ptrs = append(ptrs, p)
		c.Deallocate(p)
	}

	localFree := c.Stats().FreeBytes
	require.Positive(t, localFree)

	c.Release()

	require.Zero(t, c.Stats().FreeBytes, "Release must empty the cache's own lists")
	require.GreaterOrEqual(t, up.Stats().FreeBytes, localFree)
}

func TestReleaseIsIdempotent(t *testing.T) {
	up := global.New()
	c := NewWithUpstream(up)
	c.Allocate(64)

	require.NotPanics(t, func() {
		c.Release()
		c.Release()
	})
}

func TestAllocateBatchFillsLocallyOnEmptyCache(t *testing.T) {
	up := global.New()
	c := NewWithUpstream(up)

	ptr := c.Allocate(64)
	require.NotNil(t, ptr)
	require.Zero(t, up.Stats().AllocCount, "an empty local cache batch-fills its own page from the host, without going through the upstream pool")
}
