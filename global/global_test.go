package global

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"slabpool/slab"
)

func TestAllocateDeallocateRoundTrip(t *testing.T) {
	g := New()
	ptr := g.Allocate(64)
	require.NotNil(t, ptr)
	g.Deallocate(ptr)
	require.Zero(t, g.Stats().UsedBytes)
}

func TestDefaultIsASingleton(t *testing.T) {
	require.Same(t, Default(), Default())
}

func TestConcurrentAccessIsSerialized(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ptr := g.Allocate(32)
			require.NotNil(t, ptr)
			g.Deallocate(ptr)
		}()
	}
	wg.Wait()
	require.Equal(t, g.Stats().AllocCount, g.Stats().DeallocCount)
}

func TestTransferFromAbsorbsSourcePool(t *testing.T) {
	g := New()
	src := slab.NewPool()

	var ptrs []unsafe.Pointer
	for i := 0; i < 20; i++ {
		ptrs = append(ptrs, src.Allocate(64))
	}
	for _, ptr := range ptrs {
		src.Deallocate(ptr)
	}

	srcBytes := src.Stats().FreeBytes
	require.Positive(t, srcBytes)

	g.TransferFrom(src)

	require.Zero(t, src.Stats().FreeBytes)
	require.GreaterOrEqual(t, g.Stats().FreeBytes, srcBytes)
}

func TestDeallocateReclaimsAboveThreshold(t *testing.T) {
	g := New()

	var ptrs []unsafe.Pointer
	total := 64
	// enough 64-byte allocations to push free bytes past MaxGlobalFreeMemory
	count := MaxGlobalFreeMemory/total + 1024
	for i := 0; i < count; i++ {
		ptrs = append(ptrs, g.Allocate(total))
	}
	for _, ptr := range ptrs {
		g.Deallocate(ptr)
	}

	require.Less(t, g.Stats().FreeBytes, uint64(MaxGlobalFreeMemory))
}
