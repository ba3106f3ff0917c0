//go:build linux

package threadcache

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"slabpool/global"
)

// TestCachesOnDistinctOSThreadsDoNotShareState mirrors the reference
// design's own multi-thread demo: each worker locks itself to a distinct
// OS thread (confirmed via unix.Gettid, since two goroutines on the same
// Go-runtime thread would defeat the point of a per-thread cache) and
// gets its own independent Cache with its own free lists.
func TestCachesOnDistinctOSThreadsDoNotShareState(t *testing.T) {
	workers := runtime.NumCPU()
	if workers > 4 {
		workers = 4
	}

	up := global.New()
	tids := make([]int, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			tids[idx] = unix.Gettid()

			c := NewWithUpstream(up)
			defer c.Release()

			ptr := c.Allocate(64)
			require.NotNil(t, ptr)
			c.Deallocate(ptr)
			require.Equal(t, uint64(1), c.Stats().AllocCount)
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, tid := range tids {
		require.NotZero(t, tid)
		require.False(t, seen[tid], "two workers must not have landed on the same OS thread")
		seen[tid] = true
	}
}
