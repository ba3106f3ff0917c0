package slab

import "sync/atomic"

// Stats is a point-in-time snapshot of a Pool's bookkeeping counters.
type Stats struct {
	AllocCount   uint64
	DeallocCount uint64
	FreeBytes    uint64
	UsedBytes    uint64
	HostBytes    uint64
}

// counters holds the four bookkeeping fields as atomics so that a snapshot
// read never tears a single field, even though Pool itself is otherwise
// unsynchronized (the thread-cache tier reads its own counters from the
// owning goroutine; the global pool's stats are read under its mutex).
type counters struct {
	allocCount   atomic.Uint64
	deallocCount atomic.Uint64
	freeBytes    atomic.Uint64
	hostBytes    atomic.Uint64
}

func (c *counters) incAlloc()   { c.allocCount.Add(1) }
func (c *counters) incDealloc() { c.deallocCount.Add(1) }

func (c *counters) addFree(n uint64) { c.freeBytes.Add(n) }
func (c *counters) subFree(n uint64) { c.freeBytes.Add(^(n - 1)) }
func (c *counters) addHost(n uint64) { c.hostBytes.Add(n) }
func (c *counters) subHost(n uint64) { c.hostBytes.Add(^(n - 1)) }

func (c *counters) snapshot() Stats {
	host := c.hostBytes.Load()
	free := c.freeBytes.Load()
	return Stats{
		AllocCount:   c.allocCount.Load(),
		DeallocCount: c.deallocCount.Load(),
		FreeBytes:    free,
		UsedBytes:    host - free,
		HostBytes:    host,
	}
}
