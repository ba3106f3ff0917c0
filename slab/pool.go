package slab

import (
	"sort"
	"unsafe"
)

// Pool is the size-classed slab pool, the reusable engine behind both the
// global pool and every thread cache. It is not safe for concurrent use;
// callers (global.Pool, threadcache.Cache) serialize access externally.
type Pool struct {
	counters

	classTotalSize []uint32         // sorted ascending, no duplicates
	freeHead       []unsafe.Pointer // free-list head per class index
	freeCount      []uint32         // free-list length per class index
	pages          []*page          // all live pages owned by this pool, sorted by base
}

// NewPool pre-populates the size-class table for every user size in
// [MinUserSize, MaxUserSize] stepped by BlockAlignment. No pages are
// fetched; every free list starts empty.
func NewPool() *Pool {
	p := &Pool{}
	for userSize := MinUserSize; userSize <= MaxUserSize; userSize += BlockAlignment {
		p.insertClass(calcTotalSize(userSize))
	}
	return p
}

// Allocate returns a payload pointer for userSize bytes, or nil if
// userSize exceeds MaxUserSize or the host allocator is exhausted while
// batch-filling a page. The returned pointer, when non-nil, is aligned to
// BlockAlignment.
func (p *Pool) Allocate(userSize int) unsafe.Pointer {
	if userSize > MaxUserSize {
		return nil
	}
	if userSize < MinUserSize {
		userSize = MinUserSize
	}
	total := calcTotalSize(userSize)

	idx, ok := p.findClass(total)
	if !ok {
		idx = p.insertClass(total)
	}

	if p.freeHead[idx] == nil {
		if !p.batchFill(idx, total) {
			return nil
		}
	}

	block := p.freeHead[idx]
	p.freeHead[idx] = readNext(block)
	p.freeCount[idx]--
	p.subFree(uint64(total))
	p.incAlloc()

	if pg, _, found := p.pageFor(uintptr(block)); found {
		pg.freeBlocks--
	}

	return unsafe.Add(block, HeaderSize)
}

// Deallocate returns a previously allocated payload pointer to its size
// class's free list. A nil pointer is a no-op. Pointers this pool did not
// issue — an oversize request's host-fallback allocation, or any other
// foreign pointer — are silently dropped: in Go there is no separate
// host-free call to forward to, and a pointer that was never pool-issued
// is already an ordinary garbage-collected allocation that frees itself
// once unreferenced.
//
// Before reading anything at ptr's computed header address, that address
// is checked against liveRegistry, the process-wide record of every page
// any Pool currently holds (fetched from the host and not yet reclaimed).
// A header address outside every
// known page is never dereferenced: ptr's backing allocation (a plain
// make([]byte, n) from the host-fallback path, for instance) may not have
// any bytes reserved before it, so reading or writing there would reach
// outside that allocation's bounds. Only once the address is confirmed to
// fall inside a real page does this function read its header.
func (p *Pool) Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	addr := uintptr(ptr) - HeaderSize
	pg, block, found := liveRegistry.blockAt(addr)
	if !found {
		return
	}
	total := readSize(block)
	if total == 0 {
		return
	}
	if len(p.classTotalSize) > 0 && total < p.classTotalSize[0] {
		return
	}
	idx, ok := p.findClass(total)
	if !ok {
		return
	}

	writeNext(block, p.freeHead[idx])
	p.freeHead[idx] = block
	p.freeCount[idx]++
	p.addFree(uint64(total))
	p.incDealloc()

	// freeBlocks only tracks reclamation eligibility for the pool that
	// actually owns pg (tracks it in p.pages); a cross-thread free into a
	// pool that merely accepted the block onto its free list must not
	// touch a page struct another pool is concurrently accounting for.
	if _, _, owned := p.pageFor(addr); owned {
		pg.freeBlocks++
	}
}

// batchFill obtains one page from the host allocator, carves it into
// PageSize/total equal blocks, and publishes them as the free list for
// class idx.
func (p *Pool) batchFill(idx int, total uint32) bool {
	blockCount := PageSize / total
	if blockCount == 0 {
		return false
	}

	mem := make([]byte, PageSize)
	base := uintptr(unsafe.Pointer(&mem[0]))

	var head, tail unsafe.Pointer
	for i := uint32(0); i < blockCount; i++ {
		blk := unsafe.Pointer(&mem[i*total])
		writeSize(blk, total)
		writeNext(blk, nil)
		if head == nil {
			head = blk
		} else {
			writeNext(tail, blk)
		}
		tail = blk
	}

	pg := &page{
		base:       base,
		mem:        mem,
		totalSize:  total,
		blockCount: blockCount,
		freeBlocks: blockCount,
		classIndex: idx,
	}

	p.freeHead[idx] = head
	p.freeCount[idx] += blockCount
	p.insertPage(pg)
	liveRegistry.add(pg)
	p.addFree(uint64(blockCount) * uint64(total))
	p.addHost(PageSize)
	return true
}

// ReclaimIdle releases whole pages back to the host for every class whose
// free count exceeds ReserveBlockCount by at least one full page's worth
// of blocks, returning the number of bytes released. Only pages whose
// every block is currently free are released.
func (p *Pool) ReclaimIdle() uint64 {
	var reclaimed uint64

	for i := range p.classTotalSize {
		total := p.classTotalSize[i]
		count := p.freeCount[i]
		if count <= ReserveBlockCount {
			continue
		}
		excess := count - ReserveBlockCount
		blocksPerPage := PageSize / total
		if blocksPerPage == 0 {
			continue
		}
		maxPages := excess / blocksPerPage
		if maxPages == 0 {
			continue
		}

		var victims []*page
		for _, pg := range p.pages {
			if pg.classIndex == i && pg.allFree() {
				victims = append(victims, pg)
				if uint32(len(victims)) == maxPages {
					break
				}
			}
		}

		for _, pg := range victims {
			newHead, removed := filterFreeList(p.freeHead[i], func(b unsafe.Pointer) bool {
				return pg.contains(uintptr(b))
			})
			p.freeHead[i] = newHead
			p.freeCount[i] -= uint32(removed)
			p.subFree(uint64(removed) * uint64(total))
			p.subHost(PageSize)
			reclaimed += uint64(removed) * uint64(total)

			if _, pidx, found := p.pageFor(pg.base); found {
				p.removePageAt(pidx)
			}
			liveRegistry.remove(pg)
		}
	}

	return reclaimed
}

// TransferTo splices every non-empty free list in p onto the matching size
// class in dest, moving the counters and the underlying page ownership
// along with the blocks, and clears p's lists. Used at thread-cache
// teardown and by the global pool's TransferFrom.
func (p *Pool) TransferTo(dest *Pool) {
	for i := range p.classTotalSize {
		head := p.freeHead[i]
		if head == nil {
			continue
		}
		total := p.classTotalSize[i]
		count := p.freeCount[i]

		destIdx, ok := dest.findClass(total)
		if !ok {
			destIdx = dest.insertClass(total)
		}

		tail := head
		for readNext(tail) != nil {
			tail = readNext(tail)
		}
		writeNext(tail, dest.freeHead[destIdx])
		dest.freeHead[destIdx] = head
		dest.freeCount[destIdx] += count
		dest.addFree(uint64(count) * uint64(total))

		p.freeHead[i] = nil
		p.freeCount[i] = 0
		p.subFree(uint64(count) * uint64(total))

		var remaining []*page
		var movedBytes uint64
		for _, pg := range p.pages {
			if pg.classIndex == i {
				pg.classIndex = destIdx
				dest.insertPage(pg)
				movedBytes += PageSize
			} else {
				remaining = append(remaining, pg)
			}
		}
		p.pages = remaining
		if movedBytes > 0 {
			p.subHost(movedBytes)
			dest.addHost(movedBytes)
		}
	}
}

// Stats returns a snapshot of this pool's bookkeeping counters.
func (p *Pool) Stats() Stats {
	return p.snapshot()
}

func (p *Pool) insertPage(pg *page) {
	i := sort.Search(len(p.pages), func(i int) bool { return p.pages[i].base >= pg.base })
	p.pages = append(p.pages, nil)
	copy(p.pages[i+1:], p.pages[i:])
	p.pages[i] = pg
}

func (p *Pool) removePageAt(i int) {
	p.pages = append(p.pages[:i], p.pages[i+1:]...)
}

// pageFor recovers the page that owns the block at addr, if this pool is
// the one tracking it. A block whose page was never registered here —
// because it arrived via a cross-thread deallocate of a block this pool
// never allocated or received by transfer — simply has no entry; the free
// list still works correctly, it just never contributes to this pool's
// page-level reclamation accounting.
func (p *Pool) pageFor(addr uintptr) (*page, int, bool) {
	i := sort.Search(len(p.pages), func(i int) bool { return p.pages[i].base > addr }) - 1
	if i >= 0 && i < len(p.pages) && p.pages[i].contains(addr) {
		return p.pages[i], i, true
	}
	return nil, -1, false
}
