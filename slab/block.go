package slab

import "unsafe"

// Every block's first HeaderSize bytes hold its size class's total size,
// written once when the page is carved and never touched again by a
// caller (the payload pointer handed out starts at block+HeaderSize).
// While a block sits on a free list, the bytes immediately following the
// header — which are part of the payload region, but unused because the
// block is not currently held by a caller — double as the free-list "next"
// link. This keeps the header itself exactly HeaderSize bytes, matching
// the fixed-size, alignment-preserving header the pool's invariants
// require, while still giving the free list somewhere to put its pointer.
func writeSize(block unsafe.Pointer, sz uint32) {
	*(*uint32)(block) = sz
}

func readSize(block unsafe.Pointer) uint32 {
	return *(*uint32)(block)
}

func writeNext(block, next unsafe.Pointer) {
	*(*unsafe.Pointer)(unsafe.Add(block, HeaderSize)) = next
}

func readNext(block unsafe.Pointer) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Add(block, HeaderSize))
}

// filterFreeList rebuilds a free list with every block matching drop
// removed, returning the new head and how many blocks were removed.
// Relative order of the surviving blocks is preserved.
func filterFreeList(head unsafe.Pointer, drop func(unsafe.Pointer) bool) (newHead unsafe.Pointer, removed int) {
	var resultHead, resultTail unsafe.Pointer
	for cur := head; cur != nil; {
		next := readNext(cur)
		if drop(cur) {
			removed++
		} else {
			if resultHead == nil {
				resultHead = cur
			} else {
				writeNext(resultTail, cur)
			}
			resultTail = cur
		}
		cur = next
	}
	if resultTail != nil {
		writeNext(resultTail, nil)
	}
	return resultHead, removed
}
