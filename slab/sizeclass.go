package slab

import "sort"

// findClass returns the index of totalSize in the (sorted) class table, or
// the insertion position and false if absent.
func (p *Pool) findClass(totalSize uint32) (int, bool) {
	i := sort.Search(len(p.classTotalSize), func(i int) bool {
		return p.classTotalSize[i] >= totalSize
	})
	if i < len(p.classTotalSize) && p.classTotalSize[i] == totalSize {
		return i, true
	}
	return i, false
}

// insertClass adds totalSize to the sorted class table if it isn't already
// present, shifting the parallel free-list arrays, and returns its index.
// The constructor pre-populates every class the public API can address, so
// in practice this path is defensive rather than a growth mechanism.
func (p *Pool) insertClass(totalSize uint32) int {
	idx, ok := p.findClass(totalSize)
	if ok {
		return idx
	}

	p.classTotalSize = insertAt(p.classTotalSize, idx, totalSize)
	p.freeHead = insertAt(p.freeHead, idx, nil)
	p.freeCount = insertAt(p.freeCount, idx, 0)

	for _, pg := range p.pages {
		if pg.classIndex >= idx {
			pg.classIndex++
		}
	}
	return idx
}

func insertAt[T any](s []T, idx int, v T) []T {
	s = append(s, v)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}
