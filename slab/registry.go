package slab

import (
	"sort"
	"sync"
	"unsafe"
)

// liveRegistry tracks every page currently held by any Pool in the
// process, purely so a candidate deallocate address can be checked against
// real allocation bounds before it is ever dereferenced. This is
// deliberately process-wide rather than per-Pool: a block can legitimately
// be deallocated into a Pool other than the one whose page it came from
// (the cross-thread-free case, spec scenario 6), and that pool has no
// entry for the page in its own, ownership-tracking page list. Per-Pool
// ownership (used for reclamation eligibility) stays in Pool.pages;
// liveRegistry only answers "is this address real."
var liveRegistry registry

type registry struct {
	mu    sync.Mutex
	pages []*page // sorted by base
}

func (r *registry) add(pg *page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := sort.Search(len(r.pages), func(i int) bool { return r.pages[i].base >= pg.base })
	r.pages = append(r.pages, nil)
	copy(r.pages[i+1:], r.pages[i:])
	r.pages[i] = pg
}

func (r *registry) remove(pg *page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := sort.Search(len(r.pages), func(i int) bool { return r.pages[i].base >= pg.base })
	if i < len(r.pages) && r.pages[i] == pg {
		r.pages = append(r.pages[:i], r.pages[i+1:]...)
	}
}

// blockAt returns the page containing addr and an unsafe.Pointer to that
// exact address, materialized from the page's own backing array rather
// than from arithmetic on the candidate pointer — the only way to obtain a
// pointer here that still satisfies the unsafe.Pointer rules for an
// address we otherwise only know as a bare integer. A false second return
// means addr is not inside any page this process currently holds, and
// must not be dereferenced.
func (r *registry) blockAt(addr uintptr) (*page, unsafe.Pointer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := sort.Search(len(r.pages), func(i int) bool { return r.pages[i].base > addr }) - 1
	if i < 0 || i >= len(r.pages) || !r.pages[i].contains(addr) {
		return nil, nil, false
	}
	pg := r.pages[i]
	return pg, unsafe.Pointer(&pg.mem[addr-pg.base]), true
}
