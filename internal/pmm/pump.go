// Package pmm implements the page-frame pump (spec.md §4.D): the
// single advancing cursor that hands out zeroed 4 KiB frames before
// the buddy allocator is online, primarily to internal/paging while it
// builds page tables.
package pmm

import (
	"unsafe"

	"rv32kern/internal/addr"
	"rv32kern/internal/kernerr"
)

// Pump hands out frames from a single region via one advancing
// cursor. It never returns memory; every handout is permanent from the
// pump's point of view (spec.md §5).
type Pump struct {
	region addr.Region
	next   addr.PAddr
}

// Init points the pump at region, starting the cursor at region.Addr.
func (p *Pump) Init(region addr.Region) {
	p.region = region
	p.next = region.Addr
}

// Region returns the region the pump is drawing from.
func (p *Pump) Region() addr.Region { return p.region }

// Cursor returns the next address the pump will hand out. A caller
// retiring the pump in favor of the buddy allocator (spec.md §9 open
// question 2) uses this to carve the buddy's managed region so it
// starts exactly where the pump left off, keeping the two disjoint.
func (p *Pump) Cursor() addr.PAddr { return p.next }

// Allocate returns the current cursor and advances it by n pages,
// zero-filling the returned frames. It is fatal (spec.md §7) for the
// advance to run past the end of the managed region — the pump has no
// recoverable-null path because every one of its callers (page-table
// construction) has no sensible degraded behavior for a missing frame.
func (p *Pump) Allocate(n uintptr) addr.PAddr {
	start := p.next
	size := n * addr.PageSize
	newNext := start.Add(size)
	if newNext > p.region.End() {
		kernerr.Fatal("pmm: out of frames in region %v (requested %d pages at %v)", p.region, n, start)
	}
	p.next = newNext

	zero(start, size)
	return start
}

func zero(start addr.PAddr, size uintptr) {
	buf := unsafe.Slice((*byte)(start.AsPointer()), size)
	for i := range buf {
		buf[i] = 0
	}
}
