// Package bootheap implements the linear bump allocator carved out of
// the linker-reserved [kernel_heap, kernel_heap_end) byte range
// (spec.md §4.B). It is the only allocator alive before internal/pmm
// and internal/buddy come online.
package bootheap

import (
	"unsafe"

	"rv32kern/internal/addr"
)

// Heap is a cursor into a fixed byte range. It never frees; requests
// that would exhaust the range return ok=false rather than panicking,
// leaving the reaction to the caller (spec.md §4.B, §7).
type Heap struct {
	cursor addr.PAddr
	end    addr.PAddr
}

// Init resets the cursor to the start of [start, end).
func (h *Heap) Init(start, end addr.PAddr) {
	h.cursor = start
	h.end = end
}

// Available returns the number of bytes left before the cursor reaches
// the end of the reserved range.
func (h *Heap) Available() uintptr {
	if h.cursor >= h.end {
		return 0
	}
	return uintptr(h.end - h.cursor)
}

// Reserve returns the current cursor and advances it by n bytes, or
// returns (nil, false) if fewer than n bytes remain. The returned
// pointer carries no alignment guarantee beyond byte addressing;
// callers needing aligned memory must over-allocate and align within.
func (h *Heap) Reserve(n uintptr) (unsafe.Pointer, bool) {
	if h.Available() < n {
		return nil, false
	}
	p := h.cursor.AsPointer()
	h.cursor = h.cursor.Add(n)
	return p, true
}
