// Package buddy implements the power-of-two block allocator over the
// physical region selected by internal/memmap (spec.md §4.E). It is
// the hardest part of the substack: bitfield block metadata, a
// parallel free-list/link-table arena (no allocator-internal pointer
// ever escapes — the classic arena+index discipline spec.md §9 calls
// out), and the split/coalesce pair that keeps both in sync.
//
// This is a direct port of original_source/src/allocator.rs's
// BuddyAllocator, with its two documented defects fixed: Metadata's
// with_* setters AND a mask into the byte instead of OR-ing the new
// bit in (so the field being set was never actually stored), and
// allocate_unchecked's split loop failed to advance its bucket index
// and used the wrong order when computing a buddy. Both are fixed
// below; see DESIGN.md for the ledger entry.
package buddy

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"rv32kern/internal/addr"
	"rv32kern/internal/kconfig"
	"rv32kern/internal/kernerr"
)

// noIndex is the sentinel meaning "no next/prev/head/tail", matching
// spec.md's u16::MAX convention.
const noIndex = 0xFFFF

// maxManagedSubranges bounds how large a region this allocator can
// track: indices are 16-bit, so the sentinel value itself must stay
// unreachable (spec.md §9, "Sentinel-vs-option").
const maxManagedSubranges = noIndex

// metadata packs [allocated:1][onFreeList:1][order:6] into a single
// byte, matching spec.md's §3 data model exactly.
type metadata uint8

const (
	metaAllocatedBit  = 1 << 7
	metaOnFreeListBit = 1 << 6
	metaOrderMask     = 0x3f
)

func newMetadata(allocated, onFreeList bool, order uint8) metadata {
	var m metadata
	if allocated {
		m |= metaAllocatedBit
	}
	if onFreeList {
		m |= metaOnFreeListBit
	}
	m |= metadata(order) & metaOrderMask
	return m
}

func (m metadata) allocated() bool  { return m&metaAllocatedBit != 0 }
func (m metadata) onFreeList() bool { return m&metaOnFreeListBit != 0 }
func (m metadata) order() uint8     { return uint8(m & metaOrderMask) }

// withAllocated returns m with the allocated bit set or cleared. Unlike
// the Rust original's with_is_allocated (which AND-masked the new bit
// in, so it could only ever clear the field), this OR/clears correctly.
func (m metadata) withAllocated(v bool) metadata {
	if v {
		return m | metaAllocatedBit
	}
	return m &^ metaAllocatedBit
}

func (m metadata) withOnFreeList(v bool) metadata {
	if v {
		return m | metaOnFreeListBit
	}
	return m &^ metaOnFreeListBit
}

func (m metadata) withOrder(order uint8) metadata {
	return (m &^ metaOrderMask) | (metadata(order) & metaOrderMask)
}

func (m metadata) String() string {
	return fmt.Sprintf("metadata{allocated:%v on_free_list:%v order:%d}", m.allocated(), m.onFreeList(), m.order())
}

// linkedNode is a free-list bucket head/tail pair, or a per-subrange
// prev/next cell — the same shape serves both roles, as in
// original_source/src/allocator.rs.
type linkedNode struct {
	Head uint16
	Tail uint16
}

// Allocator is the power-of-two block allocator. free_lists/metadata/links
// are carved out of a caller-supplied scratch buffer without copying,
// using the reflect.SliceHeader-over-raw-memory technique shown in the
// retrieval pack's bitmap allocator (setupPoolBitmaps) — the
// idiomatic way bare-metal Go turns a byte run into a typed slice.
type Allocator struct {
	// mu guards every field below. Real hardware is single-hart and
	// never contends this lock; it exists so cmd/simkernel's host
	// stress harness can hammer Alloc/Free from many goroutines to
	// confirm the metadata invariants hold under real concurrency
	// before trusting them on bare metal.
	mu sync.Mutex

	region    addr.Region
	subranges int

	freeLists []linkedNode // index: order, len MaxOrder+1
	metadata  []metadata   // index: subrange
	links     []linkedNode // index: subrange (reused as {prev,next})
}

// RequiredHeap returns the exact scratch byte count NewAllocator needs
// to manage a region of the given size, honoring the alignment of each
// sub-array.
func RequiredHeap(regionSize uintptr) uintptr {
	subranges := regionSize / kconfig.MinBlock
	var off uintptr

	off = alignUp(off, unsafe.Alignof(linkedNode{}))
	off += uintptr(kconfig.MaxOrder+1) * unsafe.Sizeof(linkedNode{})

	off = alignUp(off, unsafe.Alignof(metadata(0)))
	off += subranges * unsafe.Sizeof(metadata(0))

	off = alignUp(off, unsafe.Alignof(linkedNode{}))
	off += subranges * unsafe.Sizeof(linkedNode{})

	return off
}

func alignUp(off, align uintptr) uintptr {
	return (off + align - 1) &^ (align - 1)
}

// NewAllocator carves free_lists/metadata/links out of scratch and
// seeds the free lists with every maximum-order-aligned block in
// region. scratch must be at least RequiredHeap(region.Size) bytes;
// cmd/kernel takes it from internal/pmm's pump, and the host tools and
// tests pass an ordinary byte slice.
func NewAllocator(region addr.Region, scratch []byte) *Allocator {
	required := RequiredHeap(region.Size)
	if uintptr(len(scratch)) < required {
		kernerr.Fatal("buddy: scratch buffer of %d bytes is smaller than the required %d", len(scratch), required)
	}

	subranges := region.Size / kconfig.MinBlock
	if subranges >= maxManagedSubranges {
		kernerr.Fatal("buddy: region of %d subranges exceeds the 16-bit index space", subranges)
	}

	base := uintptr(unsafe.Pointer(&scratch[0]))
	var off uintptr

	off = alignUp(off, unsafe.Alignof(linkedNode{}))
	freeLists := sliceAt[linkedNode](base+off, kconfig.MaxOrder+1)
	off += uintptr(kconfig.MaxOrder+1) * unsafe.Sizeof(linkedNode{})

	off = alignUp(off, unsafe.Alignof(metadata(0)))
	meta := sliceAt[metadata](base+off, int(subranges))
	off += subranges * unsafe.Sizeof(metadata(0))

	off = alignUp(off, unsafe.Alignof(linkedNode{}))
	links := sliceAt[linkedNode](base+off, int(subranges))

	a := &Allocator{
		region:    region,
		subranges: int(subranges),
		freeLists: freeLists,
		metadata:  meta,
		links:     links,
	}
	a.construct()
	return a
}

// sliceAt reinterprets a run of raw bytes starting at addr as a typed
// slice of n elements, with no copy and no bounds relation to any Go
// allocation — the caller (NewAllocator) is responsible for addr+n
// staying inside the scratch buffer.
func sliceAt[T any](addr uintptr, n int) []T {
	var hdr reflect.SliceHeader
	hdr.Data = addr
	hdr.Len = n
	hdr.Cap = n
	return *(*[]T)(unsafe.Pointer(&hdr))
}

func (a *Allocator) construct() {
	for i := range a.freeLists {
		a.freeLists[i] = linkedNode{Head: noIndex, Tail: noIndex}
	}
	for i := range a.links {
		a.links[i] = linkedNode{Head: noIndex, Tail: noIndex}
	}
	for i := range a.metadata {
		a.metadata[i] = 0
	}

	// Blocks are threaded highest index first, so the list runs in
	// ascending index order and block 0 is the head handed out first.
	step := 1 << kconfig.MaxOrder
	for i := (a.subranges/step - 1) * step; i >= 0; i -= step {
		a.metadata[i] = newMetadata(false, true, kconfig.MaxOrder)
		a.insertFront(kconfig.MaxOrder, uint16(i))
	}
	// Subranges past the last maximum-order-aligned block (spec.md §9,
	// open question 5) are left unmanaged: their metadata stays at the
	// zero value (allocated:false, on_free_list:false, order:0) and
	// they are never reachable from any free list or allocation.
}

func (a *Allocator) insertFront(order uint8, idx uint16) {
	old := a.freeLists[order].Head
	a.links[idx] = linkedNode{Head: noIndex, Tail: old}
	if old != noIndex {
		a.links[old].Head = idx
	}
	a.freeLists[order].Head = idx
	if a.freeLists[order].Tail == noIndex {
		a.freeLists[order].Tail = idx
	}
}

func (a *Allocator) remove(order uint8, idx uint16) {
	prev := a.links[idx].Head
	next := a.links[idx].Tail
	if prev != noIndex {
		a.links[prev].Tail = next
	} else {
		a.freeLists[order].Head = next
	}
	if next != noIndex {
		a.links[next].Head = prev
	} else {
		a.freeLists[order].Tail = prev
	}
	a.links[idx] = linkedNode{Head: noIndex, Tail: noIndex}
}

func nextPowerOfTwo(n uintptr) uintptr {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

func log2(n uintptr) uint8 {
	var l uint8
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}

// Alloc reserves a block of at least size bytes and returns a pointer
// to it, or nil if the allocator is out of memory. Allocating more
// than the maximum block size is fatal, matching spec.md's failure
// semantics (§4.E).
func (a *Allocator) Alloc(size uintptr) unsafe.Pointer {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size == 0 {
		size = kconfig.MinBlock
	}
	size = nextPowerOfTwo(size)
	if size > kconfig.MaxBlock {
		kernerr.Fatal("buddy: requested %d bytes exceeds the maximum block size %d", size, kconfig.MaxBlock)
	}
	if size < kconfig.MinBlock {
		size = kconfig.MinBlock
	}
	desiredOrder := log2(size) - log2(kconfig.MinBlock)

	block, ok := a.allocateBlock(desiredOrder)
	if !ok {
		return nil
	}
	return a.region.Addr.Add(uintptr(block) * kconfig.MinBlock).AsPointer()
}

func (a *Allocator) allocateBlock(desiredOrder uint8) (uint16, bool) {
	foundOrder := -1
	for o := int(desiredOrder); o <= kconfig.MaxOrder; o++ {
		if a.freeLists[o].Head != noIndex {
			foundOrder = o
			break
		}
	}
	if foundOrder == -1 {
		return 0, false
	}

	block := a.freeLists[foundOrder].Head
	a.remove(uint8(foundOrder), block)

	pool := foundOrder
	for pool > int(desiredOrder) {
		pool--
		buddy := block ^ uint16(1<<pool)
		a.metadata[buddy] = newMetadata(false, true, uint8(pool))
		a.insertFront(uint8(pool), buddy)
	}

	a.metadata[block] = newMetadata(true, false, desiredOrder)
	return block, true
}

// Free releases a block previously returned by Alloc, coalescing with
// its buddy up to MaxOrder whenever the buddy is itself free at the
// same order. Freeing a pointer not obtained from Alloc is undefined
// behavior, per spec.md §4.E — the allocator performs no validation.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	offset := uintptr(ptr) - uintptr(a.region.Addr)
	block := uint16(offset / kconfig.MinBlock)

	order := a.metadata[block].order()
	a.metadata[block] = a.metadata[block].withAllocated(false)

	for order < kconfig.MaxOrder {
		buddy := block ^ uint16(1<<order)
		bm := a.metadata[buddy]
		if !bm.onFreeList() || bm.order() != order {
			break
		}
		a.remove(order, buddy)
		a.metadata[buddy] = bm.withOnFreeList(false)
		block = block &^ uint16((1<<(order+1))-1)
		order++
	}

	a.metadata[block] = newMetadata(false, true, order)
	a.insertFront(order, block)
}

// Region returns the physical region this allocator manages.
func (a *Allocator) Region() addr.Region { return a.region }

// LiveBlock describes one outstanding allocation: its physical address
// and the order it was carved at.
type LiveBlock struct {
	Addr  addr.PAddr
	Order uint8
}

// LiveBlocks returns every currently-allocated block. It exists for
// diagnostic tooling (cmd/simkernel's heap-profile dump) that has no
// other way to learn what is outstanding, since Alloc returns only a
// pointer and Free takes no explanation of what it freed.
func (a *Allocator) LiveBlocks() []LiveBlock {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []LiveBlock
	for i := 0; i < a.subranges; {
		m := a.metadata[i]
		if m.allocated() {
			out = append(out, LiveBlock{
				Addr:  a.region.Addr.Add(uintptr(i) * kconfig.MinBlock),
				Order: m.order(),
			})
			i += 1 << m.order()
			continue
		}
		i++
	}
	return out
}

// Allocate satisfies internal/paging's FrameSource interface: n zeroed
// pages, fatal on an oversized request, out-of-memory halts the boot
// the same way pmm.Pump's exhaustion does. This is how a caller
// "retires the pump" (spec.md §9 open question 2) once the buddy
// allocator is online, so page-table construction after bring-up draws
// frames from the buddy pool instead of continuing to advance the
// pump's cursor over the same region.
func (a *Allocator) Allocate(n uintptr) addr.PAddr {
	ptr := a.Alloc(n * kconfig.MinBlock)
	if ptr == nil {
		kernerr.Fatal("buddy: out of memory allocating %d pages", n)
	}
	buf := unsafe.Slice((*byte)(ptr), n*kconfig.MinBlock)
	for i := range buf {
		buf[i] = 0
	}
	return addr.PAddr(uintptr(ptr))
}
