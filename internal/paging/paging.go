// Package paging builds Sv32 two-level page tables (spec.md §4.F): a
// root page table directory, leaf/non-leaf page-table entries, and the
// map/identity-map operations that wire virtual addresses to physical
// frames drawn from a FrameSource.
package paging

import (
	"unsafe"

	"rv32kern/internal/addr"
	"rv32kern/internal/kernerr"
)

// FrameSource hands out n zeroed, page-aligned physical pages. Both
// internal/pmm.Pump and internal/buddy.Allocator satisfy it: early
// page tables are built from the pump, and spec.md §9 open question 2
// ("carve the region into two disjoint sub-regions or retire the pump
// once the buddy is online") is resolved here by letting callers swap
// in the buddy allocator for this interface once it comes online,
// instead of drawing further frames from the pump's still-advancing
// cursor over the same region.
type FrameSource interface {
	Allocate(n uintptr) addr.PAddr
}

// PageFlag is the low byte of a page-table entry: permission and
// status bits, matching the Sv32 PTE layout named in spec.md §3.
type PageFlag uint32

const (
	Valid PageFlag = 1 << iota
	Read
	Write
	Execute
	User
	Global
	Accessed
	Dirty
)

// ReadWriteExecute is the common leaf permission set used to map the
// kernel's own image and its physical heap window.
const ReadWriteExecute = Read | Write | Execute

const (
	vpnBits  = 10
	vpnMask  = (1 << vpnBits) - 1
	ppnShift = 10
)

// Root is an Sv32 root (level-1) page table: 1024 32-bit entries, one
// physical page.
type Root struct {
	addr addr.PAddr
}

// entries views the table directory at base as 1024 PTE words.
func entries(base addr.PAddr) []uint32 {
	return unsafe.Slice((*uint32)(base.AsPointer()), 1<<vpnBits)
}

// NewRoot allocates a fresh, zeroed root page table from pump.
func NewRoot(pump FrameSource) Root {
	return Root{addr: pump.Allocate(1)}
}

// Addr returns the physical address of the root table, the value
// destined for the translation-control CSR on a real switch.
func (r Root) Addr() addr.PAddr { return r.addr }

// Map installs a single 4 KiB mapping v -> p with the given leaf
// permission flags, allocating an intermediate table from pump the
// first time a given vpn1 slot is used. v and p must be page-aligned.
func Map(pump FrameSource, root Root, v addr.VAddr, p addr.PAddr, flags PageFlag) {
	if !v.Aligned() {
		kernerr.Fatal("paging: unaligned vaddr %v", v)
	}
	if !p.Aligned() {
		kernerr.Fatal("paging: unaligned paddr %v", p)
	}

	vpn1 := (v.Addr() >> 22) & vpnMask
	vpn0 := (v.Addr() >> 12) & vpnMask

	table1 := entries(root.addr)
	if table1[vpn1]&uint32(Valid) == 0 {
		t0 := pump.Allocate(1)
		table1[vpn1] = uint32(t0.Addr()>>addr.PageShift)<<ppnShift | uint32(Valid)
	}

	t0Base := addr.PAddr((uintptr(table1[vpn1]) >> ppnShift) << addr.PageShift)
	table0 := entries(t0Base)
	table0[vpn0] = uint32(p.Addr()>>addr.PageShift)<<ppnShift | uint32(flags|Valid)
}

// IdentityMapRegion maps every page-aligned physical address in region
// to the identical virtual address, with the given flags. This is how
// a new process is given a window on the kernel's physical heap and on
// the kernel image itself (spec.md §4.G step 3).
func IdentityMapRegion(pump FrameSource, root Root, region addr.Region, flags PageFlag) {
	for p := region.Addr; p < region.End(); p = p.Add(addr.PageSize) {
		Map(pump, root, addr.VAddr(p.Addr()), p, flags)
	}
}
