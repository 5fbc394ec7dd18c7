// Package addr provides the kernel's two address-space newtypes and the
// region arithmetic built on top of them.
package addr

import (
	"fmt"
	"unsafe"
)

// PageShift is the base-2 exponent of the minimum page size.
const PageShift = 12

// PageSize is the size in bytes of a single 4 KiB page.
const PageSize = 1 << PageShift

// PAddr is a physical address. It is never implicitly convertible to VAddr.
type PAddr uintptr

// VAddr is a virtual address. It is never implicitly convertible to PAddr.
type VAddr uintptr

// Addr returns the underlying machine word.
func (p PAddr) Addr() uintptr { return uintptr(p) }

// Addr returns the underlying machine word.
func (v VAddr) Addr() uintptr { return uintptr(v) }

// Add returns p advanced by n bytes.
func (p PAddr) Add(n uintptr) PAddr { return p + PAddr(n) }

// Add returns v advanced by n bytes.
func (v VAddr) Add(n uintptr) VAddr { return v + VAddr(n) }

// Aligned reports whether p's low PageShift bits are zero.
func (p PAddr) Aligned() bool { return p&(PageSize-1) == 0 }

// Aligned reports whether v's low PageShift bits are zero.
func (v VAddr) Aligned() bool { return v&(PageSize-1) == 0 }

// AsPointer reinterprets p as a raw pointer. The caller is responsible
// for the validity of the resulting pointer.
func (p PAddr) AsPointer() unsafe.Pointer { return unsafe.Pointer(uintptr(p)) }

// AsPointer reinterprets v as a raw pointer. The caller is responsible
// for the validity of the resulting pointer.
func (v VAddr) AsPointer() unsafe.Pointer { return unsafe.Pointer(uintptr(v)) }

func (p PAddr) String() string { return fmt.Sprintf("%#08x", uintptr(p)) }
func (v VAddr) String() string { return fmt.Sprintf("%#08x", uintptr(v)) }

// Format implements fmt.Formatter so %x/%X print the bare hex digits
// the way the rest of the kernel's diagnostics expect.
func (p PAddr) Format(f fmt.State, verb rune) { formatAddr(f, verb, uintptr(p)) }
func (v VAddr) Format(f fmt.State, verb rune) { formatAddr(f, verb, uintptr(v)) }

func formatAddr(f fmt.State, verb rune, v uintptr) {
	switch verb {
	case 'x':
		fmt.Fprintf(f, "%x", v)
	case 'X':
		fmt.Fprintf(f, "%X", v)
	default:
		fmt.Fprintf(f, "%#08x", v)
	}
}

// Region describes a contiguous run of physical memory. The invariant
// Addr+Size not overflowing the address space is the caller's
// responsibility to establish before constructing one.
type Region struct {
	Addr PAddr
	Size uintptr
}

// End returns the address one past the last byte of the region.
func (r Region) End() PAddr { return r.Addr + PAddr(r.Size) }

// Contains reports whether p lies within [r.Addr, r.End()).
func (r Region) Contains(p PAddr) bool { return p >= r.Addr && p < r.End() }

// addrRange is a half-open [Start, End) range over a single address
// kind, used internally by ExcludeRange before the result is rewrapped
// as a Region.
type addrRange struct {
	Start, End uintptr
}

// ExcludeRange subtracts other from base and returns the 0, 1, or 2
// surviving subranges, exactly as spec'd: a base range disjoint from
// other survives whole; a base range straddling other is split; a base
// range fully covered by other vanishes.
func ExcludeRange(base, other Region) []Region {
	baseR := addrRange{uintptr(base.Addr), uintptr(base.End())}
	otherR := addrRange{uintptr(other.Addr), uintptr(other.End())}

	if baseR.End <= otherR.Start || otherR.End <= baseR.Start {
		return []Region{base}
	}

	var out []Region
	if baseR.Start < otherR.Start {
		out = append(out, Region{Addr: PAddr(baseR.Start), Size: otherR.Start - baseR.Start})
	}
	if baseR.End > otherR.End {
		out = append(out, Region{Addr: PAddr(otherR.End), Size: baseR.End - otherR.End})
	}
	return out
}

// RoundupPage rounds p up to the next multiple of PageSize.
func RoundupPage(p uintptr) uintptr {
	return (p + PageSize - 1) &^ (PageSize - 1)
}

// RounddownPage rounds p down to the nearest multiple of PageSize.
func RounddownPage(p uintptr) uintptr {
	return p &^ (PageSize - 1)
}
