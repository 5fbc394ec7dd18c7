// Package memmap selects the physical memory region the rest of the
// kernel's memory substack will manage (spec.md §4.C).
package memmap

import (
	"rv32kern/internal/addr"
	"rv32kern/internal/fdt"
)

// SelectRegion enumerates reader's memory regions, page-rounds each,
// subtracts the kernel-reserved range, and returns the largest
// surviving candidate. Ties go to whichever candidate was encountered
// first. It reports ok=false if no candidate exists at all, which the
// caller must treat as fatal per spec.md §4.C/§7.
func SelectRegion(reader fdt.MemoryReader, kernelReserved addr.Region) (addr.Region, bool) {
	var best addr.Region
	found := false

	for _, raw := range reader.MemoryRegions() {
		rounded := addr.Region{
			Addr: addr.PAddr(addr.RoundupPage(uintptr(raw.Addr))),
			Size: 0,
		}
		end := addr.RoundupPage(uintptr(raw.End()))
		if end <= uintptr(rounded.Addr) {
			continue
		}
		rounded.Size = end - uintptr(rounded.Addr)

		for _, candidate := range addr.ExcludeRange(rounded, kernelReserved) {
			if candidate.Size == 0 {
				continue
			}
			if !found || candidate.Size > best.Size {
				best = candidate
				found = true
			}
		}
	}

	return best, found
}
