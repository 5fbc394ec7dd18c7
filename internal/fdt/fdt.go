// Package fdt defines the narrow interface the kernel needs from a
// flattened-device-tree reader (spec.md §1/§6: an external
// collaborator, out of scope for this substack). It only ever walks
// the "memory" node, treating each reg pair as {starting_address,
// size}, exactly as original_source/src/memory.rs's
// crate::dtb::fdt().memory().regions() does.
package fdt

import "rv32kern/internal/addr"

// MemoryReader exposes the memory regions found in a device tree
// blob. A real implementation parses the DTB wire format; Static
// below is the fixed-region test double used by the host simulation
// build and by internal/memmap's own tests.
type MemoryReader interface {
	MemoryRegions() []addr.Region
}

// Static is a fixed-region MemoryReader, the kind of fake the teacher
// itself relies on for host-side testing (e.g. multiboot.VisitMemRegions
// callers in the retrieval pack's bitmap allocator tests).
type Static struct {
	Regions []addr.Region
}

func (s Static) MemoryRegions() []addr.Region { return s.Regions }
