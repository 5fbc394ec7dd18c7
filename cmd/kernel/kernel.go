// Command kernel is the freestanding entry point: it wires the memory
// substack together in the data-flow order spec.md §2 describes
// (layout -> memmap -> pmm -> buddy -> proc, which builds its page
// table through paging) and creates the first process, returning it to
// the caller; it does not use the boot heap and does not switch to the
// process. Boot shim, linker symbols,
// the real FDT reader, the trap vector and virtio-blk are out of
// scope here (spec.md §1) and are expected to be supplied externally
// before Main is invoked — on qemuvirt that means a small assembly
// stub (not included) parses the DTB and calls Main with the results.
package main

import (
	"unsafe"

	"rv32kern/internal/addr"
	"rv32kern/internal/buddy"
	"rv32kern/internal/fdt"
	"rv32kern/internal/kconfig"
	"rv32kern/internal/kernerr"
	"rv32kern/internal/klog"
	"rv32kern/internal/memmap"
	"rv32kern/internal/pmm"
	"rv32kern/internal/proc"
)

// Main is the Go-level kernel entry point: a platform-specific boot
// shim calls this once, after it has populated layout from the linker
// script and reader from the parsed device tree.
func Main(reader fdt.MemoryReader, layout kconfig.Layout, entryPC uintptr) *proc.Proc {
	kernerr.Sink = klog.PutString
	klog.PutString("rv32kern: booting\n")

	kernelReserved := layout.KernelReservedRange()
	region, ok := memmap.SelectRegion(reader, kernelReserved)
	if !ok {
		kernerr.Fatal("kernel: no usable physical memory region found in the device tree")
	}
	klog.Printf("selected memory region addr=%x size=%s bytes\n", region.Addr.Addr(), klog.FormatCount(uint64(region.Size)))

	var pump pmm.Pump
	pump.Init(region)

	scratchSize := buddy.RequiredHeap(region.Size)
	scratchPages := (scratchSize + addr.PageSize - 1) / addr.PageSize
	scratchBase := pump.Allocate(scratchPages)
	scratch := unsafe.Slice((*byte)(scratchBase.AsPointer()), scratchSize)

	// Retire the pump once the buddy comes online (spec.md §9 open
	// question 2): the buddy manages only what the pump has not yet
	// handed out, so the two never hand out overlapping pages.
	buddyRegion := addr.Region{Addr: pump.Cursor(), Size: uintptr(region.End().Addr() - pump.Cursor().Addr())}
	allocator := buddy.NewAllocator(buddyRegion, scratch)
	klog.Printf("buddy allocator online, managing %s pages\n", klog.FormatCount(uint64(buddyRegion.Size/addr.PageSize)))

	var table proc.Table
	first := table.Create(allocator, allocator.Region(), kernelReserved, entryPC)
	klog.Printf("created process pid=%d state=%s\n", first.Pid, first.State.String())

	return first
}

// main satisfies the toolchain's requirement that package main export
// one; the real entry point on real hardware is Main, invoked directly
// by the (out-of-scope) boot shim once it has assembled the arguments
// above. This never runs on real hardware.
func main() {}
