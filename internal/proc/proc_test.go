package proc

import (
	"testing"
	"unsafe"

	"rv32kern/internal/addr"
	"rv32kern/internal/kconfig"
	"rv32kern/internal/pmm"
)

func backedRegion(t *testing.T, pages int) addr.Region {
	t.Helper()
	buf := make([]byte, pages*addr.PageSize+addr.PageSize)
	base := addr.RoundupPage(uintptr(unsafe.Pointer(&buf[0])))
	return addr.Region{Addr: addr.PAddr(base), Size: uintptr(pages * addr.PageSize)}
}

// Scenario E (spec.md §8): create a process, inspect the primed stack
// and the resulting state.
func TestCreatePrimesStackAndMapsMemory(t *testing.T) {
	heap := backedRegion(t, 4)
	kernelImage := backedRegion(t, 2)
	pumpRegion := backedRegion(t, 64)
	var pump pmm.Pump
	pump.Init(pumpRegion)

	var table Table
	const entry = uintptr(0x8020_0000)
	p := table.Create(&pump, heap, kernelImage, entry)

	if p.State != LoadedRunnable {
		t.Fatalf("expected LoadedRunnable after create, got %v", p.State)
	}
	if p.Pid != 1 {
		t.Fatalf("expected the first created process to get pid 1, got %d", p.Pid)
	}
	if !p.PageTableRoot.Aligned() {
		t.Fatalf("page table root must be page-aligned, got %v", p.PageTableRoot)
	}

	words := unsafe.Slice((*uint32)(unsafe.Pointer(p.SavedSP)), kconfig.SavedRegisters)
	if words[0] != uint32(entry) {
		t.Fatalf("expected the return-address slot to hold the entry point, got %#x", words[0])
	}
	for i := 1; i < len(words); i++ {
		if words[i] != 0 {
			t.Fatalf("expected callee-saved slot %d to be zeroed, got %#x", i, words[i])
		}
	}

	top := uintptr(unsafe.Pointer(&p.Stack[0])) + uintptr(len(p.Stack))
	if p.SavedSP != top-kconfig.SavedRegisters*kconfig.RegisterWordSize {
		t.Fatalf("saved_sp should point at the lowest written word")
	}
}

func TestCreateAssignsMonotonicPids(t *testing.T) {
	heap := backedRegion(t, 2)
	kernelImage := backedRegion(t, 2)
	pumpRegion := backedRegion(t, 256)
	var pump pmm.Pump
	pump.Init(pumpRegion)

	var table Table
	p1 := table.Create(&pump, heap, kernelImage, 0x1000)
	p2 := table.Create(&pump, heap, kernelImage, 0x2000)

	if p2.Pid != p1.Pid+1 {
		t.Fatalf("expected monotonically increasing pids, got %d then %d", p1.Pid, p2.Pid)
	}
}

func TestCreatePanicsWhenTableIsFull(t *testing.T) {
	heap := backedRegion(t, 2)
	kernelImage := backedRegion(t, 2)
	pumpRegion := backedRegion(t, 1024)
	var pump pmm.Pump
	pump.Init(pumpRegion)

	var table Table
	for i := 0; i < kconfig.MaxProcesses; i++ {
		table.Create(&pump, heap, kernelImage, uintptr(i))
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected creating a process beyond capacity to be fatal")
		}
	}()
	table.Create(&pump, heap, kernelImage, 0xdead)
}
