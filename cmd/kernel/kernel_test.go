package main

import (
	"testing"
	"unsafe"

	"rv32kern/internal/addr"
	"rv32kern/internal/fdt"
	"rv32kern/internal/kconfig"
	"rv32kern/internal/proc"
)

// backedRegion allocates real host memory so the boot sequence's
// zero-fills and page-table writes touch valid addresses.
func backedRegion(t *testing.T, pages int) addr.Region {
	t.Helper()
	buf := make([]byte, pages*addr.PageSize+addr.PageSize)
	base := addr.RoundupPage(uintptr(unsafe.Pointer(&buf[0])))
	return addr.Region{Addr: addr.PAddr(base), Size: uintptr(pages * addr.PageSize)}
}

func TestMainBootsFirstProcess(t *testing.T) {
	usable := backedRegion(t, 2048)
	kernelImage := backedRegion(t, 4)

	reader := fdt.Static{Regions: []addr.Region{usable}}
	layout := kconfig.Layout{
		KernelBase: kernelImage.Addr,
		StackTop:   kernelImage.End(),
	}

	var gotState proc.State
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Main panicked: %v", r)
			}
		}()
		p := Main(reader, layout, 0x8020_0000)
		if p == nil {
			t.Fatal("expected Main to return the first created process")
		}
		gotState = p.State
	}()

	if gotState != proc.LoadedRunnable {
		t.Fatalf("expected the first process to be LoadedRunnable, got %v", gotState)
	}
}
