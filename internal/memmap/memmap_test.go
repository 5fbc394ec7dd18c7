package memmap

import (
	"testing"

	"rv32kern/internal/addr"
	"rv32kern/internal/fdt"
)

func TestSelectRegionPicksLargestExcludingKernel(t *testing.T) {
	reader := fdt.Static{Regions: []addr.Region{
		{Addr: 0x80000000, Size: 16 << 20},
		{Addr: 0xA0000000, Size: 32 << 20},
	}}
	kernelReserved := addr.Region{Addr: 0x80000000, Size: 2 << 20}

	got, ok := SelectRegion(reader, kernelReserved)
	if !ok {
		t.Fatal("expected a candidate region")
	}
	if got.Addr != 0xA0000000 || got.Size != 32<<20 {
		t.Fatalf("got %+v", got)
	}
}

func TestSelectRegionSplitsAroundKernel(t *testing.T) {
	reader := fdt.Static{Regions: []addr.Region{
		{Addr: 0x80000000, Size: 16 << 20},
	}}
	kernelReserved := addr.Region{Addr: 0x80400000, Size: 1 << 20}

	got, ok := SelectRegion(reader, kernelReserved)
	if !ok {
		t.Fatal("expected a candidate region")
	}
	// the region after the kernel reservation (11MB) is larger than
	// the region before it (4MB), so it must win.
	if got.Addr != 0x80500000 {
		t.Fatalf("got %+v", got)
	}
}

func TestSelectRegionNoneFound(t *testing.T) {
	reader := fdt.Static{}
	_, ok := SelectRegion(reader, addr.Region{})
	if ok {
		t.Fatal("expected no candidate when the DTB has no memory regions")
	}
}

func TestSelectRegionTieGoesToFirst(t *testing.T) {
	reader := fdt.Static{Regions: []addr.Region{
		{Addr: 0x80000000, Size: 16 << 20},
		{Addr: 0x90000000, Size: 16 << 20},
	}}
	got, ok := SelectRegion(reader, addr.Region{})
	if !ok {
		t.Fatal("expected a candidate region")
	}
	if got.Addr != 0x80000000 {
		t.Fatalf("tie should favor the first-encountered region, got %+v", got)
	}
}
