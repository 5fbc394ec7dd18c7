package main

import "testing"

func TestMmapArenaRegionExcludesGuardPage(t *testing.T) {
	const usable = 4 << 20
	region, cleanup, err := mmapArena(usable)
	if err != nil {
		t.Fatalf("mmapArena: %v", err)
	}
	defer cleanup()

	if region.Size != usable {
		t.Fatalf("region size = %d, want %d", region.Size, usable)
	}
	if !region.Addr.Aligned() {
		t.Fatalf("region base %v is not page-aligned", region.Addr)
	}

	// touching the last usable byte must not fault.
	last := (*byte)(region.Addr.Add(region.Size - 1).AsPointer())
	*last = 1
	if *last != 1 {
		t.Fatal("write to last usable byte did not stick")
	}
}

func TestCmdStressLeavesNoLeaks(t *testing.T) {
	if err := cmdStress([]string{"-workers=4", "-rounds=200"}); err != nil {
		t.Fatalf("cmdStress: %v", err)
	}
}

func TestCmdDiagWritesProfile(t *testing.T) {
	out := t.TempDir() + "/buddy.pprof"
	if err := cmdDiag([]string{"-out=" + out, "-live=16"}); err != nil {
		t.Fatalf("cmdDiag: %v", err)
	}
}
