package ctxswitch

import (
	"testing"

	"rv32kern/internal/addr"
	"rv32kern/internal/proc"
)

type fakeCSR struct {
	satp        addr.PAddr
	sscratch    uintptr
	fenceCount  int
	writeOrder  []string
}

func (f *fakeCSR) WriteSATP(root addr.PAddr) {
	f.satp = root
	f.writeOrder = append(f.writeOrder, "satp")
}
func (f *fakeCSR) WriteSScratch(top uintptr) {
	f.sscratch = top
	f.writeOrder = append(f.writeOrder, "sscratch")
}
func (f *fakeCSR) FenceVMA() {
	f.fenceCount++
	f.writeOrder = append(f.writeOrder, "fence")
}

func TestSwitchTransitionsStates(t *testing.T) {
	prev := &proc.Proc{State: proc.LoadedRunning}
	next := &proc.Proc{State: proc.LoadedRunnable, PageTableRoot: 0x80001000}

	csr := &fakeCSR{}
	Switch(csr, prev, next)

	if prev.State != proc.LoadedRunnable {
		t.Fatalf("expected prev to become LoadedRunnable, got %v", prev.State)
	}
	if next.State != proc.LoadedRunning {
		t.Fatalf("expected next to become LoadedRunning, got %v", next.State)
	}
}

func TestSwitchWritesSATPAndScratchInOrder(t *testing.T) {
	prev := &proc.Proc{State: proc.LoadedRunning}
	next := &proc.Proc{State: proc.LoadedRunnable, PageTableRoot: 0x80002000}

	csr := &fakeCSR{}
	Switch(csr, prev, next)

	want := []string{"fence", "satp", "fence", "sscratch"}
	if len(csr.writeOrder) != len(want) {
		t.Fatalf("got order %v, want %v", csr.writeOrder, want)
	}
	for i := range want {
		if csr.writeOrder[i] != want[i] {
			t.Fatalf("got order %v, want %v", csr.writeOrder, want)
		}
	}
	if csr.satp != next.PageTableRoot {
		t.Fatalf("expected satp write to carry next's page table root")
	}
	wantTop := stackTop(next)
	if csr.sscratch != wantTop {
		t.Fatalf("expected sscratch to hold the top of next's stack, got %#x want %#x", csr.sscratch, wantTop)
	}
}

func TestSwitchDoesNotDemoteAnAlreadyRunnableProc(t *testing.T) {
	prev := &proc.Proc{State: proc.LoadedRunnable}
	next := &proc.Proc{State: proc.LoadedRunnable}
	Switch(&fakeCSR{}, prev, next)
	if prev.State != proc.LoadedRunnable {
		t.Fatalf("prev's state should be left alone when it wasn't Running, got %v", prev.State)
	}
}
