// Package proc implements the process record and the fixed-capacity
// process table (spec.md §4.G): creating a process primes its kernel
// stack so the first switch-in unwinds straight to the entry point,
// and gives it a root page table that identity-maps the kernel's
// physical heap and the kernel image itself.
package proc

import (
	"unsafe"

	"rv32kern/internal/addr"
	"rv32kern/internal/kconfig"
	"rv32kern/internal/kernerr"
	"rv32kern/internal/paging"
)

// State is a process's position in the state machine named in
// spec.md §4.H: Empty -> LoadedRunnable on create, then
// LoadedRunnable <-> LoadedRunning on each switch. There is no exit
// transition in this core.
type State int

const (
	Empty State = iota
	LoadedRunnable
	LoadedRunning
)

func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case LoadedRunnable:
		return "LoadedRunnable"
	case LoadedRunning:
		return "LoadedRunning"
	default:
		return "Unknown"
	}
}

// Proc is one process record. SavedSP points into Stack while the
// process is suspended; it is meaningless while State is Running
// (the live stack pointer lives in the hardware register instead).
type Proc struct {
	Pid           int
	State         State
	SavedSP       uintptr
	PageTableRoot addr.PAddr
	Stack         [kconfig.StackSize]byte
}

// primeStack lays out the callee-saved register save area so that the
// first context-switch-in unwinds to entryPC: twelve zeroed words
// (s0..s11) above a single word holding entryPC (ra), with SavedSP set
// to the lowest word written — spec.md §4.G step 2.
func (p *Proc) primeStack(entryPC uintptr) {
	top := uintptr(unsafe.Pointer(&p.Stack[0])) + uintptr(len(p.Stack))
	base := top - kconfig.SavedRegisters*kconfig.RegisterWordSize
	words := unsafe.Slice((*uint32)(unsafe.Pointer(base)), kconfig.SavedRegisters)
	words[0] = uint32(entryPC)
	for i := 1; i < len(words); i++ {
		words[i] = 0
	}
	p.SavedSP = base
}

// Table is the fixed PROCS[0..MaxProcesses) table, preinitialized to
// Empty by its Go zero value.
type Table struct {
	procs   [kconfig.MaxProcesses]Proc
	nextPid int
}

// Create finds the first Empty slot, primes its stack to resume at
// entryPC, builds a fresh root page table identity-mapping heapRegion
// and kernelImage with R|W|X, assigns a monotonic pid, and marks the
// slot LoadedRunnable. It panics if the table is full (spec.md §4.G
// step 1).
func (t *Table) Create(frames paging.FrameSource, heapRegion, kernelImage addr.Region, entryPC uintptr) *Proc {
	var slot *Proc
	for i := range t.procs {
		if t.procs[i].State == Empty {
			slot = &t.procs[i]
			break
		}
	}
	if slot == nil {
		kernerr.Fatal("proc: process table exhausted (max %d)", kconfig.MaxProcesses)
	}

	slot.primeStack(entryPC)

	root := paging.NewRoot(frames)
	paging.IdentityMapRegion(frames, root, heapRegion, paging.ReadWriteExecute)
	paging.IdentityMapRegion(frames, root, kernelImage, paging.ReadWriteExecute)

	t.nextPid++
	slot.Pid = t.nextPid
	slot.PageTableRoot = root.Addr()
	slot.State = LoadedRunnable

	return slot
}

// Procs exposes the table's backing array for iteration by a
// scheduler; spec.md names no scheduling policy, only the record
// shape and the switch primitive that operates on it.
func (t *Table) Procs() []Proc { return t.procs[:] }
