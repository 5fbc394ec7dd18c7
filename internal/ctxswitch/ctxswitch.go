// Package ctxswitch implements the cooperative context switch that
// sits on top of internal/proc (spec.md §4.H): swap the translation
// root, point the trap scratch register at the incoming task's own
// stack, then hand control over via the callee-saved register
// save/restore primitive.
package ctxswitch

import (
	"unsafe"

	"rv32kern/internal/addr"
	"rv32kern/internal/proc"
)

// CSR is the narrow seam onto the control-status registers a switch
// touches. The qemuvirt build wires this to real csrw instructions;
// host builds and tests substitute a recording fake.
type CSR interface {
	WriteSATP(root addr.PAddr)
	WriteSScratch(top uintptr)
	FenceVMA()
}

// Switch performs, in order (spec.md §4.H):
//  1. next.PageTableRoot into the translation-control CSR, bracketed
//     by TLB flushes.
//  2. The top of next's stack into the trap scratch CSR.
//  3. The register save/restore primitive: push prev's callee-saved
//     set, store its updated stack pointer, load next's, pop next's
//     callee-saved set. Control returns on next's continuation.
func Switch(csr CSR, prev, next *proc.Proc) {
	if prev.State == proc.LoadedRunning {
		prev.State = proc.LoadedRunnable
	}

	csr.FenceVMA()
	csr.WriteSATP(next.PageTableRoot)
	csr.FenceVMA()
	csr.WriteSScratch(stackTop(next))

	swapRegisters(&prev.SavedSP, &next.SavedSP)

	next.State = proc.LoadedRunning
}

func stackTop(p *proc.Proc) uintptr {
	return uintptr(unsafe.Pointer(&p.Stack[0])) + uintptr(len(p.Stack))
}
