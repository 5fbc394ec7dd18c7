//go:build !qemuvirt

package ctxswitch

// swapRegisters has no real effect on a host build: Go's runtime owns
// its own goroutine stack and there is no portable way to jump control
// onto an arbitrary byte buffer the way the qemuvirt trampoline does.
// Host simulation stops at the CSR and state-machine bookkeeping
// Switch already performs; prev/nextSP are left untouched so tests can
// still assert on the values proc.Create primed.
func swapRegisters(prevSP, nextSP *uintptr) {}
