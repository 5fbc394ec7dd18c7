//go:build qemuvirt
// +build qemuvirt

// Package sbi wraps the single SBI call the kernel needs: the legacy
// console-putchar extension (eid=1, fid=0). This is an external
// collaborator per spec.md §1 — the kernel only requires that writing
// a byte to the console is a side-effecting, non-blocking-from-the-
// kernel's-perspective operation.
package sbi

//go:linkname sbiConsolePutChar sbiConsolePutChar
//go:nosplit
func sbiConsolePutChar(ch byte)

// PutChar emits a single byte to the firmware console.
//
//go:nosplit
func PutChar(ch byte) {
	sbiConsolePutChar(ch)
}
