// Package klog is the kernel's diagnostic writer. It has two sinks
// selected at build time by the qemuvirt tag: a hand-rolled
// no-allocation decimal/hex formatter for the freestanding target, and
// a thin wrapper over the standard library for the host simulation
// build used by spec.md §8's "host-simulatable build".
package klog

// Printf writes a formatted diagnostic line. On the freestanding
// target it never allocates and never imports fmt; on the host build
// it writes to os.Stderr through fmt.Fprintf.
func Printf(format string, args ...any) {
	printf(format, args...)
}

// PutString writes a raw string with no formatting.
func PutString(s string) {
	putString(s)
}

// FormatCount renders a count (pages, bytes, blocks) for diagnostic
// output, with thousands grouping where the build can afford it.
func FormatCount(n uint64) string {
	return formatCount(n)
}
