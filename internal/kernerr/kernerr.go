// Package kernerr implements the kernel's error-handling policy
// (spec.md §7): fatal conditions are reported at their discovery site
// and stop forward progress; there is no unwinding and no retry.
package kernerr

import "fmt"

// Sink receives a fully formatted fatal message before the kernel
// halts. The freestanding build points it at the console writer; the
// host simulation build points it at the process's stderr via klog.
var Sink func(msg string)

// Halt stops forward progress on real hardware. The freestanding boot
// shim overrides this to issue wfi (wait-for-interrupt) in a loop that
// never returns. The default here is a no-op, not a spin: Fatal's
// panic below is how host builds (tests, cmd/simkernel) observe a
// fatal condition, and a blocking default would make every fatal path
// hang instead.
var Halt func() = func() {}

// Error is a tagged, recoverable error used where the kernel wants a
// named failure rather than an ad-hoc bool, mirroring the teacher's
// sentinel-error convention (e.g. errBitmapAllocOutOfMemory).
type Error struct {
	Module  string
	Message string
}

func (e *Error) Error() string { return e.Module + ": " + e.Message }

// New constructs a tagged Error.
func New(module, message string) *Error {
	return &Error{Module: module, Message: message}
}

// Fatal reports a fatal condition (misaligned page-table input, OOM in
// the page-frame pump, no DTB memory candidate, process table full,
// unexpected trap, over-max-block allocation) and halts. It never
// returns.
func Fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if Sink != nil {
		Sink(msg)
	}
	Halt()
	panic(msg) // unreachable on real hardware; lets host builds fail loudly
}
