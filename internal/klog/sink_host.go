//go:build !qemuvirt
// +build !qemuvirt

package klog

import (
	"fmt"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

func putString(s string) {
	fmt.Fprint(os.Stderr, s)
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// formatCount renders n with thousands separators, e.g. "1,048,576",
// for diagnostic lines like "Reserved 1,048,576 pages" — the host
// build can afford golang.org/x/text where the freestanding target
// cannot.
func formatCount(n uint64) string {
	return printer.Sprintf("%v", number.Decimal(n))
}
