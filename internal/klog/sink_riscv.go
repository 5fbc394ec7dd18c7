//go:build qemuvirt
// +build qemuvirt

package klog

import "rv32kern/internal/sbi"

func putString(s string) {
	for i := 0; i < len(s); i++ {
		sbi.PutChar(s[i])
	}
}

// printf is a minimal, allocation-free subset of fmt.Printf: %d, %x,
// %s, %c and a literal %%. It exists because the freestanding kernel
// has no heap until internal/buddy comes online and must not pull in
// the fmt package's reflection-driven formatting machinery, matching
// iansmith/mazarin's uartPutUint32/uitoa convention.
func printf(format string, args ...any) {
	argi := 0
	nextArg := func() any {
		if argi >= len(args) {
			return nil
		}
		a := args[argi]
		argi++
		return a
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			sbi.PutChar(c)
			continue
		}
		i++
		switch format[i] {
		case '%':
			sbi.PutChar('%')
		case 'd':
			putString(itoa(toInt(nextArg()), 10, false))
		case 'x':
			putString(itoa(toInt(nextArg()), 16, false))
		case 'X':
			putString(itoa(toInt(nextArg()), 16, true))
		case 's':
			if s, ok := nextArg().(string); ok {
				putString(s)
			}
		case 'c':
			if b, ok := nextArg().(byte); ok {
				sbi.PutChar(b)
			}
		default:
			sbi.PutChar('%')
			sbi.PutChar(format[i])
		}
	}
}

// formatCount has no thousands-grouping on the freestanding target:
// golang.org/x/text/message pulls in locale data and allocation this
// build cannot afford, so it falls back to the same bare itoa used by
// %d.
func formatCount(n uint64) string {
	return itoa(n, 10, false)
}

func toInt(v any) uint64 {
	switch n := v.(type) {
	case int:
		return uint64(n)
	case int32:
		return uint64(n)
	case int64:
		return uint64(n)
	case uint:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint64:
		return n
	case uintptr:
		return uint64(n)
	default:
		return 0
	}
}

const hexDigitsLower = "0123456789abcdef"
const hexDigitsUpper = "0123456789ABCDEF"

func itoa(n uint64, base int, upper bool) string {
	if n == 0 {
		return "0"
	}
	digits := hexDigitsLower
	if upper {
		digits = hexDigitsUpper
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = digits[n%uint64(base)]
		n /= uint64(base)
	}
	return string(buf[i:])
}
