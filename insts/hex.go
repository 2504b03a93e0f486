package insts

import "fmt"

// Hex8 formats the low byte of v as two upper-case hex digits.
func Hex8(v uint32) string {
	return fmt.Sprintf("%02X", v&0xff)
}

// Hex16 formats the low halfword of v as four upper-case hex digits.
func Hex16(v uint32) string {
	return fmt.Sprintf("%04X", v&0xffff)
}

// Hex32 formats v as eight upper-case hex digits.
func Hex32(v uint32) string {
	return fmt.Sprintf("%08X", v)
}
