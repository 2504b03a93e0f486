package insts

import (
	"strconv"
	"strings"
)

// Registers with dedicated names.
const (
	RegSP = 13 // Stack pointer
	RegLR = 14 // Link register
	RegPC = 15 // Program counter
)

// Register list bits beyond R0-R7, as produced by the operand parser.
const (
	ListLR uint32 = 1 << 8
	ListPC uint32 = 1 << 9
)

// RegName returns the assembler name of register r.
func RegName(r int) string {
	switch r {
	case RegSP:
		return "SP"
	case RegLR:
		return "LR"
	case RegPC:
		return "PC"
	}
	return "R" + strconv.Itoa(r)
}

// formatRegList renders the R0-R7 bits of mask, plus the named extra
// register when extra is not zero, as "{R0,R4,LR}".
func formatRegList(mask uint32, extra int) string {
	var names []string
	for r := 0; r < 8; r++ {
		if mask&(1<<r) != 0 {
			names = append(names, RegName(r))
		}
	}
	if extra != 0 {
		names = append(names, RegName(extra))
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Cond represents a Thumb condition code.
type Cond uint8

// Thumb condition codes. AL and NV share the conditional branch space with
// UDF and SWI and are never used as branch conditions.
const (
	CondEQ Cond = iota // Z set
	CondNE             // Z clear
	CondCS             // C set
	CondCC             // C clear
	CondMI             // N set
	CondPL             // N clear
	CondVS             // V set
	CondVC             // V clear
	CondHI             // C set and Z clear
	CondLS             // C clear or Z set
	CondGE             // N equals V
	CondLT             // N differs from V
	CondGT             // Z clear and N equals V
	CondLE             // Z set or N differs from V
)

var condNames = [...]string{
	"EQ", "NE", "CS", "CC", "MI", "PL", "VS", "VC",
	"HI", "LS", "GE", "LT", "GT", "LE",
}

// String returns the two-letter condition suffix.
func (c Cond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return "??"
}
