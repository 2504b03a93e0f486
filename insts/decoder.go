package insts

import (
	"fmt"
	"strconv"
)

// RefKind classifies a PC-relative reference made by a decoded instruction.
type RefKind uint8

// Reference kinds.
const (
	RefNone       RefKind = iota
	RefLiteral            // LDR Rd, [PC, #imm]: Disp is the byte offset
	RefBranch             // B, B<cond>: Disp is target minus instruction address
	RefCall               // BL second halfword: Disp is target minus its address
	RefCallPrefix         // BL first halfword: Disp is the raw high offset field
)

// Ref is the PC-relative reference reported by a decode step.
type Ref struct {
	Kind RefKind
	Disp int32
}

// Instruction represents a decoded Thumb halfword.
type Instruction struct {
	Raw      uint16
	Format   Format
	Mnemonic string
	Operands string
	Ref      Ref
}

// IsData reports whether the halfword did not decode and renders as DCW.
func (i Instruction) IsData() bool {
	return i.Format == FormatUnknown
}

// String renders the instruction as a single assembly line.
func (i Instruction) String() string {
	if i.Format == FormatLongBranchPrefix {
		return ";" + i.Operands
	}
	if i.Operands == "" {
		return i.Mnemonic
	}
	return fmt.Sprintf("%-5s%s", i.Mnemonic, i.Operands)
}

// Data renders raw as a DCW data declaration.
func Data(raw uint16) Instruction {
	return Instruction{
		Raw:      raw,
		Format:   FormatUnknown,
		Mnemonic: "DCW",
		Operands: Hex16(uint32(raw)),
	}
}

// Decoder decodes Thumb halfwords into instructions.
type Decoder struct {
	set *InstructionSet
}

// NewDecoder creates a decoder over the default instruction set.
func NewDecoder() *Decoder {
	return &Decoder{set: Default()}
}

// Decode decodes a single halfword. A halfword that matches no table entry
// decodes as data.
func (d *Decoder) Decode(word uint16) Instruction {
	return d.DecodeAfter(word, Ref{})
}

// DecodeAfter decodes word as the successor of an instruction whose decode
// reported prev. Only the second halfword of BL consumes prev; everything
// else decodes exactly as Decode.
func (d *Decoder) DecodeAfter(word uint16, prev Ref) Instruction {
	leaf, fields, ok := d.set.Root.find(word)
	if !ok {
		return Data(word)
	}

	inst := Instruction{
		Raw:      word,
		Format:   leaf.Format,
		Mnemonic: leaf.Mnemonic,
	}
	render(&inst, leaf, fields, prev)

	return inst
}

// render fills in the operand text and reference of inst from the operand
// fields of leaf, which are in template order.
func render(inst *Instruction, l *Leaf, f []uint32, prev Ref) {
	reg := func(r uint32) string { return RegName(int(r)) }

	switch l.Format {
	case FormatRegRegImm:
		inst.Operands = fmt.Sprintf("%s,%s,#%d", reg(f[2]), reg(f[1]), f[0])

	case FormatRegRegReg:
		inst.Operands = fmt.Sprintf("%s,%s,%s", reg(f[2]), reg(f[1]), reg(f[0]))

	case FormatRegImm:
		inst.Operands = fmt.Sprintf("%s,#%d", reg(f[0]), f[1])

	case FormatRegReg:
		inst.Operands = fmt.Sprintf("%s,%s", reg(f[1]), reg(f[0]))

	case FormatHiReg, FormatHiCompare:
		inst.Operands = fmt.Sprintf("%s,%s", reg(f[2]+f[0]*8), reg(f[1]))

	case FormatBranchExchange:
		inst.Operands = reg(f[0])

	case FormatLiteral:
		rd := uint32(l.Prefix>>8)&4 | f[0]
		offset := f[1] * l.Scale
		inst.Operands = fmt.Sprintf("%s,[PC,#%d]", reg(rd), offset)
		inst.Ref = Ref{Kind: RefLiteral, Disp: int32(offset)}

	case FormatRegOffset:
		inst.Operands = fmt.Sprintf("%s,[%s,%s]", reg(f[2]), reg(f[1]), reg(f[0]))

	case FormatImmOffset:
		inst.Operands = fmt.Sprintf("%s,[%s,#%d]", reg(f[2]), reg(f[1]), f[0]*l.Scale)

	case FormatBaseOffset:
		inst.Operands = fmt.Sprintf("%s,[%s,#%d]", reg(f[0]), RegName(l.Base), f[1]*l.Scale)

	case FormatAdjustSP:
		inst.Operands = fmt.Sprintf("SP,#%d", f[0]*l.Scale)

	case FormatRegList:
		extra := 0
		if l.Prefix&0x100 != 0 {
			extra = l.Extra
		}
		inst.Operands = formatRegList(f[0], extra)

	case FormatImmediate:
		inst.Operands = fmt.Sprintf("#%d", f[0])

	case FormatHint:
		inst.Mnemonic = "NOP"
		for name, v := range hints {
			if v == f[0] {
				inst.Mnemonic = name
			}
		}

	case FormatMultiple:
		inst.Operands = fmt.Sprintf("%s!,%s", reg(f[0]), formatRegList(f[1], 0))

	case FormatCondBranch:
		disp := signExtend(f[0], 8)*2 + 4
		inst.Operands = strconv.Itoa(int(disp))
		inst.Ref = Ref{Kind: RefBranch, Disp: disp}

	case FormatSoftwareInterrupt:
		inst.Operands = strconv.Itoa(int(f[0]))

	case FormatBranch:
		disp := signExtend(f[0], 11)*2 + 4
		inst.Operands = strconv.Itoa(int(disp))
		inst.Ref = Ref{Kind: RefBranch, Disp: disp}

	case FormatLongBranchPrefix:
		inst.Operands = strconv.Itoa(int(f[0]))
		inst.Ref = Ref{Kind: RefCallPrefix, Disp: int32(f[0])}

	case FormatLongBranch:
		var hi uint32
		if prev.Kind == RefCallPrefix {
			hi = uint32(prev.Disp) & 0x7ff
		}
		disp := signExtend(hi<<12|f[0]<<1, 23) + 2
		inst.Operands = strconv.Itoa(int(disp))
		inst.Ref = Ref{Kind: RefCall, Disp: disp}

	default:
		*inst = Data(inst.Raw)
	}
}
