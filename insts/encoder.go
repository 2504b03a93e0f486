package insts

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Encoding errors.
var (
	// ErrUnknownInstruction is returned when no leaf accepts the mnemonic
	// with the given operand shapes.
	ErrUnknownInstruction = errors.New("unknown instruction")

	// ErrOperandRange is returned when an operand does not fit its field or
	// is not aligned to the field's scale.
	ErrOperandRange = errors.New("operand out of range")
)

// fullRegister lists the mnemonics whose register operands may be any of
// R0-R15. A failed lookup for these retries with every register as R.
var fullRegister = map[string]bool{
	"MOV": true, "CMP": true, "ADD": true, "SUB": true, "BX": true, "BLX": true,
}

// Encoding is the result of encoding one line.
type Encoding struct {
	Mnemonic  string
	Signature string  // operand classes, last operand first
	Operands  []int64 // operand values, last operand first
	Raw       uint32  // halfword, or two halfwords for BL (first one high)

	// Complete is false when an operand could not be classified. Pending
	// then holds that token as written, typically a label.
	Complete bool
	Pending  string
}

// Wide reports whether the encoding occupies two halfwords.
func (e *Encoding) Wide() bool {
	return e.Raw > 0xFFFF
}

// Halfwords returns the halfwords in memory order.
func (e *Encoding) Halfwords() []uint16 {
	if e.Wide() {
		return []uint16{uint16(e.Raw >> 16), uint16(e.Raw)}
	}
	return []uint16{uint16(e.Raw)}
}

// Size returns the encoded size in bytes.
func (e *Encoding) Size() int {
	return 2 * len(e.Halfwords())
}

// Encoder encodes assembly lines into Thumb halfwords.
type Encoder struct {
	set *InstructionSet
}

// NewEncoder creates an encoder over the default instruction set.
func NewEncoder() *Encoder {
	return &Encoder{set: Default()}
}

// Encode parses and encodes one line of assembly. A line without an
// instruction returns (nil, nil).
func (e *Encoder) Encode(line string) (*Encoding, error) {
	return e.EncodeStatement(ParseLine(line))
}

// EncodeStatement encodes a parsed line.
func (e *Encoder) EncodeStatement(st Statement) (*Encoding, error) {
	if st.Empty() {
		return nil, nil
	}

	if st.Mnemonic == "DCW" {
		return encodeData(st)
	}

	enc := &Encoding{Mnemonic: st.Mnemonic, Complete: true}
	sig := make([]byte, 0, len(st.Operands))
	for i := len(st.Operands) - 1; i >= 0; i-- {
		class, value, ok := classify(st.Operands[i])
		if !ok {
			enc.Complete = false
			enc.Pending = st.Operands[i]
			return enc, nil
		}
		sig = append(sig, class)
		enc.Operands = append(enc.Operands, value)
	}
	enc.Signature = string(sig)

	l, ok := e.lookup(st.Mnemonic, enc.Signature)
	if !ok {
		return nil, fmt.Errorf("%w: %s with operand signature %q",
			ErrUnknownInstruction, st.Mnemonic, enc.Signature)
	}

	raw, err := encodeLeaf(l, st.Mnemonic, enc.Operands)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", st, err)
	}
	enc.Raw = raw

	return enc, nil
}

func (e *Encoder) lookup(mnemonic, sig string) (*Leaf, bool) {
	if l, ok := e.set.Lookup(mnemonic, sig); ok {
		return l, true
	}
	if !fullRegister[mnemonic] {
		return nil, false
	}

	collapsed := strings.Map(func(r rune) rune {
		switch r {
		case ClassSP, ClassLR, ClassPC, ClassHigh:
			return ClassLow
		}
		return r
	}, sig)

	return e.set.Lookup(mnemonic, collapsed)
}

func encodeData(st Statement) (*Encoding, error) {
	enc := &Encoding{Mnemonic: st.Mnemonic, Complete: true}
	if len(st.Operands) != 1 {
		return nil, fmt.Errorf("%w: DCW takes one value, got %d",
			ErrUnknownInstruction, len(st.Operands))
	}

	tok := st.Operands[0]
	hex := strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		enc.Complete = false
		enc.Pending = tok
		return enc, nil
	}
	if v > 0xFFFF {
		return nil, fmt.Errorf("%w: DCW %s exceeds one halfword", ErrOperandRange, tok)
	}

	enc.Signature = string(ClassImmediate)
	enc.Operands = []int64{int64(v)}
	enc.Raw = uint32(v)

	return enc, nil
}

// encodeLeaf builds the machine word for l. ops are in reverse source
// order, matching the signature.
func encodeLeaf(l *Leaf, mnemonic string, ops []int64) (uint32, error) {
	prefix := uint32(l.Prefix)
	place := func(values ...int64) (uint32, error) {
		fields := make([]uint32, len(values))
		for i, v := range values {
			if v < 0 {
				return 0, fmt.Errorf("%w: %d is negative", ErrOperandRange, v)
			}
			fields[i] = uint32(v)
		}
		bits, err := Place(l.Template, fields...)
		return prefix | bits, err
	}

	switch l.Format {
	case FormatRegRegImm, FormatRegRegReg, FormatRegOffset:
		return place(ops[0], ops[1], ops[2])

	case FormatRegImm:
		return place(ops[1], ops[0])

	case FormatRegReg:
		return place(ops[0], ops[1])

	case FormatHiReg:
		d := ops[1]
		return place(d>>3, ops[0], d&7)

	case FormatHiCompare:
		s, d := ops[0], ops[1]
		if s < 8 && d < 8 {
			return 0x4280 | uint32(s)<<3 | uint32(d), nil
		}
		return place(d>>3, s, d&7)

	case FormatBranchExchange:
		return place(ops[0], 0)

	case FormatLiteral:
		off, err := scaled(ops[0], l.Scale)
		if err != nil {
			return 0, err
		}
		if off > 0xFF || ops[2] > 7 {
			return 0, fmt.Errorf("%w: LDR R%d,[PC,#%d]", ErrOperandRange, ops[2], ops[0])
		}
		return prefix&^0x0700 | uint32(ops[2])<<8 | uint32(off), nil

	case FormatImmOffset:
		off, err := scaled(ops[0], l.Scale)
		if err != nil {
			return 0, err
		}
		return place(off, ops[1], ops[2])

	case FormatBaseOffset:
		off, err := scaled(ops[0], l.Scale)
		if err != nil {
			return 0, err
		}
		return place(ops[2], off)

	case FormatAdjustSP:
		off, err := scaled(ops[0], l.Scale)
		if err != nil {
			return 0, err
		}
		return place(off)

	case FormatRegList:
		mask := uint32(ops[0])
		bit8 := uint32(ListLR)
		if l.Extra == RegPC {
			bit8 = ListPC
		}
		if mask&^(0xFF|bit8) != 0 {
			return 0, fmt.Errorf("%w: %s cannot transfer %s",
				ErrOperandRange, mnemonic, RegName(otherExtra(l.Extra)))
		}
		raw, err := place(int64(mask & 0xFF))
		if err != nil {
			return 0, err
		}
		if mask&bit8 != 0 {
			raw |= 0x100
		}
		return raw, nil

	case FormatImmediate, FormatSoftwareInterrupt:
		return place(ops[0])

	case FormatHint:
		return prefix | hints[mnemonic], nil

	case FormatMultiple:
		if ops[0]&^0xFF != 0 {
			return 0, fmt.Errorf("%w: %s takes R0-R7 only", ErrOperandRange, mnemonic)
		}
		return place(ops[1], ops[0])

	case FormatCondBranch:
		v, err := displacement(ops[0], 2, 8)
		if err != nil {
			return 0, err
		}
		return prefix | v, nil

	case FormatBranch:
		v, err := displacement(ops[0], 2, 11)
		if err != nil {
			return 0, err
		}
		return prefix | v, nil

	case FormatLongBranch:
		v, err := displacement(ops[0], 1, 22)
		if err != nil {
			return 0, err
		}
		hi := 0xF000 | v>>11&0x7FF
		lo := 0xF800 | v&0x7FF
		return hi<<16 | lo, nil
	}

	return 0, fmt.Errorf("%w: %s has no encoder", ErrUnknownInstruction, mnemonic)
}

// scaled divides a byte offset by the field scale.
func scaled(offset int64, scale uint32) (int64, error) {
	if offset < 0 || offset%int64(scale) != 0 {
		return 0, fmt.Errorf("%w: offset %d is not a non-negative multiple of %d",
			ErrOperandRange, offset, scale)
	}
	return offset / int64(scale), nil
}

// displacement converts a byte displacement into a signed halfword field of
// width bits. bias is the pipeline lead in halfwords.
func displacement(disp int64, bias int64, width uint) (uint32, error) {
	if disp%2 != 0 {
		return 0, fmt.Errorf("%w: branch displacement %d is odd", ErrOperandRange, disp)
	}
	v := disp/2 - bias
	limit := int64(1) << (width - 1)
	if v < -limit || v >= limit {
		return 0, fmt.Errorf("%w: branch displacement %d does not fit in %d bits",
			ErrOperandRange, disp, width)
	}
	return uint32(v) & (1<<width - 1), nil
}

func otherExtra(extra int) int {
	if extra == RegPC {
		return RegLR
	}
	return RegPC
}
