// Package disasm turns Thumb machine code into an assembly listing.
//
// Besides decoding every halfword, the disassembler follows PC-relative
// references across the whole buffer: words loaded through LDR Rd,[PC,#n]
// are rendered as data, and branch targets inside the buffer get Q<address>
// labels so that the listing assembles back to the same bytes.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/sarchlab/thumbm0/insts"
)

// DefaultBaseAddress is the load address assumed for the first byte.
const DefaultBaseAddress uint32 = 0x08000000

// Option configures a Disassembler.
type Option func(*Disassembler)

// WithBaseAddress sets the address of the first byte of the code.
func WithBaseAddress(addr uint32) Option {
	return func(d *Disassembler) {
		d.base = addr
	}
}

// WithAddresses prefixes every line with its address and raw halfword.
func WithAddresses(enabled bool) Option {
	return func(d *Disassembler) {
		d.addresses = enabled
	}
}

// WithBranchFix controls whether in-range branches are rewritten to
// labels. Enabled by default.
func WithBranchFix(enabled bool) Option {
	return func(d *Disassembler) {
		d.fix = enabled
	}
}

// WithNames sets the symbol names shown next to branch targets, keyed by
// absolute address.
func WithNames(names map[uint32]string) Option {
	return func(d *Disassembler) {
		d.names = names
	}
}

// Disassembler renders machine code as assembly text.
type Disassembler struct {
	decoder   *insts.Decoder
	base      uint32
	addresses bool
	fix       bool
	names     map[uint32]string
}

// New creates a disassembler.
func New(opts ...Option) *Disassembler {
	d := &Disassembler{
		decoder: insts.NewDecoder(),
		base:    DefaultBaseAddress,
		fix:     true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Disassemble renders code, one line per halfword plus label lines. A
// trailing odd byte is ignored.
func (d *Disassembler) Disassemble(code []byte) string {
	l := &listing{
		Disassembler: d,
		code:         code,
		n:            len(code) / 2,
		pool:         make(map[uint32]bool),
		targets:      make(map[int]bool),
		calls:        make(map[int]bool),
	}
	return l.run()
}

// listing holds the state of one Disassemble call.
type listing struct {
	*Disassembler

	code  []byte
	n     int
	lines []string // one per halfword; empty when the line is dropped

	pool    map[uint32]bool // offsets of literal words still to render
	targets map[int]bool    // halfword indices that need a label
	calls   map[int]bool    // indices of BL second halves

	jumps []jump
}

// jump is a branch rewritten to a label.
type jump struct {
	index  int // line of the branch
	target int // line of the destination
	inst   insts.Instruction
}

func (l *listing) run() string {
	l.lines = make([]string, l.n)

	var prev insts.Ref
	for i := 0; i < l.n; i++ {
		off := uint32(2 * i)
		word := l.halfword(off)

		if l.pool[off] {
			delete(l.pool, off)
			l.lines[i] = l.data(off, word)
			prev = insts.Ref{}
			continue
		}

		inst := l.decoder.DecodeAfter(word, prev)
		switch {
		case inst.Format == insts.FormatLongBranchPrefix && !l.pairedPrefix(i),
			inst.Format == insts.FormatLongBranch && prev.Kind != insts.RefCallPrefix:
			inst = insts.Data(word)
		}

		text, ok := l.render(off, inst)
		if !ok {
			inst = insts.Data(word)
			text = l.data(off, word)
			if i > 0 && prev.Kind == insts.RefCallPrefix {
				l.lines[i-1] = l.data(off-2, l.halfword(off-2))
			}
		}
		l.lines[i] = text
		if inst.Format == insts.FormatLongBranch {
			l.calls[i] = true
		}
		prev = inst.Ref
	}

	l.placeLabels()
	return l.join()
}

// render returns the line for inst at off. ok is false when a branch must
// be rendered as data instead.
func (l *listing) render(off uint32, inst insts.Instruction) (string, bool) {
	col := l.column(off, inst.Raw)

	switch inst.Ref.Kind {
	case insts.RefLiteral:
		vaddr := (off + uint32(inst.Ref.Disp) + 4) &^ 2
		l.pool[vaddr] = true
		l.pool[vaddr+2] = true

		value := "????????"
		if int(vaddr)+4 <= len(l.code) {
			value = insts.Hex32(binary.LittleEndian.Uint32(l.code[vaddr:]))
		}
		return fmt.Sprintf("%s%s  ;@0x%s=0x%s", col, inst, insts.Hex32(l.base+vaddr), value), true

	case insts.RefBranch, insts.RefCall:
		target := int64(off) + int64(inst.Ref.Disp)
		abs := l.base + uint32(target)

		if !l.fix {
			return fmt.Sprintf("%s%s  ;@0x%s", col, inst, insts.Hex32(abs)), true
		}
		if target < 0 || target >= int64(2*l.n) {
			return "", false
		}

		l.jumps = append(l.jumps, jump{index: int(off / 2), target: int(target / 2), inst: inst})
		text := fmt.Sprintf("%s%s Q%s  ;%s->0x%s %s",
			col, inst.Mnemonic, insts.Hex32(abs), inst, insts.Hex32(abs), l.names[abs])
		return strings.TrimRight(text, " "), true

	case insts.RefCallPrefix:
		if !l.addresses && inst.Ref.Disp == 0 {
			return "", true
		}
	}

	return col + inst.String(), true
}

// placeLabels marks the branch destinations that get a label. A label
// cannot sit between the two halves of BL, so a branch into a BL keeps its
// numeric displacement.
func (l *listing) placeLabels() {
	for _, j := range l.jumps {
		if !l.calls[j.target] {
			l.targets[j.target] = true
			continue
		}
		off := uint32(2 * j.index)
		abs := l.base + off + uint32(j.inst.Ref.Disp)
		l.lines[j.index] = fmt.Sprintf("%s%s  ;@0x%s", l.column(off, j.inst.Raw), j.inst, insts.Hex32(abs))
	}
}

// pairedPrefix reports whether the BL prefix at index i is followed by the
// second half of the call.
func (l *listing) pairedPrefix(i int) bool {
	if i+1 >= l.n {
		return false
	}
	next := uint32(2 * (i + 1))
	return !l.pool[next] && l.halfword(next)&0xF800 == 0xF800
}

func (l *listing) data(off uint32, word uint16) string {
	return l.column(off, word) + insts.Data(word).String()
}

func (l *listing) column(off uint32, word uint16) string {
	if !l.addresses {
		return ""
	}
	return fmt.Sprintf(":%s %s  ", insts.Hex32(l.base+off), insts.Hex16(uint32(word)))
}

func (l *listing) halfword(off uint32) uint16 {
	return binary.LittleEndian.Uint16(l.code[off:])
}

// join injects the branch labels and concatenates the lines.
func (l *listing) join() string {
	out := make([]string, 0, l.n+len(l.targets))
	for i, line := range l.lines {
		if l.targets[i] {
			addr := l.base + uint32(2*i)
			label := "Q" + insts.Hex32(addr) + ":"
			if name := l.names[addr]; name != "" {
				label += "     ;" + name
			}
			out = append(out, label)
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
