package insts

import (
	"fmt"
	"sort"
	"sync"
)

// Format identifies how a leaf lays out, renders and encodes its operands.
type Format uint8

// Instruction formats.
const (
	FormatUnknown           Format = iota
	FormatRegRegImm                // Rd, Rs, #imm (shifts, ADD/SUB imm3)
	FormatRegRegReg                // Rd, Rs, Rn
	FormatRegImm                   // Rd, #imm8
	FormatRegReg                   // Rd, Rs (ALU, extend, REV)
	FormatHiReg                    // Rd, Rs with 4-bit registers (ADD/MOV)
	FormatHiCompare                // CMP Rd, Rs with low or high registers
	FormatBranchExchange           // BX/BLX Rs
	FormatLiteral                  // LDR Rd, [PC, #imm]
	FormatRegOffset                // Rd, [Rb, Ro]
	FormatImmOffset                // Rd, [Rb, #imm]
	FormatBaseOffset               // Rd, [SP|PC, #imm]
	FormatAdjustSP                 // SP, #imm
	FormatRegList                  // PUSH/POP {list}
	FormatImmediate                // #imm8 (BKPT)
	FormatHint                     // NOP, YIELD, WFE, WFI, SEV
	FormatMultiple                 // Rb!, {list}
	FormatCondBranch               // B<cond> label
	FormatSoftwareInterrupt        // SWI imm8
	FormatBranch                   // B label
	FormatLongBranchPrefix         // first halfword of BL
	FormatLongBranch               // second halfword of BL
)

// Entry is a node of the instruction table: either a *Table that
// dispatches further or a *Leaf that describes one instruction format.
type Entry interface {
	entry()
}

// Table is an ordered list of groups. Groups are tried in order and the
// first one whose pattern matches selects the child.
type Table struct {
	Groups []Group
}

// Group matches Pattern against the current bits and dispatches on the
// value of its single variable field.
type Group struct {
	Pattern  string
	Children map[uint32]Entry
}

// Key identifies one encoder registration.
type Key struct {
	Mnemonic  string
	Signature string
}

// Leaf describes one instruction format at a fixed position of the table.
type Leaf struct {
	Mnemonic string
	Format   Format
	Template string // operand bits below the discriminants

	// Prefix holds the fixed bits selected by the groups above the leaf.
	Prefix uint16

	Cond  Cond   // FormatCondBranch
	Scale uint32 // FormatImmOffset, FormatBaseOffset, FormatLiteral
	Base  int    // FormatBaseOffset: RegSP or RegPC
	Extra int    // FormatRegList: register carried by bit 8

	// Encodings lists the (mnemonic, signature) pairs this leaf encodes.
	// Decode-only leaves have none.
	Encodings []Key
}

func (*Table) entry() {}
func (*Leaf) entry()  {}

// find walks the table for value and returns the matching leaf together
// with its operand fields.
func (t *Table) find(value uint16) (*Leaf, []uint32, bool) {
	for _, g := range t.Groups {
		rest, fields, ok := Extract(value, g.Pattern)
		if !ok {
			continue
		}

		switch next := g.Children[fields[0]].(type) {
		case *Leaf:
			_, operands, _ := Extract(rest, next.Template)
			return next, operands, true
		case *Table:
			return next.find(rest)
		default:
			return nil, nil, false
		}
	}

	return nil, nil, false
}

// InstructionSet is an immutable instruction table together with the
// encoder registry built from it.
type InstructionSet struct {
	Root     *Table
	encoders map[string]map[string]*Leaf
}

// NewInstructionSet builds the Thumb instruction table.
func NewInstructionSet() (*InstructionSet, error) {
	return build(thumbGroups())
}

var (
	defaultOnce sync.Once
	defaultSet  *InstructionSet
)

// Default returns the process-wide Thumb instruction set. It is built on
// first use and shared read-only afterwards.
func Default() *InstructionSet {
	defaultOnce.Do(func() {
		set, err := NewInstructionSet()
		if err != nil {
			panic(fmt.Sprintf("insts: invalid instruction table: %v", err))
		}
		defaultSet = set
	})
	return defaultSet
}

// Lookup returns the leaf registered for mnemonic and signature.
func (s *InstructionSet) Lookup(mnemonic, signature string) (*Leaf, bool) {
	leaf, ok := s.encoders[mnemonic][signature]
	return leaf, ok
}

// Mnemonics returns every mnemonic that has at least one encoder, sorted.
func (s *InstructionSet) Mnemonics() []string {
	names := make([]string, 0, len(s.encoders))
	for name := range s.encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Signatures returns the operand signatures registered for mnemonic, sorted.
func (s *InstructionSet) Signatures(mnemonic string) []string {
	sigs := make([]string, 0, len(s.encoders[mnemonic]))
	for sig := range s.encoders[mnemonic] {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)
	return sigs
}

// Leaves returns every leaf of the table in declaration order.
func (s *InstructionSet) Leaves() []*Leaf {
	var out []*Leaf
	var walk func(t *Table)
	walk = func(t *Table) {
		for _, g := range t.Groups {
			keys := make([]uint32, 0, len(g.Children))
			for k := range g.Children {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

			for _, k := range keys {
				switch next := g.Children[k].(type) {
				case *Leaf:
					out = append(out, next)
				case *Table:
					walk(next)
				}
			}
		}
	}
	walk(s.Root)
	return out
}

// Table declarations. These are only used while building.

type decl interface {
	isDecl()
}

type groupDecl struct {
	pattern string
	arms    []arm
}

type arm struct {
	key  uint32
	decl decl
}

type leafDecl struct {
	leaf Leaf
}

func (*groupDecl) isDecl() {}
func (*leafDecl) isDecl()  {}

func group(pattern string, arms ...arm) *groupDecl {
	return &groupDecl{pattern: pattern, arms: arms}
}

func on(key uint32, d decl) arm {
	return arm{key: key, decl: d}
}

func leaf(mnemonic string, f Format, template string) *leafDecl {
	return &leafDecl{leaf: Leaf{Mnemonic: mnemonic, Format: f, Template: template, Scale: 1}}
}

// encodes registers the leaf's own mnemonic for signature.
func (d *leafDecl) encodes(signature string) *leafDecl {
	return d.alias(d.leaf.Mnemonic, signature)
}

// alias registers another mnemonic for signature on the same leaf.
func (d *leafDecl) alias(mnemonic, signature string) *leafDecl {
	d.leaf.Encodings = append(d.leaf.Encodings, Key{Mnemonic: mnemonic, Signature: signature})
	return d
}

func (d *leafDecl) scale(n uint32) *leafDecl {
	d.leaf.Scale = n
	return d
}

func (d *leafDecl) base(r int) *leafDecl {
	d.leaf.Base = r
	return d
}

func (d *leafDecl) extra(r int) *leafDecl {
	d.leaf.Extra = r
	return d
}

func (d *leafDecl) cond(c Cond) *leafDecl {
	d.leaf.Cond = c
	return d
}

// builder turns declarations into an InstructionSet. Every structural
// problem is reported as an error: a pattern without exactly one variable
// field, a discriminant that does not fit its field or appears twice, a
// leaf whose bits do not add up to one halfword, or an encoder registered
// twice.
type builder struct {
	encoders map[string]map[string]*Leaf
}

func build(groups []*groupDecl) (*InstructionSet, error) {
	b := &builder{encoders: make(map[string]map[string]*Leaf)}

	root, err := b.table(groups, 0, 0)
	if err != nil {
		return nil, err
	}

	return &InstructionSet{Root: root, encoders: b.encoders}, nil
}

func (b *builder) table(groups []*groupDecl, prefix uint16, used int) (*Table, error) {
	t := &Table{Groups: make([]Group, 0, len(groups))}
	for _, g := range groups {
		built, err := b.group(g, prefix, used)
		if err != nil {
			return nil, err
		}
		t.Groups = append(t.Groups, built)
	}
	return t, nil
}

func (b *builder) group(g *groupDecl, prefix uint16, used int) (Group, error) {
	width := used + len(g.pattern)
	if width > 16 {
		return Group{}, fmt.Errorf("group %q overruns the halfword at bit %d", g.pattern, used)
	}
	if n := len(fieldWidths(g.pattern)); n != 1 {
		return Group{}, fmt.Errorf("group %q has %d discriminant fields, want 1", g.pattern, n)
	}

	out := Group{Pattern: g.pattern, Children: make(map[uint32]Entry, len(g.arms))}
	for _, a := range g.arms {
		if _, dup := out.Children[a.key]; dup {
			return Group{}, fmt.Errorf("group %q: duplicate discriminant %d", g.pattern, a.key)
		}

		bits, err := Place(g.pattern, a.key)
		if err != nil {
			return Group{}, fmt.Errorf("group %q: discriminant %d: %w", g.pattern, a.key, err)
		}
		p := prefix | uint16(bits<<(16-width))

		switch d := a.decl.(type) {
		case *groupDecl:
			sub, err := b.table([]*groupDecl{d}, p, width)
			if err != nil {
				return Group{}, err
			}
			out.Children[a.key] = sub
		case *leafDecl:
			l, err := b.leaf(d, p, width)
			if err != nil {
				return Group{}, err
			}
			out.Children[a.key] = l
		default:
			return Group{}, fmt.Errorf("group %q: discriminant %d has no entry", g.pattern, a.key)
		}
	}

	return out, nil
}

func (b *builder) leaf(d *leafDecl, prefix uint16, used int) (*Leaf, error) {
	l := d.leaf
	if used+len(l.Template) != 16 {
		return nil, fmt.Errorf("leaf %s %q covers %d bits, want 16",
			l.Mnemonic, l.Template, used+len(l.Template))
	}
	l.Prefix = prefix

	for _, k := range l.Encodings {
		sigs := b.encoders[k.Mnemonic]
		if sigs == nil {
			sigs = make(map[string]*Leaf)
			b.encoders[k.Mnemonic] = sigs
		}
		if prev, dup := sigs[k.Signature]; dup {
			return nil, fmt.Errorf("encoder %s %q registered twice (prefix %04X and %04X)",
				k.Mnemonic, k.Signature, prev.Prefix, l.Prefix)
		}
		sigs[k.Signature] = &l
	}

	return &l, nil
}
