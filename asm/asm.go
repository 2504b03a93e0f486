// Package asm implements a two-pass assembler for Thumb source text.
//
// The first pass encodes every line it can and records labels and the
// branches that refer to them. Once every line's size is known, branch
// operands are rewritten into byte displacements and the second pass emits
// the little-endian halfwords.
//
// Usage:
//
//	a := asm.New()
//	code, err := a.Assemble("loop: SUB R0,#1\nBNE loop\n")
package asm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/k0kubun/pp/v3"

	"github.com/sarchlab/thumbm0/insts"
)

// Assembly errors.
var (
	ErrUndefinedLabel = errors.New("undefined label")
	ErrDuplicateLabel = errors.New("duplicate label")
	ErrUnknownOperand = errors.New("unrecognised operand")
)

// LineError reports a problem with one source line. The line contributes
// no bytes to the output.
type LineError struct {
	Line int // 1-based
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, strings.TrimSpace(e.Text), e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLabels enables or disables label resolution. With labels disabled a
// symbolic branch target is an error. Enabled by default.
func WithLabels(enabled bool) Option {
	return func(a *Assembler) {
		a.labels = enabled
	}
}

// WithTrace prints every emitted instruction to w.
func WithTrace(w io.Writer) Option {
	return func(a *Assembler) {
		a.trace = w
	}
}

// Assembler translates assembly text into Thumb machine code.
type Assembler struct {
	encoder *insts.Encoder
	labels  bool
	trace   io.Writer
}

// New creates an assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		encoder: insts.NewEncoder(),
		labels:  true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// line is a source line that survived the first pass.
type line struct {
	num  int
	text string
	st   insts.Statement
	enc  *insts.Encoding
	size uint32
	addr uint32

	// target is the label a branch refers to. Pending lines are encoded
	// once the label addresses are known.
	target  string
	dropped bool
}

// Assemble translates src. The returned code holds every line that
// assembled; the error joins a *LineError for each line that did not.
func (a *Assembler) Assemble(src string) ([]byte, error) {
	var errs []error
	fail := func(num int, text string, err error) {
		errs = append(errs, &LineError{Line: num, Text: text, Err: err})
	}

	lines, labels := a.firstPass(src, fail)
	a.resolve(lines, labels, fail)

	code := make([]byte, 0, 2*len(lines))
	for _, l := range lines {
		if l.dropped {
			continue
		}
		if a.trace != nil {
			pp.Fprintf(a.trace, "adding %v @ %v\n", l.st.String(), insts.Hex32(l.addr))
		}
		for _, hw := range l.enc.Halfwords() {
			code = binary.LittleEndian.AppendUint16(code, hw)
		}
	}

	return code, errors.Join(errs...)
}

// firstPass encodes every line it can and records, for each label, the
// index of the line it precedes.
func (a *Assembler) firstPass(
	src string,
	fail func(int, string, error),
) ([]*line, map[string]int) {
	var (
		lines  []*line
		labels = make(map[string]int)
	)

	for i, text := range strings.Split(src, "\n") {
		text = strings.TrimRight(text, "\r")
		num := i + 1
		st := insts.ParseLine(text)

		if st.Label != "" && a.labels {
			if _, dup := labels[st.Label]; dup {
				fail(num, text, fmt.Errorf("%w: %s", ErrDuplicateLabel, st.Label))
			} else {
				labels[st.Label] = len(lines)
			}
		}
		if st.Empty() {
			continue
		}

		enc, err := a.encoder.EncodeStatement(st)
		if err != nil {
			fail(num, text, err)
			continue
		}

		l := &line{num: num, text: text, st: st, enc: enc}
		if enc.Complete {
			l.size = uint32(enc.Size())
		} else {
			if !a.labels || !isBranch(st.Mnemonic) {
				fail(num, text, fmt.Errorf("%w: %s", ErrUnknownOperand, enc.Pending))
				continue
			}
			l.target = enc.Pending
			l.size = 2
			if st.Mnemonic == "BL" {
				l.size = 4
			}
		}

		lines = append(lines, l)
	}

	return lines, labels
}

// layout assigns addresses to the lines that are still kept. A dropped
// line shares the address of the next kept one. It returns the end address.
func layout(lines []*line) uint32 {
	var addr uint32
	for _, l := range lines {
		l.addr = addr
		if !l.dropped {
			addr += l.size
		}
	}
	return addr
}

// resolve encodes the branches to labels. A branch that cannot be encoded
// is dropped, which moves every later line, so the layout is redone until
// no more lines drop.
func (a *Assembler) resolve(
	lines []*line,
	labels map[string]int,
	fail func(int, string, error),
) {
	for {
		end := layout(lines)
		labelAddr := func(pos int) uint32 {
			if pos < len(lines) {
				return lines[pos].addr
			}
			return end
		}

		dropped := false
		for _, l := range lines {
			if l.dropped || l.target == "" {
				continue
			}
			if err := a.encodeBranch(l, labels, labelAddr); err != nil {
				fail(l.num, l.text, err)
				l.dropped = true
				dropped = true
			}
		}

		if !dropped {
			return
		}
	}
}

// encodeBranch rewrites the label operand of l into a byte displacement
// and encodes it. The displacement of BL is measured from its second half.
func (a *Assembler) encodeBranch(
	l *line,
	labels map[string]int,
	labelAddr func(int) uint32,
) error {
	pos, ok := labels[l.target]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUndefinedLabel, l.target)
	}

	from := l.addr
	if l.st.Mnemonic == "BL" {
		from += 2
	}
	disp := int64(labelAddr(pos)) - int64(from)

	st := l.st
	st.Operands = append([]string(nil), st.Operands...)
	for i, op := range st.Operands {
		if op == l.target {
			st.Operands[i] = strconv.FormatInt(disp, 10)
		}
	}

	enc, err := a.encoder.EncodeStatement(st)
	if err != nil {
		return err
	}
	if !enc.Complete {
		return fmt.Errorf("%w: %s", ErrUnknownOperand, enc.Pending)
	}

	l.enc = enc
	return nil
}

// isBranch reports whether mnemonic takes a PC-relative label operand.
func isBranch(mnemonic string) bool {
	switch mnemonic {
	case "BIC", "BKPT", "BX", "BLX":
		return false
	}
	return strings.HasPrefix(mnemonic, "B")
}
