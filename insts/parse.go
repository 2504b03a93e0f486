package insts

import (
	"strconv"
	"strings"
)

// Statement is one line of assembly split into its parts.
type Statement struct {
	Label    string   // label defined by the line, without the colon
	Mnemonic string   // upper-cased mnemonic, empty for a blank line
	Operands []string // operand tokens as written, brackets and '!' removed
}

// Empty reports whether the line carries no instruction.
func (s Statement) Empty() bool {
	return s.Mnemonic == ""
}

// String renders the statement back into a single assembly line.
func (s Statement) String() string {
	var b strings.Builder
	if s.Label != "" {
		b.WriteString(s.Label)
		b.WriteString(":")
		if s.Mnemonic != "" {
			b.WriteString(" ")
		}
	}
	b.WriteString(s.Mnemonic)
	if len(s.Operands) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(s.Operands, ","))
	}
	return b.String()
}

// ParseLine splits a line of assembly into label, mnemonic and operand
// tokens. A trailing "; comment" is dropped first, then a leading "label:".
// Operands are separated by commas outside of register lists.
func ParseLine(line string) Statement {
	var st Statement

	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	if before, after, found := strings.Cut(line, ":"); found {
		st.Label = strings.TrimSpace(before)
		line = after
	}

	line = strings.NewReplacer("[", "", "]", "").Replace(line)

	words := strings.Fields(line)
	if len(words) == 0 {
		return st
	}

	st.Mnemonic = strings.ToUpper(words[0])
	if rest := strings.Join(words[1:], ""); rest != "" {
		st.Operands = splitOperands(rest)
	}

	return st
}

// splitOperands splits on commas that are not inside braces and removes the
// writeback marker from each token.
func splitOperands(s string) []string {
	var (
		out   []string
		depth int
		start int
	)

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, cleanOperand(s[start:i]))
				start = i + 1
			}
		}
	}

	return append(out, cleanOperand(s[start:]))
}

func cleanOperand(tok string) string {
	return strings.TrimSuffix(strings.TrimSpace(tok), "!")
}

// Operand classes used in signatures.
const (
	ClassLow       = 'R'
	ClassHigh      = 'H'
	ClassSP        = 'S'
	ClassLR        = 'L'
	ClassPC        = 'P'
	ClassImmediate = 'O'
	ClassList      = 'A'
)

// classify returns the signature class and numeric value of an operand
// token. ok is false when the token has no recognisable form, which is how
// symbolic labels reach the assembler.
func classify(tok string) (class byte, value int64, ok bool) {
	t := strings.ToUpper(strings.TrimSpace(tok))

	switch {
	case t == "SP":
		return ClassSP, RegSP, true
	case t == "LR":
		return ClassLR, RegLR, true
	case t == "PC":
		return ClassPC, RegPC, true
	case strings.HasPrefix(t, "#"):
		v, ok := parseNumber(t[1:])
		return ClassImmediate, v, ok
	case strings.HasPrefix(t, "{"):
		if !strings.HasSuffix(t, "}") {
			return 0, 0, false
		}
		mask, ok := parseRegList(t[1 : len(t)-1])
		return ClassList, int64(mask), ok
	}

	if r, ok := parseRegister(t); ok {
		if r < 8 {
			return ClassLow, int64(r), true
		}
		return ClassHigh, int64(r), true
	}

	v, ok := parseNumber(t)
	return ClassImmediate, v, ok
}

// parseRegister accepts R0 to R15.
func parseRegister(t string) (int, bool) {
	if len(t) < 2 || t[0] != 'R' {
		return 0, false
	}
	n, err := strconv.Atoi(t[1:])
	if err != nil || n < 0 || n > 15 || strconv.Itoa(n) != t[1:] {
		return 0, false
	}
	return n, true
}

// parseRegList parses the inside of a register list. Bits 0-7 are R0-R7,
// ListLR and ListPC mark LR and PC. Ranges such as R0-R3 are accepted.
func parseRegList(s string) (uint32, bool) {
	var mask uint32

	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		switch item {
		case "":
			continue
		case "LR":
			mask |= ListLR
			continue
		case "PC":
			mask |= ListPC
			continue
		}

		lo, hi, isRange := strings.Cut(item, "-")
		first, ok := parseRegister(lo)
		if !ok || first > 7 {
			return 0, false
		}
		last := first
		if isRange {
			if last, ok = parseRegister(hi); !ok || last > 7 || last < first {
				return 0, false
			}
		}
		for r := first; r <= last; r++ {
			mask |= 1 << r
		}
	}

	return mask, true
}

// parseNumber accepts a signed decimal number or a 0x-prefixed hex number.
func parseNumber(s string) (int64, bool) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0X") || strings.HasPrefix(s, "0x") {
		v, err = strconv.ParseUint(s[2:], 16, 32)
	} else {
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, false
	}

	if neg {
		return -int64(v), true
	}
	return int64(v), true
}
