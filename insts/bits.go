package insts

import "fmt"

// Extract matches value against a bit-pattern template.
//
// The template is read left to right against bits 15..0 of value. '0' and
// '1' must equal the corresponding bit; any other character names a
// variable field, and a run of the same character forms one field. A
// mismatch is reported with ok == false and is not an error.
//
// On a match, fields holds the variable fields in template order and rest
// is value with the matched bits shifted out, so a nested template can be
// applied to rest directly.
func Extract(value uint16, template string) (rest uint16, fields []uint32, ok bool) {
	v := uint32(value)

	var (
		field   uint32
		last    byte
		started bool
	)

	for i := 0; i < len(template); i++ {
		c := template[i]
		v <<= 1
		bit := (v >> 16) & 1

		if c == '0' || c == '1' {
			if uint32(c-'0') != bit {
				return 0, nil, false
			}
			continue
		}

		if !started || c != last {
			if started {
				fields = append(fields, field)
			}
			field = 0
			last = c
			started = true
		}
		field = field<<1 | bit
	}

	if started {
		fields = append(fields, field)
	}

	return uint16(v), fields, true
}

// Place is the inverse of Extract. It builds the right-aligned value
// described by template, taking the variable fields from values in
// template order. A value wider than its field is an ErrOperandRange.
func Place(template string, values ...uint32) (uint32, error) {
	var (
		out   uint32
		idx   = -1
		last  byte
		width int
	)

	widths := fieldWidths(template)
	if len(widths) != len(values) {
		return 0, fmt.Errorf("template %q has %d fields, got %d values",
			template, len(widths), len(values))
	}
	for i, w := range widths {
		if values[i]>>w != 0 {
			return 0, fmt.Errorf("%w: %d does not fit in %d bits",
				ErrOperandRange, values[i], w)
		}
	}

	for i := 0; i < len(template); i++ {
		c := template[i]
		out <<= 1

		if c == '0' || c == '1' {
			out |= uint32(c - '0')
			continue
		}

		if idx < 0 || c != last {
			idx++
			last = c
			width = widths[idx]
		}
		width--
		out |= (values[idx] >> width) & 1
	}

	return out, nil
}

// fieldWidths returns the width of every variable field in template.
func fieldWidths(template string) []int {
	var (
		widths []int
		last   byte
	)

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c == '0' || c == '1' {
			continue
		}
		if len(widths) == 0 || c != last {
			widths = append(widths, 0)
			last = c
		}
		widths[len(widths)-1]++
	}

	return widths
}

// signExtend interprets the low bits of v as a two's complement number.
func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
