// Sweep the Thumb instruction table: decode every halfword, re-encode the
// rendered text and report how the round trips come out.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/sarchlab/thumbm0/insts"
)

type mismatch struct {
	Word     string
	Text     string
	Encoding *insts.Encoding
	Err      error
}

func main() {
	decoder := insts.NewDecoder()
	encoder := insts.NewEncoder()

	var (
		exact, canonical, data, wide int
		mismatches                   []mismatch
	)

	start := time.Now()

	for w := 0; w <= 0xFFFF; w++ {
		word := uint16(w)
		inst := decoder.Decode(word)

		switch {
		case inst.IsData():
			data++
			continue
		case inst.Format == insts.FormatLongBranchPrefix || inst.Format == insts.FormatLongBranch:
			// Halves of BL only re-encode as a pair.
			wide++
			continue
		}

		text := inst.String()
		enc, err := encoder.Encode(text)
		if err != nil || enc == nil || !enc.Complete {
			mismatches = append(mismatches, mismatch{insts.Hex16(uint32(word)), text, enc, err})
			continue
		}

		if enc.Raw == uint32(word) {
			exact++
			continue
		}

		// A different halfword is fine when it renders the same text.
		if again := decoder.Decode(uint16(enc.Raw)); again.String() == text {
			canonical++
			continue
		}
		mismatches = append(mismatches, mismatch{insts.Hex16(uint32(word)), text, enc, nil})
	}

	elapsed := time.Since(start)

	fmt.Printf("Thumb Table Sweep Results:\n")
	fmt.Printf("==========================\n")
	fmt.Printf("Halfwords decoded: %d\n", 0x10000)
	fmt.Printf("Exact round trips: %d\n", exact)
	fmt.Printf("Canonical re-encodings: %d\n", canonical)
	fmt.Printf("Data fallbacks (DCW): %d\n", data)
	fmt.Printf("BL halves: %d\n", wide)
	fmt.Printf("Mismatches: %d\n", len(mismatches))
	fmt.Printf("Time elapsed: %v\n", elapsed)

	if len(mismatches) == 0 {
		fmt.Printf("\nSUCCESS: every decoded halfword re-encodes to the same text.\n")
		return
	}

	const shown = 10
	fmt.Printf("\nFirst mismatches:\n")
	for i, m := range mismatches {
		if i == shown {
			fmt.Printf("... %d more\n", len(mismatches)-shown)
			break
		}
		spew.Dump(m)
	}
	os.Exit(1)
}
