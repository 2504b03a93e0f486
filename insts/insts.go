// Package insts provides the ARM Thumb (ARMv6-M subset) instruction table
// together with the decoder and encoder built on it.
//
// The table is a tree of bit-pattern groups. Each group matches a fixed bit
// prefix and dispatches on a small discriminant field to either a nested
// table or a leaf that knows how to render and encode one instruction
// format. Encoders are registered per mnemonic and operand-shape signature
// while the table is built, so decoding and encoding share one description.
//
// It supports:
//   - Shifts, add/subtract and move/compare with immediates
//   - ALU register operations and high-register ADD/CMP/MOV, BX/BLX
//   - Loads and stores (register, immediate, SP- and PC-relative)
//   - PUSH/POP, STM/LDM, extend and REV, BKPT and hints
//   - Conditional and unconditional branches, SWI and the two-halfword BL
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x2001)
//	fmt.Println(inst) // MOV  R0,#1
//
//	encoder := insts.NewEncoder()
//	enc, err := encoder.Encode("ADD R0, R0, R1")
//	fmt.Printf("%04X\n", enc.Raw) // 1840
package insts
