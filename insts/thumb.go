package insts

// aluOps are the register-register data processing operations of the
// 010000 group, indexed by their 4-bit opcode.
var aluOps = [16]string{
	"AND", "EOR", "LSL", "LSR", "ASR", "ADC", "SBC", "ROR",
	"TST", "NEG", "CMP", "CMN", "ORR", "MUL", "BIC", "MVN",
}

// regOffsetOps are the register-offset loads and stores of the 0101 group.
var regOffsetOps = [8]string{
	"STR", "STRH", "STRB", "LDSB", "LDR", "LDRH", "LDRB", "LDSH",
}

// Hint values of the 10111111 group.
var hints = map[string]uint32{
	"NOP":   0x00,
	"YIELD": 0x10,
	"WFE":   0x20,
	"WFI":   0x30,
	"SEV":   0x40,
}

// thumbGroups declares the instruction table. Group order is match order.
func thumbGroups() []*groupDecl {
	return []*groupDecl{
		group("000mm",
			on(0, leaf("LSL", FormatRegRegImm, "ooooosssddd").encodes("ORR")),
			on(1, leaf("LSR", FormatRegRegImm, "ooooosssddd").encodes("ORR")),
			on(2, leaf("ASR", FormatRegRegImm, "ooooosssddd").encodes("ORR")),
			on(3, group("mm",
				on(0, leaf("ADD", FormatRegRegReg, "nnnsssddd").encodes("RRR")),
				on(1, leaf("SUB", FormatRegRegReg, "nnnsssddd").encodes("RRR")),
				on(2, leaf("ADD", FormatRegRegImm, "ooosssddd").encodes("ORR")),
				on(3, leaf("SUB", FormatRegRegImm, "ooosssddd").encodes("ORR")),
			)),
		),
		group("001mm",
			on(0, leaf("MOV", FormatRegImm, "dddoooooooo").encodes("OR")),
			on(1, leaf("CMP", FormatRegImm, "dddoooooooo").encodes("OR")),
			on(2, leaf("ADD", FormatRegImm, "dddoooooooo").encodes("OR")),
			on(3, leaf("SUB", FormatRegImm, "dddoooooooo").encodes("OR")),
		),
		group("0100mm",
			on(0, group("mmmm", aluArms()...)),
			on(1, group("mm",
				on(0, leaf("ADD", FormatHiReg, "hssssddd").encodes("RR")),
				on(1, leaf("CMP", FormatHiCompare, "hssssddd").encodes("RR")),
				on(2, leaf("MOV", FormatHiReg, "hssssddd").encodes("RR")),
				on(3, group("m",
					on(0, leaf("BX", FormatBranchExchange, "ssssddd").encodes("R")),
					on(1, leaf("BLX", FormatBranchExchange, "ssssddd").encodes("R")),
				)),
			)),
			on(2, leaf("LDR", FormatLiteral, "ddoooooooo").scale(4).encodes("OPR")),
			on(3, leaf("LDR", FormatLiteral, "ddoooooooo").scale(4)),
		),
		group("0101mmm", regOffsetArms()...),
		group("011mm",
			on(0, leaf("STR", FormatImmOffset, "ooooobbbddd").scale(4).encodes("ORR")),
			on(1, leaf("LDR", FormatImmOffset, "ooooobbbddd").scale(4).encodes("ORR")),
			on(2, leaf("STRB", FormatImmOffset, "ooooobbbddd").encodes("ORR")),
			on(3, leaf("LDRB", FormatImmOffset, "ooooobbbddd").encodes("ORR")),
		),
		group("100mm",
			on(0, leaf("STRH", FormatImmOffset, "ooooobbbddd").scale(2).encodes("ORR")),
			on(1, leaf("LDRH", FormatImmOffset, "ooooobbbddd").scale(2).encodes("ORR")),
			on(2, leaf("STR", FormatBaseOffset, "dddoooooooo").scale(4).base(RegSP).encodes("OSR")),
			on(3, leaf("LDR", FormatBaseOffset, "dddoooooooo").scale(4).base(RegSP).encodes("OSR")),
		),
		group("1010m",
			on(0, leaf("ADD", FormatBaseOffset, "dddoooooooo").scale(4).base(RegPC).encodes("OPR")),
			on(1, leaf("ADD", FormatBaseOffset, "dddoooooooo").scale(4).base(RegSP).encodes("OSR")),
		),
		group("1011mmmm",
			on(0, group("m",
				on(0, leaf("ADD", FormatAdjustSP, "ooooooo").scale(4).encodes("OS")),
				on(1, leaf("SUB", FormatAdjustSP, "ooooooo").scale(4).encodes("OS")),
			)),
			on(2, group("mm",
				on(0, leaf("SXTH", FormatRegReg, "sssddd").encodes("RR")),
				on(1, leaf("SXTB", FormatRegReg, "sssddd").encodes("RR")),
				on(2, leaf("UXTH", FormatRegReg, "sssddd").encodes("RR")),
				on(3, leaf("UXTB", FormatRegReg, "sssddd").encodes("RR")),
			)),
			on(4, leaf("PUSH", FormatRegList, "rrrrrrrr").extra(RegLR).encodes("A")),
			on(5, leaf("PUSH", FormatRegList, "rrrrrrrr").extra(RegLR)),
			on(10, group("mm",
				on(0, leaf("REV", FormatRegReg, "sssddd").encodes("RR")),
			)),
			on(12, leaf("POP", FormatRegList, "rrrrrrrr").extra(RegPC).encodes("A")),
			on(13, leaf("POP", FormatRegList, "rrrrrrrr").extra(RegPC)),
			on(14, leaf("BKPT", FormatImmediate, "oooooooo").encodes("O")),
			on(15, leaf("NOP", FormatHint, "oooooooo").
				encodes("").
				alias("YIELD", "").
				alias("WFE", "").
				alias("WFI", "").
				alias("SEV", "")),
		),
		group("1100m",
			on(0, leaf("STM", FormatMultiple, "bbboooooooo").encodes("AR")),
			on(1, leaf("LDM", FormatMultiple, "bbboooooooo").encodes("AR")),
		),
		group("1101mmmm", condBranchArms()...),
		group("1110m",
			on(0, leaf("B", FormatBranch, "ooooooooooo").encodes("O")),
		),
		group("1111m",
			on(0, leaf("BL", FormatLongBranchPrefix, "ooooooooooo")),
			on(1, leaf("BL", FormatLongBranch, "ooooooooooo").encodes("O")),
		),
	}
}

// aluArms declares the 16 ALU operations. CMP Rd, Rs is encoded through the
// high-register leaf, which picks this form for two low registers, so the
// ALU CMP leaf only decodes.
func aluArms() []arm {
	arms := make([]arm, 0, len(aluOps))
	for op, name := range aluOps {
		l := leaf(name, FormatRegReg, "sssddd")
		if name != "CMP" {
			l.encodes("RR")
		}
		arms = append(arms, on(uint32(op), l))
	}
	return arms
}

func regOffsetArms() []arm {
	arms := make([]arm, 0, len(regOffsetOps))
	for op, name := range regOffsetOps {
		arms = append(arms, on(uint32(op), leaf(name, FormatRegOffset, "ooobbbddd").encodes("RRR")))
	}
	return arms
}

// condBranchArms declares B<cond> for EQ..LE followed by SWI. Condition 14
// is left undefined and decodes as data.
func condBranchArms() []arm {
	arms := make([]arm, 0, 15)
	for c := CondEQ; c <= CondLE; c++ {
		arms = append(arms, on(uint32(c), leaf("B"+c.String(), FormatCondBranch, "oooooooo").cond(c).encodes("O")))
	}
	arms = append(arms, on(15, leaf("SWI", FormatSoftwareInterrupt, "oooooooo").encodes("O")))
	return arms
}
