package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/thumbm0/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	DescribeTable("rendering",
		func(word uint16, text string) {
			Expect(decoder.Decode(word).String()).To(Equal(text))
		},
		Entry("MOV imm8", uint16(0x2001), "MOV  R0,#1"),
		Entry("ADD register", uint16(0x1840), "ADD  R0,R0,R1"),
		Entry("ADD register, swapped sources", uint16(0x1808), "ADD  R0,R1,R0"),
		Entry("SUB imm3", uint16(0x1E48), "SUB  R0,R1,#1"),
		Entry("LSL imm5", uint16(0x0108), "LSL  R0,R1,#4"),
		Entry("ALU NEG", uint16(0x4240), "NEG  R0,R0"),
		Entry("ALU CMP", uint16(0x4288), "CMP  R0,R1"),
		Entry("high register CMP", uint16(0x4588), "CMP  R8,R1"),
		Entry("high register MOV", uint16(0x46C0), "MOV  R8,R8"),
		Entry("high register ADD", uint16(0x44EC), "ADD  R12,SP"),
		Entry("BX LR", uint16(0x4770), "BX   LR"),
		Entry("BLX R3", uint16(0x4798), "BLX  R3"),
		Entry("register offset load", uint16(0x5851), "LDR  R1,[R2,R1]"),
		Entry("signed byte load", uint16(0x5651), "LDSB R1,[R2,R1]"),
		Entry("word offset load", uint16(0x6851), "LDR  R1,[R2,#4]"),
		Entry("byte offset store", uint16(0x7051), "STRB R1,[R2,#1]"),
		Entry("halfword offset load", uint16(0x8851), "LDRH R1,[R2,#2]"),
		Entry("SP-relative store", uint16(0x9001), "STR  R0,[SP,#4]"),
		Entry("PC-relative ADD", uint16(0xA002), "ADD  R0,[PC,#8]"),
		Entry("SP-relative ADD", uint16(0xA901), "ADD  R1,[SP,#4]"),
		Entry("SP adjust", uint16(0xB082), "SUB  SP,#8"),
		Entry("UXTB", uint16(0xB2C8), "UXTB R0,R1"),
		Entry("REV", uint16(0xBA08), "REV  R0,R1"),
		Entry("PUSH", uint16(0xB410), "PUSH {R4}"),
		Entry("PUSH with LR", uint16(0xB510), "PUSH {R4,LR}"),
		Entry("POP with PC", uint16(0xBD10), "POP  {R4,PC}"),
		Entry("BKPT", uint16(0xBE01), "BKPT #1"),
		Entry("NOP", uint16(0xBF00), "NOP"),
		Entry("WFI", uint16(0xBF30), "WFI"),
		Entry("YIELD", uint16(0xBF10), "YIELD"),
		Entry("STM", uint16(0xC103), "STM  R1!,{R0,R1}"),
		Entry("LDM", uint16(0xCA30), "LDM  R2!,{R4,R5}"),
		Entry("BNE", uint16(0xD1FC), "BNE  -4"),
		Entry("SWI", uint16(0xDF0B), "SWI  11"),
		Entry("B", uint16(0xE7FE), "B    0"),
	)

	DescribeTable("halfwords without an instruction render as data",
		func(word uint16, text string) {
			inst := decoder.Decode(word)

			Expect(inst.IsData()).To(BeTrue())
			Expect(inst.String()).To(Equal(text))
		},
		Entry("undefined condition", uint16(0xDE00), "DCW  DE00"),
		Entry("unassigned miscellaneous", uint16(0xB600), "DCW  B600"),
		Entry("unassigned REV slot", uint16(0xBA80), "DCW  BA80"),
	)

	Describe("PC-relative references", func() {
		It("should report the literal offset", func() {
			inst := decoder.Decode(0x4801)

			Expect(inst.String()).To(Equal("LDR  R0,[PC,#4]"))
			Expect(inst.Ref).To(Equal(insts.Ref{Kind: insts.RefLiteral, Disp: 4}))
		})

		It("should use the high half of the opcode space for R4-R7", func() {
			inst := decoder.Decode(0x4D02)

			Expect(inst.String()).To(Equal("LDR  R5,[PC,#8]"))
		})

		It("should report branch displacements relative to the instruction", func() {
			inst := decoder.Decode(0xD1FC)

			Expect(inst.Ref).To(Equal(insts.Ref{Kind: insts.RefBranch, Disp: -4}))
		})

		It("should carry the BL high part to the second halfword", func() {
			prefix := decoder.Decode(0xF000)
			Expect(prefix.Format).To(Equal(insts.FormatLongBranchPrefix))
			Expect(prefix.String()).To(Equal(";0"))
			Expect(prefix.Ref.Kind).To(Equal(insts.RefCallPrefix))

			call := decoder.DecodeAfter(0xF802, prefix.Ref)
			Expect(call.String()).To(Equal("BL   6"))
			Expect(call.Ref).To(Equal(insts.Ref{Kind: insts.RefCall, Disp: 6}))
		})

		It("should sign extend a backward BL", func() {
			prefix := decoder.Decode(0xF7FF)
			call := decoder.DecodeAfter(0xFFFD, prefix.Ref)

			Expect(call.Ref.Disp).To(Equal(int32(-4)))
		})

		It("should ignore a previous reference that is not a BL prefix", func() {
			branch := decoder.Decode(0xE7FE)
			call := decoder.DecodeAfter(0xF802, branch.Ref)

			Expect(call.Ref.Disp).To(Equal(int32(6)))
		})
	})

	It("should have no reference for plain instructions", func() {
		Expect(decoder.Decode(0x2001).Ref.Kind).To(Equal(insts.RefNone))
	})
})
