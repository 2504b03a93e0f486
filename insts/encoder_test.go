package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/thumbm0/insts"
)

var _ = Describe("ParseLine", func() {
	It("should split label, mnemonic and operands", func() {
		st := insts.ParseLine("loop: add r0, r0, #1 ; count up")

		Expect(st.Label).To(Equal("loop"))
		Expect(st.Mnemonic).To(Equal("ADD"))
		Expect(st.Operands).To(Equal([]string{"r0", "r0", "#1"}))
	})

	It("should keep register lists together and drop writeback and brackets", func() {
		st := insts.ParseLine("  STM R1!, {R0, R1}")

		Expect(st.Operands).To(Equal([]string{"R1", "{R0,R1}"}))

		st = insts.ParseLine("LDR R0, [SP, #4]")
		Expect(st.Operands).To(Equal([]string{"R0", "SP", "#4"}))
	})

	It("should strip the comment before looking for a label", func() {
		st := insts.ParseLine("NOP ; see: below")

		Expect(st.Label).To(BeEmpty())
		Expect(st.Mnemonic).To(Equal("NOP"))
	})

	It("should treat a label on its own as empty", func() {
		st := insts.ParseLine("done:")

		Expect(st.Label).To(Equal("done"))
		Expect(st.Empty()).To(BeTrue())
		Expect(st.String()).To(Equal("done:"))
	})
})

var _ = Describe("Encoder", func() {
	var encoder *insts.Encoder

	BeforeEach(func() {
		encoder = insts.NewEncoder()
	})

	DescribeTable("single halfword encodings",
		func(line string, raw uint32) {
			enc, err := encoder.Encode(line)

			Expect(err).NotTo(HaveOccurred())
			Expect(enc.Complete).To(BeTrue())
			Expect(enc.Raw).To(Equal(raw))
			Expect(enc.Size()).To(Equal(2))
		},
		Entry("MOV imm8", "MOV R0,#1", uint32(0x2001)),
		Entry("lower case", "mov r0, #1", uint32(0x2001)),
		Entry("ADD Rd,Rs,Rn", "ADD R0,R0,R1", uint32(0x1840)),
		Entry("ADD with swapped sources", "ADD R0,R1,R0", uint32(0x1808)),
		Entry("ADD imm3", "ADD R0,R0,#1", uint32(0x1C40)),
		Entry("CMP imm8", "CMP R0,#10", uint32(0x280A)),
		Entry("LSL imm5", "LSL R0,R1,#4", uint32(0x0108)),
		Entry("ALU register", "NEG R0,R0", uint32(0x4240)),
		Entry("CMP low registers", "CMP R0,R1", uint32(0x4288)),
		Entry("CMP high register", "CMP R8,R1", uint32(0x4588)),
		Entry("ADD two low registers", "ADD R0,R1", uint32(0x4408)),
		Entry("MOV to a high register", "MOV R8,R0", uint32(0x4680)),
		Entry("MOV from SP", "MOV R7,SP", uint32(0x466F)),
		Entry("BX LR", "BX LR", uint32(0x4770)),
		Entry("BLX", "BLX R3", uint32(0x4798)),
		Entry("literal load", "LDR R0,[PC,#4]", uint32(0x4801)),
		Entry("literal load to R5", "LDR R5,[PC,#8]", uint32(0x4D02)),
		Entry("register offset", "LDR R1,[R2,R1]", uint32(0x5851)),
		Entry("word offset", "LDR R1,[R2,#4]", uint32(0x6851)),
		Entry("halfword offset", "LDRH R1,[R2,#2]", uint32(0x8851)),
		Entry("SP-relative store", "STR R0,[SP,#4]", uint32(0x9001)),
		Entry("PC-relative ADD", "ADD R0,PC,#8", uint32(0xA002)),
		Entry("SP adjust", "SUB SP,#8", uint32(0xB082)),
		Entry("extend", "UXTB R0,R1", uint32(0xB2C8)),
		Entry("PUSH with LR", "PUSH {R4,LR}", uint32(0xB510)),
		Entry("PUSH range", "PUSH {R0-R3}", uint32(0xB40F)),
		Entry("POP with PC", "POP {R4,PC}", uint32(0xBD10)),
		Entry("BKPT", "BKPT #1", uint32(0xBE01)),
		Entry("NOP", "NOP", uint32(0xBF00)),
		Entry("WFI", "WFI", uint32(0xBF30)),
		Entry("STM", "STM R1!,{R0,R1}", uint32(0xC103)),
		Entry("BNE backwards", "BNE -4", uint32(0xD1FC)),
		Entry("SWI", "SWI 11", uint32(0xDF0B)),
		Entry("B to itself", "B 0", uint32(0xE7FE)),
		Entry("hex data", "DCW BEEF", uint32(0xBEEF)),
		Entry("prefixed hex data", "DCW 0x1234", uint32(0x1234)),
	)

	Describe("BL", func() {
		It("should produce two halfwords, high part first", func() {
			enc, err := encoder.Encode("BL 6")

			Expect(err).NotTo(HaveOccurred())
			Expect(enc.Raw).To(Equal(uint32(0xF000F802)))
			Expect(enc.Wide()).To(BeTrue())
			Expect(enc.Halfwords()).To(Equal([]uint16{0xF000, 0xF802}))
			Expect(enc.Size()).To(Equal(4))
		})

		It("should encode a backward call", func() {
			enc, err := encoder.Encode("BL -4")

			Expect(err).NotTo(HaveOccurred())
			Expect(enc.Halfwords()).To(Equal([]uint16{0xF7FF, 0xFFFD}))
		})
	})

	It("should report the reversed signature and operands", func() {
		enc, err := encoder.Encode("LDR R1,[R2,#4]")

		Expect(err).NotTo(HaveOccurred())
		Expect(enc.Signature).To(Equal("ORR"))
		Expect(enc.Operands).To(Equal([]int64{4, 2, 1}))
	})

	It("should return no instruction for blank and comment lines", func() {
		for _, line := range []string{"", "   ", "; just a comment", "label:"} {
			enc, err := encoder.Encode(line)

			Expect(err).NotTo(HaveOccurred())
			Expect(enc).To(BeNil())
		}
	})

	It("should leave a symbolic operand pending", func() {
		enc, err := encoder.Encode("BNE loop")

		Expect(err).NotTo(HaveOccurred())
		Expect(enc.Complete).To(BeFalse())
		Expect(enc.Pending).To(Equal("loop"))
	})

	DescribeTable("unknown instructions",
		func(line string) {
			_, err := encoder.Encode(line)

			Expect(err).To(MatchError(insts.ErrUnknownInstruction))
		},
		Entry("unknown mnemonic", "FOO R0,R1"),
		Entry("wrong operand shape", "MOV R0,R1,R2"),
		Entry("high register outside the allow-list", "EOR R8,R1"),
		Entry("undefined condition", "BAL 0"),
	)

	DescribeTable("operands out of range",
		func(line string) {
			_, err := encoder.Encode(line)

			Expect(err).To(MatchError(insts.ErrOperandRange))
		},
		Entry("imm8 overflow", "MOV R0,#256"),
		Entry("shift overflow", "LSL R0,R1,#32"),
		Entry("imm3 overflow", "ADD R0,R1,#8"),
		Entry("negative immediate", "MOV R0,#-1"),
		Entry("misaligned word offset", "LDR R0,[R1,#2]"),
		Entry("misaligned literal", "LDR R0,[PC,#3]"),
		Entry("high register in a low field", "SUB SP,SP,#4"),
		Entry("PC in PUSH", "PUSH {PC}"),
		Entry("LR in POP", "POP {LR}"),
		Entry("odd branch", "B 1"),
		Entry("conditional branch too far", "BEQ 300"),
		Entry("SWI overflow", "SWI 256"),
		Entry("wide data", "DCW 12345"),
	)
})
