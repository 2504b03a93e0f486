package disasm_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/thumbm0/asm"
	"github.com/sarchlab/thumbm0/disasm"
)

// program loads a literal, jumps through it and spins on a branch back to
// the start. The literal 0x12345678 sits at offset 8.
var program = []byte{
	0x01, 0x48, // LDR  R0,[PC,#4]
	0x00, 0x47, // BX   R0
	0xFC, 0xE7, // B    -4
	0x00, 0xBF, // NOP
	0x78, 0x56, // literal, low half
	0x34, 0x12, // literal, high half
}

func lines(text string) []string {
	return strings.Split(text, "\n")
}

var _ = Describe("Disassembler", func() {
	var d *disasm.Disassembler

	BeforeEach(func() {
		d = disasm.New()
	})

	It("should render literal pools as data and label branch targets", func() {
		Expect(lines(d.Disassemble(program))).To(Equal([]string{
			"Q08000000:",
			"LDR  R0,[PC,#4]  ;@0x08000008=0x12345678",
			"BX   R0",
			"B Q08000000  ;B    -4->0x08000000",
			"NOP",
			"DCW  5678",
			"DCW  1234",
		}))
	})

	It("should produce the same listing every time", func() {
		first := d.Disassemble(program)

		Expect(d.Disassemble(program)).To(Equal(first))
	})

	It("should assemble its own listing back into the same bytes", func() {
		code, err := asm.New().Assemble(d.Disassemble(program))

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(program))
	})

	It("should assemble non-canonical encodings into their canonical form", func() {
		// CMP R0,R1 in the high register form, BX R0 with a low bit set
		listing := d.Disassemble([]byte{0x08, 0x45, 0x01, 0x47})
		Expect(lines(listing)).To(Equal([]string{"CMP  R0,R1", "BX   R0"}))

		code, err := asm.New().Assemble(listing)

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal([]byte{0x88, 0x42, 0x00, 0x47}))
	})

	It("should mark a literal outside the buffer as unknown", func() {
		out := d.Disassemble([]byte{0x01, 0x48, 0x00, 0xBF})

		Expect(lines(out)[0]).To(Equal("LDR  R0,[PC,#4]  ;@0x08000008=0x????????"))
	})

	It("should show names next to labels and branches", func() {
		d = disasm.New(disasm.WithNames(map[uint32]string{0x08000000: "reset"}))

		out := lines(d.Disassemble(program))

		Expect(out[0]).To(Equal("Q08000000:     ;reset"))
		Expect(out[3]).To(Equal("B Q08000000  ;B    -4->0x08000000 reset"))
	})

	It("should use the configured base address", func() {
		d = disasm.New(disasm.WithBaseAddress(0x1000))

		out := lines(d.Disassemble(program))

		Expect(out[0]).To(Equal("Q00001000:"))
		Expect(out[1]).To(Equal("LDR  R0,[PC,#4]  ;@0x00001008=0x12345678"))
	})

	It("should render an out-of-range branch as data", func() {
		Expect(d.Disassemble([]byte{0x00, 0xE0})).To(Equal("DCW  E000"))
	})

	It("should ignore a trailing odd byte", func() {
		Expect(d.Disassemble([]byte{0x00, 0xBF, 0x12})).To(Equal("NOP"))
	})

	Describe("BL", func() {
		call := []byte{0x00, 0xF0, 0x01, 0xF8, 0x00, 0xBF, 0x70, 0x47}

		It("should resolve the call target across both halfwords", func() {
			Expect(lines(d.Disassemble(call))).To(Equal([]string{
				"BL Q08000006  ;BL   4->0x08000006",
				"NOP",
				"Q08000006:",
				"BX   LR",
			}))
		})

		It("should assemble back into the same bytes", func() {
			code, err := asm.New().Assemble(d.Disassemble(call))

			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(call))
		})

		It("should keep a non-zero high part as a comment line", func() {
			// BL to offset 0x2000 of a large buffer
			code := make([]byte, 0x2100)
			copy(code, []byte{0x01, 0xF0, 0xFE, 0xFF})
			for i := 4; i < len(code); i += 2 {
				code[i], code[i+1] = 0x00, 0xBF
			}

			out := lines(d.Disassemble(code))

			Expect(out[0]).To(Equal(";1"))
			Expect(out[1]).To(Equal("BL Q08002000  ;BL   8190->0x08002000"))
		})

		Context("when a branch lands on the second halfword", func() {
			// BL over a branch back into its own second half
			code := []byte{0x00, 0xF0, 0x01, 0xF8, 0xFD, 0xE7, 0x00, 0xBF}

			It("should keep the displacement instead of a label", func() {
				Expect(lines(d.Disassemble(code))).To(Equal([]string{
					"BL Q08000006  ;BL   4->0x08000006",
					"B    -2  ;@0x08000002",
					"Q08000006:",
					"NOP",
				}))
			})

			It("should assemble back into the same bytes", func() {
				out, err := asm.New().Assemble(d.Disassemble(code))

				Expect(err).NotTo(HaveOccurred())
				Expect(out).To(Equal(code))
			})
		})

		It("should render unpaired halves as data", func() {
			Expect(d.Disassemble([]byte{0x00, 0xF0})).To(Equal("DCW  F000"))
			Expect(d.Disassemble([]byte{0x01, 0xF8})).To(Equal("DCW  F801"))
			Expect(d.Disassemble([]byte{0x00, 0xF0, 0x00, 0xBF})).To(Equal("DCW  F000\nNOP"))
		})

		It("should render both halves of an out-of-range call as data", func() {
			Expect(d.Disassemble([]byte{0x00, 0xF0, 0x00, 0xF9})).To(Equal("DCW  F000\nDCW  F900"))
		})
	})

	Context("with addresses", func() {
		BeforeEach(func() {
			d = disasm.New(disasm.WithAddresses(true))
		})

		It("should prefix every line with address and raw halfword", func() {
			out := lines(d.Disassemble(program))

			Expect(out[1]).To(Equal(":08000000 4801  LDR  R0,[PC,#4]  ;@0x08000008=0x12345678"))
			Expect(out[5]).To(Equal(":08000008 5678  DCW  5678"))
		})

		It("should keep the BL prefix line", func() {
			out := lines(d.Disassemble([]byte{0x00, 0xF0, 0x01, 0xF8, 0x00, 0xBF, 0x70, 0x47}))

			Expect(out[0]).To(Equal(":08000000 F000  ;0"))
			Expect(out[1]).To(Equal(":08000002 F801  BL Q08000006  ;BL   4->0x08000006"))
		})
	})

	Context("without branch fixing", func() {
		BeforeEach(func() {
			d = disasm.New(disasm.WithBranchFix(false))
		})

		It("should annotate branches with their target address", func() {
			out := lines(d.Disassemble(program))

			Expect(out[0]).To(Equal("LDR  R0,[PC,#4]  ;@0x08000008=0x12345678"))
			Expect(out[2]).To(Equal("B    -4  ;@0x08000000"))
		})

		It("should keep out-of-range branches", func() {
			Expect(d.Disassemble([]byte{0x00, 0xE0})).To(Equal("B    4  ;@0x08000004"))
		})

		It("should still assemble back into the same bytes", func() {
			code, err := asm.New().Assemble(d.Disassemble(program))

			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(program))
		})
	})
})
