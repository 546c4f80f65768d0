package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbadbg/emu"
)

var _ = Describe("THUMB execution", func() {
	It("should build an address from an immediate and a shift", func() {
		e, _ := newThumb([]uint16{
			0x2004, // mov r0, #4
			0x0600, // lsl r0, r0, #24
			0x1CC1, // add r1, r0, #3
			0x1A0A, // sub r2, r1, r0
		})

		stepN(e, 4)

		rf := e.RegFile()
		Expect(rf.R[0]).To(Equal(uint32(0x04000000)))
		Expect(rf.R[1]).To(Equal(uint32(0x04000003)))
		Expect(rf.R[2]).To(Equal(uint32(3)))
		Expect(rf.PC()).To(Equal(uint32(0x08000008)))
	})

	It("should take a conditional branch", func() {
		e, _ := newThumb([]uint16{
			0x2000, // mov r0, #0
			0xD000, // beq 0x08000006
			0x2001, // mov r0, #1
			0x2102, // mov r1, #2
		})

		stepN(e, 3)

		rf := e.RegFile()
		Expect(rf.R[0]).To(Equal(uint32(0)))
		Expect(rf.R[1]).To(Equal(uint32(2)))
		Expect(rf.PC()).To(Equal(uint32(0x08000008)))
	})

	It("should run the two-part BL", func() {
		e, _ := newThumb([]uint16{
			0xF000, // bl 0x08000008 (prefix)
			0xF802, // bl 0x08000008 (suffix)
		})

		stepN(e, 2)

		rf := e.RegFile()
		Expect(rf.PC()).To(Equal(uint32(0x08000008)))
		Expect(rf.R[14]).To(Equal(uint32(0x08000005)))
	})

	It("should push and pop through the stack", func() {
		e, bus := newThumb([]uint16{
			0xB501, // push {r0, lr}
			0xBD02, // pop {r1, pc}
		})
		rf := e.RegFile()
		rf.R[0] = 0x77
		rf.R[14] = 0x08000101

		stepN(e, 1)
		Expect(rf.R[13]).To(Equal(uint32(0x03007EF8)))
		Expect(bus.Read32(0x03007EF8)).To(Equal(uint32(0x77)))
		Expect(bus.Read32(0x03007EFC)).To(Equal(uint32(0x08000101)))

		stepN(e, 1)
		Expect(rf.R[1]).To(Equal(uint32(0x77)))
		Expect(rf.R[13]).To(Equal(uint32(0x03007F00)))
		Expect(rf.PC()).To(Equal(uint32(0x08000100)))
		Expect(rf.Thumb).To(BeTrue())
	})

	It("should word-align PC for PC-relative loads", func() {
		e, _ := newThumb([]uint16{
			0x4801, // ldr r0, [pc, #4]
			0x0000,
			0x0000,
			0x0000,
			0x5678,
			0x1234,
		})

		stepN(e, 1)

		Expect(e.RegFile().R[0]).To(Equal(uint32(0x12345678)))
	})

	It("should word-align PC for address generation", func() {
		e, _ := newThumb([]uint16{
			0x46C0, // mov r8, r8
			0xA001, // add r0, pc, #4
		})

		stepN(e, 2)

		Expect(e.RegFile().R[0]).To(Equal(uint32(0x08000008)))
	})

	It("should reach the high registers", func() {
		e, _ := newThumb([]uint16{
			0x4680, // mov r8, r0
			0x4440, // add r0, r8
		})
		e.RegFile().R[0] = 21

		stepN(e, 2)

		Expect(e.RegFile().R[8]).To(Equal(uint32(21)))
		Expect(e.RegFile().R[0]).To(Equal(uint32(42)))
	})

	It("should run the two-register ALU operations", func() {
		e, _ := newThumb([]uint16{
			0x4241, // neg r1, r0
			0x4348, // mul r0, r1
			0x40C8, // lsr r0, r1
		})
		rf := e.RegFile()
		rf.R[0] = 5

		stepN(e, 2)
		Expect(rf.R[1]).To(Equal(uint32(0xFFFFFFFB)))
		Expect(rf.R[0]).To(Equal(uint32(0xFFFFFFE7)))

		rf.R[1] = 4
		stepN(e, 1)
		Expect(rf.R[0]).To(Equal(uint32(0x0FFFFFFE)))
	})

	It("should return to ARM state with BX", func() {
		e, _ := newThumb([]uint16{
			0x4770, // bx lr
		})
		e.RegFile().R[14] = 0x08000100

		stepN(e, 1)

		Expect(e.RegFile().Thumb).To(BeFalse())
		Expect(e.RegFile().PC()).To(Equal(uint32(0x08000100)))
	})

	It("should trap undefined half-words in ARM state", func() {
		e, _ := newThumb([]uint16{
			0xE800,
		})

		result := e.Step()

		rf := e.RegFile()
		Expect(result.Status).To(Equal(emu.StepUndefined))
		Expect(rf.Mode()).To(Equal(emu.ModeUND))
		Expect(rf.Thumb).To(BeFalse())
		Expect(rf.R[14]).To(Equal(uint32(0x08000002)))
		Expect(rf.SPSR()).To(Equal(uint32(0x3F)))
		Expect(rf.PC()).To(Equal(emu.VectorUndefined))
	})

	It("should pass the SWI number to the handler", func() {
		e, _ := newThumb([]uint16{
			0xDF08, // swi 8 (Sqrt)
		}, emu.WithSWIHandler(emu.NewHLEBIOS()))
		e.RegFile().R[0] = 144

		stepN(e, 1)

		Expect(e.RegFile().R[0]).To(Equal(uint32(12)))
		Expect(e.RegFile().Thumb).To(BeTrue())
	})
})
