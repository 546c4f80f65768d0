package demos_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbadbg/demos"
	"github.com/sarchlab/gbadbg/emu"
)

// runToLoop executes the demo until PC reaches its final loop.
func runToLoop(d *demos.Demo) (*emu.Emulator, *emu.Bus) {
	bus := emu.NewGBABus()
	Expect(bus.Load(emu.ROMBase, d.Image)).To(Succeed())
	e := emu.NewEmulator(bus, emu.WithMaxInstructions(200))

	for e.RegFile().PC() != d.LoopAddr(emu.ROMBase) {
		result := e.Step()
		Expect(result.Status).To(Equal(emu.StepExecuted), "at 0x%08X", result.Addr)
	}
	return e, bus
}

var _ = Describe("Demos", func() {
	It("should put the ARM loop after the header and the code", func() {
		d := demos.Canonical()
		Expect(d.LoopOffset).To(Equal(uint32(0x188)))
		Expect(d.LoopAddr(0x08000000)).To(Equal(uint32(0x08000188)))
		Expect(d.Image).To(HaveLen(0x18C))
	})

	It("should address pixels in the mode 3 bitmap", func() {
		d := demos.Canonical()
		Expect(d.Writes[0].Addr()).To(Equal(uint32(0x060096F0)))
		Expect(d.Writes[1].Addr()).To(Equal(uint32(0x06009710)))
		Expect(d.Writes[2].Addr()).To(Equal(uint32(0x0600B4F0)))
	})

	DescribeTable("running to the loop",
		func(d *demos.Demo) {
			e, bus := runToLoop(d)

			Expect(bus.Read32(0x04000000)).To(Equal(uint32(0x403)))
			Expect(bus.DisplayControl().BGMode()).To(Equal(uint8(3)))
			for _, w := range d.Writes {
				Expect(bus.Pixel(w.X, w.Y)).To(Equal(w.Color))
				Expect(bus.Read32(w.Addr())).To(Equal(uint32(w.Color)))
			}

			pc := e.RegFile().PC()
			e.Step()
			Expect(e.RegFile().PC()).To(Equal(pc))
		},
		Entry("ARM", demos.Canonical()),
		Entry("THUMB", demos.CanonicalThumb()),
	)

	It("should finish the THUMB variant in THUMB state", func() {
		e, _ := runToLoop(demos.CanonicalThumb())
		Expect(e.RegFile().Thumb).To(BeTrue())
	})

	It("should look demos up by name", func() {
		d, ok := demos.ByName("thumb")
		Expect(ok).To(BeTrue())
		Expect(d.LoopOffset).To(Equal(uint32(0x190)))

		_, ok = demos.ByName("sdl")
		Expect(ok).To(BeFalse())
	})
})
