package debugger_test

import (
	"encoding/binary"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbadbg/debugger"
	"github.com/sarchlab/gbadbg/demos"
	"github.com/sarchlab/gbadbg/emu"
)

// program wraps ARM words as a demo image with no expected writes.
func program(words ...uint32) *demos.Demo {
	image := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(image[4*i:], w)
	}
	return &demos.Demo{Image: image}
}

var _ = Describe("Controller", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture(demos.Canonical())
	})

	It("should start halted without stepping", func() {
		Expect(f.ctrl.State()).To(Equal(debugger.Halted))
		Expect(f.ctrl.Tick()).To(BeFalse())
		Expect(f.emu.InstructionCount()).To(Equal(uint64(0)))
		Expect(f.ctrl.Base()).To(Equal(emu.ROMBase))
	})

	Describe("the demo scenario", func() {
		It("should halt at the loop with the pixels written", func() {
			f.exec("break 08000188", "run")
			f.ctrl.RunToHalt()

			Expect(f.ctrl.State()).To(Equal(debugger.Halted))
			Expect(f.emu.RegFile().PC()).To(Equal(uint32(0x08000188)))
			Expect(f.ctrl.LastStop().Reason).To(Equal(debugger.StopBreakpoint))
			Expect(f.emu.InstructionCount()).To(Equal(uint64(15)))
			Expect(f.out.String()).To(ContainSubstring("break on addr 08000188"))

			f.out.Reset()
			f.exec("value 04000000", "value 060096F0", "value 06009710", "value 0600B4F0")
			Expect(f.out.String()).To(Equal(
				"value found 00000403\n" +
					"value found 0000001f\n" +
					"value found 000003e0\n" +
					"value found 00007c00\n"))
		})

		It("should execute the breakpoint instruction on next", func() {
			f.exec("break 08000188", "run")
			f.ctrl.RunToHalt()

			f.exec("next")
			Expect(f.ctrl.State()).To(Equal(debugger.SingleStepping))
			Expect(f.ctrl.Tick()).To(BeTrue())

			Expect(f.ctrl.State()).To(Equal(debugger.Halted))
			Expect(f.ctrl.LastStop().Reason).To(Equal(debugger.StopStepped))
			Expect(f.emu.InstructionCount()).To(Equal(uint64(16)))
			Expect(f.emu.RegFile().PC()).To(Equal(uint32(0x08000188)))
		})

		It("should make progress when run resumes from a breakpoint", func() {
			f.exec("break 08000188", "run")
			f.ctrl.RunToHalt()

			f.exec("run")
			f.ctrl.RunToHalt()

			Expect(f.ctrl.LastStop().Reason).To(Equal(debugger.StopBreakpoint))
			Expect(f.emu.InstructionCount()).To(Equal(uint64(16)))
		})

		It("should halt before a breakpoint on the entry point", func() {
			f.exec("break 08000000", "run")

			Expect(f.ctrl.Tick()).To(BeFalse())
			Expect(f.ctrl.State()).To(Equal(debugger.Halted))
			Expect(f.ctrl.LastStop().Reason).To(Equal(debugger.StopBreakpoint))
			Expect(f.emu.InstructionCount()).To(Equal(uint64(0)))
			Expect(f.emu.RegFile().PC()).To(Equal(uint32(0x08000000)))
		})

		It("should halt on a breakpoint reached by next", func() {
			f.exec("break 08000150", "next")
			Expect(f.ctrl.Tick()).To(BeTrue())
			Expect(f.emu.RegFile().PC()).To(Equal(uint32(0x08000150)))

			f.exec("run")

			Expect(f.ctrl.Tick()).To(BeFalse())
			Expect(f.ctrl.LastStop().Reason).To(Equal(debugger.StopBreakpoint))
			Expect(f.emu.InstructionCount()).To(Equal(uint64(1)))
			Expect(f.emu.RegFile().PC()).To(Equal(uint32(0x08000150)))
		})

		It("should halt on a breakpoint inserted at a halted PC", func() {
			f.exec("next")
			f.ctrl.Tick()

			f.exec("break 08000150", "run")

			Expect(f.ctrl.Tick()).To(BeFalse())
			Expect(f.ctrl.LastStop().Reason).To(Equal(debugger.StopBreakpoint))
			Expect(f.emu.InstructionCount()).To(Equal(uint64(1)))
		})

		It("should work the same through the THUMB variant", func() {
			f = newFixture(demos.CanonicalThumb())
			f.exec("rbreak 190", "run")
			f.ctrl.RunToHalt()

			Expect(f.emu.RegFile().PC()).To(Equal(uint32(0x08000190)))
			Expect(f.emu.RegFile().Thumb).To(BeTrue())
			for _, w := range f.demo.Writes {
				Expect(f.bus.Read32(w.Addr())).To(Equal(uint32(w.Color)))
			}
		})
	})

	It("should treat rbreak as break at base plus offset", func() {
		other := newFixture(demos.Canonical())

		f.exec("rbreak 188", "run")
		other.exec("break 08000188", "run")
		f.ctrl.RunToHalt()
		other.ctrl.RunToHalt()

		Expect(f.ctrl.Breakpoints()).To(Equal(other.ctrl.Breakpoints()))
		Expect(f.ctrl.LastStop()).To(Equal(other.ctrl.LastStop()))
		Expect(f.emu.State()).To(Equal(other.emu.State()))

		f.exec("delete 08000188")
		Expect(f.ctrl.Breakpoints()).To(BeEmpty())
	})

	It("should honour a custom base", func() {
		f = newFixture(demos.Canonical(), debugger.WithBase(0x02000000))
		f.exec("rb 10")
		Expect(f.ctrl.Breakpoints()).To(Equal([]uint32{0x02000010}))
	})

	Describe("breakpoints", func() {
		It("should list in ascending order", func() {
			f.exec("b 08000188", "b 08000150", "b 08000150", "list")

			Expect(f.ctrl.Breakpoints()).To(Equal([]uint32{0x08000150, 0x08000188}))
			Expect(f.out.String()).To(ContainSubstring(" 0  08000150\n 1  08000188\n"))
		})

		It("should refuse to delete a missing breakpoint", func() {
			Expect(f.ctrl.Exec("delete 08000150")).To(MatchError(ContainSubstring("no breakpoint at 08000150")))
		})
	})

	Describe("quit", func() {
		DescribeTable("should stop stepping from any state",
			func(setup []string) {
				f.exec(setup...)
				count := f.emu.InstructionCount()

				f.exec("quit")

				Expect(f.ctrl.State()).To(Equal(debugger.Quit))
				Expect(f.ctrl.Tick()).To(BeFalse())
				f.exec("run")
				f.ctrl.RunToHalt()
				Expect(f.ctrl.State()).To(Equal(debugger.Quit))
				Expect(f.emu.InstructionCount()).To(Equal(count))
			},
			Entry("halted", []string(nil)),
			Entry("running", []string{"run"}),
			Entry("stepping", []string{"next"}),
		)
	})

	It("should halt a run on request", func() {
		f.exec("run")
		f.ctrl.Tick()
		f.exec("halt")

		Expect(f.ctrl.State()).To(Equal(debugger.Halted))
		Expect(f.ctrl.LastStop().Reason).To(Equal(debugger.StopHalted))
		Expect(f.ctrl.Tick()).To(BeFalse())
	})

	It("should bound runs with the step budget", func() {
		f = newFixture(demos.Canonical(), debugger.WithStepBudget(5))

		f.exec("run")
		f.ctrl.RunToHalt()
		Expect(f.ctrl.LastStop().Reason).To(Equal(debugger.StopBudget))
		Expect(f.emu.InstructionCount()).To(Equal(uint64(5)))

		f.exec("run")
		f.ctrl.RunToHalt()
		Expect(f.emu.InstructionCount()).To(Equal(uint64(10)))
	})

	It("should halt and report faults", func() {
		f = newFixture(program(
			0xE3A00302, // mov r0, #0x08000000
			0xE5801000, // str r1, [r0]
		))

		f.exec("run")
		f.ctrl.RunToHalt()

		stop := f.ctrl.LastStop()
		Expect(stop.Reason).To(Equal(debugger.StopFault))
		Expect(stop.Addr).To(Equal(uint32(0x08000004)))
		var fault *emu.AccessFault
		Expect(errors.As(stop.Err, &fault)).To(BeTrue())
		Expect(f.emu.RegFile().PC()).To(Equal(uint32(0x08000004)))
		Expect(f.out.String()).To(ContainSubstring("fault at 08000004"))
		Expect(f.ctrl.Logger().Entries()).NotTo(BeEmpty())
	})

	It("should halt on undefined instructions", func() {
		f = newFixture(program(0xE7F000F0))

		f.exec("run")
		f.ctrl.RunToHalt()

		Expect(f.ctrl.LastStop().Reason).To(Equal(debugger.StopUndefined))
		Expect(f.emu.RegFile().PC()).To(Equal(emu.VectorUndefined))
		Expect(f.emu.RegFile().Mode()).To(Equal(emu.ModeUND))
	})

	It("should report unreadable addresses without changing state", func() {
		before := f.emu.State()

		err := f.ctrl.Exec("value 10000000")

		var fault *emu.AccessFault
		Expect(errors.As(err, &fault)).To(BeTrue())
		Expect(f.emu.State()).To(Equal(before))
		Expect(f.ctrl.State()).To(Equal(debugger.Halted))
	})

	It("should leave state alone on malformed directives", func() {
		before := f.emu.State()

		err := f.ctrl.Exec("break")

		var perr *debugger.ParseError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(f.emu.State()).To(Equal(before))
		Expect(f.ctrl.Breakpoints()).To(BeEmpty())
	})

	Describe("logging", func() {
		It("should print every step while on", func() {
			f.exec("logon", "next")
			f.ctrl.Tick()

			Expect(f.out.String()).To(ContainSubstring("08000000  b 0x08000150"))
			Expect(f.out.String()).To(ContainSubstring("cpsr 0000001f"))

			entries := f.ctrl.Logger().Entries()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Tag).To(Equal("step"))
		})

		It("should stay quiet while off", func() {
			f.exec("logon", "logoff", "next")
			f.ctrl.Tick()

			Expect(f.out.String()).To(BeEmpty())
			Expect(f.ctrl.Logging()).To(BeFalse())
		})

		It("should start on with WithLogging", func() {
			f = newFixture(demos.Canonical(), debugger.WithLogging(true))
			Expect(f.ctrl.Logging()).To(BeTrue())
		})
	})

	It("should print the processor state", func() {
		f.exec("print")

		out := f.out.String()
		Expect(out).To(ContainSubstring("r15 08000000"))
		Expect(out).To(ContainSubstring("display mode 0"))
		Expect(strings.Count(out, "\n")).To(BeNumerically(">=", 5))
	})
})
