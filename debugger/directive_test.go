package debugger_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbadbg/debugger"
)

var _ = Describe("Parse", func() {
	DescribeTable("valid directives",
		func(line string, kind debugger.Kind, addr uint32) {
			d, err := debugger.Parse(line)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Kind).To(Equal(kind))
			Expect(d.Addr).To(Equal(addr))
		},
		Entry("break", "break 08000188", debugger.KindBreak, uint32(0x08000188)),
		Entry("b alias", "b 8000188", debugger.KindBreak, uint32(0x08000188)),
		Entry("0x prefix", "b 0x08000188", debugger.KindBreak, uint32(0x08000188)),
		Entry("$ prefix", "b $08000188", debugger.KindBreak, uint32(0x08000188)),
		Entry("rbreak", "rbreak 188", debugger.KindRBreak, uint32(0x188)),
		Entry("rb alias", "rb 188", debugger.KindRBreak, uint32(0x188)),
		Entry("value", "value 060096F0", debugger.KindValue, uint32(0x060096F0)),
		Entry("v alias", "v 4000000", debugger.KindValue, uint32(0x04000000)),
		Entry("delete", "d 8000188", debugger.KindDelete, uint32(0x08000188)),
		Entry("print", "print", debugger.KindPrint, uint32(0)),
		Entry("p alias", "p", debugger.KindPrint, uint32(0)),
		Entry("logon", "logon", debugger.KindLogOn, uint32(0)),
		Entry("logoff", "logoff", debugger.KindLogOff, uint32(0)),
		Entry("run", "run", debugger.KindRun, uint32(0)),
		Entry("r alias", "r", debugger.KindRun, uint32(0)),
		Entry("next", "next", debugger.KindNext, uint32(0)),
		Entry("n alias", "n", debugger.KindNext, uint32(0)),
		Entry("halt", "h", debugger.KindHalt, uint32(0)),
		Entry("quit", "quit", debugger.KindQuit, uint32(0)),
		Entry("exit", "exit", debugger.KindQuit, uint32(0)),
		Entry("q alias", "q", debugger.KindQuit, uint32(0)),
		Entry("list", "l", debugger.KindList, uint32(0)),
		Entry("unique prefix", "brea 100", debugger.KindBreak, uint32(0x100)),
		Entry("value prefix", "val 100", debugger.KindValue, uint32(0x100)),
		Entry("upper case", "BREAK 100", debugger.KindBreak, uint32(0x100)),
		Entry("surrounding space", "   next  ", debugger.KindNext, uint32(0)),
		Entry("comment", "# set up", debugger.KindNone, uint32(0)),
		Entry("blank", "", debugger.KindNone, uint32(0)),
	)

	It("should read the dump path", func() {
		d, err := debugger.Parse("dump state.dot")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Kind).To(Equal(debugger.KindDump))
		Expect(d.Path).To(Equal("state.dot"))
	})

	DescribeTable("malformed lines",
		func(line, reason string) {
			_, err := debugger.Parse(line)

			var perr *debugger.ParseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Line).To(Equal(line))
			Expect(perr.Reason).To(ContainSubstring(reason))
		},
		Entry("unknown command", "jump 100", "unknown command"),
		Entry("ambiguous prefix", "log", "ambiguous command"),
		Entry("missing address", "break", "needs one hex address"),
		Entry("bad hex", "break 80zz", "invalid hex address"),
		Entry("address too wide", "break 100000000", "invalid hex address"),
		Entry("extra argument", "run now", "takes no argument"),
		Entry("missing path", "dump", "needs one file path"),
	)

	It("should name directive kinds", func() {
		Expect(debugger.KindRBreak.String()).To(Equal("rbreak"))
		Expect(debugger.KindNone.String()).To(Equal("none"))
	})

	It("should list every directive with its aliases", func() {
		help := debugger.Help()
		Expect(help).To(ContainSubstring("break (b)"))
		Expect(help).To(ContainSubstring("quit (exit, q)"))
		Expect(help).To(ContainSubstring("logoff"))
	})
})
