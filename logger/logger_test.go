package logger_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbadbg/logger"
)

type toggle bool

func (t toggle) AllowLogging() bool {
	return bool(t)
}

var _ = Describe("Logger", func() {
	var (
		log *logger.Logger
		w   *strings.Builder
	)

	BeforeEach(func() {
		log = logger.NewLogger(100)
		w = &strings.Builder{}
	})

	It("should write nothing when empty", func() {
		Expect(log.Write(w)).To(BeFalse())
		Expect(w.String()).To(BeEmpty())
	})

	It("should write entries as tag and detail", func() {
		log.Log(logger.Allow, "test", "this is a test")
		log.Logf(logger.Allow, "test2", "value %d", 2)

		Expect(log.Write(w)).To(BeTrue())
		Expect(w.String()).To(Equal("test: this is a test\ntest2: value 2\n"))
	})

	It("should collapse repeated entries", func() {
		log.Log(logger.Allow, "io", "DISPCNT = 0x0403")
		log.Log(logger.Allow, "io", "DISPCNT = 0x0403")
		log.Log(logger.Allow, "io", "DISPCNT = 0x0403")

		Expect(log.Len()).To(Equal(1))
		log.Write(w)
		Expect(w.String()).To(Equal("io: DISPCNT = 0x0403 (repeat x3)\n"))
	})

	It("should keep entries on one line", func() {
		log.Log(logger.Allow, "debugger", "r0 1\nr1 2")
		Expect(log.Entries()[0].Detail).To(Equal("r0 1 r1 2"))
	})

	It("should honour the permission", func() {
		log.Log(toggle(false), "step", "hidden")
		log.Logf(toggle(false), "step", "hidden %d", 1)
		log.Log(toggle(true), "step", "shown")

		Expect(log.Entries()).To(HaveLen(1))
		Expect(log.Entries()[0].Detail).To(Equal("shown"))
	})

	It("should drop the oldest entries beyond the limit", func() {
		log = logger.NewLogger(2)
		log.Log(logger.Allow, "a", "1")
		log.Log(logger.Allow, "b", "2")
		log.Log(logger.Allow, "c", "3")

		log.Write(w)
		Expect(w.String()).To(Equal("b: 2\nc: 3\n"))
	})

	DescribeTable("Tail",
		func(n int, want string) {
			log.Log(logger.Allow, "test", "this is a test")
			log.Log(logger.Allow, "test2", "this is another test")

			log.Tail(w, n)
			Expect(w.String()).To(Equal(want))
		},
		Entry("more than available", 100, "test: this is a test\ntest2: this is another test\n"),
		Entry("exactly available", 2, "test: this is a test\ntest2: this is another test\n"),
		Entry("fewer", 1, "test2: this is another test\n"),
		Entry("none", 0, ""),
	)

	It("should echo new entries", func() {
		log.SetEcho(w)
		log.Log(logger.Allow, "a", "1")
		log.Log(logger.Allow, "a", "1")

		Expect(w.String()).To(Equal("a: 1\na: 1 (repeat x2)\n"))

		log.SetEcho(nil)
		log.Log(logger.Allow, "b", "2")
		Expect(w.String()).NotTo(ContainSubstring("b: 2"))
	})

	It("should clear all entries", func() {
		log.Log(logger.Allow, "a", "1")
		log.Clear()
		Expect(log.Len()).To(Equal(0))
	})
})
