package cache_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbadbg/cache"
	"github.com/sarchlab/gbadbg/emu"
	"github.com/sarchlab/gbadbg/insts"
)

var _ = Describe("DecodeCache", func() {
	var c *cache.DecodeCache

	BeforeEach(func() {
		// Tiny cache for testing: 2 sets, 1 way
		c = cache.New(cache.Config{Sets: 2, Associativity: 1})
	})

	Describe("Lookup", func() {
		It("should miss on a cold cache and hit afterwards", func() {
			first := c.Lookup(0x08000000, 0xE3A00005, insts.ModeARM)
			second := c.Lookup(0x08000000, 0xE3A00005, insts.ModeARM)

			Expect(first.Op).To(Equal(insts.OpMOV))
			Expect(second).To(Equal(first))

			stats := c.Stats()
			Expect(stats.Lookups).To(Equal(uint64(2)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(stats.HitRate()).To(BeNumerically("==", 0.5))
		})

		It("should return copies the caller may modify", func() {
			first := c.Lookup(0x08000000, 0xE3A00005, insts.ModeARM)
			first.Rd = 9

			second := c.Lookup(0x08000000, 0xE3A00005, insts.ModeARM)
			Expect(second.Rd).To(Equal(uint8(0)))
		})

		It("should redecode when the word at an address changes", func() {
			c.Lookup(0x08000000, 0xE3A00005, insts.ModeARM)
			inst := c.Lookup(0x08000000, 0xE3A01007, insts.ModeARM)

			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Imm).To(Equal(uint32(7)))
			Expect(c.Stats().Stale).To(Equal(uint64(1)))
		})

		It("should keep both THUMB half-words of a block", func() {
			c.Lookup(0x08000000, 0x2004, insts.ModeThumb)
			c.Lookup(0x08000002, 0x0600, insts.ModeThumb)

			Expect(c.Lookup(0x08000000, 0x2004, insts.ModeThumb).Imm).To(Equal(uint32(4)))
			Expect(c.Lookup(0x08000002, 0x0600, insts.ModeThumb).ShiftAmount).To(Equal(uint8(24)))
			Expect(c.Stats().Hits).To(Equal(uint64(2)))
		})

		It("should not confuse instruction sets", func() {
			c.Lookup(0x08000000, 0x2004, insts.ModeARM)
			inst := c.Lookup(0x08000000, 0x2004, insts.ModeThumb)

			Expect(inst.Mode).To(Equal(insts.ModeThumb))
			Expect(inst.Op).To(Equal(insts.OpMOV))
		})

		It("should evict the least recently used block", func() {
			c.Lookup(0x08000000, 0xE3A00005, insts.ModeARM) // set 0
			c.Lookup(0x08000008, 0xE3A00006, insts.ModeARM) // set 0, evicts

			Expect(c.Stats().Evictions).To(Equal(uint64(1)))

			c.Lookup(0x08000000, 0xE3A00005, insts.ModeARM)
			Expect(c.Stats().Hits).To(Equal(uint64(0)))
		})
	})

	Describe("Invalidate and Reset", func() {
		It("should drop cached entries", func() {
			c.Lookup(0x08000000, 0xE3A00005, insts.ModeARM)
			c.Invalidate(0x08000002)
			c.Lookup(0x08000000, 0xE3A00005, insts.ModeARM)
			Expect(c.Stats().Hits).To(Equal(uint64(0)))

			c.Reset()
			Expect(c.Stats()).To(Equal(cache.Statistics{}))
		})
	})

	Describe("as the emulator decode cache", func() {
		It("should stay coherent with self-modifying code", func() {
			c = cache.New(cache.DefaultConfig())
			bus := emu.NewGBABus()
			program := make([]byte, 12)
			binary.LittleEndian.PutUint32(program[0:], 0xE3A00005) // mov r0, #5
			binary.LittleEndian.PutUint32(program[4:], 0xE5812000) // str r2, [r1]
			binary.LittleEndian.PutUint32(program[8:], 0xEAFFFFFC) // b 0x03000000
			Expect(bus.Load(emu.IWRAMBase, program)).To(Succeed())

			e := emu.NewEmulator(bus,
				emu.WithEntryPoint(emu.IWRAMBase),
				emu.WithDecodeCache(c))
			rf := e.RegFile()
			rf.R[1] = emu.IWRAMBase
			rf.R[2] = 0xE3A00009 // mov r0, #9

			for i := 0; i < 4; i++ {
				Expect(e.Step().Status).To(Equal(emu.StepExecuted))
			}

			Expect(rf.R[0]).To(Equal(uint32(9)))
			Expect(c.Stats().Stale).To(Equal(uint64(1)))
		})
	})

	Describe("Config", func() {
		It("should reject empty geometry", func() {
			Expect(cache.Config{Sets: 0, Associativity: 4}.Validate()).NotTo(Succeed())
			Expect(cache.DefaultConfig().Validate()).To(Succeed())
		})
	})
})
