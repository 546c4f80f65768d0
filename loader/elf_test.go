package loader_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbadbg/emu"
	"github.com/sarchlab/gbadbg/loader"
)

type elfSegment struct {
	addr    uint32
	data    []byte
	memSize uint32
	flags   uint32
}

var _ = Describe("Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	write := func(name string, data []byte) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, data, 0644)).To(Succeed())
		return path
	}

	Describe("Load", func() {
		Context("with a valid ARM ELF binary", func() {
			var elfPath string
			code := []byte{
				0x05, 0x00, 0xA0, 0xE3, // mov r0, #5
				0xFE, 0xFF, 0xFF, 0xEA, // b .
			}

			BeforeEach(func() {
				elfPath = write("test.elf", buildARMELF(0x08000000, []elfSegment{
					{addr: 0x08000000, data: code, memSize: uint32(len(code)), flags: 0x5},
				}))
			})

			It("should extract the entry point", func() {
				prog, err := loader.Load(elfPath, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.ELF).To(BeTrue())
				Expect(prog.Entry).To(Equal(uint32(0x08000000)))
			})

			It("should read segment contents and permissions", func() {
				prog, err := loader.Load(elfPath, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(1))

				seg := prog.Segments[0]
				Expect(seg.Addr).To(Equal(uint32(0x08000000)))
				Expect(seg.Data).To(Equal(code))
				Expect(seg.Flags & loader.SegmentFlagExecute).NotTo(BeZero())
				Expect(seg.Flags & loader.SegmentFlagWrite).To(BeZero())
			})
		})

		It("should load multiple PT_LOAD segments", func() {
			code := []byte{0xFE, 0xFF, 0xFF, 0xEA}
			data := []byte{0x01, 0x02, 0x03, 0x04}
			path := write("multi.elf", buildARMELF(0x08000000, []elfSegment{
				{addr: 0x08000000, data: code, memSize: 4, flags: 0x5},
				{addr: 0x03000000, data: data, memSize: 4, flags: 0x6},
			}))

			prog, err := loader.Load(path, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))
			Expect(prog.Segments[1].Addr).To(Equal(uint32(0x03000000)))
			Expect(prog.Segments[1].Flags & loader.SegmentFlagWrite).NotTo(BeZero())
			Expect(prog.Size()).To(Equal(uint32(8)))
		})

		It("should treat anything else as a raw image at the base", func() {
			image := []byte{0x52, 0x00, 0x00, 0xEA}
			path := write("game.gba", image)

			prog, err := loader.Load(path, 0x08000000)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.ELF).To(BeFalse())
			Expect(prog.Entry).To(Equal(uint32(0x08000000)))
			Expect(prog.Segments).To(HaveLen(1))
			Expect(prog.Segments[0].Data).To(Equal(image))
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.Load("/nonexistent/path/to/file.gba", 0)
				Expect(err).To(MatchError(ContainSubstring("failed to open")))
			})

			It("should return error for empty file", func() {
				_, err := loader.Load(write("empty.gba", nil), 0)
				Expect(err).To(MatchError(ContainSubstring("empty image")))
			})

			It("should reject 64-bit ELF files", func() {
				header := make([]byte, 64)
				copy(header, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
				binary.LittleEndian.PutUint16(header[16:18], 2)
				binary.LittleEndian.PutUint16(header[18:20], 183)
				binary.LittleEndian.PutUint32(header[20:24], 1)
				binary.LittleEndian.PutUint16(header[52:54], 64)
				binary.LittleEndian.PutUint16(header[54:56], 56)

				_, err := loader.Load(write("a64.elf", header), 0)
				Expect(err).To(MatchError(ContainSubstring("not a 32-bit")))
			})

			It("should reject non-ARM machines", func() {
				data := buildARMELF(0, nil)
				binary.LittleEndian.PutUint16(data[18:20], 3) // EM_386

				_, err := loader.Load(write("x86.elf", data), 0)
				Expect(err).To(MatchError(ContainSubstring("not an ARM ELF")))
			})
		})
	})

	Describe("LoadInto", func() {
		It("should place segments and clear BSS", func() {
			bus := emu.NewGBABus()
			Expect(bus.Write32(0x03000004, 0xFFFFFFFF)).To(Succeed())

			prog, err := loader.Parse(buildARMELF(0x08000000, []elfSegment{
				{addr: 0x08000000, data: []byte{0xFE, 0xFF, 0xFF, 0xEA}, memSize: 4, flags: 0x5},
				{addr: 0x03000000, data: []byte{0x11, 0x22, 0x33, 0x44}, memSize: 64, flags: 0x6},
			}), 0)
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.LoadInto(bus)).To(Succeed())
			Expect(bus.Read32(0x08000000)).To(Equal(uint32(0xEAFFFFFE)))
			Expect(bus.Read32(0x03000000)).To(Equal(uint32(0x44332211)))
			Expect(bus.Read32(0x03000004)).To(Equal(uint32(0)))
		})

		It("should fail for segments outside the memory map", func() {
			prog := loader.Raw([]byte{1, 2, 3, 4}, 0x10000000)
			err := prog.LoadInto(emu.NewGBABus())

			var fault *emu.AccessFault
			Expect(err).To(MatchError(ContainSubstring("failed to load segment at 0x10000000")))
			Expect(errors.As(err, &fault)).To(BeTrue())
		})
	})
})

// buildARMELF creates a little-endian ELF32 EM_ARM executable.
func buildARMELF(entry uint32, segs []elfSegment) []byte {
	const ehsize, phentsize = 52, 32

	header := make([]byte, ehsize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 1 // ELFCLASS32
	header[5] = 1 // little endian
	header[6] = 1 // version
	binary.LittleEndian.PutUint16(header[16:18], 2)  // executable
	binary.LittleEndian.PutUint16(header[18:20], 40) // EM_ARM
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], entry)
	binary.LittleEndian.PutUint32(header[28:32], ehsize)
	binary.LittleEndian.PutUint16(header[40:42], ehsize)
	binary.LittleEndian.PutUint16(header[42:44], phentsize)
	binary.LittleEndian.PutUint16(header[44:46], uint16(len(segs)))
	binary.LittleEndian.PutUint16(header[46:48], 40)

	offset := uint32(ehsize + phentsize*len(segs))
	var phdrs, body []byte
	for _, s := range segs {
		ph := make([]byte, phentsize)
		binary.LittleEndian.PutUint32(ph[0:4], 1) // PT_LOAD
		binary.LittleEndian.PutUint32(ph[4:8], offset)
		binary.LittleEndian.PutUint32(ph[8:12], s.addr)
		binary.LittleEndian.PutUint32(ph[12:16], s.addr)
		binary.LittleEndian.PutUint32(ph[16:20], uint32(len(s.data)))
		binary.LittleEndian.PutUint32(ph[20:24], s.memSize)
		binary.LittleEndian.PutUint32(ph[24:28], s.flags)
		binary.LittleEndian.PutUint32(ph[28:32], 4)
		phdrs = append(phdrs, ph...)
		body = append(body, s.data...)
		offset += uint32(len(s.data))
	}

	out := append(header, phdrs...)
	return append(out, body...)
}
