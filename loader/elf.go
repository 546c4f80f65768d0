// Package loader reads program images for the GBA memory map: 32-bit ARM
// ELF executables, or raw cartridge images placed at a base address.
package loader

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"os"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a block of bytes to place in memory.
type Segment struct {
	// Addr is the address where this segment should be loaded.
	Addr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program is a loaded image ready to be placed on a bus.
type Program struct {
	// Entry is the address where execution should begin.
	Entry uint32
	// Segments contains all loadable segments.
	Segments []Segment
	// ELF reports whether the image came from an ELF file.
	ELF bool
}

// Target is the privileged load path of a memory bus.
type Target interface {
	Load(addr uint32, data []byte) error
}

// Load reads the file at path. ELF files are parsed; anything else is a
// raw image placed at base with its entry point at base.
func Load(path string, base uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	return Parse(data, base)
}

// Parse interprets data the way Load interprets a file's contents.
func Parse(data []byte, base uint32) (*Program, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if bytes.HasPrefix(data, []byte(elf.ELFMAG)) {
		return parseELF(data)
	}
	return Raw(data, base), nil
}

// Raw wraps a raw image placed at base.
func Raw(image []byte, base uint32) *Program {
	return &Program{
		Entry: base,
		Segments: []Segment{{
			Addr:    base,
			Data:    image,
			MemSize: uint32(len(image)),
			Flags:   SegmentFlagRead | SegmentFlagExecute,
		}},
	}
}

func parseELF(data []byte) (*Program, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}

	if f.Machine != elf.EM_ARM {
		return nil, fmt.Errorf("not an ARM ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		Entry: uint32(f.Entry),
		ELF:   true,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		seg, err := readSegment(phdr)
		if err != nil {
			return nil, err
		}
		prog.Segments = append(prog.Segments, seg)
	}

	return prog, nil
}

func readSegment(phdr *elf.Prog) (Segment, error) {
	data := make([]byte, phdr.Filesz)
	if phdr.Filesz > 0 {
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return Segment{}, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
		}
		if uint64(n) != phdr.Filesz {
			return Segment{}, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Vaddr, n, phdr.Filesz)
		}
	}

	var flags SegmentFlags
	if phdr.Flags&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}
	if phdr.Flags&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}
	if phdr.Flags&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}

	return Segment{
		Addr:    uint32(phdr.Vaddr),
		Data:    data,
		MemSize: uint32(phdr.Memsz),
		Flags:   flags,
	}, nil
}

// LoadInto copies every segment to target and zero-fills the part of
// each segment beyond its file data.
func (p *Program) LoadInto(target Target) error {
	for _, seg := range p.Segments {
		if err := target.Load(seg.Addr, seg.Data); err != nil {
			return fmt.Errorf("failed to load segment at 0x%08X: %w", seg.Addr, err)
		}

		if seg.MemSize > uint32(len(seg.Data)) {
			bss := make([]byte, seg.MemSize-uint32(len(seg.Data)))
			addr := seg.Addr + uint32(len(seg.Data))
			if err := target.Load(addr, bss); err != nil {
				return fmt.Errorf("failed to clear segment at 0x%08X: %w", addr, err)
			}
		}
	}
	return nil
}

// Size returns the number of bytes the program occupies in memory.
func (p *Program) Size() uint32 {
	var n uint32
	for _, seg := range p.Segments {
		n += max(seg.MemSize, uint32(len(seg.Data)))
	}
	return n
}
