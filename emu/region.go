package emu

import "encoding/binary"

// Policy is the access policy of a memory region.
type Policy uint8

// Access policies.
const (
	PolicyReadOnly Policy = iota
	PolicyReadWrite
	PolicySideEffect // read-write, writes are recorded as I/O register updates
)

func (p Policy) String() string {
	switch p {
	case PolicyReadOnly:
		return "read-only"
	case PolicyReadWrite:
		return "read-write"
	case PolicySideEffect:
		return "read-write-side-effect"
	}
	return "unknown"
}

// GBA memory map.
const (
	BIOSBase    uint32 = 0x00000000
	BIOSSize    uint32 = 0x4000
	EWRAMBase   uint32 = 0x02000000
	EWRAMSize   uint32 = 0x40000
	IWRAMBase   uint32 = 0x03000000
	IWRAMSize   uint32 = 0x8000
	IOBase      uint32 = 0x04000000
	IOSize      uint32 = 0x400
	PaletteBase uint32 = 0x05000000
	PaletteSize uint32 = 0x400
	VRAMBase    uint32 = 0x06000000
	VRAMSize    uint32 = 0x18000
	OAMBase     uint32 = 0x07000000
	OAMSize     uint32 = 0x400
	ROMBase     uint32 = 0x08000000
	ROMSize     uint32 = 0x02000000
	SRAMBase    uint32 = 0x0E000000
	SRAMSize    uint32 = 0x10000
)

// growChunk is the granularity in which region backing stores grow.
const growChunk = 0x1000

// Region is a contiguous slice of the address space with a uniform access
// policy. The backing store is allocated lazily; bytes that were never
// written read as zero.
type Region struct {
	Name   string
	Base   uint32
	Size   uint32
	Policy Policy

	data []byte
}

// NewRegion creates a region covering [base, base+size).
func NewRegion(name string, base, size uint32, policy Policy) *Region {
	return &Region{Name: name, Base: base, Size: size, Policy: policy}
}

// End returns the first address past the region.
func (r *Region) End() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

// Contains reports whether addr falls inside the region.
func (r *Region) Contains(addr uint32) bool {
	return addr >= r.Base && uint64(addr) < r.End()
}

func (r *Region) overlaps(o *Region) bool {
	return uint64(r.Base) < o.End() && uint64(o.Base) < r.End()
}

// ensure grows the backing store to cover n bytes from offset.
func (r *Region) ensure(offset, n uint32) {
	need := uint64(offset) + uint64(n)
	if need <= uint64(len(r.data)) {
		return
	}
	size := (need + growChunk - 1) / growChunk * growChunk
	if size > uint64(r.Size) {
		size = uint64(r.Size)
	}
	grown := make([]byte, size)
	copy(grown, r.data)
	r.data = grown
}

func (r *Region) read(offset uint32, width Width) uint32 {
	if uint64(offset)+uint64(width) > uint64(len(r.data)) {
		var buf [4]byte
		if offset < uint32(len(r.data)) {
			copy(buf[:], r.data[offset:])
		}
		return decodeLE(buf[:width])
	}
	return decodeLE(r.data[offset : offset+uint32(width)])
}

func (r *Region) write(offset uint32, width Width, value uint32) {
	r.ensure(offset, uint32(width))
	buf := r.data[offset : offset+uint32(width)]
	switch width {
	case WidthByte:
		buf[0] = byte(value)
	case WidthHalf:
		binary.LittleEndian.PutUint16(buf, uint16(value))
	case WidthWord:
		binary.LittleEndian.PutUint32(buf, value)
	}
}

func (r *Region) load(offset uint32, data []byte) {
	r.ensure(offset, uint32(len(data)))
	copy(r.data[offset:], data)
}

func decodeLE(b []byte) uint32 {
	switch len(b) {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(b))
	}
	return binary.LittleEndian.Uint32(b)
}
