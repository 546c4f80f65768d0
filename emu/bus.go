package emu

import (
	"fmt"
	"sort"

	"github.com/sarchlab/akita/v4/sim"
)

// HookPosIOWrite marks a write to a side-effecting region. The hook item
// is an IOWrite.
var HookPosIOWrite = &sim.HookPos{Name: "IOWrite"}

// Memory is the view of the bus the CPU fetches, loads and stores
// through.
type Memory interface {
	Read(addr uint32, width Width) (uint32, error)
	Write(addr uint32, width Width, value uint32) error
}

// Bus maps addresses to memory regions and enforces their access
// policies. Half-word and word accesses are rounded down to their natural
// alignment unless the bus was built with WithStrictAlignment.
type Bus struct {
	*sim.HookableBase

	regions []*Region // sorted by base
	strict  bool
	io      *ioState
}

// BusOption is a functional option for configuring the Bus.
type BusOption func(*Bus)

// WithStrictAlignment makes misaligned half-word and word accesses fail
// with an AlignmentFault instead of being rounded down. Unmapped addresses
// still fail with an AccessFault.
func WithStrictAlignment() BusOption {
	return func(b *Bus) {
		b.strict = true
	}
}

// NewBus creates a bus over the given regions. Regions must not overlap
// and must start and end on word boundaries.
func NewBus(regions []*Region, opts ...BusOption) (*Bus, error) {
	sorted := make([]*Region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Base < sorted[j].Base })

	for i, r := range sorted {
		if r.Size == 0 || r.Base%4 != 0 || r.Size%4 != 0 {
			return nil, fmt.Errorf("region %s: base 0x%08X and size 0x%X must be non-zero word multiples",
				r.Name, r.Base, r.Size)
		}
		if r.End() > 1<<32 {
			return nil, fmt.Errorf("region %s: extends past the 32-bit address space", r.Name)
		}
		if i > 0 && sorted[i-1].overlaps(r) {
			return nil, fmt.Errorf("region %s overlaps region %s", r.Name, sorted[i-1].Name)
		}
	}

	b := &Bus{
		HookableBase: sim.NewHookableBase(),
		regions:      sorted,
		io:           newIOState(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// GBARegions returns a fresh set of regions laid out as the GBA memory
// map.
func GBARegions() []*Region {
	return []*Region{
		NewRegion("bios", BIOSBase, BIOSSize, PolicyReadOnly),
		NewRegion("ewram", EWRAMBase, EWRAMSize, PolicyReadWrite),
		NewRegion("iwram", IWRAMBase, IWRAMSize, PolicyReadWrite),
		NewRegion("io", IOBase, IOSize, PolicySideEffect),
		NewRegion("palette", PaletteBase, PaletteSize, PolicyReadWrite),
		NewRegion("vram", VRAMBase, VRAMSize, PolicyReadWrite),
		NewRegion("oam", OAMBase, OAMSize, PolicyReadWrite),
		NewRegion("rom", ROMBase, ROMSize, PolicyReadOnly),
		NewRegion("sram", SRAMBase, SRAMSize, PolicyReadWrite),
	}
}

// NewGBABus creates a bus with the GBA memory map. It panics if the map
// is inconsistent, which is a programming error.
func NewGBABus(opts ...BusOption) *Bus {
	b, err := NewBus(GBARegions(), opts...)
	if err != nil {
		panic(fmt.Sprintf("invalid GBA memory map: %v", err))
	}
	return b
}

// Regions returns the regions in address order.
func (b *Bus) Regions() []*Region {
	out := make([]*Region, len(b.regions))
	copy(out, b.regions)
	return out
}

// RegionAt returns the region that maps addr, or nil.
func (b *Bus) RegionAt(addr uint32) *Region {
	i := sort.Search(len(b.regions), func(i int) bool {
		return b.regions[i].End() > uint64(addr)
	})
	if i < len(b.regions) && b.regions[i].Contains(addr) {
		return b.regions[i]
	}
	return nil
}

func (b *Bus) resolve(addr uint32, width Width, write bool) (*Region, uint32, error) {
	if !width.valid() {
		return nil, 0, fmt.Errorf("invalid access width %d", width)
	}

	// Regions are word-aligned, so addr and aligned share a region and an
	// unmapped address faults as unmapped before alignment is checked.
	aligned := addr &^ (uint32(width) - 1)
	r := b.RegionAt(aligned)
	if r == nil {
		return nil, 0, &AccessFault{Addr: addr, Width: width, Write: write, Reason: "unmapped address"}
	}
	if aligned != addr && b.strict {
		return nil, 0, &AlignmentFault{Addr: addr, Width: width, Write: write}
	}
	return r, aligned, nil
}

// Read reads a value of the given width.
func (b *Bus) Read(addr uint32, width Width) (uint32, error) {
	r, aligned, err := b.resolve(addr, width, false)
	if err != nil {
		return 0, err
	}
	return r.read(aligned-r.Base, width), nil
}

// Write writes a value of the given width. Writes to read-only regions
// fail; writes to side-effecting regions are recorded and announced to
// hooks at HookPosIOWrite.
func (b *Bus) Write(addr uint32, width Width, value uint32) error {
	r, aligned, err := b.resolve(addr, width, true)
	if err != nil {
		return err
	}
	if r.Policy == PolicyReadOnly {
		return &AccessFault{Addr: addr, Width: width, Write: true, Region: r.Name, Reason: "region is read-only"}
	}

	switch width {
	case WidthByte:
		value &= 0xFF
	case WidthHalf:
		value &= 0xFFFF
	}
	r.write(aligned-r.Base, width, value)

	if r.Policy == PolicySideEffect {
		w := IOWrite{Addr: aligned, Width: width, Value: value, Register: IORegisterName(aligned)}
		b.io.record(w, r)
		if b.NumHooks() > 0 {
			b.InvokeHook(sim.HookCtx{Domain: b, Pos: HookPosIOWrite, Item: w})
		}
	}
	return nil
}

// Read8 reads a byte.
func (b *Bus) Read8(addr uint32) (uint8, error) {
	v, err := b.Read(addr, WidthByte)
	return uint8(v), err
}

// Read16 reads a half-word.
func (b *Bus) Read16(addr uint32) (uint16, error) {
	v, err := b.Read(addr, WidthHalf)
	return uint16(v), err
}

// Read32 reads a word.
func (b *Bus) Read32(addr uint32) (uint32, error) {
	return b.Read(addr, WidthWord)
}

// Write8 writes a byte.
func (b *Bus) Write8(addr uint32, value uint8) error {
	return b.Write(addr, WidthByte, uint32(value))
}

// Write16 writes a half-word.
func (b *Bus) Write16(addr uint32, value uint16) error {
	return b.Write(addr, WidthHalf, uint32(value))
}

// Write32 writes a word.
func (b *Bus) Write32(addr uint32, value uint32) error {
	return b.Write(addr, WidthWord, value)
}

// Load copies data to addr regardless of region policy. It is the path
// images take into ROM and BIOS. The whole range must be mapped by a
// single region.
func (b *Bus) Load(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	r := b.RegionAt(addr)
	end := uint64(addr) + uint64(len(data))
	if r == nil || end > r.End() {
		return &AccessFault{Addr: addr, Width: WidthByte, Write: true, Reason: "image does not fit a single region"}
	}
	r.load(addr-r.Base, data)
	return nil
}

// LastWrite returns the most recent write recorded for the I/O register
// at addr.
func (b *Bus) LastWrite(addr uint32) (IOWrite, bool) {
	w, ok := b.io.last[addr]
	return w, ok
}

// DisplayControl returns the display control register as last written.
func (b *Bus) DisplayControl() DisplayControl {
	return b.io.display
}

// Screen dimensions of the mode 3 bitmap.
const (
	ScreenWidth  = 240
	ScreenHeight = 160
)

// Pixel returns the BGR555 colour at (x, y) of the mode 3 bitmap.
func (b *Bus) Pixel(x, y int) (uint16, error) {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return 0, fmt.Errorf("pixel (%d, %d) is off screen", x, y)
	}
	return b.Read16(VRAMBase + uint32(y*ScreenWidth+x)*2)
}

// Framebuffer returns a copy of the mode 3 bitmap for an external
// renderer.
func (b *Bus) Framebuffer() []uint16 {
	fb := make([]uint16, ScreenWidth*ScreenHeight)
	r := b.RegionAt(VRAMBase)
	if r == nil {
		return fb
	}
	for i := range fb {
		fb[i] = uint16(r.read(VRAMBase-r.Base+uint32(i)*2, WidthHalf))
	}
	return fb
}
