package emu

import "github.com/sarchlab/gbadbg/insts"

// ProcessorMode is the mode field of the CPSR.
type ProcessorMode uint8

// ARM7TDMI processor modes.
const (
	ModeUSR ProcessorMode = 0x10
	ModeFIQ ProcessorMode = 0x11
	ModeIRQ ProcessorMode = 0x12
	ModeSVC ProcessorMode = 0x13
	ModeABT ProcessorMode = 0x17
	ModeUND ProcessorMode = 0x1B
	ModeSYS ProcessorMode = 0x1F
)

// Valid reports whether m is one of the seven architected modes.
func (m ProcessorMode) Valid() bool {
	switch m {
	case ModeUSR, ModeFIQ, ModeIRQ, ModeSVC, ModeABT, ModeUND, ModeSYS:
		return true
	}
	return false
}

func (m ProcessorMode) String() string {
	switch m {
	case ModeUSR:
		return "usr"
	case ModeFIQ:
		return "fiq"
	case ModeIRQ:
		return "irq"
	case ModeSVC:
		return "svc"
	case ModeABT:
		return "abt"
	case ModeUND:
		return "und"
	case ModeSYS:
		return "sys"
	}
	return "invalid"
}

// bank returns the index of the register bank used by m. USR and SYS
// share bank 0, which has no SPSR.
func (m ProcessorMode) bank() int {
	switch m {
	case ModeFIQ:
		return 1
	case ModeIRQ:
		return 2
	case ModeSVC:
		return 3
	case ModeABT:
		return 4
	case ModeUND:
		return 5
	}
	return 0
}

const numBanks = 6

// CPSR bit positions.
const (
	cpsrN = 1 << 31
	cpsrZ = 1 << 30
	cpsrC = 1 << 29
	cpsrV = 1 << 28
	cpsrI = 1 << 7
	cpsrF = 1 << 6
	cpsrT = 1 << 5

	cpsrModeMask = 0x1F
)

// Stack pointers the GBA BIOS sets up before jumping to the cartridge.
const (
	ResetSPSys uint32 = 0x03007F00
	ResetSPIRQ uint32 = 0x03007FA0
	ResetSPSVC uint32 = 0x03007FE0
)

// PSTATE represents the condition flags.
type PSTATE struct {
	// N is the negative flag.
	N bool
	// Z is the zero flag.
	Z bool
	// C is the carry flag.
	C bool
	// V is the overflow flag.
	V bool
}

// RegFile represents the ARM7TDMI register file.
//
// R holds the registers visible in the current mode. R[15] is the address
// of the next instruction to fetch; ReadReg(15) returns the pipelined
// value an executing instruction observes instead.
type RegFile struct {
	R [16]uint32

	// PSTATE holds the condition flags.
	PSTATE PSTATE

	IRQDisabled bool
	FIQDisabled bool
	Thumb       bool

	mode ProcessorMode

	// Banked copies of the registers that are not currently visible.
	usrHi    [5]uint32 // R8-R12 outside FIQ mode
	fiqHi    [5]uint32 // R8-R12 in FIQ mode
	bankedSP [numBanks]uint32
	bankedLR [numBanks]uint32
	spsr     [numBanks]uint32
}

// NewRegFile creates a register file in the reset state with PC at entry.
func NewRegFile(entry uint32) *RegFile {
	r := &RegFile{}
	r.Reset(entry)
	return r
}

// Reset puts the register file in the state the GBA BIOS leaves behind:
// SYS mode, ARM state, interrupts enabled, stacks set up.
func (r *RegFile) Reset(entry uint32) {
	*r = RegFile{mode: ModeSYS}
	r.bankedSP[ModeIRQ.bank()] = ResetSPIRQ
	r.bankedSP[ModeSVC.bank()] = ResetSPSVC
	r.R[13] = ResetSPSys
	r.R[15] = entry &^ 3
}

// Mode returns the current processor mode.
func (r *RegFile) Mode() ProcessorMode {
	return r.mode
}

// InstructionSet returns the instruction set selected by the T bit.
func (r *RegFile) InstructionSet() insts.Mode {
	if r.Thumb {
		return insts.ModeThumb
	}
	return insts.ModeARM
}

// PC returns the address of the next instruction to fetch.
func (r *RegFile) PC() uint32 {
	return r.R[15]
}

// SetPC sets the next fetch address, aligned to the current instruction
// width.
func (r *RegFile) SetPC(addr uint32) {
	if r.Thumb {
		r.R[15] = addr &^ 1
		return
	}
	r.R[15] = addr &^ 3
}

// ReadReg reads a register as an instruction operand. R15 reads as the
// address of the executing instruction plus two instruction widths.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 15 {
		return r.R[15] + r.InstructionSet().Width()
	}
	return r.R[reg&0xF]
}

// WriteReg writes a register. Writing R15 is a branch.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 15 {
		r.SetPC(value)
		return
	}
	r.R[reg&0xF] = value
}

// UserReg reads the user-mode copy of a register regardless of the
// current mode.
func (r *RegFile) UserReg(reg uint8) uint32 {
	switch {
	case reg >= 8 && reg <= 12 && r.mode == ModeFIQ:
		return r.usrHi[reg-8]
	case reg == 13 && r.mode.bank() != 0:
		return r.bankedSP[0]
	case reg == 14 && r.mode.bank() != 0:
		return r.bankedLR[0]
	}
	return r.ReadReg(reg)
}

// SetUserReg writes the user-mode copy of a register regardless of the
// current mode.
func (r *RegFile) SetUserReg(reg uint8, value uint32) {
	switch {
	case reg >= 8 && reg <= 12 && r.mode == ModeFIQ:
		r.usrHi[reg-8] = value
	case reg == 13 && r.mode.bank() != 0:
		r.bankedSP[0] = value
	case reg == 14 && r.mode.bank() != 0:
		r.bankedLR[0] = value
	default:
		r.WriteReg(reg, value)
	}
}

// BankedSP returns the stack pointer of the given mode.
func (r *RegFile) BankedSP(mode ProcessorMode) uint32 {
	if mode.bank() == r.mode.bank() {
		return r.R[13]
	}
	return r.bankedSP[mode.bank()]
}

// SetMode switches the processor mode and swaps the visible banked
// registers. Invalid modes are ignored.
func (r *RegFile) SetMode(mode ProcessorMode) {
	if !mode.Valid() || mode == r.mode {
		return
	}

	old, next := r.mode.bank(), mode.bank()
	if old != next {
		r.bankedSP[old] = r.R[13]
		r.bankedLR[old] = r.R[14]
		r.R[13] = r.bankedSP[next]
		r.R[14] = r.bankedLR[next]
	}

	if r.mode == ModeFIQ {
		copy(r.fiqHi[:], r.R[8:13])
		copy(r.R[8:13], r.usrHi[:])
	}
	if mode == ModeFIQ {
		copy(r.usrHi[:], r.R[8:13])
		copy(r.R[8:13], r.fiqHi[:])
	}

	r.mode = mode
}

// CPSR packs the current program status register.
func (r *RegFile) CPSR() uint32 {
	v := uint32(r.mode)
	for _, b := range []struct {
		set bool
		bit uint32
	}{
		{r.PSTATE.N, cpsrN}, {r.PSTATE.Z, cpsrZ}, {r.PSTATE.C, cpsrC}, {r.PSTATE.V, cpsrV},
		{r.IRQDisabled, cpsrI}, {r.FIQDisabled, cpsrF}, {r.Thumb, cpsrT},
	} {
		if b.set {
			v |= b.bit
		}
	}
	return v
}

// SetCPSR unpacks v into the flags, control bits and mode.
func (r *RegFile) SetCPSR(v uint32) {
	r.PSTATE = PSTATE{
		N: v&cpsrN != 0,
		Z: v&cpsrZ != 0,
		C: v&cpsrC != 0,
		V: v&cpsrV != 0,
	}
	r.IRQDisabled = v&cpsrI != 0
	r.FIQDisabled = v&cpsrF != 0
	r.Thumb = v&cpsrT != 0
	r.SetMode(ProcessorMode(v & cpsrModeMask))
}

// SPSR returns the saved program status register of the current mode.
// USR and SYS have none and read the CPSR.
func (r *RegFile) SPSR() uint32 {
	if b := r.mode.bank(); b != 0 {
		return r.spsr[b]
	}
	return r.CPSR()
}

// SetSPSR writes the saved program status register of the current mode.
// It is a no-op in USR and SYS mode.
func (r *RegFile) SetSPSR(v uint32) {
	if b := r.mode.bank(); b != 0 {
		r.spsr[b] = v
	}
}

// HasSPSR reports whether the current mode has a saved status register.
func (r *RegFile) HasSPSR() bool {
	return r.mode.bank() != 0
}
