package emu

import (
	"math/bits"

	"github.com/sarchlab/gbadbg/insts"
)

// LoadStoreUnit implements ARM7TDMI memory transfer operations.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit.
func NewLoadStoreUnit(regFile *RegFile, memory Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// storeValue reads Rd as a value to store. An ARM store of R15 writes the
// instruction address plus 12.
func (lsu *LoadStoreUnit) storeValue(reg uint8) uint32 {
	v := lsu.regFile.ReadReg(reg)
	if reg == 15 && !lsu.regFile.Thumb {
		v += 4
	}
	return v
}

// base reads Rn as a transfer base address.
func (lsu *LoadStoreUnit) base(inst *insts.Instruction) uint32 {
	v := lsu.regFile.ReadReg(inst.Rn)
	if inst.Rn == 15 && inst.AlignPC {
		v &^= 3
	}
	return v
}

// addresses returns the transfer address and the written-back base.
func (lsu *LoadStoreUnit) addresses(inst *insts.Instruction, offset uint32) (uint32, uint32) {
	base := lsu.base(inst)
	updated := base - offset
	if inst.Up {
		updated = base + offset
	}
	if inst.PreIndex {
		return updated, updated
	}
	return base, updated
}

func (lsu *LoadStoreUnit) writeBack(inst *insts.Instruction, updated uint32) {
	if !inst.PreIndex || inst.WriteBack {
		lsu.regFile.WriteReg(inst.Rn, updated)
	}
}

// SingleTransfer executes LDR, STR, LDRB and STRB.
func (lsu *LoadStoreUnit) SingleTransfer(inst *insts.Instruction) error {
	offset := inst.Imm
	if inst.Operand != insts.OperandImm {
		offset, _ = ShiftImm(lsu.regFile.ReadReg(inst.Rm), inst.Shift, inst.ShiftAmount, lsu.regFile.PSTATE.C)
	}
	addr, updated := lsu.addresses(inst, offset)

	if !inst.Load {
		value := lsu.storeValue(inst.Rd)
		width := WidthWord
		if inst.Byte {
			width = WidthByte
		}
		if err := lsu.memory.Write(addr, width, value); err != nil {
			return err
		}
		lsu.writeBack(inst, updated)
		return nil
	}

	var value uint32
	if inst.Byte {
		v, err := lsu.memory.Read(addr, WidthByte)
		if err != nil {
			return err
		}
		value = v
	} else {
		v, err := lsu.memory.Read(addr, WidthWord)
		if err != nil {
			return err
		}
		// A misaligned word load rotates the aligned word.
		value = bits.RotateLeft32(v, -int(addr&3)*8)
	}

	// The loaded value wins when Rd is also the base.
	lsu.writeBack(inst, updated)
	lsu.regFile.WriteReg(inst.Rd, value)
	return nil
}

// HalfwordTransfer executes LDRH, STRH, LDRSB and LDRSH.
func (lsu *LoadStoreUnit) HalfwordTransfer(inst *insts.Instruction) error {
	offset := inst.Imm
	if inst.Operand != insts.OperandImm {
		offset = lsu.regFile.ReadReg(inst.Rm)
	}
	addr, updated := lsu.addresses(inst, offset)

	if inst.Op == insts.OpSTRH {
		if err := lsu.memory.Write(addr, WidthHalf, lsu.storeValue(inst.Rd)); err != nil {
			return err
		}
		lsu.writeBack(inst, updated)
		return nil
	}

	var value uint32
	switch {
	case inst.Op == insts.OpLDRSB || (inst.Op == insts.OpLDRSH && addr&1 != 0):
		// LDRSH from an odd address loads a sign-extended byte.
		v, err := lsu.memory.Read(addr, WidthByte)
		if err != nil {
			return err
		}
		value = uint32(int32(int8(v)))
	case inst.Op == insts.OpLDRSH:
		v, err := lsu.memory.Read(addr, WidthHalf)
		if err != nil {
			return err
		}
		value = uint32(int32(int16(v)))
	default:
		v, err := lsu.memory.Read(addr, WidthHalf)
		if err != nil {
			return err
		}
		value = bits.RotateLeft32(v, -int(addr&1)*8)
	}

	lsu.writeBack(inst, updated)
	lsu.regFile.WriteReg(inst.Rd, value)
	return nil
}

// BlockTransfer executes LDM and STM. Words already stored when a later
// access faults stay in memory.
func (lsu *LoadStoreUnit) BlockTransfer(inst *insts.Instruction) error {
	list := inst.RegList
	span := uint32(bits.OnesCount16(list)) * 4
	if list == 0 {
		// An empty list transfers R15 and moves the base by 16 words.
		list = 1 << 15
		span = 0x40
	}

	base := lsu.regFile.ReadReg(inst.Rn)
	var addr, updated uint32
	switch {
	case inst.Up && !inst.PreIndex: // IA
		addr, updated = base, base+span
	case inst.Up: // IB
		addr, updated = base+4, base+span
	case !inst.PreIndex: // DA
		addr, updated = base-span+4, base-span
	default: // DB
		addr, updated = base-span, base-span
	}

	loadsPC := inst.Load && list&(1<<15) != 0
	userBank := inst.UserBank && !loadsPC

	if !inst.Load {
		return lsu.storeMultiple(inst, list, addr, updated, userBank)
	}
	return lsu.loadMultiple(inst, list, addr, updated, userBank, loadsPC)
}

func (lsu *LoadStoreUnit) storeMultiple(
	inst *insts.Instruction, list uint16, addr, updated uint32, userBank bool,
) error {
	lowest := uint8(bits.TrailingZeros16(list))
	for reg := uint8(0); reg < 16; reg++ {
		if list&(1<<reg) == 0 {
			continue
		}

		var value uint32
		switch {
		case reg == inst.Rn && inst.WriteBack && reg != lowest:
			// The base is already updated when it is not the first
			// register stored.
			value = updated
		case reg == 15:
			value = lsu.storeValue(15)
		case userBank:
			value = lsu.regFile.UserReg(reg)
		default:
			value = lsu.regFile.ReadReg(reg)
		}

		if err := lsu.memory.Write(addr, WidthWord, value); err != nil {
			return err
		}
		addr += 4
	}

	if inst.WriteBack {
		lsu.regFile.WriteReg(inst.Rn, updated)
	}
	return nil
}

func (lsu *LoadStoreUnit) loadMultiple(
	inst *insts.Instruction, list uint16, addr, updated uint32, userBank, loadsPC bool,
) error {
	var values [16]uint32
	for reg := uint8(0); reg < 16; reg++ {
		if list&(1<<reg) == 0 {
			continue
		}
		v, err := lsu.memory.Read(addr, WidthWord)
		if err != nil {
			return err
		}
		values[reg] = v
		addr += 4
	}

	// A loaded base wins over write-back.
	if inst.WriteBack && list&(1<<inst.Rn) == 0 {
		lsu.regFile.WriteReg(inst.Rn, updated)
	}

	for reg := uint8(0); reg < 15; reg++ {
		if list&(1<<reg) == 0 {
			continue
		}
		if userBank {
			lsu.regFile.SetUserReg(reg, values[reg])
		} else {
			lsu.regFile.WriteReg(reg, values[reg])
		}
	}

	if loadsPC {
		if inst.UserBank {
			lsu.regFile.SetCPSR(lsu.regFile.SPSR())
		}
		lsu.regFile.SetPC(values[15])
	}
	return nil
}

// Swap executes SWP and SWPB.
func (lsu *LoadStoreUnit) Swap(inst *insts.Instruction) error {
	addr := lsu.regFile.ReadReg(inst.Rn)
	source := lsu.regFile.ReadReg(inst.Rm)

	width := WidthWord
	if inst.Byte {
		width = WidthByte
	}

	old, err := lsu.memory.Read(addr, width)
	if err != nil {
		return err
	}
	if width == WidthWord {
		old = bits.RotateLeft32(old, -int(addr&3)*8)
	}
	if err := lsu.memory.Write(addr, width, source); err != nil {
		return err
	}

	lsu.regFile.WriteReg(inst.Rd, old)
	return nil
}
