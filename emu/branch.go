package emu

import "github.com/sarchlab/gbadbg/insts"

// BranchUnit implements ARM7TDMI branch operations.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// B performs a PC-relative branch. The offset is relative to the
// pipelined PC.
func (b *BranchUnit) B(offset int32) {
	b.regFile.SetPC(uint32(int32(b.regFile.ReadReg(15)) + offset))
}

// BL performs a branch with link. LR receives the address of the next
// instruction.
func (b *BranchUnit) BL(offset int32) {
	b.regFile.WriteReg(14, b.regFile.PC())
	b.B(offset)
}

// BX branches to the address in Rm and selects THUMB state when bit 0 of
// the address is set.
func (b *BranchUnit) BX(rm uint8) {
	target := b.regFile.ReadReg(rm)
	b.regFile.Thumb = target&1 != 0
	b.regFile.SetPC(target)
}

// LongBranchPrefix executes the first half of a THUMB BL: LR receives the
// pipelined PC plus the high part of the offset.
func (b *BranchUnit) LongBranchPrefix(offset int32) {
	b.regFile.WriteReg(14, uint32(int32(b.regFile.ReadReg(15))+offset))
}

// LongBranchSuffix executes the second half of a THUMB BL: it branches to
// LR plus the low part of the offset and links the return address with
// bit 0 set.
func (b *BranchUnit) LongBranchSuffix(offset int32) {
	next := b.regFile.PC()
	b.regFile.SetPC(b.regFile.R[14] + uint32(offset))
	b.regFile.WriteReg(14, next|1)
}

// CheckCondition evaluates a condition code against the current PSTATE flags.
func (b *BranchUnit) CheckCondition(cond insts.Cond) bool {
	return CheckCondition(cond, b.regFile.PSTATE)
}

// CheckCondition evaluates a condition code against the given flags.
func CheckCondition(cond insts.Cond, pstate PSTATE) bool {
	switch cond {
	case insts.CondEQ:
		// Equal: Z == 1
		return pstate.Z
	case insts.CondNE:
		// Not Equal: Z == 0
		return !pstate.Z
	case insts.CondCS:
		// Carry Set / Unsigned higher or same: C == 1
		return pstate.C
	case insts.CondCC:
		// Carry Clear / Unsigned lower: C == 0
		return !pstate.C
	case insts.CondMI:
		// Minus / Negative: N == 1
		return pstate.N
	case insts.CondPL:
		// Plus / Positive or zero: N == 0
		return !pstate.N
	case insts.CondVS:
		// Overflow: V == 1
		return pstate.V
	case insts.CondVC:
		// No overflow: V == 0
		return !pstate.V
	case insts.CondHI:
		// Unsigned higher: C == 1 && Z == 0
		return pstate.C && !pstate.Z
	case insts.CondLS:
		// Unsigned lower or same: C == 0 || Z == 1
		return !pstate.C || pstate.Z
	case insts.CondGE:
		// Signed greater than or equal: N == V
		return pstate.N == pstate.V
	case insts.CondLT:
		// Signed less than: N != V
		return pstate.N != pstate.V
	case insts.CondGT:
		// Signed greater than: Z == 0 && N == V
		return !pstate.Z && pstate.N == pstate.V
	case insts.CondLE:
		// Signed less than or equal: Z == 1 || N != V
		return pstate.Z || pstate.N != pstate.V
	case insts.CondAL:
		return true
	default:
		// NV is reserved on ARMv4 and never executes.
		return false
	}
}
