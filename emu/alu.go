package emu

import (
	"math/bits"

	"github.com/sarchlab/gbadbg/insts"
)

// ALU implements the ARM7TDMI data processing, multiply and status
// register operations.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// ShiftImm applies the barrel shifter with an immediate amount, where an
// amount of 0 encodes LSL #0, LSR #32, ASR #32 or RRX.
func ShiftImm(value uint32, typ insts.ShiftType, amount uint8, carry bool) (uint32, bool) {
	switch typ {
	case insts.ShiftLSL:
		if amount == 0 {
			return value, carry
		}
		return value << amount, value&(1<<(32-amount)) != 0
	case insts.ShiftLSR:
		if amount == 0 {
			return 0, value&(1<<31) != 0
		}
		return value >> amount, value&(1<<(amount-1)) != 0
	case insts.ShiftASR:
		if amount == 0 {
			return uint32(int32(value) >> 31), value&(1<<31) != 0
		}
		return uint32(int32(value) >> amount), value&(1<<(amount-1)) != 0
	default:
		if amount == 0 {
			// RRX
			result := value >> 1
			if carry {
				result |= 1 << 31
			}
			return result, value&1 != 0
		}
		return bits.RotateLeft32(value, -int(amount)), value&(1<<(amount-1)) != 0
	}
}

// ShiftReg applies the barrel shifter with an amount taken from the
// bottom byte of a register. An amount of 0 leaves value and carry alone.
func ShiftReg(value uint32, typ insts.ShiftType, amount uint32, carry bool) (uint32, bool) {
	amount &= 0xFF
	if amount == 0 {
		return value, carry
	}

	switch typ {
	case insts.ShiftLSL:
		switch {
		case amount < 32:
			return value << amount, value&(1<<(32-amount)) != 0
		case amount == 32:
			return 0, value&1 != 0
		}
		return 0, false
	case insts.ShiftLSR:
		switch {
		case amount < 32:
			return value >> amount, value&(1<<(amount-1)) != 0
		case amount == 32:
			return 0, value&(1<<31) != 0
		}
		return 0, false
	case insts.ShiftASR:
		if amount >= 32 {
			return uint32(int32(value) >> 31), value&(1<<31) != 0
		}
		return uint32(int32(value) >> amount), value&(1<<(amount-1)) != 0
	default:
		amount &= 31
		if amount == 0 {
			return value, value&(1<<31) != 0
		}
		return bits.RotateLeft32(value, -int(amount)), value&(1<<(amount-1)) != 0
	}
}

// addWithCarry returns a + b + carryIn with the carry out and signed
// overflow of the 32-bit sum.
func addWithCarry(a, b uint32, carryIn bool) (uint32, bool, bool) {
	var cin uint32
	if carryIn {
		cin = 1
	}
	result, carry := bits.Add32(a, b, cin)
	overflow := (a^result)&(b^result)&(1<<31) != 0
	return result, carry != 0, overflow
}

// Operand2 evaluates the flexible second operand of inst and the shifter
// carry out.
func (a *ALU) Operand2(inst *insts.Instruction) (uint32, bool) {
	carry := a.regFile.PSTATE.C

	switch inst.Operand {
	case insts.OperandImm:
		if inst.Rotate != 0 {
			carry = inst.Imm&(1<<31) != 0
		}
		return inst.Imm, carry
	case insts.OperandRegImmShift:
		return ShiftImm(a.regFile.ReadReg(inst.Rm), inst.Shift, inst.ShiftAmount, carry)
	default:
		// A register-specified shift takes an extra cycle, so PC reads one
		// instruction further ahead.
		rm := a.regFile.ReadReg(inst.Rm)
		if inst.Rm == 15 {
			rm += 4
		}
		return ShiftReg(rm, inst.Shift, a.regFile.ReadReg(inst.Rs), carry)
	}
}

// operand1 reads Rn with the PC adjustments of the instruction.
func (a *ALU) operand1(inst *insts.Instruction) uint32 {
	v := a.regFile.ReadReg(inst.Rn)
	if inst.Rn != 15 {
		return v
	}
	if inst.AlignPC {
		v &^= 3
	}
	if inst.Operand == insts.OperandRegRegShift {
		v += 4
	}
	return v
}

// DataProc executes one of the sixteen data processing operations.
func (a *ALU) DataProc(inst *insts.Instruction) {
	op1 := a.operand1(inst)
	op2, shifterCarry := a.Operand2(inst)
	pstate := &a.regFile.PSTATE

	var result uint32
	carry, overflow := shifterCarry, pstate.V

	switch inst.Op {
	case insts.OpAND, insts.OpTST:
		result = op1 & op2
	case insts.OpEOR, insts.OpTEQ:
		result = op1 ^ op2
	case insts.OpORR:
		result = op1 | op2
	case insts.OpBIC:
		result = op1 &^ op2
	case insts.OpMOV:
		result = op2
	case insts.OpMVN:
		result = ^op2
	case insts.OpSUB, insts.OpCMP:
		result, carry, overflow = addWithCarry(op1, ^op2, true)
	case insts.OpRSB:
		result, carry, overflow = addWithCarry(op2, ^op1, true)
	case insts.OpADD, insts.OpCMN:
		result, carry, overflow = addWithCarry(op1, op2, false)
	case insts.OpADC:
		result, carry, overflow = addWithCarry(op1, op2, pstate.C)
	case insts.OpSBC:
		result, carry, overflow = addWithCarry(op1, ^op2, pstate.C)
	case insts.OpRSC:
		result, carry, overflow = addWithCarry(op2, ^op1, pstate.C)
	}

	if !inst.Op.IsTest() {
		if inst.Rd == 15 && inst.SetFlags {
			// MOVS PC, LR and friends return from an exception.
			a.regFile.SetCPSR(a.regFile.SPSR())
			a.regFile.SetPC(result)
			return
		}
		a.regFile.WriteReg(inst.Rd, result)
	}

	if !inst.SetFlags {
		return
	}
	pstate.N = result&(1<<31) != 0
	pstate.Z = result == 0
	pstate.C = carry
	if !inst.Op.IsLogical() {
		pstate.V = overflow
	}
}

// Multiply executes MUL and MLA. C and V are left unchanged.
func (a *ALU) Multiply(inst *insts.Instruction) {
	result := a.regFile.ReadReg(inst.Rm) * a.regFile.ReadReg(inst.Rs)
	if inst.Op == insts.OpMLA {
		result += a.regFile.ReadReg(inst.Rn)
	}
	a.regFile.WriteReg(inst.Rd, result)

	if inst.SetFlags {
		a.regFile.PSTATE.N = result&(1<<31) != 0
		a.regFile.PSTATE.Z = result == 0
	}
}

// MultiplyLong executes UMULL, UMLAL, SMULL and SMLAL.
func (a *ALU) MultiplyLong(inst *insts.Instruction) {
	rm := a.regFile.ReadReg(inst.Rm)
	rs := a.regFile.ReadReg(inst.Rs)

	var result uint64
	switch inst.Op {
	case insts.OpSMULL, insts.OpSMLAL:
		result = uint64(int64(int32(rm)) * int64(int32(rs)))
	default:
		result = uint64(rm) * uint64(rs)
	}
	if inst.Op == insts.OpUMLAL || inst.Op == insts.OpSMLAL {
		result += uint64(a.regFile.ReadReg(inst.RdHi))<<32 | uint64(a.regFile.ReadReg(inst.RdLo))
	}

	a.regFile.WriteReg(inst.RdLo, uint32(result))
	a.regFile.WriteReg(inst.RdHi, uint32(result>>32))

	if inst.SetFlags {
		a.regFile.PSTATE.N = result&(1<<63) != 0
		a.regFile.PSTATE.Z = result == 0
	}
}

// psrFieldMasks maps the MSR field mask bits c, x, s and f to PSR bytes.
var psrFieldMasks = [4]uint32{0x000000FF, 0x0000FF00, 0x00FF0000, 0xFF000000}

// MRS copies the CPSR or SPSR into Rd.
func (a *ALU) MRS(inst *insts.Instruction) {
	if inst.SPSR {
		a.regFile.WriteReg(inst.Rd, a.regFile.SPSR())
		return
	}
	a.regFile.WriteReg(inst.Rd, a.regFile.CPSR())
}

// MSR writes the selected fields of the CPSR or SPSR. User mode may only
// change the flags, and MSR never changes the T bit.
func (a *ALU) MSR(inst *insts.Instruction) {
	value, _ := a.Operand2(inst)

	var mask uint32
	for i, m := range psrFieldMasks {
		if inst.FieldMask&(1<<i) != 0 {
			mask |= m
		}
	}

	if inst.SPSR {
		if a.regFile.HasSPSR() {
			old := a.regFile.SPSR()
			a.regFile.SetSPSR(old&^mask | value&mask)
		}
		return
	}

	if a.regFile.Mode() == ModeUSR {
		mask &= psrFieldMasks[3]
	}
	old := a.regFile.CPSR()
	next := old&^mask | value&mask
	next = next&^cpsrT | old&cpsrT
	a.regFile.SetCPSR(next)
}
