package insts

import "math/bits"

// Decoder decodes ARM7TDMI machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new ARM7TDMI instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes an instruction word in the given instruction set state.
// THUMB decoding uses the low 16 bits of word. Decode never fails: words
// outside the encoding tables yield a FormatUndefined instruction.
func (d *Decoder) Decode(word uint32, mode Mode) *Instruction {
	if mode == ModeThumb {
		return d.decodeThumb(uint16(word))
	}
	return d.decodeARM(word)
}

func (d *Decoder) decodeARM(word uint32) *Instruction {
	inst := &Instruction{
		Op:     OpUndefined,
		Format: FormatUndefined,
		Mode:   ModeARM,
		Cond:   Cond(word >> 28),
		Raw:    word,
	}

	switch (word >> 26) & 0b11 {
	case 0b00:
		d.decodeARMGroup0(word, inst)
	case 0b01:
		if d.isUndefinedSpace(word) {
			return inst
		}
		d.decodeSingleTransfer(word, inst)
	case 0b10:
		if word&(1<<25) == 0 {
			d.decodeBlockTransfer(word, inst)
		} else {
			d.decodeBranch(word, inst)
		}
	case 0b11:
		// Coprocessor space traps as undefined; there is no coprocessor.
		if d.isSoftwareInterrupt(word) {
			d.decodeSoftwareInterrupt(word, inst)
		}
	}

	return inst
}

// decodeARMGroup0 splits the bits [27:26] == 00 space, where the
// multiply, swap and halfword encodings live inside the data processing
// space and must be matched first.
func (d *Decoder) decodeARMGroup0(word uint32, inst *Instruction) {
	switch {
	case d.isBranchExchange(word):
		d.decodeBranchExchange(word, inst)
	case d.isMultiply(word):
		d.decodeMultiply(word, inst)
	case d.isMultiplyLong(word):
		d.decodeMultiplyLong(word, inst)
	case d.isSwap(word):
		d.decodeSwap(word, inst)
	case d.isHalfwordSpace(word):
		d.decodeHalfwordTransfer(word, inst)
	case d.isMRS(word):
		d.decodeMRS(word, inst)
	case d.isMSR(word):
		d.decodeMSR(word, inst)
	default:
		d.decodeDataProcessing(word, inst)
	}
}

// isBranchExchange checks for BX.
// Format: cond | 0001 0010 1111 1111 1111 0001 | Rm
func (d *Decoder) isBranchExchange(word uint32) bool {
	return word&0x0FFFFFF0 == 0x012FFF10
}

func (d *Decoder) decodeBranchExchange(word uint32, inst *Instruction) {
	inst.Op = OpBX
	inst.Format = FormatBranchExchange
	inst.Rm = uint8(word & 0xF)
}

// isMultiply checks for MUL/MLA.
// Format: cond | 000000 A S | Rd | Rn | Rs | 1001 | Rm
func (d *Decoder) isMultiply(word uint32) bool {
	return word&0x0FC000F0 == 0x00000090
}

func (d *Decoder) decodeMultiply(word uint32, inst *Instruction) {
	inst.Format = FormatMultiply
	inst.Op = OpMUL
	if word&(1<<21) != 0 {
		inst.Op = OpMLA
	}
	inst.SetFlags = word&(1<<20) != 0
	inst.Rd = uint8((word >> 16) & 0xF)
	inst.Rn = uint8((word >> 12) & 0xF)
	inst.Rs = uint8((word >> 8) & 0xF)
	inst.Rm = uint8(word & 0xF)
}

// isMultiplyLong checks for UMULL/UMLAL/SMULL/SMLAL.
// Format: cond | 00001 U A S | RdHi | RdLo | Rs | 1001 | Rm
func (d *Decoder) isMultiplyLong(word uint32) bool {
	return word&0x0F8000F0 == 0x00800090
}

func (d *Decoder) decodeMultiplyLong(word uint32, inst *Instruction) {
	inst.Format = FormatMultiplyLong
	signed := word&(1<<22) != 0
	accumulate := word&(1<<21) != 0
	switch {
	case !signed && !accumulate:
		inst.Op = OpUMULL
	case !signed && accumulate:
		inst.Op = OpUMLAL
	case signed && !accumulate:
		inst.Op = OpSMULL
	default:
		inst.Op = OpSMLAL
	}
	inst.SetFlags = word&(1<<20) != 0
	inst.RdHi = uint8((word >> 16) & 0xF)
	inst.RdLo = uint8((word >> 12) & 0xF)
	inst.Rs = uint8((word >> 8) & 0xF)
	inst.Rm = uint8(word & 0xF)
}

// isSwap checks for SWP/SWPB.
// Format: cond | 00010 B 00 | Rn | Rd | 0000 1001 | Rm
func (d *Decoder) isSwap(word uint32) bool {
	return word&0x0FB00FF0 == 0x01000090
}

func (d *Decoder) decodeSwap(word uint32, inst *Instruction) {
	inst.Op = OpSWP
	inst.Format = FormatSwap
	inst.Byte = word&(1<<22) != 0
	inst.Rn = uint8((word >> 16) & 0xF)
	inst.Rd = uint8((word >> 12) & 0xF)
	inst.Rm = uint8(word & 0xF)
}

// isHalfwordSpace checks for bits [27:25] == 000 with bits 7 and 4 set.
// Whatever is left here after multiply and swap is either a halfword
// transfer or undefined.
func (d *Decoder) isHalfwordSpace(word uint32) bool {
	return word&0x0E000090 == 0x00000090
}

// decodeHalfwordTransfer decodes LDRH/STRH/LDRSB/LDRSH.
// Format: cond | 000 P U I W L | Rn | Rd | imm/0000 | 1 S H 1 | imm/Rm
func (d *Decoder) decodeHalfwordTransfer(word uint32, inst *Instruction) {
	load := word&(1<<20) != 0
	sh := (word >> 5) & 0b11

	switch {
	case sh == 0b01 && load:
		inst.Op = OpLDRH
	case sh == 0b01:
		inst.Op = OpSTRH
	case sh == 0b10 && load:
		inst.Op = OpLDRSB
	case sh == 0b11 && load:
		inst.Op = OpLDRSH
	default:
		// SH == 00 is unallocated and signed stores are ARMv5 doubleword
		// transfers; both trap on this core.
		return
	}

	inst.Format = FormatHalfwordTransfer
	inst.Load = load
	inst.PreIndex = word&(1<<24) != 0
	inst.Up = word&(1<<23) != 0
	inst.WriteBack = word&(1<<21) != 0
	inst.Rn = uint8((word >> 16) & 0xF)
	inst.Rd = uint8((word >> 12) & 0xF)

	if word&(1<<22) != 0 {
		inst.Operand = OperandImm
		inst.Imm = (word>>4)&0xF0 | word&0xF
	} else {
		inst.Operand = OperandRegImmShift
		inst.Rm = uint8(word & 0xF)
	}
}

// isMRS checks for MRS.
// Format: cond | 00010 P 00 1111 | Rd | 0000 0000 0000
func (d *Decoder) isMRS(word uint32) bool {
	return word&0x0FBF0FFF == 0x010F0000
}

func (d *Decoder) decodeMRS(word uint32, inst *Instruction) {
	inst.Op = OpMRS
	inst.Format = FormatPSRTransfer
	inst.SPSR = word&(1<<22) != 0
	inst.Rd = uint8((word >> 12) & 0xF)
}

// isMSR checks for MSR with a register or rotated immediate source.
// Format: cond | 00 I 10 P 10 | mask | 1111 | operand
func (d *Decoder) isMSR(word uint32) bool {
	return word&0x0FB0FFF0 == 0x0120F000 || word&0x0FB0F000 == 0x0320F000
}

func (d *Decoder) decodeMSR(word uint32, inst *Instruction) {
	inst.Op = OpMSR
	inst.Format = FormatPSRTransfer
	inst.SPSR = word&(1<<22) != 0
	inst.FieldMask = uint8((word >> 16) & 0xF)
	if word&(1<<25) != 0 {
		d.decodeRotatedImm(word, inst)
	} else {
		inst.Operand = OperandRegImmShift
		inst.Rm = uint8(word & 0xF)
	}
}

// decodeDataProcessing decodes the sixteen ALU operations.
// Format: cond | 00 I opcode S | Rn | Rd | operand2
func (d *Decoder) decodeDataProcessing(word uint32, inst *Instruction) {
	op := Op((word >> 21) & 0xF)
	setFlags := word&(1<<20) != 0

	// TST/TEQ/CMP/CMN without S are PSR transfers; anything else here
	// is unallocated.
	if op.IsTest() && !setFlags {
		return
	}

	inst.Op = op
	inst.Format = FormatDataProc
	inst.SetFlags = setFlags
	inst.Rn = uint8((word >> 16) & 0xF)
	inst.Rd = uint8((word >> 12) & 0xF)

	if word&(1<<25) != 0 {
		d.decodeRotatedImm(word, inst)
		return
	}
	d.decodeShiftedReg(word, inst)
}

func (d *Decoder) decodeRotatedImm(word uint32, inst *Instruction) {
	rotate := uint8((word>>8)&0xF) * 2
	inst.Operand = OperandImm
	inst.Rotate = rotate
	inst.Imm = bits.RotateLeft32(word&0xFF, -int(rotate))
}

func (d *Decoder) decodeShiftedReg(word uint32, inst *Instruction) {
	inst.Rm = uint8(word & 0xF)
	inst.Shift = ShiftType((word >> 5) & 0b11)
	if word&(1<<4) != 0 {
		inst.Operand = OperandRegRegShift
		inst.Rs = uint8((word >> 8) & 0xF)
		return
	}
	inst.Operand = OperandRegImmShift
	inst.ShiftAmount = uint8((word >> 7) & 0x1F)
}

// isUndefinedSpace checks for the architecturally undefined encoding.
// Format: cond | 011 xxxxxxxxxxxxxxxxxxxx 1 xxxx
func (d *Decoder) isUndefinedSpace(word uint32) bool {
	return word&0x0E000010 == 0x06000010
}

// decodeSingleTransfer decodes LDR/STR/LDRB/STRB.
// Format: cond | 01 I P U B W L | Rn | Rd | offset
func (d *Decoder) decodeSingleTransfer(word uint32, inst *Instruction) {
	inst.Format = FormatSingleTransfer
	inst.Load = word&(1<<20) != 0
	inst.Op = OpSTR
	if inst.Load {
		inst.Op = OpLDR
	}
	inst.PreIndex = word&(1<<24) != 0
	inst.Up = word&(1<<23) != 0
	inst.Byte = word&(1<<22) != 0
	inst.WriteBack = word&(1<<21) != 0
	inst.Rn = uint8((word >> 16) & 0xF)
	inst.Rd = uint8((word >> 12) & 0xF)

	// Unlike data processing, I set means a register offset.
	if word&(1<<25) != 0 {
		d.decodeShiftedReg(word, inst)
		return
	}
	inst.Operand = OperandImm
	inst.Imm = word & 0xFFF
}

// decodeBlockTransfer decodes LDM/STM.
// Format: cond | 100 P U S W L | Rn | register list
func (d *Decoder) decodeBlockTransfer(word uint32, inst *Instruction) {
	inst.Format = FormatBlockTransfer
	inst.Load = word&(1<<20) != 0
	inst.Op = OpSTM
	if inst.Load {
		inst.Op = OpLDM
	}
	inst.PreIndex = word&(1<<24) != 0
	inst.Up = word&(1<<23) != 0
	inst.UserBank = word&(1<<22) != 0
	inst.WriteBack = word&(1<<21) != 0
	inst.Rn = uint8((word >> 16) & 0xF)
	inst.RegList = uint16(word & 0xFFFF)
}

// decodeBranch decodes B and BL.
// Format: cond | 101 L | signed 24-bit word offset
func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	inst.Format = FormatBranch
	inst.Op = OpB
	if word&(1<<24) != 0 {
		inst.Op = OpBL
	}
	inst.Offset = signExtend(word&0xFFFFFF, 24) << 2
}

// isSoftwareInterrupt checks for SWI.
// Format: cond | 1111 | comment
func (d *Decoder) isSoftwareInterrupt(word uint32) bool {
	return word&0x0F000000 == 0x0F000000
}

func (d *Decoder) decodeSoftwareInterrupt(word uint32, inst *Instruction) {
	inst.Op = OpSWI
	inst.Format = FormatSoftwareInterrupt
	inst.Imm = word & 0xFFFFFF
}

// signExtend sign-extends the low n bits of v.
func signExtend(v uint32, n uint) int32 {
	shift := 32 - n
	return int32(v<<shift) >> shift
}
