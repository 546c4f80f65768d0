package insts

// decodeThumb maps a THUMB half-word onto the ARM instruction formats.
// Formats are numbered as in the ARM7TDMI data sheet.
func (d *Decoder) decodeThumb(half uint16) *Instruction {
	word := uint32(half)
	inst := &Instruction{
		Op:     OpUndefined,
		Format: FormatUndefined,
		Mode:   ModeThumb,
		Cond:   CondAL,
		Raw:    word,
	}

	switch word >> 13 {
	case 0b000:
		if (word>>11)&0b11 == 0b11 {
			d.decodeThumbAddSub(word, inst)
		} else {
			d.decodeThumbMoveShifted(word, inst)
		}
	case 0b001:
		d.decodeThumbImmediate(word, inst)
	case 0b010:
		switch {
		case word>>10 == 0b010000:
			d.decodeThumbALU(word, inst)
		case word>>10 == 0b010001:
			d.decodeThumbHiReg(word, inst)
		case word>>11 == 0b01001:
			d.decodeThumbPCLoad(word, inst)
		case word&(1<<9) == 0:
			d.decodeThumbRegOffset(word, inst)
		default:
			d.decodeThumbSignExtended(word, inst)
		}
	case 0b011:
		d.decodeThumbImmOffset(word, inst)
	case 0b100:
		if word&(1<<12) == 0 {
			d.decodeThumbHalfwordImm(word, inst)
		} else {
			d.decodeThumbSPRelative(word, inst)
		}
	case 0b101:
		switch {
		case word&(1<<12) == 0:
			d.decodeThumbLoadAddress(word, inst)
		case word>>8 == 0b10110000:
			d.decodeThumbAdjustSP(word, inst)
		case (word>>9)&0b11 == 0b10:
			d.decodeThumbPushPop(word, inst)
		}
	case 0b110:
		switch {
		case word&(1<<12) == 0:
			d.decodeThumbMultiple(word, inst)
		case word>>8 == 0b11011111:
			d.decodeThumbSWI(word, inst)
		case (word>>8)&0xF != 0b1110:
			d.decodeThumbCondBranch(word, inst)
		}
	case 0b111:
		switch (word >> 11) & 0b11 {
		case 0b00:
			d.decodeThumbBranch(word, inst)
		case 0b10:
			d.decodeThumbLongBranch(word, inst, FormatLongBranchPrefix)
		case 0b11:
			d.decodeThumbLongBranch(word, inst, FormatLongBranchSuffix)
		}
	}

	return inst
}

// setDataProc fills a data processing descriptor with a register operand.
func setDataProc(inst *Instruction, op Op, rd, rn, rm uint8, setFlags bool) {
	inst.Format = FormatDataProc
	inst.Op = op
	inst.Rd = rd
	inst.Rn = rn
	inst.Rm = rm
	inst.SetFlags = setFlags
	inst.Operand = OperandRegImmShift
}

// setDataProcImm fills a data processing descriptor with an immediate.
func setDataProcImm(inst *Instruction, op Op, rd, rn uint8, imm uint32, setFlags bool) {
	inst.Format = FormatDataProc
	inst.Op = op
	inst.Rd = rd
	inst.Rn = rn
	inst.Imm = imm
	inst.SetFlags = setFlags
	inst.Operand = OperandImm
}

// decodeThumbMoveShifted decodes format 1: LSL/LSR/ASR Rd, Rs, #offset5.
func (d *Decoder) decodeThumbMoveShifted(word uint32, inst *Instruction) {
	setDataProc(inst, OpMOV, uint8(word&7), 0, uint8((word>>3)&7), true)
	inst.Shift = ShiftType((word >> 11) & 0b11)
	inst.ShiftAmount = uint8((word >> 6) & 0x1F)
}

// decodeThumbAddSub decodes format 2: ADD/SUB Rd, Rs, Rn|#imm3.
func (d *Decoder) decodeThumbAddSub(word uint32, inst *Instruction) {
	op := OpADD
	if word&(1<<9) != 0 {
		op = OpSUB
	}
	rd := uint8(word & 7)
	rs := uint8((word >> 3) & 7)
	field := uint8((word >> 6) & 7)
	if word&(1<<10) != 0 {
		setDataProcImm(inst, op, rd, rs, uint32(field), true)
		return
	}
	setDataProc(inst, op, rd, rs, field, true)
}

// decodeThumbImmediate decodes format 3: MOV/CMP/ADD/SUB Rd, #imm8.
func (d *Decoder) decodeThumbImmediate(word uint32, inst *Instruction) {
	ops := [4]Op{OpMOV, OpCMP, OpADD, OpSUB}
	rd := uint8((word >> 8) & 7)
	setDataProcImm(inst, ops[(word>>11)&0b11], rd, rd, word&0xFF, true)
}

// decodeThumbALU decodes format 4: the sixteen two-register ALU ops.
func (d *Decoder) decodeThumbALU(word uint32, inst *Instruction) {
	rd := uint8(word & 7)
	rs := uint8((word >> 3) & 7)

	switch op := (word >> 6) & 0xF; op {
	case 0x2, 0x3, 0x4, 0x7: // LSL, LSR, ASR, ROR by register
		shifts := [8]ShiftType{0x2: ShiftLSL, 0x3: ShiftLSR, 0x4: ShiftASR, 0x7: ShiftROR}
		setDataProc(inst, OpMOV, rd, 0, rd, true)
		inst.Operand = OperandRegRegShift
		inst.Shift = shifts[op]
		inst.Rs = rs
	case 0x9: // NEG Rd, Rs == RSBS Rd, Rs, #0
		setDataProcImm(inst, OpRSB, rd, rs, 0, true)
	case 0xD: // MUL Rd, Rs == MULS Rd, Rd, Rs
		inst.Format = FormatMultiply
		inst.Op = OpMUL
		inst.SetFlags = true
		inst.Rd = rd
		inst.Rm = rd
		inst.Rs = rs
	default:
		ops := [16]Op{
			OpAND, OpEOR, 0, 0, 0, OpADC, OpSBC, 0,
			OpTST, 0, OpCMP, OpCMN, OpORR, 0, OpBIC, OpMVN,
		}
		setDataProc(inst, ops[op], rd, rd, rs, true)
	}
}

// decodeThumbHiReg decodes format 5: ADD/CMP/MOV on high registers and BX.
func (d *Decoder) decodeThumbHiReg(word uint32, inst *Instruction) {
	rd := uint8(word&7) | uint8((word>>4)&8)
	rs := uint8((word>>3)&7) | uint8((word>>3)&8)

	switch (word >> 8) & 0b11 {
	case 0b00:
		setDataProc(inst, OpADD, rd, rd, rs, false)
	case 0b01:
		setDataProc(inst, OpCMP, rd, rd, rs, true)
	case 0b10:
		setDataProc(inst, OpMOV, rd, 0, rs, false)
	case 0b11:
		inst.Format = FormatBranchExchange
		inst.Op = OpBX
		inst.Rm = rs
	}
}

// decodeThumbPCLoad decodes format 6: LDR Rd, [PC, #imm8*4].
func (d *Decoder) decodeThumbPCLoad(word uint32, inst *Instruction) {
	setSingleTransfer(inst, true, false, uint8((word>>8)&7), 15)
	inst.Imm = (word & 0xFF) << 2
	inst.AlignPC = true
}

// setSingleTransfer fills a pre-indexed, up-counting LDR/STR descriptor
// with an immediate offset.
func setSingleTransfer(inst *Instruction, load, byteWide bool, rd, rn uint8) {
	inst.Format = FormatSingleTransfer
	inst.Op = OpSTR
	if load {
		inst.Op = OpLDR
	}
	inst.Load = load
	inst.Byte = byteWide
	inst.PreIndex = true
	inst.Up = true
	inst.Rd = rd
	inst.Rn = rn
	inst.Operand = OperandImm
}

// setHalfwordTransfer fills a pre-indexed, up-counting halfword descriptor.
func setHalfwordTransfer(inst *Instruction, op Op, rd, rn uint8) {
	inst.Format = FormatHalfwordTransfer
	inst.Op = op
	inst.Load = op != OpSTRH
	inst.PreIndex = true
	inst.Up = true
	inst.Rd = rd
	inst.Rn = rn
	inst.Operand = OperandImm
}

// decodeThumbRegOffset decodes format 7: LDR/STR/LDRB/STRB Rd, [Rb, Ro].
func (d *Decoder) decodeThumbRegOffset(word uint32, inst *Instruction) {
	load := word&(1<<11) != 0
	byteWide := word&(1<<10) != 0
	setSingleTransfer(inst, load, byteWide, uint8(word&7), uint8((word>>3)&7))
	inst.Operand = OperandRegImmShift
	inst.Rm = uint8((word >> 6) & 7)
}

// decodeThumbSignExtended decodes format 8: STRH/LDSB/LDRH/LDSH Rd, [Rb, Ro].
func (d *Decoder) decodeThumbSignExtended(word uint32, inst *Instruction) {
	ops := [4]Op{OpSTRH, OpLDRSB, OpLDRH, OpLDRSH}
	setHalfwordTransfer(inst, ops[(word>>10)&0b11], uint8(word&7), uint8((word>>3)&7))
	inst.Operand = OperandRegImmShift
	inst.Rm = uint8((word >> 6) & 7)
}

// decodeThumbImmOffset decodes format 9: LDR/STR/LDRB/STRB Rd, [Rb, #imm].
func (d *Decoder) decodeThumbImmOffset(word uint32, inst *Instruction) {
	load := word&(1<<11) != 0
	byteWide := word&(1<<12) != 0
	setSingleTransfer(inst, load, byteWide, uint8(word&7), uint8((word>>3)&7))
	inst.Imm = (word >> 6) & 0x1F
	if !byteWide {
		inst.Imm <<= 2
	}
}

// decodeThumbHalfwordImm decodes format 10: LDRH/STRH Rd, [Rb, #imm5*2].
func (d *Decoder) decodeThumbHalfwordImm(word uint32, inst *Instruction) {
	op := OpSTRH
	if word&(1<<11) != 0 {
		op = OpLDRH
	}
	setHalfwordTransfer(inst, op, uint8(word&7), uint8((word>>3)&7))
	inst.Imm = ((word >> 6) & 0x1F) << 1
}

// decodeThumbSPRelative decodes format 11: LDR/STR Rd, [SP, #imm8*4].
func (d *Decoder) decodeThumbSPRelative(word uint32, inst *Instruction) {
	setSingleTransfer(inst, word&(1<<11) != 0, false, uint8((word>>8)&7), 13)
	inst.Imm = (word & 0xFF) << 2
}

// decodeThumbLoadAddress decodes format 12: ADD Rd, PC|SP, #imm8*4.
func (d *Decoder) decodeThumbLoadAddress(word uint32, inst *Instruction) {
	rn := uint8(15)
	if word&(1<<11) != 0 {
		rn = 13
	}
	setDataProcImm(inst, OpADD, uint8((word>>8)&7), rn, (word&0xFF)<<2, false)
	inst.AlignPC = rn == 15
}

// decodeThumbAdjustSP decodes format 13: ADD SP, #+/-imm7*4.
func (d *Decoder) decodeThumbAdjustSP(word uint32, inst *Instruction) {
	op := OpADD
	if word&(1<<7) != 0 {
		op = OpSUB
	}
	setDataProcImm(inst, op, 13, 13, (word&0x7F)<<2, false)
}

// decodeThumbPushPop decodes format 14: PUSH {rlist, LR} / POP {rlist, PC}.
func (d *Decoder) decodeThumbPushPop(word uint32, inst *Instruction) {
	load := word&(1<<11) != 0
	inst.Format = FormatBlockTransfer
	inst.Load = load
	inst.Rn = 13
	inst.WriteBack = true
	inst.RegList = uint16(word & 0xFF)

	if load {
		inst.Op = OpLDM
		inst.Up = true
		if word&(1<<8) != 0 {
			inst.RegList |= 1 << 15
		}
		return
	}
	inst.Op = OpSTM
	inst.PreIndex = true
	if word&(1<<8) != 0 {
		inst.RegList |= 1 << 14
	}
}

// decodeThumbMultiple decodes format 15: LDMIA/STMIA Rb!, {rlist}.
func (d *Decoder) decodeThumbMultiple(word uint32, inst *Instruction) {
	inst.Format = FormatBlockTransfer
	inst.Load = word&(1<<11) != 0
	inst.Op = OpSTM
	if inst.Load {
		inst.Op = OpLDM
	}
	inst.Up = true
	inst.WriteBack = true
	inst.Rn = uint8((word >> 8) & 7)
	inst.RegList = uint16(word & 0xFF)
}

// decodeThumbCondBranch decodes format 16: B<cond> #soffset8*2.
func (d *Decoder) decodeThumbCondBranch(word uint32, inst *Instruction) {
	inst.Format = FormatBranch
	inst.Op = OpB
	inst.Cond = Cond((word >> 8) & 0xF)
	inst.Offset = signExtend(word&0xFF, 8) << 1
}

// decodeThumbSWI decodes format 17: SWI #value8.
func (d *Decoder) decodeThumbSWI(word uint32, inst *Instruction) {
	inst.Format = FormatSoftwareInterrupt
	inst.Op = OpSWI
	inst.Imm = word & 0xFF
}

// decodeThumbBranch decodes format 18: B #offset11*2.
func (d *Decoder) decodeThumbBranch(word uint32, inst *Instruction) {
	inst.Format = FormatBranch
	inst.Op = OpB
	inst.Offset = signExtend(word&0x7FF, 11) << 1
}

// decodeThumbLongBranch decodes format 19, one half at a time. The
// prefix carries offset bits [22:12], the suffix bits [11:1].
func (d *Decoder) decodeThumbLongBranch(word uint32, inst *Instruction, format Format) {
	inst.Format = format
	inst.Op = OpBL
	if format == FormatLongBranchPrefix {
		inst.Offset = signExtend(word&0x7FF, 11) << 12
		return
	}
	inst.Offset = int32(word&0x7FF) << 1
}
