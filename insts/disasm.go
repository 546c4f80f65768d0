package insts

import (
	"fmt"
	"strings"
)

// Disasm renders the instruction in conventional assembler syntax. addr
// is the address the instruction was fetched from and is used to resolve
// branch targets.
func (i *Instruction) Disasm(addr uint32) string {
	cond := i.Cond.String()
	if i.Mode == ModeThumb && i.Format != FormatBranch {
		cond = ""
	}

	switch i.Format {
	case FormatDataProc:
		return i.disasmDataProc(cond)
	case FormatPSRTransfer:
		psr := "cpsr"
		if i.SPSR {
			psr = "spsr"
		}
		if i.Op == OpMRS {
			return fmt.Sprintf("mrs%s r%d, %s", cond, i.Rd, psr)
		}
		return fmt.Sprintf("msr%s %s_%s, %s", cond, psr, fieldSuffix(i.FieldMask), i.operand2())
	case FormatMultiply:
		if i.Op == OpMLA {
			return fmt.Sprintf("mla%s%s r%d, r%d, r%d, r%d", cond, i.sSuffix(), i.Rd, i.Rm, i.Rs, i.Rn)
		}
		return fmt.Sprintf("mul%s%s r%d, r%d, r%d", cond, i.sSuffix(), i.Rd, i.Rm, i.Rs)
	case FormatMultiplyLong:
		return fmt.Sprintf("%s%s%s r%d, r%d, r%d, r%d", i.Op, cond, i.sSuffix(), i.RdLo, i.RdHi, i.Rm, i.Rs)
	case FormatSwap:
		b := ""
		if i.Byte {
			b = "b"
		}
		return fmt.Sprintf("swp%s%s r%d, r%d, [r%d]", cond, b, i.Rd, i.Rm, i.Rn)
	case FormatBranchExchange:
		return fmt.Sprintf("bx%s r%d", cond, i.Rm)
	case FormatSingleTransfer, FormatHalfwordTransfer:
		return i.disasmTransfer(cond)
	case FormatBlockTransfer:
		return i.disasmBlock(cond)
	case FormatBranch:
		target := addr + 2*i.Mode.Width() + uint32(i.Offset)
		return fmt.Sprintf("%s%s 0x%08x", i.Op, cond, target)
	case FormatSoftwareInterrupt:
		return fmt.Sprintf("swi%s #0x%x", cond, i.Imm)
	case FormatLongBranchPrefix:
		return fmt.Sprintf("bl.hi #0x%x", uint32(i.Offset))
	case FormatLongBranchSuffix:
		return fmt.Sprintf("bl.lo #0x%x", uint32(i.Offset))
	}

	if i.Mode == ModeThumb {
		return fmt.Sprintf("undefined 0x%04x", i.Raw)
	}
	return fmt.Sprintf("undefined 0x%08x", i.Raw)
}

func (i *Instruction) sSuffix() string {
	if i.SetFlags && i.Mode == ModeARM {
		return "s"
	}
	return ""
}

func (i *Instruction) disasmDataProc(cond string) string {
	op2 := i.operand2()
	switch {
	case i.Op == OpMOV || i.Op == OpMVN:
		return fmt.Sprintf("%s%s%s r%d, %s", i.Op, cond, i.sSuffix(), i.Rd, op2)
	case i.Op.IsTest():
		return fmt.Sprintf("%s%s r%d, %s", i.Op, cond, i.Rn, op2)
	}
	return fmt.Sprintf("%s%s%s r%d, r%d, %s", i.Op, cond, i.sSuffix(), i.Rd, i.Rn, op2)
}

func (i *Instruction) operand2() string {
	switch i.Operand {
	case OperandImm:
		return fmt.Sprintf("#0x%x", i.Imm)
	case OperandRegRegShift:
		return fmt.Sprintf("r%d, %s r%d", i.Rm, i.Shift, i.Rs)
	}
	if i.ShiftAmount == 0 {
		switch i.Shift {
		case ShiftLSL:
			return fmt.Sprintf("r%d", i.Rm)
		case ShiftROR:
			return fmt.Sprintf("r%d, rrx", i.Rm)
		default:
			return fmt.Sprintf("r%d, %s #32", i.Rm, i.Shift)
		}
	}
	return fmt.Sprintf("r%d, %s #%d", i.Rm, i.Shift, i.ShiftAmount)
}

func (i *Instruction) disasmTransfer(cond string) string {
	mnemonic := i.Op.String()
	if i.Format == FormatSingleTransfer && i.Byte {
		mnemonic += "b"
	}

	sign := ""
	if !i.Up {
		sign = "-"
	}

	var offset string
	switch {
	case i.Operand == OperandImm && i.Imm == 0:
		offset = ""
	case i.Operand == OperandImm:
		offset = fmt.Sprintf("#%s0x%x", sign, i.Imm)
	default:
		offset = sign + i.operand2()
	}

	switch {
	case offset == "":
		return fmt.Sprintf("%s%s r%d, [r%d]", mnemonic, cond, i.Rd, i.Rn)
	case !i.PreIndex:
		return fmt.Sprintf("%s%s r%d, [r%d], %s", mnemonic, cond, i.Rd, i.Rn, offset)
	case i.WriteBack:
		return fmt.Sprintf("%s%s r%d, [r%d, %s]!", mnemonic, cond, i.Rd, i.Rn, offset)
	}
	return fmt.Sprintf("%s%s r%d, [r%d, %s]", mnemonic, cond, i.Rd, i.Rn, offset)
}

func (i *Instruction) disasmBlock(cond string) string {
	mode := map[[2]bool]string{
		{false, true}: "ia", {true, true}: "ib",
		{false, false}: "da", {true, false}: "db",
	}[[2]bool{i.PreIndex, i.Up}]

	wb := ""
	if i.WriteBack {
		wb = "!"
	}
	user := ""
	if i.UserBank {
		user = "^"
	}
	return fmt.Sprintf("%s%s%s r%d%s, {%s}%s", i.Op, mode, cond, i.Rn, wb, regList(i.RegList), user)
}

func regList(list uint16) string {
	var regs []string
	for r := 0; r < 16; r++ {
		if list&(1<<r) != 0 {
			regs = append(regs, fmt.Sprintf("r%d", r))
		}
	}
	return strings.Join(regs, ", ")
}

func fieldSuffix(mask uint8) string {
	var b strings.Builder
	for bit, name := range "cxsf" {
		if mask&(1<<bit) != 0 {
			b.WriteRune(name)
		}
	}
	return b.String()
}
