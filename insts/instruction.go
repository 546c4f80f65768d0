package insts

// Mode is the instruction set state the processor fetches in.
type Mode uint8

// Instruction set states.
const (
	ModeARM Mode = iota
	ModeThumb
)

// Width returns the instruction width in bytes.
func (m Mode) Width() uint32 {
	if m == ModeThumb {
		return 2
	}
	return 4
}

func (m Mode) String() string {
	if m == ModeThumb {
		return "THUMB"
	}
	return "ARM"
}

// Op represents an ARM7TDMI operation.
type Op uint8

// Data processing opcodes keep the values of the ARM opcode field.
const (
	OpAND Op = iota
	OpEOR
	OpSUB
	OpRSB
	OpADD
	OpADC
	OpSBC
	OpRSC
	OpTST
	OpTEQ
	OpCMP
	OpCMN
	OpORR
	OpMOV
	OpBIC
	OpMVN
	OpMRS
	OpMSR
	OpMUL
	OpMLA
	OpUMULL
	OpUMLAL
	OpSMULL
	OpSMLAL
	OpSWP
	OpBX
	OpLDR
	OpSTR
	OpLDRH
	OpSTRH
	OpLDRSB
	OpLDRSH
	OpLDM
	OpSTM
	OpB
	OpBL
	OpSWI
	OpUndefined
)

var opNames = [...]string{
	"and", "eor", "sub", "rsb", "add", "adc", "sbc", "rsc",
	"tst", "teq", "cmp", "cmn", "orr", "mov", "bic", "mvn",
	"mrs", "msr", "mul", "mla", "umull", "umlal", "smull", "smlal",
	"swp", "bx", "ldr", "str", "ldrh", "strh", "ldrsb", "ldrsh",
	"ldm", "stm", "b", "bl", "swi", "undefined",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// IsTest reports whether a data processing op only updates flags.
func (o Op) IsTest() bool {
	return o >= OpTST && o <= OpCMN
}

// IsLogical reports whether a data processing op takes its carry from the
// barrel shifter rather than from the ALU.
func (o Op) IsLogical() bool {
	switch o {
	case OpAND, OpEOR, OpTST, OpTEQ, OpORR, OpMOV, OpBIC, OpMVN:
		return true
	}
	return false
}

// Format represents an instruction encoding class.
type Format uint8

// Instruction formats.
const (
	FormatUndefined         Format = iota
	FormatDataProc                 // Data processing
	FormatPSRTransfer              // MRS / MSR
	FormatMultiply                 // MUL / MLA
	FormatMultiplyLong             // UMULL / UMLAL / SMULL / SMLAL
	FormatSwap                     // SWP / SWPB
	FormatBranchExchange           // BX
	FormatHalfwordTransfer         // LDRH / STRH / LDRSB / LDRSH
	FormatSingleTransfer           // LDR / STR / LDRB / STRB
	FormatBlockTransfer            // LDM / STM
	FormatBranch                   // B / BL
	FormatSoftwareInterrupt        // SWI
	FormatLongBranchPrefix         // THUMB BL, high half
	FormatLongBranchSuffix         // THUMB BL, low half
)

var formatNames = [...]string{
	"undefined", "data-processing", "psr-transfer", "multiply",
	"multiply-long", "swap", "branch-exchange", "halfword-transfer",
	"single-transfer", "block-transfer", "branch", "software-interrupt",
	"long-branch-prefix", "long-branch-suffix",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// Cond represents an ARM condition code.
type Cond uint8

// ARM condition codes.
const (
	CondEQ Cond = 0b0000 // Equal (Z == 1)
	CondNE Cond = 0b0001 // Not Equal (Z == 0)
	CondCS Cond = 0b0010 // Carry Set / Unsigned higher or same (C == 1)
	CondCC Cond = 0b0011 // Carry Clear / Unsigned lower (C == 0)
	CondMI Cond = 0b0100 // Minus / Negative (N == 1)
	CondPL Cond = 0b0101 // Plus / Positive or zero (N == 0)
	CondVS Cond = 0b0110 // Overflow (V == 1)
	CondVC Cond = 0b0111 // No overflow (V == 0)
	CondHI Cond = 0b1000 // Unsigned higher (C == 1 && Z == 0)
	CondLS Cond = 0b1001 // Unsigned lower or same (C == 0 || Z == 1)
	CondGE Cond = 0b1010 // Signed greater than or equal (N == V)
	CondLT Cond = 0b1011 // Signed less than (N != V)
	CondGT Cond = 0b1100 // Signed greater than (Z == 0 && N == V)
	CondLE Cond = 0b1101 // Signed less than or equal (Z == 1 || N != V)
	CondAL Cond = 0b1110 // Always (unconditional)
	CondNV Cond = 0b1111 // Never on ARMv4
)

var condNames = [...]string{
	"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
	"hi", "ls", "ge", "lt", "gt", "le", "", "nv",
}

func (c Cond) String() string {
	return condNames[c&0xF]
}

// ShiftType represents a barrel shifter operation.
type ShiftType uint8

// Shift types.
const (
	ShiftLSL ShiftType = 0b00 // Logical shift left
	ShiftLSR ShiftType = 0b01 // Logical shift right
	ShiftASR ShiftType = 0b10 // Arithmetic shift right
	ShiftROR ShiftType = 0b11 // Rotate right (RRX when the immediate amount is 0)
)

var shiftNames = [...]string{"lsl", "lsr", "asr", "ror"}

func (s ShiftType) String() string {
	return shiftNames[s&3]
}

// OperandKind selects how the flexible second operand is formed.
type OperandKind uint8

// Operand kinds.
const (
	OperandImm         OperandKind = iota // Imm (already rotated for data processing)
	OperandRegImmShift                    // Rm shifted by ShiftAmount
	OperandRegRegShift                    // Rm shifted by the bottom byte of Rs
)

// Instruction represents a decoded ARM or THUMB instruction.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Encoding class
	Mode   Mode   // Instruction set the word was decoded from
	Cond   Cond   // Condition predicate
	Raw    uint32 // Raw instruction word (low 16 bits for THUMB)

	// Common fields
	SetFlags bool  // true if the instruction updates the condition flags
	Rd       uint8 // Destination register
	Rn       uint8 // First operand / base register
	Rm       uint8 // Second operand / offset register
	Rs       uint8 // Shift amount or multiplier register
	RdHi     uint8 // Multiply long high destination
	RdLo     uint8 // Multiply long low destination

	// Flexible operand
	Operand     OperandKind
	Imm         uint32    // Immediate value (data processing, offsets, SWI comment)
	Rotate      uint8     // Rotation applied to a data processing immediate
	Shift       ShiftType // Shift type for register operands
	ShiftAmount uint8     // Immediate shift amount

	// Transfers
	Load      bool   // L bit
	PreIndex  bool   // P bit
	Up        bool   // U bit
	WriteBack bool   // W bit
	Byte      bool   // B bit
	UserBank  bool   // S bit of LDM/STM
	RegList   uint16 // Block transfer register list
	SPSR      bool   // PSR transfer targets SPSR instead of CPSR
	FieldMask uint8  // MSR field mask (c, x, s, f)
	AlignPC   bool   // PC operand is word-aligned before use (THUMB PC-relative)

	// Branch
	Offset int32 // Signed branch displacement in bytes
}

// IsUndefined reports whether the instruction traps as undefined.
func (i *Instruction) IsUndefined() bool {
	return i.Format == FormatUndefined
}
