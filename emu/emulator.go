// Package emu provides functional ARM7TDMI emulation against a GBA memory
// bus.
package emu

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/gbadbg/insts"
)

// Exception vectors.
const (
	VectorReset     uint32 = 0x00
	VectorUndefined uint32 = 0x04
	VectorSWI       uint32 = 0x08
)

// DefaultEntryPoint is where cartridge code starts.
const DefaultEntryPoint uint32 = ROMBase

// HookPosAfterStep marks the end of a step. The hook item is the
// StepResult.
var HookPosAfterStep = &sim.HookPos{Name: "AfterStep"}

// StepStatus classifies the outcome of a step.
type StepStatus uint8

// Step outcomes.
const (
	StepExecuted  StepStatus = iota // instruction executed
	StepSkipped                     // condition failed, only PC advanced
	StepUndefined                   // undefined instruction trapped to its vector
	StepFaulted                     // memory fault, registers restored
	StepLimited                     // instruction limit reached, nothing fetched
)

func (s StepStatus) String() string {
	switch s {
	case StepExecuted:
		return "executed"
	case StepSkipped:
		return "skipped"
	case StepUndefined:
		return "undefined"
	case StepFaulted:
		return "faulted"
	case StepLimited:
		return "limited"
	}
	return "unknown"
}

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	Status StepStatus

	// Addr is the address the instruction was fetched from.
	Addr uint32

	// Inst is the decoded instruction, nil if the fetch failed.
	Inst *insts.Instruction

	// Err is set for StepFaulted and StepLimited.
	Err error
}

// InstructionCache memoizes decoded instructions by address.
type InstructionCache interface {
	Lookup(addr, word uint32, mode insts.Mode) *insts.Instruction
}

// Emulator executes ARM7TDMI instructions functionally.
type Emulator struct {
	*sim.HookableBase

	regFile    *RegFile
	memory     Memory
	decoder    *insts.Decoder
	cache      InstructionCache
	swiHandler SWIHandler

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	stderr io.Writer

	// Execution state
	entry            uint32
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithEntryPoint sets the address of the first instruction.
func WithEntryPoint(addr uint32) EmulatorOption {
	return func(e *Emulator) {
		e.entry = addr
	}
}

// WithDecodeCache routes decoding through an instruction cache.
func WithDecodeCache(c InstructionCache) EmulatorOption {
	return func(e *Emulator) {
		e.cache = c
	}
}

// WithSWIHandler services software interrupts in Go instead of through
// the SWI vector.
func WithSWIHandler(handler SWIHandler) EmulatorOption {
	return func(e *Emulator) {
		e.swiHandler = handler
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stderr = w
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new ARM7TDMI emulator over memory.
func NewEmulator(memory Memory, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		HookableBase: sim.NewHookableBase(),
		memory:       memory,
		decoder:      insts.NewDecoder(),
		stderr:       os.Stderr,
		entry:        DefaultEntryPoint,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.regFile = NewRegFile(e.entry)

	// Create execution units
	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
	e.branchUnit = NewBranchUnit(e.regFile)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the memory the emulator executes from.
func (e *Emulator) Memory() Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// EntryPoint returns the address execution starts from after a reset.
func (e *Emulator) EntryPoint() uint32 {
	return e.entry
}

// Reset puts the processor back in its reset state. Memory is left alone.
func (e *Emulator) Reset() {
	e.regFile.Reset(e.entry)
	e.instructionCount = 0
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	rf := e.regFile

	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Status: StepLimited, Addr: rf.PC(), Err: ErrInstructionLimit}
	}

	saved := *rf
	addr := rf.PC()
	mode := rf.InstructionSet()

	// 1. Fetch
	word, err := e.memory.Read(addr, Width(mode.Width()))
	if err != nil {
		return e.fault(&saved, StepResult{Addr: addr}, fmt.Errorf("fetch at 0x%08X: %w", addr, err))
	}

	// 2. Advance PC; R15 reads as addr + 2 widths from here on.
	rf.R[15] = addr + mode.Width()

	// 3. Decode
	inst := e.decode(addr, word, mode)
	result := StepResult{Addr: addr, Inst: inst}

	// 4. Evaluate the condition, then execute
	switch {
	case !e.branchUnit.CheckCondition(inst.Cond):
		result.Status = StepSkipped
	case inst.IsUndefined():
		e.enterException(ModeUND, VectorUndefined)
		result.Status = StepUndefined
	default:
		if err := e.execute(inst); err != nil {
			return e.fault(&saved, result, fmt.Errorf("%s at 0x%08X: %w", inst.Op, addr, err))
		}
		result.Status = StepExecuted
	}

	e.instructionCount++
	e.afterStep(result)
	return result
}

// Run executes instructions until a fault or the instruction limit stops
// it and returns the final step result. Without a limit a program that
// never faults runs forever.
func (e *Emulator) Run() StepResult {
	for {
		result := e.Step()
		switch result.Status {
		case StepFaulted:
			_, _ = fmt.Fprintf(e.stderr, "Emulation error: %v\n", result.Err)
			return result
		case StepLimited:
			return result
		}
	}
}

func (e *Emulator) decode(addr, word uint32, mode insts.Mode) *insts.Instruction {
	if e.cache != nil {
		return e.cache.Lookup(addr, word, mode)
	}
	return e.decoder.Decode(word, mode)
}

// fault restores the registers to their state before the instruction so
// that PC points at the faulting instruction.
func (e *Emulator) fault(saved *RegFile, result StepResult, err error) StepResult {
	*e.regFile = *saved
	result.Status = StepFaulted
	result.Err = err
	e.afterStep(result)
	return result
}

func (e *Emulator) afterStep(result StepResult) {
	if e.NumHooks() > 0 {
		e.InvokeHook(sim.HookCtx{Domain: e, Pos: HookPosAfterStep, Item: result})
	}
}

// enterException switches to mode and jumps to vector in ARM state with
// IRQs disabled. LR holds the address of the next instruction.
func (e *Emulator) enterException(mode ProcessorMode, vector uint32) {
	rf := e.regFile
	cpsr := rf.CPSR()
	next := rf.PC()

	rf.SetMode(mode)
	rf.SetSPSR(cpsr)
	rf.R[14] = next
	rf.Thumb = false
	rf.IRQDisabled = true
	rf.SetPC(vector)
}

// execute dispatches and executes a decoded instruction.
func (e *Emulator) execute(inst *insts.Instruction) error {
	switch inst.Format {
	case insts.FormatDataProc:
		e.alu.DataProc(inst)
	case insts.FormatPSRTransfer:
		if inst.Op == insts.OpMRS {
			e.alu.MRS(inst)
		} else {
			e.alu.MSR(inst)
		}
	case insts.FormatMultiply:
		e.alu.Multiply(inst)
	case insts.FormatMultiplyLong:
		e.alu.MultiplyLong(inst)
	case insts.FormatSwap:
		return e.lsu.Swap(inst)
	case insts.FormatBranchExchange:
		e.branchUnit.BX(inst.Rm)
	case insts.FormatHalfwordTransfer:
		return e.lsu.HalfwordTransfer(inst)
	case insts.FormatSingleTransfer:
		return e.lsu.SingleTransfer(inst)
	case insts.FormatBlockTransfer:
		return e.lsu.BlockTransfer(inst)
	case insts.FormatBranch:
		if inst.Op == insts.OpBL {
			e.branchUnit.BL(inst.Offset)
		} else {
			e.branchUnit.B(inst.Offset)
		}
	case insts.FormatLongBranchPrefix:
		e.branchUnit.LongBranchPrefix(inst.Offset)
	case insts.FormatLongBranchSuffix:
		e.branchUnit.LongBranchSuffix(inst.Offset)
	case insts.FormatSoftwareInterrupt:
		return e.executeSWI(inst)
	default:
		return fmt.Errorf("unimplemented format %s", inst.Format)
	}
	return nil
}

// executeSWI hands the call to the SWI handler, if any, and otherwise
// takes the SWI exception.
func (e *Emulator) executeSWI(inst *insts.Instruction) error {
	if e.swiHandler != nil {
		fn := inst.Imm & 0xFF
		if inst.Mode == insts.ModeARM {
			fn = (inst.Imm >> 16) & 0xFF
		}
		handled, err := e.swiHandler.HandleSWI(fn, e.regFile, e.memory)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}

	e.enterException(ModeSVC, VectorSWI)
	return nil
}

// Snapshot is an immutable copy of the processor state.
type Snapshot struct {
	// R holds the visible registers. R[15] is the next fetch address.
	R            [16]uint32
	CPSR         uint32
	SPSR         uint32
	Mode         ProcessorMode
	Thumb        bool
	Instructions uint64
}

// State returns a snapshot of the processor state.
func (e *Emulator) State() Snapshot {
	rf := e.regFile
	return Snapshot{
		R:            rf.R,
		CPSR:         rf.CPSR(),
		SPSR:         rf.SPSR(),
		Mode:         rf.Mode(),
		Thumb:        rf.Thumb,
		Instructions: e.instructionCount,
	}
}

// PC returns the next fetch address.
func (s Snapshot) PC() uint32 {
	return s.R[15]
}

// Flags renders the condition flags, upper case when set.
func (s Snapshot) Flags() string {
	out := []byte("nzcv")
	for i := range out {
		if s.CPSR&(1<<(31-i)) != 0 {
			out[i] -= 'a' - 'A'
		}
	}
	return string(out)
}

func (s Snapshot) String() string {
	var b strings.Builder
	for i, v := range s.R {
		fmt.Fprintf(&b, "r%-2d %08x", i, v)
		if i%4 == 3 {
			b.WriteByte('\n')
		} else {
			b.WriteString("  ")
		}
	}

	state := "ARM"
	if s.Thumb {
		state = "THUMB"
	}
	fmt.Fprintf(&b, "cpsr %08x [%s] %s %s", s.CPSR, s.Flags(), s.Mode, state)
	if s.SPSR != s.CPSR {
		fmt.Fprintf(&b, "  spsr %08x", s.SPSR)
	}
	fmt.Fprintf(&b, "  steps %d", s.Instructions)
	return b.String()
}
