// Package insts provides ARM7TDMI instruction definitions and decoding.
//
// This package implements decoding of ARM (32-bit) and THUMB (16-bit)
// machine code into structured instruction representations. Decoding is
// total: every bit pattern produces an Instruction, and patterns outside
// the ARMv4T encoding tables produce FormatUndefined. Supported classes:
//   - Data processing and PSR transfer (MRS, MSR)
//   - Multiply and multiply long
//   - Single data swap, single data transfer, halfword/signed transfer
//   - Block data transfer (LDM, STM)
//   - Branch, branch with link, branch and exchange, software interrupt
//   - THUMB formats 1-19, mapped onto the same formats as ARM
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0xE2811003, insts.ModeARM) // ADD R1, R1, #3
//	fmt.Printf("Op: %v, Rd: %d, Rn: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rn, inst.Imm)
package insts
