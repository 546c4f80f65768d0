package emu

import "math"

// GBA BIOS function numbers serviced by HLEBIOS.
const (
	SWIDiv    uint32 = 0x06 // signed r0 / r1
	SWIDivArm uint32 = 0x07 // signed r1 / r0
	SWISqrt   uint32 = 0x08 // unsigned integer square root of r0
	SWICpuSet uint32 = 0x0B // memory copy or fill
)

// SWIHandler services software interrupts in place of a BIOS image.
type SWIHandler interface {
	// HandleSWI services BIOS function fn. It reports false when fn is
	// not handled, in which case the CPU takes the SWI exception.
	HandleSWI(fn uint32, regFile *RegFile, memory Memory) (bool, error)
}

// HLEBIOS emulates a handful of GBA BIOS calls at a high level. Results
// follow the BIOS register conventions.
type HLEBIOS struct{}

// NewHLEBIOS creates a high-level BIOS call handler.
func NewHLEBIOS() *HLEBIOS {
	return &HLEBIOS{}
}

// HandleSWI services the BIOS call fn.
func (h *HLEBIOS) HandleSWI(fn uint32, regFile *RegFile, memory Memory) (bool, error) {
	switch fn {
	case SWIDiv:
		return h.div(regFile, regFile.R[0], regFile.R[1]), nil
	case SWIDivArm:
		return h.div(regFile, regFile.R[1], regFile.R[0]), nil
	case SWISqrt:
		regFile.R[0] = uint32(math.Sqrt(float64(regFile.R[0])))
		return true, nil
	case SWICpuSet:
		return true, h.cpuSet(regFile, memory)
	}
	return false, nil
}

// div handles Div and DivArm: r0 = quotient, r1 = remainder,
// r3 = |quotient|. Division by zero hangs the real BIOS, so it is left to
// the exception vector.
func (h *HLEBIOS) div(regFile *RegFile, num, den uint32) bool {
	n, d := int32(num), int32(den)
	if d == 0 {
		return false
	}

	var q, r int32
	if n == math.MinInt32 && d == -1 {
		q, r = n, 0
	} else {
		q, r = n/d, n%d
	}

	abs := q
	if abs < 0 {
		abs = -abs
	}
	regFile.R[0] = uint32(q)
	regFile.R[1] = uint32(r)
	regFile.R[3] = uint32(abs)
	return true
}

// cpuSet handles CpuSet: r0 = source, r1 = destination, r2 = control with
// the unit count in bits 0-20, fill mode in bit 24 and 32-bit units in
// bit 26.
func (h *HLEBIOS) cpuSet(regFile *RegFile, memory Memory) error {
	src, dst, control := regFile.R[0], regFile.R[1], regFile.R[2]
	count := control & 0x1FFFFF
	fill := control&(1<<24) != 0

	width := WidthHalf
	if control&(1<<26) != 0 {
		width = WidthWord
	}
	step := uint32(width)

	var value uint32
	for i := uint32(0); i < count; i++ {
		if i == 0 || !fill {
			v, err := memory.Read(src, width)
			if err != nil {
				return err
			}
			value = v
			src += step
		}
		if err := memory.Write(dst, width, value); err != nil {
			return err
		}
		dst += step
	}
	return nil
}
