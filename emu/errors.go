package emu

import (
	"errors"
	"fmt"
)

// ErrInstructionLimit is returned once the configured instruction limit
// has been reached.
var ErrInstructionLimit = errors.New("max instructions reached")

// Width is the size of a bus access in bytes.
type Width uint8

// Access widths.
const (
	WidthByte Width = 1
	WidthHalf Width = 2
	WidthWord Width = 4
)

func (w Width) String() string {
	switch w {
	case WidthByte:
		return "byte"
	case WidthHalf:
		return "half-word"
	case WidthWord:
		return "word"
	}
	return fmt.Sprintf("width(%d)", uint8(w))
}

func (w Width) valid() bool {
	return w == WidthByte || w == WidthHalf || w == WidthWord
}

// AccessFault reports an access to an unmapped address or a write to a
// read-only region.
type AccessFault struct {
	Addr   uint32
	Width  Width
	Write  bool
	Region string // empty when no region maps Addr
	Reason string
}

func (f *AccessFault) Error() string {
	kind := "read"
	if f.Write {
		kind = "write"
	}
	if f.Region == "" {
		return fmt.Sprintf("access fault: %s %s at 0x%08X: %s", kind, f.Width, f.Addr, f.Reason)
	}
	return fmt.Sprintf("access fault: %s %s at 0x%08X (%s): %s", kind, f.Width, f.Addr, f.Region, f.Reason)
}

// AlignmentFault reports a misaligned half-word or word access on a bus
// built with WithStrictAlignment.
type AlignmentFault struct {
	Addr  uint32
	Width Width
	Write bool
}

func (f *AlignmentFault) Error() string {
	kind := "read"
	if f.Write {
		kind = "write"
	}
	return fmt.Sprintf("alignment fault: %s %s at 0x%08X", kind, f.Width, f.Addr)
}
