package emu

import (
	"fmt"
	"strings"
)

// I/O register addresses.
const (
	RegDISPCNT  uint32 = 0x04000000
	RegDISPSTAT uint32 = 0x04000004
	RegVCOUNT   uint32 = 0x04000006
	RegBG0CNT   uint32 = 0x04000008
	RegBG1CNT   uint32 = 0x0400000A
	RegBG2CNT   uint32 = 0x0400000C
	RegBG3CNT   uint32 = 0x0400000E
	RegKEYINPUT uint32 = 0x04000130
	RegIE       uint32 = 0x04000200
	RegIF       uint32 = 0x04000202
	RegIME      uint32 = 0x04000208
)

var ioRegisterNames = map[uint32]string{
	RegDISPCNT:  "DISPCNT",
	RegDISPSTAT: "DISPSTAT",
	RegVCOUNT:   "VCOUNT",
	RegBG0CNT:   "BG0CNT",
	RegBG1CNT:   "BG1CNT",
	RegBG2CNT:   "BG2CNT",
	RegBG3CNT:   "BG3CNT",
	RegKEYINPUT: "KEYINPUT",
	RegIE:       "IE",
	RegIF:       "IF",
	RegIME:      "IME",
}

// IORegisterName returns the conventional name of the I/O register at
// addr, or its address when the register has no name.
func IORegisterName(addr uint32) string {
	if name, ok := ioRegisterNames[addr&^1]; ok {
		return name
	}
	return fmt.Sprintf("IO[%03X]", addr-IOBase)
}

// IOWrite records one write to a side-effecting region.
type IOWrite struct {
	Addr     uint32
	Width    Width
	Value    uint32
	Register string
}

// DisplayControl is the decoded display control register.
type DisplayControl uint16

// BGMode returns the background mode selected by bits 0-2.
func (d DisplayControl) BGMode() uint8 {
	return uint8(d & 0x7)
}

// FrameSelect reports the bitmap frame selected for modes 4 and 5.
func (d DisplayControl) FrameSelect() bool {
	return d&(1<<4) != 0
}

// ForcedBlank reports whether the display is forced blank.
func (d DisplayControl) ForcedBlank() bool {
	return d&(1<<7) != 0
}

// LayerEnabled reports whether layer 0-3 (backgrounds) or 4 (objects) is
// enabled.
func (d DisplayControl) LayerEnabled(layer int) bool {
	if layer < 0 || layer > 4 {
		return false
	}
	return d&(1<<(8+layer)) != 0
}

func (d DisplayControl) String() string {
	var layers []string
	for i, name := range []string{"bg0", "bg1", "bg2", "bg3", "obj"} {
		if d.LayerEnabled(i) {
			layers = append(layers, name)
		}
	}
	s := fmt.Sprintf("mode %d", d.BGMode())
	if len(layers) > 0 {
		s += " [" + strings.Join(layers, " ") + "]"
	}
	if d.ForcedBlank() {
		s += " blank"
	}
	return s
}

// ioState holds the interpretation of the I/O region as seen by an
// external renderer.
type ioState struct {
	last    map[uint32]IOWrite
	display DisplayControl
}

func newIOState() *ioState {
	return &ioState{last: make(map[uint32]IOWrite)}
}

func (s *ioState) record(w IOWrite, region *Region) {
	s.last[w.Addr] = w
	if w.Addr <= RegDISPCNT+1 && w.Addr+uint32(w.Width) > RegDISPCNT {
		s.display = DisplayControl(region.read(RegDISPCNT-region.Base, WidthHalf))
	}
}
