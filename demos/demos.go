// Package demos builds the canonical demo program: it turns on mode 3,
// writes three colours into the bitmap and then spins forever.
package demos

import (
	"encoding/binary"

	"github.com/sarchlab/gbadbg/emu"
)

// PixelWrite is a colour the demo leaves in the mode 3 bitmap.
type PixelWrite struct {
	X, Y  int
	Color uint16
}

// Addr returns the VRAM address of the pixel.
func (p PixelWrite) Addr() uint32 {
	return emu.VRAMBase + uint32(p.Y*emu.ScreenWidth+p.X)*2
}

// Demo is a raw cartridge image and what running it does.
type Demo struct {
	Image []byte

	// LoopOffset is the image offset of the final branch-to-self.
	LoopOffset uint32

	// DisplayControl is the value written to DISPCNT.
	DisplayControl uint16

	Writes []PixelWrite
}

// LoopAddr returns the address of the final loop when the image is loaded
// at base.
func (d *Demo) LoopAddr(base uint32) uint32 {
	return base + d.LoopOffset
}

// codeOffset is where the entry branch lands, past the cartridge header.
const codeOffset = 0x150

var pixels = []PixelWrite{
	{X: 120, Y: 80, Color: 0x001F},
	{X: 136, Y: 80, Color: 0x03E0},
	{X: 120, Y: 96, Color: 0x7C00},
}

// Canonical returns the ARM variant.
func Canonical() *Demo {
	image := make([]byte, codeOffset)
	putWord(image, 0, 0xEA000052) // b 0x150

	image = appendWords(image,
		0xE3A00301, // mov r0, #0x04000000
		0xE3A01B01, // mov r1, #0x400
		0xE2811003, // add r1, r1, #3
		0xE5801000, // str r1, [r0]
		0xE3A00406, // mov r0, #0x06000000
		0xE3A0101F, // mov r1, #0x1f
		0xE2802C96, // add r2, r0, #0x9600
		0xE1C21FB0, // strh r1, [r2, #0xf0]
		0xE3A01E3E, // mov r1, #0x3e0
		0xE2802C97, // add r2, r0, #0x9700
		0xE1C211B0, // strh r1, [r2, #0x10]
		0xE3A01C7C, // mov r1, #0x7c00
		0xE2802CB4, // add r2, r0, #0xb400
		0xE1C21FB0, // strh r1, [r2, #0xf0]
	)
	loop := uint32(len(image))
	image = appendWords(image, 0xEAFFFFFE) // b .

	return &Demo{
		Image:          image,
		LoopOffset:     loop,
		DisplayControl: 0x0403,
		Writes:         append([]PixelWrite(nil), pixels...),
	}
}

// CanonicalThumb returns the variant that switches to THUMB state before
// doing the same work.
func CanonicalThumb() *Demo {
	image := make([]byte, codeOffset)
	putWord(image, 0, 0xEA000052) // b 0x150

	image = appendWords(image,
		0xE28F0001, // add r0, pc, #1
		0xE12FFF10, // bx r0
	)
	image = appendHalves(image,
		0x2004, // mov r0, #4
		0x0600, // lsl r0, r0, #24
		0x2104, // mov r1, #4
		0x0209, // lsl r1, r1, #8
		0x3103, // add r1, #3
		0x6001, // str r1, [r0]
		0x2006, // mov r0, #6
		0x0600, // lsl r0, r0, #24
		0x2296, // mov r2, #0x96
		0x0212, // lsl r2, r2, #8
		0x32F0, // add r2, #0xf0
		0x1812, // add r2, r2, r0
		0x211F, // mov r1, #0x1f
		0x8011, // strh r1, [r2]
		0x2297, // mov r2, #0x97
		0x0212, // lsl r2, r2, #8
		0x3210, // add r2, #0x10
		0x1812, // add r2, r2, r0
		0x213E, // mov r1, #0x3e
		0x0109, // lsl r1, r1, #4
		0x8011, // strh r1, [r2]
		0x22B4, // mov r2, #0xb4
		0x0212, // lsl r2, r2, #8
		0x32F0, // add r2, #0xf0
		0x1812, // add r2, r2, r0
		0x217C, // mov r1, #0x7c
		0x0209, // lsl r1, r1, #8
		0x8011, // strh r1, [r2]
	)
	loop := uint32(len(image))
	image = appendHalves(image, 0xE7FE) // b .

	return &Demo{
		Image:          image,
		LoopOffset:     loop,
		DisplayControl: 0x0403,
		Writes:         append([]PixelWrite(nil), pixels...),
	}
}

// ByName returns the demo called "arm" or "thumb".
func ByName(name string) (*Demo, bool) {
	switch name {
	case "arm":
		return Canonical(), true
	case "thumb":
		return CanonicalThumb(), true
	}
	return nil, false
}

func putWord(b []byte, offset int, w uint32) {
	binary.LittleEndian.PutUint32(b[offset:], w)
}

func appendWords(b []byte, words ...uint32) []byte {
	for _, w := range words {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	return b
}

func appendHalves(b []byte, halves ...uint16) []byte {
	for _, h := range halves {
		b = binary.LittleEndian.AppendUint16(b, h)
	}
	return b
}
