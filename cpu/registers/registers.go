// Package registers holds the 6502 register file: program counter,
// accumulator, index registers, stack pointer, and processor status.
package registers

import "strings"

// Status is the processor status register: N V - B D I Z C.
type Status struct {
	Negative        bool
	Overflow        bool
	Break           bool
	DecimalMode     bool
	InterruptDisable bool
	Zero            bool
	Carry           bool
}

// NewStatus returns a Status with IRQs disabled, matching the 6502's
// power-on/reset state as far as this simulator models it.
func NewStatus() Status {
	var sr Status
	sr.Load(0x34)
	return sr
}

// Label returns the canonical register name, for disassembly and trace
// output.
func (Status) Label() string { return "P" }

func (sr Status) String() string {
	var s strings.Builder
	flag := func(set bool, up, down rune) {
		if set {
			s.WriteRune(up)
		} else {
			s.WriteRune(down)
		}
	}
	flag(sr.Negative, 'N', 'n')
	flag(sr.Overflow, 'V', 'v')
	s.WriteRune('-')
	flag(sr.Break, 'B', 'b')
	flag(sr.DecimalMode, 'D', 'd')
	flag(sr.InterruptDisable, 'I', 'i')
	flag(sr.Zero, 'Z', 'z')
	flag(sr.Carry, 'C', 'c')
	return s.String()
}

// Value packs the flags into the 8-bit form used when P is pushed to the
// stack. The unused bit 5 is always forced to 1.
func (sr Status) Value() uint8 {
	var v uint8
	if sr.Negative {
		v |= 0x80
	}
	if sr.Overflow {
		v |= 0x40
	}
	if sr.Break {
		v |= 0x10
	}
	if sr.DecimalMode {
		v |= 0x08
	}
	if sr.InterruptDisable {
		v |= 0x04
	}
	if sr.Zero {
		v |= 0x02
	}
	if sr.Carry {
		v |= 0x01
	}
	v |= 0x20
	return v
}

// Load unpacks v (as pulled from the stack, e.g. by PLP or RTI) into the
// flag bits.
func (sr *Status) Load(v uint8) {
	sr.Negative = v&0x80 != 0
	sr.Overflow = v&0x40 != 0
	sr.Break = v&0x10 != 0
	sr.DecimalMode = v&0x08 != 0
	sr.InterruptDisable = v&0x04 != 0
	sr.Zero = v&0x02 != 0
	sr.Carry = v&0x01 != 0
}

// SetNZ sets the Negative and Zero flags from a result byte, the common
// case for load/transfer/logical instructions.
func (sr *Status) SetNZ(v uint8) {
	sr.Negative = v&0x80 != 0
	sr.Zero = v == 0
}

// Registers is the full 6502 register file.
type Registers struct {
	PC     uint16
	A      uint8
	X      uint8
	Y      uint8
	SP     uint8
	Status Status
}

// Reset sets the register file to the power-on/reset state. PC is left to
// the caller, who typically loads it from the reset vector or an explicit
// start address.
func (r *Registers) Reset() {
	r.A = 0
	r.X = 0
	r.Y = 0
	r.SP = 0xFF
	r.Status = NewStatus()
}

func (r Registers) String() string {
	return "A=" + hex8(r.A) + " X=" + hex8(r.X) + " Y=" + hex8(r.Y) +
		" SP=" + hex8(r.SP) + " P=" + r.Status.String() + " PC=" + hex16(r.PC)
}

const hexdigits = "0123456789ABCDEF"

func hex8(v uint8) string {
	return string([]byte{'$', hexdigits[v>>4], hexdigits[v&0xF]})
}

func hex16(v uint16) string {
	return string([]byte{
		'$',
		hexdigits[(v>>12)&0xF], hexdigits[(v>>8)&0xF],
		hexdigits[(v>>4)&0xF], hexdigits[v&0xF],
	})
}
