// Package disasm formats one 6502 instruction per call into the
// canonical one-line disassembly: mnemonic case keyed on documented
// status, operand formatted per addressing mode.
package disasm

import (
	"fmt"

	"github.com/dmsc/mini65-sim/cpu/inst"
	"github.com/dmsc/mini65-sim/mem"
)

// Line returns the disassembly of the instruction at addr in m: its
// mnemonic (uppercase if documented, lowercase otherwise) followed by the
// addressing-mode-specific operand syntax.
func Line(m *mem.Memory, addr uint16) string {
	opcode, _ := m.GetByte(addr)
	def := inst.Definitions[opcode]
	mnemonic := def.Mnemonic

	operand := formatOperand(m, addr, def)
	if operand == "" {
		return mnemonic
	}
	return mnemonic + " " + operand
}

func byteAt(m *mem.Memory, addr uint16) byte {
	b, _ := m.GetByte(addr)
	return b
}

func formatOperand(m *mem.Memory, addr uint16, def inst.Definition) string {
	switch def.Mode {
	case inst.Implied:
		return ""
	case inst.Accumulator:
		return "A"
	case inst.Immediate:
		return fmt.Sprintf("#$%02X", byteAt(m, addr+1))
	case inst.ZeroPage:
		return fmt.Sprintf("$%02X", byteAt(m, addr+1))
	case inst.ZeroPageX:
		return fmt.Sprintf("$%02X,X", byteAt(m, addr+1))
	case inst.ZeroPageY:
		return fmt.Sprintf("$%02X,Y", byteAt(m, addr+1))
	case inst.Absolute:
		return fmt.Sprintf("$%04X", word(m, addr+1))
	case inst.AbsoluteX:
		return fmt.Sprintf("$%04X,X", word(m, addr+1))
	case inst.AbsoluteY:
		return fmt.Sprintf("$%04X,Y", word(m, addr+1))
	case inst.Indirect:
		return fmt.Sprintf("($%04X)", word(m, addr+1))
	case inst.PreIndexed:
		return fmt.Sprintf("($%02X,X)", byteAt(m, addr+1))
	case inst.PostIndexed:
		return fmt.Sprintf("($%02X),Y", byteAt(m, addr+1))
	case inst.Relative:
		offset := int8(byteAt(m, addr+1))
		target := uint16(int32(addr) + 2 + int32(offset))
		return fmt.Sprintf("$%04X", target)
	default:
		return ""
	}
}

func word(m *mem.Memory, addr uint16) uint16 {
	return uint16(byteAt(m, addr)) | uint16(byteAt(m, addr+1))<<8
}
