// Package dos implements the minimum DOS command-line personality: the
// COMTAB entry points a running 6502 program calls through to exit, parse
// its next command-line token, and re-enter SIO, plus host-side command
// line construction before a run starts.
package dos

import (
	"strings"

	"github.com/dmsc/mini65-sim/cpu"
	"github.com/dmsc/mini65-sim/internal/fault"
)

// Fixed addresses, transcribed from ataridos.c's DOSCP_BASE/COMTAB_BASE
// layout rather than re-derived.
const (
	DOSCPBase   = 0xE540
	ComtabBase  = 0xE550
	DOSVEC      = 0x0A
	bufoffAddr  = ComtabBase + 10
	comfnmAddr  = ComtabBase + 33
	lbufAddr    = ComtabBase + 63
	lbufLen     = 64
	comfnmLen   = 28

	eol = 0x9B
)

// System installs the COMTAB entry points on an engine.
type System struct {
	Engine *cpu.Engine
}

// NewSystem installs the six COMTAB exec-callbacks (CP, CRNAME, DIVIO,
// XDIVIO, LSIO, CONVDC), one per DOSCP_BASE+0..5, writes JMP stubs to CP
// and CRNAME at ComtabBase+0 and +3, and points DOSVEC at ComtabBase.
// DIVIO, XDIVIO, LSIO and CONVDC have no COMTAB stub; they are reached only
// at DOSCP_BASE+2..5.
func NewSystem(e *cpu.Engine) *System {
	s := &System{Engine: e}

	e.Mem.AddDataRAM(ComtabBase, []byte{
		0x4C, byte(DOSCPBase & 0xFF), byte(DOSCPBase >> 8), // JMP CP
		0x4C, byte((DOSCPBase + 1) & 0xFF), byte((DOSCPBase + 1) >> 8), // JMP CRNAME
	})
	e.Mem.AddZeroedRAM(ComtabBase+32, 94)
	e.Mem.AddDataRAM(DOSVEC, []byte{byte(ComtabBase & 0xFF), byte(ComtabBase >> 8)})
	e.Mem.AddDataRAM(lbufAddr, []byte{'D', ':', eol})

	e.TrapRTSRange(DOSCPBase, 6, s.dispatch)
	return s
}

func (s *System) dispatch(e *cpu.Engine, addr uint16) error {
	switch addr - DOSCPBase {
	case 0: // CP: exit to DOS
		return fault.Fault{Kind: fault.CallRet}
	case 1: // CRNAME
		s.crname()
		return nil
	case 2, 3: // DIVIO, XDIVIO: batch/hardcopy, not implemented
		return nil
	case 4: // LSIO: re-enter through SIOV
		e.Reg.PC = 0xE459
		return nil
	case 5: // CONVDC: not implemented
		return nil
	default:
		return nil
	}
}

// crname reads the next whitespace/EOL-delimited token out of LBUF
// starting at BUFOFF, prepends the synthetic "D1:" device prefix unless
// the token already names one, and writes the 28-byte, EOL-padded result
// into COMFNM — transcribed from sim_DOS_CRNAME's exact byte-level
// algorithm (including its in-place "move back 3" when a ':' appears).
func (s *System) crname() {
	var buf [256]byte
	buf[0], buf[1], buf[2] = 'D', '1', ':'
	off := int(s.peek(bufoffAddr))
	dev, arg := false, false
	length := 3

	for ; off < lbufLen && length < 27; off++ {
		c := s.peek(uint16(lbufAddr + off))
		if c == eol {
			break
		}
		if c == ' ' && !arg {
			continue
		}
		if c == ' ' || c == eol {
			break
		}
		arg = true
		if c == ':' && !dev {
			dev = true
			length -= 3
			copy(buf[:length], buf[3:3+length])
		}
		buf[length] = c
		length++
	}

	s.poke(bufoffAddr, byte(off))
	for i := 0; i < length; i++ {
		s.poke(uint16(comfnmAddr+i), buf[i])
	}
	for i := length; i < comfnmLen; i++ {
		s.poke(uint16(comfnmAddr+i), eol)
	}
}

func (s *System) peek(addr uint16) byte { return s.Engine.Mem.RawRead(addr) }

// poke self-defines addr as RAM as it writes, mirroring ataridos.c's
// poke() (backed by sim65_add_data_ram): COMTAB runtime state like
// BUFOFF lies outside the block-zeroed buffer region, so each write must
// stand on its own rather than assume a prior AddRAM call covered it.
func (s *System) poke(addr uint16, v byte) { s.Engine.Mem.AddDataRAM(addr, []byte{v}) }

// AddCmdline appends cmd to the guest command line at LBUF, following
// atari_dos_add_cmdline: the first call synthesizes a "D:STEM" program
// name (path stem between the last separator and the last '.',
// uppercased, non-letters/underscore dropped); later calls append a
// space then cmd literally. Every line is EOL-terminated.
func (s *System) AddCmdline(cmd string) {
	length := s.currentLineLength()

	if length < 3 {
		s.writeProgramName(cmd)
		return
	}
	if length >= lbufLen-1 {
		return
	}
	s.poke(uint16(lbufAddr+length), ' ')
	length++
	for i := 0; length < lbufLen-1 && i < len(cmd); i, length = i+1, length+1 {
		s.poke(uint16(lbufAddr+length), cmd[i])
	}
	s.poke(uint16(lbufAddr+length), eol)
}

func (s *System) currentLineLength() int {
	for i := 0; i < lbufLen; i++ {
		if s.peek(uint16(lbufAddr+i)) == eol {
			return i
		}
	}
	return lbufLen
}

func (s *System) writeProgramName(cmd string) {
	p0, p1 := 0, 0
	for i := 0; i <= len(cmd); i++ {
		switch {
		case i == len(cmd):
			if p1 <= p0 {
				p1 = i
			}
		case cmd[i] == '/' || cmd[i] == '\\':
			p0 = i + 1
		case cmd[i] == '.':
			p1 = i
		}
	}
	if p1 <= p0 {
		p1 = len(cmd)
	}

	length := 0
	s.poke(uint16(lbufAddr+length), 'D')
	length++
	s.poke(uint16(lbufAddr+length), ':')
	length++
	for i := p0; i < p1 && length < lbufLen-1; i++ {
		c := cmd[i]
		switch {
		case c >= 'a' && c <= 'z':
			s.poke(uint16(lbufAddr+length), c-'a'+'A')
			length++
		case (c >= 'A' && c <= 'Z') || c == '_':
			s.poke(uint16(lbufAddr+length), c)
			length++
		}
	}
	s.poke(uint16(lbufAddr+length), eol)
	s.poke(bufoffAddr, byte(length))
}

// Filename returns the bare path CRNAME last wrote into COMFNM, with any
// leading "Dn:"/"D:" device specifier stripped — the form the command
// processor's file operations (OPEN/READ/WRITE/CLOSE/POINT/NOTE) pass to
// cio.DiskDevice, which resolves names relative to its own root sandbox
// rather than a device letter.
func (s *System) Filename() string {
	var sb strings.Builder
	for i := 0; i < comfnmLen; i++ {
		c := s.peek(uint16(comfnmAddr + i))
		if c == eol {
			break
		}
		sb.WriteByte(c)
	}
	return stripDevicePrefix(sb.String())
}

// stripDevicePrefix reports the filename portion of name after a leading
// "Dn:" or "D:" device specifier, used by callers that need the bare
// CRNAME-normalized path without the synthetic prefix.
func stripDevicePrefix(name string) string {
	if len(name) < 2 || (name[0] != 'D' && name[0] != 'd') {
		return name
	}
	rest := name[1:]
	for len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
		rest = rest[1:]
	}
	return strings.TrimPrefix(rest, ":")
}
