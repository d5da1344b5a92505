package sio

import (
	"github.com/dmsc/mini65-sim/cpu"
)

// DCB field offsets, $0300-$030B, the fixed zero-page-adjacent Device
// Control Block the SIOV vector reads its request from.
const (
	DDEVIC = 0x0300
	DUNIT  = 0x0301
	DCOMND = 0x0302
	DSTATS = 0x0303
	DBUFLO = 0x0304
	DBUFHI = 0x0305
	DTIMLO = 0x0306
	DUNUSE = 0x0307
	DBYTLO = 0x0308
	DBYTHI = 0x0309
	DAUX1  = 0x030A
	DAUX2  = 0x030B

	SIOV = 0xE459

	diskDeviceID = 0x31
)

// SIO commands.
const (
	CmdWrite       = 0x50
	CmdWriteVerify = 0x57
	CmdRead        = 0x52
	CmdStatus      = 0x53
	CmdFormat      = 0x21
)

// SIO status codes returned on Y (and DSTATS).
const (
	StatusOK      = 0x01
	StatusNAK     = 0x8B
	StatusTimeout = 0x8A
)

// System dispatches SIOV requests against a single attached Disk.
type System struct {
	Engine *cpu.Engine
	Disk   *Disk
}

// NewSystem installs the SIOV trap on e and attaches disk as the sole
// device answering to ID 0x31; every other device ID times out, since no
// other peripheral is emulated.
func NewSystem(e *cpu.Engine, disk *Disk) *System {
	s := &System{Engine: e, Disk: disk}
	e.Mem.AddRAM(DDEVIC, 12) // DCB, left uninitialized until a caller fills it in
	e.TrapRTS(SIOV, s.dispatch)
	return s
}

func (s *System) dcb(eng *cpu.Engine, offset uint16) byte {
	return eng.Mem.RawRead(offset)
}

func (s *System) dispatch(eng *cpu.Engine, _ uint16) error {
	devID := s.dcb(eng, DDEVIC)
	if devID != diskDeviceID {
		s.exit(eng, StatusTimeout)
		return nil
	}

	bufAddr := uint16(s.dcb(eng, DBUFLO)) | uint16(s.dcb(eng, DBUFHI))<<8
	byteCount := int(s.dcb(eng, DBYTLO)) | int(s.dcb(eng, DBYTHI))<<8
	sector := int(s.dcb(eng, DAUX1)) | int(s.dcb(eng, DAUX2))<<8
	cmd := s.dcb(eng, DCOMND)

	switch cmd {
	case CmdWrite, CmdWriteVerify:
		s.write(eng, sector, bufAddr, byteCount)
	case CmdRead:
		s.read(eng, sector, bufAddr, byteCount)
	case CmdStatus:
		s.status(eng, bufAddr)
	case CmdFormat:
		s.format(eng, bufAddr, byteCount)
	default:
		s.exit(eng, StatusNAK)
	}
	return nil
}

func (s *System) expectedLength(sector int) int {
	if sector >= 1 && sector <= 3 {
		return bootSectorSize
	}
	return s.Disk.SectorSize
}

func (s *System) write(eng *cpu.Engine, sector int, bufAddr uint16, length int) {
	if sector < 1 || sector > s.Disk.SectorCount || length != s.expectedLength(sector) {
		s.exit(eng, StatusNAK)
		return
	}
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = eng.Mem.RawRead(bufAddr + uint16(i))
	}
	if err := s.Disk.WriteSector(sector, buf); err != nil {
		s.exit(eng, StatusNAK)
		return
	}
	s.exit(eng, StatusOK)
}

func (s *System) read(eng *cpu.Engine, sector int, bufAddr uint16, length int) {
	if sector < 1 || sector > s.Disk.SectorCount || length != s.expectedLength(sector) {
		s.exit(eng, StatusNAK)
		return
	}
	buf, err := s.Disk.ReadSector(sector)
	if err != nil {
		s.exit(eng, StatusNAK)
		return
	}
	for i, b := range buf {
		eng.Mem.RawWrite(bufAddr+uint16(i), b)
	}
	s.exit(eng, StatusOK)
}

// status writes the 4-byte status block {active|double-density, 0xFF
// hardware-ok, 0xE0 format-timeout, 0} into the caller's buffer.
func (s *System) status(eng *cpu.Engine, bufAddr uint16) {
	block := [4]byte{0x10, 0xFF, 0xE0, 0x00}
	if s.Disk.SectorSize == 256 {
		block[0] |= 0x20
	}
	for i, b := range block {
		eng.Mem.RawWrite(bufAddr+uint16(i), b)
	}
	s.exit(eng, StatusOK)
}

// format zeroes the caller's buffer; the disk image itself is not
// reformatted, only this observable buffer-clearing behaviour matters to
// booting guest code.
func (s *System) format(eng *cpu.Engine, bufAddr uint16, length int) {
	if length <= 0 {
		length = s.Disk.SectorSize
	}
	for i := 0; i < length; i++ {
		eng.Mem.RawWrite(bufAddr+uint16(i), 0)
	}
	s.exit(eng, StatusOK)
}

func (s *System) exit(eng *cpu.Engine, status byte) {
	eng.Reg.Y = status
	eng.Mem.RawWrite(DSTATS, status)
	eng.Reg.Status.Negative = status&0x80 != 0
}
