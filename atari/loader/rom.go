package loader

import (
	"io"

	"github.com/dmsc/mini65-sim/cpu"
	"github.com/dmsc/mini65-sim/errors"
	"github.com/dmsc/mini65-sim/mem"
)

// Cartridge layout constants: an 8 KiB ROM image starting at CartBase
// carries a trailer with an init vector, a flags byte, and a run vector.
const (
	CartBase  = 0xA000
	CartSize  = 0x2000
	CartInit  = 0xBFFA
	CartFlags = 0xBFFC
	CartRun   = 0xBFFE
)

// LoadROM reads r verbatim into ROM starting at base. When base is
// CartBase and the image is exactly CartSize bytes long, the trailing
// init/run vectors and flags byte are in range and are reported so the
// caller can honor them (call the init vector if present, then jump to
// the run vector); any other base or length is loaded as plain ROM with
// no cartridge semantics.
func LoadROM(e *cpu.Engine, r io.Reader, base uint16) (*Cartridge, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Errorf("loader: rom: %v", err)
	}
	if int(base)+len(data) > mem.Size {
		return nil, errors.Errorf(errors.ROMTooLarge, len(data), base)
	}
	e.Mem.AddDataROM(base, data)

	if base != CartBase || len(data) != CartSize {
		return nil, nil
	}
	c := &Cartridge{
		Flags: data[CartFlags-CartBase],
		Init:  uint16(data[CartInit-CartBase]) | uint16(data[CartInit-CartBase+1])<<8,
		Run:   uint16(data[CartRun-CartBase]) | uint16(data[CartRun-CartBase+1])<<8,
	}
	return c, nil
}

// Cartridge reports the trailer fields of a standard 8 KiB cartridge
// image loaded at CartBase.
type Cartridge struct {
	Flags byte
	Init  uint16
	Run   uint16
}

// Start calls the cartridge's init vector, if set, then returns its run
// vector for the caller to jump the CPU to.
func (c *Cartridge) Start(e *cpu.Engine) (uint16, error) {
	if c.Init != 0 {
		if err := e.Call(c.Init); err != nil {
			return 0, errors.Errorf("loader: cartridge init: %v", err)
		}
	}
	return c.Run, nil
}
