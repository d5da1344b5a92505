package sim

import (
	"math/rand"

	"github.com/dmsc/mini65-sim/cpu"
	"github.com/dmsc/mini65-sim/internal/fault"
	"github.com/dmsc/mini65-sim/mem"
)

// Hardware stubs the four registers the BIOS actually depends on (GTIA
// CONSOL, POKEY RANDOM, PIA PORTB, ANTIC VCOUNT): every other read in the
// $D000-$D4FF GTIA/POKEY/PIA/ANTIC range returns zero and every other
// write there is ignored; $D500-$D7FF gets no read/write stub, and
// executing anywhere in $D000-$D7FF is a fault.
type Hardware struct {
	mem *mem.Memory
	rng *rand.Rand

	bank int // current 130XE PORTB-selected 16KiB bank, 1 or 4..7
	reg  byte

	// mainWindow and xeBanked hold the $4000-$7FFF window's contents while
	// it is switched out: bank 1 (the ordinary, non-extended RAM that
	// lives in the main 64KiB map) in mainWindow, hidden banks 4-7 (extra
	// RAM the CPU's 16-bit address space can't otherwise reach) in
	// xeBanked, indexed bank-4.
	mainWindow [xeBankSize]byte
	xeBanked   [4][xeBankSize]byte
}

const (
	hwBase = 0xD000
	hwLen  = 0x0500 // GTIA $D000-D0FF, POKEY $D200-D2FF, PIA $D300-D3FF, ANTIC $D400-D4FF

	gtiaBase  = 0xD000
	pokeyBase = 0xD200
	piaBase   = 0xD300
	anticBase = 0xD400

	consol = gtiaBase + 0x1F
	random = pokeyBase + 0x0A
	portb  = piaBase + 0x01
	vcount = anticBase + 0x0B

	xeBankBase = 0x4000 // 130XE: banked window is the second 16KiB page
	xeBankSize = 0x4000
)

// newHardware installs the hardware stub over e, seeded from seed (use a
// fixed seed for reproducible runs; callers that want real randomness
// pass a value derived from outside the simulation).
func newHardware(e *cpu.Engine, seed int64) *Hardware {
	h := &Hardware{mem: e.Mem, rng: rand.New(rand.NewSource(seed)), bank: 1}

	for a := uint32(hwBase); a < hwBase+hwLen; a++ {
		addr := uint16(a)
		e.AddReadCallback(addr, h.read)
		e.AddWriteCallback(addr, h.write)
	}
	for a := uint32(hwBase); a < hwBase+0x800; a++ {
		e.AddExecCallback(uint16(a), h.execFault)
	}
	return h
}

func (h *Hardware) execFault(e *cpu.Engine, addr uint16) error {
	return fault.New(fault.ExecUndef, addr)
}

func (h *Hardware) read(e *cpu.Engine, addr uint16) (byte, error) {
	switch {
	case addr == consol:
		return 7, nil // CONSOL: no console key pressed
	case addr == random:
		return byte(h.rng.Intn(256)), nil
	case addr == portb:
		return h.reg, nil
	case addr == vcount:
		// One VCOUNT unit per two ANTIC scan lines, 114 cycles each;
		// wraps at the NTSC frame's 131 units, the common case this
		// simulator targets.
		scanlines := e.Cycles / 114
		return byte((scanlines / 2) % 131), nil
	default:
		return 0, nil
	}
}

func (h *Hardware) write(e *cpu.Engine, addr uint16, value byte) error {
	if addr != portb {
		return nil
	}
	h.applyBank(value)
	h.reg = value
	return nil
}

// applyBank implements the 130XE PORTB bank-switch convention: bit 4 set
// selects the fixed OS bank (1), otherwise bits 2-3 select extended bank
// 4-7; a change saves the outgoing bank's window contents to its backing
// store and loads the incoming bank's backing store into the window,
// mirroring sim_pia's two sim65_swap_bank calls.
func (h *Hardware) applyBank(value byte) {
	newBank := 1
	if value&0x10 == 0 {
		newBank = 4 + int((value>>2)&3)
	}
	if newBank == h.bank {
		return
	}
	h.saveWindow(h.bank)
	h.loadWindow(newBank)
	h.bank = newBank
}

func (h *Hardware) bankStore(bank int) *[xeBankSize]byte {
	if bank == 1 {
		return &h.mainWindow
	}
	return &h.xeBanked[bank-4]
}

func (h *Hardware) saveWindow(bank int) {
	store := h.bankStore(bank)
	for i := range store {
		store[i] = h.mem.RawRead(xeBankBase + uint16(i))
	}
}

func (h *Hardware) loadWindow(bank int) {
	store := h.bankStore(bank)
	for i, b := range store {
		h.mem.RawWrite(xeBankBase+uint16(i), b)
	}
}
