package loader_test

import (
	"bytes"
	"testing"

	"github.com/dmsc/mini65-sim/atari/loader"
	"github.com/dmsc/mini65-sim/cpu"
	"github.com/dmsc/mini65-sim/logger"
	"github.com/dmsc/mini65-sim/mem"
)

func newEngine() *cpu.Engine {
	m := mem.New()
	e := cpu.NewEngine(m, logger.NewLogger(32))
	e.ErrorLevel = cpu.LevelFull
	return e
}

// TestLoadXEXMultiSegmentInitAndRunad exercises three segments in one
// stream: a first segment after the header magic that writes INITAD, a
// second segment with no intervening magic that writes RUNAD, and a third
// reached via a fresh $FF $FF magic. The first segment is INITAD, so its
// completion should call through to the init routine preloaded there and
// clear INITAD; the final RUNAD, set mid-stream, should be honored at EOF
// instead of the first segment's start address.
func TestLoadXEXMultiSegmentInitAndRunad(t *testing.T) {
	e := newEngine()
	e.Mem.AddDataROM(0x0650, []byte{0x60}) // preloaded init routine: RTS

	xex := []byte{
		0xFF, 0xFF, 0xE2, 0x02, 0xE3, 0x02, 0x50, 0x06, // seg1: $02E2-$02E3 = INITAD := $0650
		0xE0, 0x02, 0xE1, 0x02, 0x00, 0x06, // seg2 (no magic): $02E0-$02E1 = RUNAD := $0600
		0xFF, 0xFF, 0x00, 0x06, 0x00, 0x06, 0x60, // seg3 (magic): $0600 = RTS
	}

	if err := loader.LoadXEX(e, bytes.NewReader(xex)); err != nil {
		t.Fatalf("LoadXEX: unexpected error: %v", err)
	}

	initad, _ := e.Mem.GetByte(loader.INITAD)
	initadHi, _ := e.Mem.GetByte(loader.INITAD + 1)
	if initad != 0 || initadHi != 0 {
		t.Fatalf("INITAD not cleared after segment completion: %#02x %#02x", initad, initadHi)
	}

	b, _ := e.Mem.GetByte(0x0600)
	if b != 0x60 {
		t.Fatalf("segment 3 data at $0600 = %#02x, want $60", b)
	}
}

func TestLoadXEXBadMagicIsRejected(t *testing.T) {
	e := newEngine()
	xex := []byte{0xFF, 0x00, 0x00, 0x06, 0x00, 0x06, 0x60}
	if err := loader.LoadXEX(e, bytes.NewReader(xex)); err == nil {
		t.Fatal("expected an error for a malformed magic header")
	}
}

func TestLoadXEXFallsBackToFirstSegmentStart(t *testing.T) {
	e := newEngine()
	// No RUNAD is ever written, so LoadXEX should run the first segment's
	// own start address.
	xex := []byte{0xFF, 0xFF, 0x00, 0x06, 0x00, 0x06, 0x60}
	if err := loader.LoadXEX(e, bytes.NewReader(xex)); err != nil {
		t.Fatalf("LoadXEX: unexpected error: %v", err)
	}
}

func TestLoadROMPlainImageHasNoCartridgeTrailer(t *testing.T) {
	e := newEngine()
	data := []byte{0x01, 0x02, 0x03, 0x04}
	cart, err := loader.LoadROM(e, bytes.NewReader(data), 0xD800)
	if err != nil {
		t.Fatalf("LoadROM: unexpected error: %v", err)
	}
	if cart != nil {
		t.Fatal("expected no cartridge trailer for a non-cartridge load")
	}
	b, _ := e.Mem.GetByte(0xD801)
	if b != 0x02 {
		t.Fatalf("loaded byte = %#02x, want $02", b)
	}
}

func TestLoadROMCartridgeTrailerAndStart(t *testing.T) {
	e := newEngine()
	data := make([]byte, loader.CartSize)
	putVec := func(off uint16, v uint16) {
		data[off] = byte(v)
		data[off+1] = byte(v >> 8)
	}
	putVec(loader.CartInit-loader.CartBase, 0) // no init routine
	data[loader.CartFlags-loader.CartBase] = 0
	putVec(loader.CartRun-loader.CartBase, 0x0610)

	cart, err := loader.LoadROM(e, bytes.NewReader(data), loader.CartBase)
	if err != nil {
		t.Fatalf("LoadROM: unexpected error: %v", err)
	}
	if cart == nil {
		t.Fatal("expected a cartridge trailer for a full-size CartBase image")
	}

	run, err := cart.Start(e)
	if err != nil {
		t.Fatalf("Start: unexpected error: %v", err)
	}
	if run != 0x0610 {
		t.Fatalf("run vector = $%04X, want $0610", run)
	}
}
