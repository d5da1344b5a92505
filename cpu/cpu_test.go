package cpu_test

import (
	"testing"

	"github.com/dmsc/mini65-sim/cpu"
	"github.com/dmsc/mini65-sim/logger"
	"github.com/dmsc/mini65-sim/mem"
)

func newEngine() *cpu.Engine {
	m := mem.New()
	m.AddZeroedRAM(0, mem.Size)
	e := cpu.NewEngine(m, logger.NewLogger(32))
	e.ErrorLevel = cpu.LevelFull
	return e
}

func load(e *cpu.Engine, addr uint16, code ...byte) {
	for i, b := range code {
		e.Mem.Poke(addr+uint16(i), b)
	}
}

func TestADCBinaryOverflow(t *testing.T) {
	e := newEngine()
	load(e, 0x0600, 0x69, 0x01) // ADC #$01
	e.Reg.PC = 0x0600
	e.Reg.A = 0x7F
	e.Reg.Status.Carry = false
	if err := e.Step(); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if e.Reg.A != 0x80 {
		t.Fatalf("A = $%02X, want $80", e.Reg.A)
	}
	if !e.Reg.Status.Negative || !e.Reg.Status.Overflow || e.Reg.Status.Carry || e.Reg.Status.Zero {
		t.Fatalf("flags = %s, want N=1 V=1 C=0 Z=0", e.Reg.Status)
	}
}

func TestADCDecimalMode(t *testing.T) {
	e := newEngine()
	load(e, 0x0600, 0x69, 0x01) // ADC #$01
	e.Reg.PC = 0x0600
	e.Reg.A = 0x09
	e.Reg.Status.DecimalMode = true
	e.Reg.Status.Carry = false
	if err := e.Step(); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if e.Reg.A != 0x10 {
		t.Fatalf("A = $%02X, want $10", e.Reg.A)
	}
	if e.Reg.Status.Carry || e.Reg.Status.Zero {
		t.Fatalf("flags = %s, want C=0 Z=0", e.Reg.Status)
	}
}

func TestADCSBCBinaryRoundTrip(t *testing.T) {
	e := newEngine()
	load(e, 0x0600, 0x69, 0x17) // ADC #$17
	load(e, 0x0602, 0xE9, 0x17) // SBC #$17
	e.Reg.PC = 0x0600
	e.Reg.A = 0x42
	e.Reg.Status.Carry = true
	if err := e.Step(); err != nil {
		t.Fatalf("ADC: unexpected fault: %v", err)
	}
	if err := e.Step(); err != nil {
		t.Fatalf("SBC: unexpected fault: %v", err)
	}
	if e.Reg.A != 0x42 {
		t.Fatalf("round trip: A = $%02X, want $42", e.Reg.A)
	}
}

func TestJSRRTSRoundTrip(t *testing.T) {
	e := newEngine()
	load(e, 0x0600, 0x20, 0x00, 0x07) // JSR $0700
	load(e, 0x0700, 0x60)            // RTS
	e.Reg.PC = 0x0600
	e.Reg.SP = 0xFF
	if err := e.Step(); err != nil { // JSR
		t.Fatalf("JSR: unexpected fault: %v", err)
	}
	if e.Reg.PC != 0x0700 {
		t.Fatalf("PC after JSR = $%04X, want $0700", e.Reg.PC)
	}
	if err := e.Step(); err != nil { // RTS
		t.Fatalf("RTS: unexpected fault: %v", err)
	}
	if e.Reg.PC != 0x0603 {
		t.Fatalf("PC after RTS = $%04X, want $0603", e.Reg.PC)
	}
	if e.Reg.SP != 0xFF {
		t.Fatalf("SP after round trip = $%02X, want $FF", e.Reg.SP)
	}
}

func TestIndirectJMPPageWrapBug(t *testing.T) {
	e := newEngine()
	load(e, 0x0600, 0x6C, 0xFF, 0x02) // JMP ($02FF)
	e.Mem.Poke(0x02FF, 0x00)
	e.Mem.Poke(0x0300, 0x80) // would be the "correct" high byte
	e.Mem.Poke(0x0200, 0x40) // the buggy wrap-around high byte
	e.Reg.PC = 0x0600
	if err := e.Step(); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if e.Reg.PC != 0x4000 {
		t.Fatalf("PC = $%04X, want $4000 (page-wrap bug)", e.Reg.PC)
	}
}

func TestBranchCycleCosts(t *testing.T) {
	e := newEngine()
	load(e, 0x0600, 0xF0, 0x02) // BEQ +2, not taken
	e.Reg.PC = 0x0600
	e.Reg.Status.Zero = false
	if err := e.Step(); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if e.Cycles != 2 {
		t.Fatalf("not-taken branch cycles = %d, want 2", e.Cycles)
	}

	e2 := newEngine()
	load(e2, 0x06FE, 0xF0, 0x02) // BEQ +2, taken, no page cross
	e2.Reg.PC = 0x06FE
	e2.Reg.Status.Zero = true
	if err := e2.Step(); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if e2.Cycles != 3 {
		t.Fatalf("taken branch (no page cross) cycles = %d, want 3", e2.Cycles)
	}

	e3 := newEngine()
	load(e3, 0x06FD, 0xF0, 0x7F) // BEQ +127, taken, crosses page
	e3.Reg.PC = 0x06FD
	e3.Reg.Status.Zero = true
	if err := e3.Step(); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if e3.Cycles != 4 {
		t.Fatalf("taken branch (page cross) cycles = %d, want 4", e3.Cycles)
	}
}

func TestWriteToROMFaults(t *testing.T) {
	e := newEngine()
	e.Mem.AddDataROM(0xE000, []byte{0xEA})
	load(e, 0x0600, 0x8D, 0x00, 0xE0) // STA $E000
	e.Reg.PC = 0x0600
	e.Reg.A = 0x42
	err := e.Step()
	if err == nil {
		t.Fatal("expected write_rom fault, got nil")
	}
	if v, _ := e.Mem.GetByte(0xE000); v != 0xEA {
		t.Fatalf("ROM byte changed to $%02X", v)
	}
}

func TestCycleLimitStopsRun(t *testing.T) {
	e := newEngine()
	load(e, 0x0600, 0xEA) // NOPs fill $0600-$060F; the 4-cycle limit stops after the second
	for i := uint16(0); i < 0x10; i++ {
		e.Mem.Poke(0x0600+i, 0xEA)
	}
	e.Reg.PC = 0x0600
	e.CycleLimit = 4
	err := e.Run()
	if err == nil {
		t.Fatal("expected cycle_limit fault")
	}
	if e.LastFault.Kind.String() != "cycle limit reached" {
		t.Fatalf("fault = %v, want cycle_limit", e.LastFault)
	}
}

func TestCallRetSentinel(t *testing.T) {
	e := newEngine()
	const routine = 0x0700
	e.TrapRTS(routine, func(eng *cpu.Engine, _ uint16) error {
		eng.Reg.A = 0x99
		return nil
	})
	if err := e.Call(routine); err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if e.Reg.A != 0x99 {
		t.Fatalf("A = $%02X after Call, want $99 (callback side effect lost)", e.Reg.A)
	}
}
