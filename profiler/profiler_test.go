package profiler_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dmsc/mini65-sim/cpu"
	"github.com/dmsc/mini65-sim/logger"
	"github.com/dmsc/mini65-sim/mem"
	"github.com/dmsc/mini65-sim/profiler"
)

func newEngine() *cpu.Engine {
	m := mem.New()
	e := cpu.NewEngine(m, logger.NewLogger(32))
	e.ErrorLevel = cpu.LevelFull
	return e
}

func TestStepRecordsExecutionsAndCycles(t *testing.T) {
	e := newEngine()
	e.Mem.AddDataRAM(0x0600, []byte{0xEA}) // NOP: 2 cycles
	e.Reg.PC = 0x0600

	p := profiler.New()
	if err := p.Step(e); err != nil {
		t.Fatalf("Step: unexpected error: %v", err)
	}

	c := p.At(0x0600)
	if c.Executions != 1 {
		t.Fatalf("Executions = %d, want 1", c.Executions)
	}
	if c.Cycles != 2 {
		t.Fatalf("Cycles = %d, want 2", c.Cycles)
	}
}

func TestStepCountsTakenBranch(t *testing.T) {
	e := newEngine()
	e.Mem.AddDataRAM(0x0600, []byte{0x90, 0x02}) // BCC +2, carry clear by default so it's taken
	e.Reg.PC = 0x0600

	p := profiler.New()
	if err := p.Step(e); err != nil {
		t.Fatalf("Step: unexpected error: %v", err)
	}
	c := p.At(0x0600)
	if c.BranchTaken != 1 {
		t.Fatalf("BranchTaken = %d, want 1", c.BranchTaken)
	}
}

func TestWriteBinaryRoundTripsThroughReadBinary(t *testing.T) {
	e := newEngine()
	e.Mem.AddDataRAM(0x0600, []byte{0xEA})
	e.Reg.PC = 0x0600

	p := profiler.New()
	for i := 0; i < 3; i++ {
		e.Reg.PC = 0x0600
		if err := p.Step(e); err != nil {
			t.Fatalf("Step: unexpected error: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := p.WriteBinary(&buf); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	q := profiler.New()
	if err := q.ReadBinary(&buf); err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	got := q.At(0x0600)
	want := p.At(0x0600)
	if got != want {
		t.Fatalf("ReadBinary round trip = %+v, want %+v", got, want)
	}
}

func TestReadBinaryMergesIntoExistingCounters(t *testing.T) {
	e := newEngine()
	e.Mem.AddDataRAM(0x0600, []byte{0xEA})
	e.Reg.PC = 0x0600

	p := profiler.New()
	if err := p.Step(e); err != nil {
		t.Fatalf("Step: unexpected error: %v", err)
	}
	var buf bytes.Buffer
	if err := p.WriteBinary(&buf); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	// Merge the same one-execution snapshot onto itself twice: the
	// combined total should be 3 (1 existing + 2 merged).
	q := profiler.New()
	e.Reg.PC = 0x0600
	if err := q.Step(e); err != nil {
		t.Fatalf("Step: unexpected error: %v", err)
	}
	if err := q.ReadBinary(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	if err := q.ReadBinary(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	if got := q.At(0x0600).Executions; got != 3 {
		t.Fatalf("merged Executions = %d, want 3", got)
	}
}

func TestWriteTextIncludesDisassemblyAndTotals(t *testing.T) {
	e := newEngine()
	e.Mem.AddDataRAM(0x0600, []byte{0xEA})
	e.Reg.PC = 0x0600

	p := profiler.New()
	if err := p.Step(e); err != nil {
		t.Fatalf("Step: unexpected error: %v", err)
	}

	var buf strings.Builder
	if err := p.WriteText(&buf, e.Mem); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "$0600") || !strings.Contains(out, "NOP") {
		t.Fatalf("text snapshot missing address/disassembly: %q", out)
	}
	if !strings.Contains(out, "total:") {
		t.Fatalf("text snapshot missing totals line: %q", out)
	}
}
