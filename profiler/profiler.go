// Package profiler accumulates per-address execution counters (times
// executed, cycles spent, branches taken, extra cycles charged for
// page-crossing or taken branches, and a "flags unchanged" count used as
// a rough dead-instruction detector) across one or more runs, and
// persists them as a text snapshot or a binary blob for consolidation.
package profiler

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/dmsc/mini65-sim/cpu"
	"github.com/dmsc/mini65-sim/cpu/inst"
	"github.com/dmsc/mini65-sim/disasm"
	"github.com/dmsc/mini65-sim/mem"
)

// Counter is the per-address tally.
type Counter struct {
	Executions   uint64
	Cycles       uint64
	BranchTaken  uint64
	ExtraCycles  uint64
	NoFlagChange uint64 // instruction left P unchanged from its value before execution
}

// Profile accumulates Counters keyed by PC.
type Profile struct {
	counters map[uint16]*Counter
}

// New returns an empty Profile.
func New() *Profile {
	return &Profile{counters: map[uint16]*Counter{}}
}

func (p *Profile) at(pc uint16) *Counter {
	c, ok := p.counters[pc]
	if !ok {
		c = &Counter{}
		p.counters[pc] = c
	}
	return c
}

// Step executes one instruction on e and records its effect: the
// instruction's base cost (from the opcode table) versus the cycles
// actually charged tells apart a taken-branch or page-crossing bonus;
// branch mnemonics additionally count as taken whenever PC doesn't land
// at pc+def.Bytes.
func (p *Profile) Step(e *cpu.Engine) error {
	pc := e.Reg.PC
	opcode, _ := e.Mem.GetByte(pc)
	def := inst.Definitions[opcode]
	before := e.Reg.Status.Value()
	cyclesBefore := e.Cycles

	err := e.Step()

	c := p.at(pc)
	c.Executions++
	spent := e.Cycles - cyclesBefore
	c.Cycles += spent
	if extra := int(spent) - def.Cycles; extra > 0 {
		c.ExtraCycles += uint64(extra)
	}
	if def.IsBranch() && e.Reg.PC != pc+uint16(def.Bytes) {
		c.BranchTaken++
	}
	if e.Reg.Status.Value() == before {
		c.NoFlagChange++
	}
	return err
}

// WriteText writes the plain-text snapshot: one line per address sorted
// by address, "<cycles> <pc> <disassembly> (<annotations>)", followed by
// cumulative totals.
func (p *Profile) WriteText(w io.Writer, m *mem.Memory) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	addrs := make([]int, 0, len(p.counters))
	for a := range p.counters {
		addrs = append(addrs, int(a))
	}
	sort.Ints(addrs)

	var totalExec, totalCycles, totalBranch, totalExtra, totalNoFlag uint64
	for _, a := range addrs {
		pc := uint16(a)
		c := p.counters[pc]
		line := disasm.Line(m, pc)
		fmt.Fprintf(bw, "%d $%04X %s (exec=%d branch_taken=%d extra_cycles=%d no_flag_change=%d)\n",
			c.Cycles, pc, line, c.Executions, c.BranchTaken, c.ExtraCycles, c.NoFlagChange)
		totalExec += c.Executions
		totalCycles += c.Cycles
		totalBranch += c.BranchTaken
		totalExtra += c.ExtraCycles
		totalNoFlag += c.NoFlagChange
	}
	fmt.Fprintf(bw, "total: cycles=%d exec=%d branch_taken=%d extra_cycles=%d no_flag_change=%d\n",
		totalCycles, totalExec, totalBranch, totalExtra, totalNoFlag)
	return nil
}

// binary record layout: addr(2) executions(8) cycles(8) branchTaken(8)
// extraCycles(8) noFlagChange(8), little-endian, repeated.
const recordSize = 2 + 8*5

// WriteBinary persists the accumulated counters for later consolidation
// via Merge.
func (p *Profile) WriteBinary(w io.Writer) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	addrs := make([]int, 0, len(p.counters))
	for a := range p.counters {
		addrs = append(addrs, int(a))
	}
	sort.Ints(addrs)

	buf := make([]byte, recordSize)
	for _, a := range addrs {
		pc := uint16(a)
		c := p.counters[pc]
		binary.LittleEndian.PutUint16(buf[0:2], pc)
		binary.LittleEndian.PutUint64(buf[2:10], c.Executions)
		binary.LittleEndian.PutUint64(buf[10:18], c.Cycles)
		binary.LittleEndian.PutUint64(buf[18:26], c.BranchTaken)
		binary.LittleEndian.PutUint64(buf[26:34], c.ExtraCycles)
		binary.LittleEndian.PutUint64(buf[34:42], c.NoFlagChange)
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// ReadBinary loads counters from r, merging into any existing data in p
// (used to consolidate profile data across runs).
func (p *Profile) ReadBinary(r io.Reader) error {
	br := bufio.NewReader(r)
	buf := make([]byte, recordSize)
	for {
		_, err := io.ReadFull(br, buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		pc := binary.LittleEndian.Uint16(buf[0:2])
		c := p.at(pc)
		c.Executions += binary.LittleEndian.Uint64(buf[2:10])
		c.Cycles += binary.LittleEndian.Uint64(buf[10:18])
		c.BranchTaken += binary.LittleEndian.Uint64(buf[18:26])
		c.ExtraCycles += binary.LittleEndian.Uint64(buf[26:34])
		c.NoFlagChange += binary.LittleEndian.Uint64(buf[34:42])
	}
}

// At returns a copy of the counter recorded at pc, for tests and tools
// that want to inspect a single address without the text/binary format.
func (p *Profile) At(pc uint16) Counter {
	if c, ok := p.counters[pc]; ok {
		return *c
	}
	return Counter{}
}
