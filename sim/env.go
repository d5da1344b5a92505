// Package sim assembles the address space, execution engine and Atari
// personality layer (CIO/SIO/DOS/loaders) into one runnable environment:
// the single object a front end drives to load a program and run it.
package sim

import (
	"io"

	"github.com/dmsc/mini65-sim/atari/cio"
	"github.com/dmsc/mini65-sim/atari/dos"
	"github.com/dmsc/mini65-sim/atari/loader"
	"github.com/dmsc/mini65-sim/atari/sio"
	"github.com/dmsc/mini65-sim/cpu"
	"github.com/dmsc/mini65-sim/errors"
	"github.com/dmsc/mini65-sim/hostio"
	"github.com/dmsc/mini65-sim/logger"
	"github.com/dmsc/mini65-sim/mem"
	"github.com/dmsc/mini65-sim/profiler"
)

// Memory map constants transcribed from atari_bios_init's APP_RAM/LOW_RAM
// layout: 48KiB of usable RAM, a one-byte ROM stub at the BIOS' base
// address so a stray read of the bottom of ROM finds something defined.
const (
	appRAM  = 0xC000
	romBase = 0xE000

	dosvecAddr = 0x0A // DOSVEC, cleared so sio.Boot skips its final call unless dos.NewSystem repoints it
)

// defaultLogSize is the ring-buffer capacity used when Options.LogSize
// is left zero.
const defaultLogSize = 512

// defaultSectorSize and defaultSectorCount give every new Env a disk
// image before a front end calls LoadATR: 720 single-density (128-byte)
// sectors, zeroed — the standard single-density Atari disk geometry.
const (
	defaultSectorSize  = 128
	defaultSectorCount = 720
)

// Options configures a new Env. A zero value is usable: it selects the
// default host I/O (raw terminal, or a buffered fallback), the "memory"
// error-level policy, no cycle limit, DOS emulation enabled, and the
// emulated disk sandboxed to the current directory.
type Options struct {
	Host       hostio.Host // nil selects hostio.NewDefault(Bypass)
	Bypass     bool        // passed to hostio.NewDefault when Host is nil
	ErrorLevel cpu.ErrorLevel
	CycleLimit uint64
	RootPath   string // sandbox root for the emulated disk; "" means "."
	NoDOS      bool   // skip installing the DOS COMTAB personality
	LogSize    int    // ring-buffer capacity; 0 selects defaultLogSize
	HWSeed     int64  // POKEY RANDOM seed; 0 selects a fixed default seed
}

// Env owns every piece of state one simulation run needs: the address
// space, the execution engine, the CIO/SIO/DOS personality layers, the
// emulated disk, and the profiler.
type Env struct {
	Mem     *mem.Memory
	Engine  *cpu.Engine
	Log     *logger.Log
	Host    hostio.Host
	CIO     *cio.System
	SIO     *sio.System
	DOS     *dos.System // nil if Options.NoDOS was set
	Disk    *sio.Disk
	Profile *profiler.Profile

	cleanup func()
}

// New builds an Env from opts: the BIOS memory layout, the four hardware
// registers the BIOS reads directly (CONSOL, RANDOM, PORTB and VCOUNT;
// hardware.go), and the
// standard HATABS device set (Editor pre-opened on channel 0, Screen,
// Keyboard, Printer, Cassette, emulated Disk).
func New(opts Options) (*Env, error) {
	host := opts.Host
	cleanup := func() {}
	if host == nil {
		h, c, err := hostio.NewDefault(opts.Bypass)
		if err != nil {
			return nil, errors.Errorf("sim: host i/o: %v", err)
		}
		host, cleanup = h, c
	}

	logSize := opts.LogSize
	if logSize <= 0 {
		logSize = defaultLogSize
	}
	log := logger.NewLogger(logSize)

	m := mem.New()
	m.AddRAM(0, appRAM)
	m.AddZeroedRAM(0x80, 0x20)
	m.AddDataROM(romBase, []byte{0x60})
	m.AddDataRAM(dosvecAddr, []byte{0, 0})

	e := cpu.NewEngine(m, log)
	e.ErrorLevel = opts.ErrorLevel
	e.CycleLimit = opts.CycleLimit

	hwSeed := opts.HWSeed
	if hwSeed == 0 {
		hwSeed = 0xf1ea5eed // rand32's fixed seed, for reproducible runs
	}
	newHardware(e, hwSeed)

	root := opts.RootPath
	if root == "" {
		root = "."
	}

	disk := sio.NewDisk(defaultSectorSize, defaultSectorCount)
	siosys := sio.NewSystem(e, disk)
	ciosys := cio.NewSystem(e, host)

	ciosys.RegisterAt(cio.NewEditor(host), 0x1000, 2)
	ciosys.Register(cio.NewScreen(&cio.Screen{}), 0x1001)
	ciosys.Register(cio.NewKeyboard(host), 0x1002)
	ciosys.Register(cio.NewPrinter(), 0x1003)
	ciosys.Register(cio.NewCassette(), 0x1004)
	ciosys.Register(cio.NewDiskDevice(root).AsDevice(), 0x1005)

	if err := ciosys.OpenChannel(0, 'E'); err != nil {
		cleanup()
		return nil, errors.Errorf("sim: pre-opening channel 0: %v", err)
	}

	var dossys *dos.System
	if !opts.NoDOS {
		dossys = dos.NewSystem(e)
	}

	return &Env{
		Mem:     m,
		Engine:  e,
		Log:     log,
		Host:    host,
		CIO:     ciosys,
		SIO:     siosys,
		DOS:     dossys,
		Disk:    disk,
		Profile: profiler.New(),
		cleanup: cleanup,
	}, nil
}

// Close releases host resources acquired by New (e.g. restoring the
// terminal's cooked mode).
func (env *Env) Close() {
	if env.cleanup != nil {
		env.cleanup()
	}
}

// LoadXEX loads a segmented executable from r and runs its INITAD/RUNAD
// chain, per atari/loader.LoadXEX.
func (env *Env) LoadXEX(r io.Reader) error {
	return loader.LoadXEX(env.Engine, r)
}

// LoadROM loads a verbatim ROM (or cartridge) image from r at base, and,
// if it carries a standard cartridge trailer, starts it.
func (env *Env) LoadROM(r io.Reader, base uint16) error {
	cart, err := loader.LoadROM(env.Engine, r, base)
	if err != nil {
		return err
	}
	if cart == nil {
		return nil
	}
	run, err := cart.Start(env.Engine)
	if err != nil {
		return err
	}
	return env.Engine.Call(run)
}

// LoadATR decodes an ATR disk image from raw and attaches it as the
// emulated disk, replacing whatever was previously attached.
func (env *Env) LoadATR(raw []byte) error {
	disk, err := sio.DecodeATR(raw)
	if err != nil {
		return err
	}
	env.Disk = disk
	env.SIO.Disk = disk
	return nil
}

// Boot runs the ROM disk-boot sequence against the currently attached
// disk image.
func (env *Env) Boot() error {
	return sio.Boot(env.Engine, env.Disk)
}

// AddCmdline forwards to the DOS personality's command-line buffer
// construction; a no-op if DOS emulation was disabled.
func (env *Env) AddCmdline(arg string) {
	if env.DOS != nil {
		env.DOS.AddCmdline(arg)
	}
}

// Run executes starting at addr until a fault stops the engine. profile
// selects whether each instruction is additionally recorded into
// env.Profile — off by default since it roughly doubles per-instruction
// overhead.
func (env *Env) Run(addr uint16, profile bool) error {
	env.Engine.Reg.PC = addr
	if !profile {
		return env.Engine.Run()
	}
	for {
		if err := env.Profile.Step(env.Engine); err != nil {
			return err
		}
	}
}

// WriteProfile writes the accumulated profile as the plain-text snapshot
// format to w.
func (env *Env) WriteProfile(w io.Writer) error {
	return env.Profile.WriteText(w, env.Mem)
}
