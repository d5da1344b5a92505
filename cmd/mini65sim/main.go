// Command mini65sim loads an Atari 8-bit program — a segmented
// executable or a raw ROM image — and runs it against the simulator,
// impersonating just enough of the OS ROM for CIO/SIO-calling programs
// to work without a real ROM image.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dmsc/mini65-sim/cpu"
	"github.com/dmsc/mini65-sim/errors"
	"github.com/dmsc/mini65-sim/internal/fault"
	"github.com/dmsc/mini65-sim/sim"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("mini65sim", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	debug := fs.Bool("d", false, "dump the debug/soft-fault log to stderr on exit")
	traceFile := fs.String("t", "", "write the debug/soft-fault log to `file` on exit")
	bypass := fs.Bool("b", false, "raw i/o, no ATASCII/ASCII EOL translation")
	noDOS := fs.Bool("D", false, "disable DOS command-line emulation")
	rootPath := fs.String("R", ".", "root `path` for the emulated disk")
	atrFile := fs.String("I", "", "load an ATR disk image from `file`")
	romAddr := fs.Uint("r", 0, "load the input file as a raw ROM image at `addr`")
	fs.String("l", "", "label `file` (accepted, not used by this build)")
	errLevel := fs.String("e", "m", "memory fault strictness: n(one), m(emory), f(ull)")
	profileOut := fs.String("p", "", "write a text profile snapshot to `file`")
	binProfile := fs.String("P", "", "read/accumulate/write binary profile data at `file`")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [options] <filename> [args...]\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, errors.Errorf(errors.InputFileMissing))
		fs.Usage()
		return 1
	}

	level, err := parseErrorLevel(*errLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	env, err := sim.New(sim.Options{
		ErrorLevel: level,
		RootPath:   *rootPath,
		NoDOS:      *noDOS,
		Bypass:     *bypass,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.Close()
	defer dumpLog(env, *debug, *traceFile)

	if *binProfile != "" {
		if f, err := os.Open(*binProfile); err == nil {
			err := env.Profile.ReadBinary(f)
			f.Close()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
		}
	}

	filename := fs.Arg(0)
	env.AddCmdline(filename)
	for _, a := range fs.Args()[1:] {
		env.AddCmdline(a)
	}

	if *atrFile != "" {
		raw, err := os.ReadFile(*atrFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := env.LoadATR(raw); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer f.Close()

	var runErr error
	if *romAddr != 0 {
		runErr = env.LoadROM(f, uint16(*romAddr))
	} else {
		runErr = env.LoadXEX(f)
	}

	if *profileOut != "" {
		if pf, err := os.Create(*profileOut); err == nil {
			env.WriteProfile(pf)
			pf.Close()
		}
	}
	if *binProfile != "" {
		if pf, err := os.Create(*binProfile); err == nil {
			env.Profile.WriteBinary(pf)
			pf.Close()
		}
	}

	return report(runErr)
}

// dumpLog drains the simulation's soft-fault log to stderr (-d)
// or to traceFile (-t) when requested.
func dumpLog(env *sim.Env, debug bool, traceFile string) {
	if debug {
		env.Log.Write(os.Stderr)
	}
	if traceFile != "" {
		if f, err := os.Create(traceFile); err == nil {
			env.Log.Write(f)
			f.Close()
		}
	}
}

// report prints the user-visible abort/stop message and returns the
// process exit status: 0 for a clean cycle-limit stop, 1 for any other
// fault.
func report(err error) int {
	if err == nil {
		return 0
	}
	f, ok := err.(fault.Fault)
	if !ok {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if f.Kind == fault.CycleLimit {
		fmt.Fprintf(os.Stderr, "stopped at $%04X\n", f.Addr)
		return 0
	}
	fmt.Fprintf(os.Stderr, "%s at address $%04X\n", f.Kind, f.Addr)
	return 1
}

func parseErrorLevel(s string) (cpu.ErrorLevel, error) {
	switch s {
	case "n", "none":
		return cpu.LevelNone, nil
	case "m", "memory", "":
		return cpu.LevelMemory, nil
	case "f", "full":
		return cpu.LevelFull, nil
	default:
		return 0, errors.Errorf(errors.FlagError, fmt.Sprintf("unknown error level %q", s))
	}
}
