// This file is part of mini65-sim.

package errors

// error messages
const (
	// panics
	PanicError = "panic: %v: %v"

	// sentinels
	UserInterrupt = "user interrupt"
	PowerOff      = "simulation halted"

	// command line
	FlagError        = "flag error: %v"
	InputFileMissing = "no input file specified"
	UnknownLoaderKind = "cannot determine loader for %v"

	// loaders
	XEXFormatError       = "xex error: %v"
	XEXSegmentOOB        = "xex error: segment at %#04x, length %d, runs past end of address space"
	ROMTooLarge          = "rom error: image of %d bytes does not fit at %#04x"
	CartridgeHeaderError = "cartridge error: %v"

	// disk images
	ATRFormatError      = "atr error: %v"
	ATRSectorOOB        = "atr error: sector %d out of range (image has %d sectors)"
	ATRWriteProtected   = "atr error: image is write protected"

	// DOS personality
	RootPathEscape   = "dos error: path %q escapes the sandboxed root"
	FileNameTooLong  = "dos error: file name %q is too long"

	// memory
	UnreadableAddress = "memory error: cannot read address %#04x"
	UnwritableAddress = "memory error: cannot write address %#04x"
	UnpokeableAddress = "memory error: cannot poke address %#04x"

	// cpu
	UnimplementedInstruction = "cpu error: unimplemented instruction (%#02x) at (%#04x)"

	// profiler / disassembler
	SnapshotFormatError = "snapshot error: %v"
)
