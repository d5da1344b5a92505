package sio

import (
	"github.com/dmsc/mini65-sim/cpu"
	"github.com/dmsc/mini65-sim/errors"
)

// DOSVEC and DOSINI are the OS vectors the boot sequence finally re-enters
// through, read from RAM after the loaded boot code has had a chance to
// install them — neither lives in the boot-sector header itself.
const (
	DOSVEC = 0x0A
	DOSINI = 0x0C
)

// bootEntryOffset is the offset from a disk's declared boot address to
// its actual entry point, the convention every Atari boot sector follows.
const bootEntryOffset = 6

// Boot runs the ROM disk-boot sequence against disk: read sector 1 into
// $0400, parse its header, load the remaining boot sectors contiguously
// from the header's boot address, then call into the loaded code and
// finally the DOSINI/DOSVEC vectors, read from memory since the loaded
// code is expected to have installed them by the time it returns.
func Boot(e *cpu.Engine, disk *Disk) error {
	const sector1Addr = 0x0400

	sec1, err := disk.ReadSector(1)
	if err != nil {
		return errors.Errorf("sio: boot: %v", err)
	}
	e.Mem.AddDataRAM(sector1Addr, sec1)

	if len(sec1) < 6 {
		return errors.Errorf("sio: boot: sector 1 too short for a boot header")
	}
	count := int(sec1[1])
	if count < 1 {
		count = 1
	}
	bootAddr := uint16(sec1[2]) | uint16(sec1[3])<<8

	e.Mem.AddDataRAM(bootAddr, sec1[:bootSectorSize])
	for sector := 2; sector <= count; sector++ {
		buf, err := disk.ReadSector(sector)
		if err != nil {
			return errors.Errorf("sio: boot: %v", err)
		}
		dest := bootAddr + uint16(sector-1)*bootSectorSize
		e.Mem.AddDataRAM(dest, buf)
	}

	if err := e.Call(bootAddr + bootEntryOffset); err != nil {
		return errors.Errorf("sio: boot entry: %v", err)
	}
	dosini := uint16(e.Mem.RawRead(DOSINI)) | uint16(e.Mem.RawRead(DOSINI+1))<<8
	if dosini != 0 {
		if err := e.Call(dosini); err != nil {
			return errors.Errorf("sio: dosini: %v", err)
		}
	}
	dosvec := uint16(e.Mem.RawRead(DOSVEC)) | uint16(e.Mem.RawRead(DOSVEC+1))<<8
	if dosvec != 0 {
		if err := e.Call(dosvec); err != nil {
			return errors.Errorf("sio: dosvec: %v", err)
		}
	}
	return nil
}
