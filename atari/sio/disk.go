// Package sio implements the Atari Serial I/O disk-drive protocol: DCB
// dispatch at the SIOV exec-callback, an in-memory ATR disk image, and
// the ROM disk-boot sequence.
package sio

import (
	"encoding/binary"
	"fmt"

	"github.com/dmsc/mini65-sim/errors"
)

// Disk is an ATR-backed disk image: sectors 1-3 are always 128 bytes
// regardless of the image's nominal sector size, the boot-area
// convention every Atari disk format follows.
type Disk struct {
	SectorSize  int
	SectorCount int
	data        []byte // sector 1 at offset 0, laid out at this image's native sizing
}

// bootSectorSize is the fixed size of sectors 1-3 in every Atari disk
// image, independent of the image's declared sector size.
const bootSectorSize = 128

// NewDisk returns a zeroed disk image of sectorCount sectors, each
// sectorSize bytes (except the first three, always 128 bytes).
func NewDisk(sectorSize, sectorCount int) *Disk {
	d := &Disk{SectorSize: sectorSize, SectorCount: sectorCount}
	d.data = make([]byte, d.offset(sectorCount+1))
	return d
}

func (d *Disk) sectorLen(sector int) int {
	if sector >= 1 && sector <= 3 {
		return bootSectorSize
	}
	return d.SectorSize
}

// offset returns the byte offset of the start of sector n (1-based).
func (d *Disk) offset(n int) int {
	off := 0
	for s := 1; s < n; s++ {
		off += d.sectorLen(s)
	}
	return off
}

// ReadSector returns a copy of sector's bytes, or an error if sector is
// out of [1, SectorCount].
func (d *Disk) ReadSector(sector int) ([]byte, error) {
	if sector < 1 || sector > d.SectorCount {
		return nil, errors.Errorf(errors.ATRSectorOOB, sector, d.SectorCount)
	}
	start := d.offset(sector)
	buf := make([]byte, d.sectorLen(sector))
	copy(buf, d.data[start:start+len(buf)])
	return buf, nil
}

// WriteSector overwrites sector with data, truncated or zero-padded to
// the sector's natural length.
func (d *Disk) WriteSector(sector int, data []byte) error {
	if sector < 1 || sector > d.SectorCount {
		return errors.Errorf(errors.ATRSectorOOB, sector, d.SectorCount)
	}
	start := d.offset(sector)
	n := copy(d.data[start:start+d.sectorLen(sector)], data)
	for i := start + n; i < start+d.sectorLen(sector); i++ {
		d.data[i] = 0
	}
	return nil
}

// atrMagic is the fixed two-byte ATR signature.
const atrMagic = 0x0296

// DecodeATR parses an ATR image. Some images pad sectors 1-3 to the
// declared sector size even though the header's nominal paragraph count
// excludes the padding; DecodeATR reconstructs the expected size both
// ways and picks whichever layout ("three short sectors" or uniform)
// matches the actual buffer length, per the format's documented quirk.
func DecodeATR(raw []byte) (*Disk, error) {
	if len(raw) < 16 {
		return nil, errors.Errorf(errors.ATRFormatError, "image too short")
	}
	magic := binary.LittleEndian.Uint16(raw[0:2])
	if magic != atrMagic {
		return nil, errors.Errorf(errors.ATRFormatError, fmt.Sprintf("bad magic %#04x", magic))
	}
	sizeLo := binary.LittleEndian.Uint16(raw[2:4])
	sizeHi := binary.LittleEndian.Uint16(raw[6:8])
	sectorSize := int(binary.LittleEndian.Uint16(raw[4:6]))
	paragraphs := int(sizeLo) | int(sizeHi)<<16
	nominalBytes := paragraphs * 16

	body := raw[16:]

	if sectorSize == bootSectorSize {
		count := len(body) / bootSectorSize
		d := &Disk{SectorSize: sectorSize, SectorCount: count}
		d.data = append([]byte(nil), body...)
		return d, nil
	}

	threeShortTotal := 3 * bootSectorSize
	remaining := len(body) - threeShortTotal
	countIfShort := 3 + remaining/sectorSize
	expectedIfShort := threeShortTotal + (countIfShort-3)*sectorSize

	countIfUniform := len(body) / sectorSize
	expectedIfUniform := countIfUniform * sectorSize

	var d *Disk
	switch {
	case nominalBytes == expectedIfShort || expectedIfShort == len(body):
		d = &Disk{SectorSize: sectorSize, SectorCount: countIfShort}
		d.data = append([]byte(nil), body...)
	default:
		d = &Disk{SectorSize: sectorSize, SectorCount: countIfUniform}
		// Re-lay sectors 1-3 out at their true 128-byte size, compacting
		// the padding the image carries for them.
		compact := make([]byte, 0, expectedIfUniform)
		for s := 1; s <= countIfUniform; s++ {
			start := (s - 1) * sectorSize
			end := start + sectorSize
			if end > len(body) {
				end = len(body)
			}
			chunk := body[start:end]
			if s <= 3 && len(chunk) > bootSectorSize {
				chunk = chunk[:bootSectorSize]
			}
			compact = append(compact, chunk...)
		}
		d.data = compact
	}
	return d, nil
}
