// Package loader implements the Atari binary loading state machines: the
// segmented-executable (XEX) format and the verbatim ROM/cartridge loader.
package loader

import (
	"bufio"
	"io"

	"github.com/dmsc/mini65-sim/cpu"
	"github.com/dmsc/mini65-sim/errors"
)

// RUNAD and INITAD are the fixed vectors an XEX load honors: RUNAD names
// the program's entry point (read at EOF), INITAD names a per-segment
// init routine (read and cleared as soon as a segment finishes loading).
const (
	RUNAD  = 0x02E0
	INITAD = 0x02E2
)

type xexState int

const (
	stateMagic0 xexState = iota
	stateMagic1
	stateStartLo
	stateStartHi
	stateEndLo
	stateEndHi
	stateData
	stateNextLo
	stateNextHi
)

// LoadXEX reads a segmented executable from r into e's memory, following
// the documented byte-at-a-time state machine: each segment is framed by
// a start/end address pair (or a repeated 0xFF 0xFF magic introducing the
// next one), loaded verbatim, and INITAD is called and cleared as soon as
// a segment completes. At EOF, RUNAD is called if set, else the first
// segment's start address.
func LoadXEX(e *cpu.Engine, r io.Reader) error {
	br := bufio.NewReader(r)

	state := stateMagic0
	var start, end, next uint16
	firstSegmentStart := uint16(0)
	haveFirstStart := false
	pos := uint16(0)

	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Errorf(errors.XEXFormatError, err)
		}

		switch state {
		case stateMagic0:
			if b != 0xFF {
				return errors.Errorf(errors.XEXFormatError, badMagic(b))
			}
			state = stateMagic1
		case stateMagic1:
			if b != 0xFF {
				return errors.Errorf(errors.XEXFormatError, badMagic(b))
			}
			state = stateStartLo
		case stateStartLo:
			start = uint16(b)
			state = stateStartHi
		case stateStartHi:
			start |= uint16(b) << 8
			if !haveFirstStart {
				firstSegmentStart = start
				haveFirstStart = true
			}
			state = stateEndLo
		case stateEndLo:
			end = uint16(b)
			state = stateEndHi
		case stateEndHi:
			end |= uint16(b) << 8
			pos = start
			state = stateData
		case stateData:
			e.Mem.AddDataRAM(pos, []byte{b})
			if pos == end {
				if err := finishSegment(e); err != nil {
					return err
				}
				state = stateNextLo
			} else {
				pos++
			}
		case stateNextLo:
			next = uint16(b)
			state = stateNextHi
		case stateNextHi:
			next |= uint16(b) << 8
			if next == 0xFFFF {
				// The two bytes just read were a repeated 0xFF 0xFF magic,
				// not a start address; the real start address follows.
				state = stateStartLo
			} else {
				start = next
				if !haveFirstStart {
					firstSegmentStart = start
					haveFirstStart = true
				}
				state = stateEndLo
			}
		}
	}

	runad := uint16(e.Mem.RawRead(RUNAD)) | uint16(e.Mem.RawRead(RUNAD+1))<<8
	if runad != 0 {
		return e.Call(runad)
	}
	return e.Call(firstSegmentStart)
}

func badMagic(b byte) error {
	return errors.Errorf("expected $FF magic, got $%02X", b)
}

func finishSegment(e *cpu.Engine) error {
	initad := uint16(e.Mem.RawRead(INITAD)) | uint16(e.Mem.RawRead(INITAD+1))<<8
	if initad == 0 {
		return nil
	}
	e.Mem.RawWrite(INITAD, 0)
	e.Mem.RawWrite(INITAD+1, 0)
	return e.Call(initad)
}
