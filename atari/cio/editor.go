package cio

import (
	"io"

	"github.com/dmsc/mini65-sim/hostio"
)

// maxRow is the last screen row (ANTIC mode 0 text, 24 rows numbered 0-23),
// the wrap limit sim_EDITR clamps ROWCRS to.
const maxRow = 23

// NewEditor returns the "E:" device: GET reads a host character (EOF maps
// to CIO error 136), PUT writes one while tracking ROWCRS/COLCRS against
// LMARGN/RMARGN so a column wrap or an explicit EOL advances the row,
// mirroring sim_EDITR's cursor bookkeeping. COLCRS is nominally a 2-byte
// field but text mode columns never exceed 39, so only its low byte is
// tracked here.
func NewEditor(host hostio.Host) Device {
	return Device{
		Letter: 'E',
		Open: func(ch *Channel) error {
			ch.PokeByte(LMARGN, 2)
			ch.PokeByte(RMARGN, 39)
			ch.ok(0)
			return nil
		},
		Close: func(ch *Channel) error {
			ch.ok(0)
			return nil
		},
		Get: func(ch *Channel) error {
			b, err := host.GetChar()
			if err == io.EOF {
				ch.fail(ch.Engine(), ErrEOF)
				return nil
			}
			if err != nil {
				return err
			}
			ch.ok(b)
			return nil
		},
		Put: func(ch *Channel) error {
			putEditorChar(ch, host)
			return nil
		},
	}
}

func putEditorChar(ch *Channel, host hostio.Host) {
	a := ch.Engine().Reg.A
	host.PutChar(a)

	if a == hostio.EOL {
		advanceEditorRow(ch)
		ch.PokeByte(COLCRS, ch.PeekByte(LMARGN))
		ch.ok(a)
		return
	}

	col := ch.PeekByte(COLCRS)
	margin := ch.PeekByte(RMARGN)
	if col >= margin {
		advanceEditorRow(ch)
		ch.PokeByte(COLCRS, ch.PeekByte(LMARGN))
	} else {
		ch.PokeByte(COLCRS, col+1)
	}
	ch.ok(a)
}

func advanceEditorRow(ch *Channel) {
	row := ch.PeekByte(ROWCRS)
	if row < maxRow {
		row++
	}
	ch.PokeByte(ROWCRS, row)
}
