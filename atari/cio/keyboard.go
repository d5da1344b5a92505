package cio

import (
	"io"

	"github.com/dmsc/mini65-sim/hostio"
)

// NewKeyboard returns the "K:" device: read-only, GET pulls one character
// from host via the same translation the editor uses, OPEN refuses a
// write-enabled request.
func NewKeyboard(host hostio.Host) Device {
	return Device{
		Letter: 'K',
		Open: func(ch *Channel) error {
			if ch.Aux1()&0x8 != 0 {
				ch.fail(ch.Engine(), ErrWriteOnly)
				return nil
			}
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
	}
}
