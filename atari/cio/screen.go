package cio

// screenWidth and screenHeight size the shadow buffer all graphics modes
// share, per the "not pixel-accurate" simplification: a single coarse
// canvas stands in for every ANTIC graphics mode's actual resolution.
const (
	screenWidth  = 320
	screenHeight = 200
)

// Screen is the "S:" device's shadow framebuffer, one byte (color/fill
// value) per cell, plus the graphics mode OPEN last selected.
type Screen struct {
	mode   byte
	pixels [screenWidth * screenHeight]byte
}

// At returns the color byte plotted at (col, row), or (0, false) if the
// coordinate is out of bounds.
func (s *Screen) At(col, row int) (byte, bool) {
	if col < 0 || row < 0 || col >= screenWidth || row >= screenHeight {
		return 0, false
	}
	return s.pixels[row*screenWidth+col], true
}

func (s *Screen) set(col, row int, v byte) bool {
	if col < 0 || row < 0 || col >= screenWidth || row >= screenHeight {
		return false
	}
	s.pixels[row*screenWidth+col] = v
	return true
}

// NewScreen returns the "S:" device backed by s. OPEN records the
// requested graphics mode (Aux1); PUT plots ATACHR at (COLCRS,ROWCRS);
// SPECIAL 17/18 are DrawTo/FillTo, keyed by FILFLG, each reporting
// success only when the target coordinate is in bounds.
func NewScreen(s *Screen) Device {
	return Device{
		Letter: 'S',
		Open: func(ch *Channel) error {
			s.mode = ch.Aux1()
			ch.ok(0)
			return nil
		},
		Close: func(ch *Channel) error {
			ch.ok(0)
			return nil
		},
		Put: func(ch *Channel) error {
			col := int(ch.PeekByte(COLCRS)) | int(ch.PeekByte(COLCRS+1))<<8
			row := int(ch.PeekByte(ROWCRS))
			color := ch.PeekByte(ATACHR)
			if !s.set(col, row, color) {
				ch.fail(ch.Engine(), 0xA6) // cursor out of range
				return nil
			}
			ch.ok(ch.Engine().Reg.A)
			return nil
		},
		Status: func(ch *Channel) error {
			ch.ok(0)
			return nil
		},
		Special: func(ch *Channel) error {
			screenSpecial(ch, s)
			return nil
		},
	}
}

func screenSpecial(ch *Channel, s *Screen) {
	col := int(ch.PeekByte(COLCRS)) | int(ch.PeekByte(COLCRS+1))<<8
	row := int(ch.PeekByte(ROWCRS))

	fill := ch.PeekByte(FILFLG) != 0
	var color byte
	if fill {
		color = ch.PeekByte(FILDAT)
	} else {
		color = ch.PeekByte(ATACHR)
	}

	if !s.set(col, row, color) {
		ch.fail(ch.Engine(), 0xA6)
		return
	}
	ch.ok(0)
}
