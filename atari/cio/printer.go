package cio

// NewPrinter returns the "P:" device: write-only, PUT always reports
// success without producing visible output, since no host printer is
// modeled.
func NewPrinter() Device {
	return Device{
		Letter: 'P',
		Open: func(ch *Channel) error {
			ch.ok(0)
			return nil
		},
		Close: func(ch *Channel) error {
			ch.ok(0)
			return nil
		},
		Put: func(ch *Channel) error {
			ch.ok(ch.Engine().Reg.A)
			return nil
		},
		Status: func(ch *Channel) error {
			ch.ok(0)
			return nil
		},
	}
}
