// Package hostio implements the three host I/O primitives the Atari
// personality layer is built on: get_char, peek_char and put_char. The
// default implementation puts the controlling terminal into cbreak mode
// (one character at a time, no line editing) via github.com/pkg/term, the
// same termios wrapper the reference terminal tooling in this codebase's
// lineage uses, and translates between the host's line-feed convention and
// the Atari's EOL byte (0x9B). Non-terminal stdin (a pipe or a redirected
// file) falls back to a buffered reader with the same translation.
package hostio

import (
	"bufio"
	"io"
	"os"
	"syscall"

	"github.com/pkg/term/termios"
)

const (
	// EOL is the Atari end-of-line byte, delivered to guest code in place
	// of a host line feed unless translation is bypassed.
	EOL = 0x9B
	// InverseVideo is the host ASCII '-' substituted for an Atari
	// inverse-video space (0x12) on output when translation is active.
	InverseVideo = 0x12
)

// Host is the interface the Atari personality layer depends on for
// character I/O. GetChar returns (EOL-or-byte, nil) on a character,
// (0, io.EOF) at end of input. PeekChar is the same but non-consuming.
type Host interface {
	GetChar() (byte, error)
	PeekChar() (byte, error)
	PutChar(b byte)
}

// translating wraps a byteSource/sink pair with the default host
// line-feed/Atari-EOL translation. Bypass (-b) skips this by using raw
// directly instead.
type translating struct {
	src byteSource
	out io.Writer
}

type byteSource interface {
	ReadByte() (byte, error)
	PeekByte() (byte, error)
}

// NewDefault returns the Host appropriate for stdin/stdout: cbreak-mode
// raw terminal access if stdin is a terminal, else a buffered reader, in
// both cases with EOL translation applied. bypass disables translation,
// matching the -b command line flag.
func NewDefault(bypass bool) (Host, func(), error) {
	var src byteSource
	var cleanup func()

	if term, err := newRawTerminal(os.Stdin); err == nil {
		src = term
		cleanup = term.restore
	} else {
		src = newBufferedSource(os.Stdin)
		cleanup = func() {}
	}

	if bypass {
		return &rawHost{src: src, out: os.Stdout}, cleanup, nil
	}
	return &translating{src: src, out: os.Stdout}, cleanup, nil
}

func (t *translating) GetChar() (byte, error) {
	b, err := t.src.ReadByte()
	if err != nil {
		return 0, err
	}
	if b == '\n' {
		b = EOL
	}
	return b, nil
}

func (t *translating) PeekChar() (byte, error) {
	b, err := t.src.PeekByte()
	if err != nil {
		return 0, err
	}
	if b == '\n' {
		b = EOL
	}
	return b, nil
}

func (t *translating) PutChar(b byte) {
	switch b {
	case EOL:
		io.WriteString(t.out, "\n")
	case InverseVideo:
		io.WriteString(t.out, "-")
	default:
		t.out.Write([]byte{b})
	}
}

// rawHost bypasses EOL translation entirely (-b flag): bytes pass through
// unmodified in both directions.
type rawHost struct {
	src byteSource
	out io.Writer
}

func (r *rawHost) GetChar() (byte, error)  { return r.src.ReadByte() }
func (r *rawHost) PeekChar() (byte, error) { return r.src.PeekByte() }
func (r *rawHost) PutChar(b byte)          { r.out.Write([]byte{b}) }

// bufferedSource is the non-terminal fallback (pipes, redirected files),
// backed by a bufio.Reader which natively supports peek.
type bufferedSource struct {
	r *bufio.Reader
}

func newBufferedSource(f *os.File) *bufferedSource {
	return &bufferedSource{r: bufio.NewReader(f)}
}

func (b *bufferedSource) ReadByte() (byte, error) { return b.r.ReadByte() }

func (b *bufferedSource) PeekByte() (byte, error) {
	p, err := b.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// rawTerminal reads a real terminal one byte at a time in cbreak mode,
// keeping its own one-byte lookahead since termios raw reads do not
// support ungetc.
type rawTerminal struct {
	f         *os.File
	canon     syscall.Termios
	cbreak    syscall.Termios
	lookahead *byte
}

func newRawTerminal(f *os.File) (*rawTerminal, error) {
	var canon syscall.Termios
	if err := termios.Tcgetattr(f.Fd(), &canon); err != nil {
		return nil, err
	}
	cbreak := canon
	termios.Cfmakecbreak(&cbreak)
	if err := termios.Tcsetattr(f.Fd(), termios.TCIFLUSH, &cbreak); err != nil {
		return nil, err
	}
	return &rawTerminal{f: f, canon: canon, cbreak: cbreak}, nil
}

func (t *rawTerminal) restore() {
	termios.Tcsetattr(t.f.Fd(), termios.TCIFLUSH, &t.canon)
}

func (t *rawTerminal) readOne() (byte, error) {
	var buf [1]byte
	n, err := t.f.Read(buf[:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return buf[0], nil
}

func (t *rawTerminal) ReadByte() (byte, error) {
	if t.lookahead != nil {
		b := *t.lookahead
		t.lookahead = nil
		return b, nil
	}
	return t.readOne()
}

func (t *rawTerminal) PeekByte() (byte, error) {
	if t.lookahead == nil {
		b, err := t.readOne()
		if err != nil {
			return 0, err
		}
		t.lookahead = &b
	}
	return *t.lookahead, nil
}
