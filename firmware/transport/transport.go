// Package transport adapts a physical byte-stream port (USB-CDC or
// UART on the board, a host serial port on the desktop) into
// firmware/dispatch's ByteSource, bounding every single-byte read to
// the per-byte timeout spec.md §4.1 step 1's framing relies on.
package transport

import (
	"context"
	"errors"
	"time"
)

// Port is the raw byte-stream surface a board-side UART driver
// exposes: a plain Write plus a context-bounded receive, grounded on
// the teacher's halcore.UARTPort (RecvSomeContext lets a single read
// be cancelled by a deadline without the port itself needing to know
// about timeouts).
type Port interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

// ByteTimeout bounds each single-byte read Stream performs. Overridable
// for tests; production boards leave it at the default.
var ByteTimeout = 2 * time.Second

// ErrNoByte is returned when RecvSomeContext reports success but
// delivered zero bytes before its context expired.
var ErrNoByte = errors.New("transport: no byte available")

// Stream adapts a Port into dispatch.ByteSource plus io.Writer, one
// byte at a time. Each ReadByte call gets its own ByteTimeout-bounded
// context, matching the "read with per-byte timeout" framing the
// dispatcher's command table assumes.
type Stream struct {
	port Port
}

func NewStream(port Port) *Stream { return &Stream{port: port} }

func (s *Stream) ReadByte() (byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ByteTimeout)
	defer cancel()
	var buf [1]byte
	n, err := s.port.RecvSomeContext(ctx, buf[:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNoByte
	}
	return buf[0], nil
}

func (s *Stream) Write(p []byte) (int, error) { return s.port.Write(p) }
