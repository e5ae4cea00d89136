// Package serial implements SerialLink, the desktop side's framing
// layer over a board's USB-serial device: send_command, read_exact,
// read_until_crlf, and ack (spec.md §4.6), plus Open, which dials a
// real port through tarm/serial the way the teacher's mjolnir driver
// dials its engraver.
package serial

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	tserial "github.com/tarm/serial"

	"busbridge/wire"
)

// ReadTimeout is the 2s wall-clock bound spec.md §4.6 puts on every
// blocking read. Overridable so tests don't wait the full window.
var ReadTimeout = 2 * time.Second

// ErrTimeout is returned by any read that exceeds ReadTimeout.
var ErrTimeout = errors.New("serial: read timed out")

// SerialLink frames commands to a board and reads its replies. Not
// safe for concurrent use from more than one goroutine at a time
// (spec.md §5: "SerialLink is not shared across threads").
type SerialLink struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
	r    *bufio.Reader
}

// New wraps an already-open byte stream, letting tests substitute an
// in-memory pipe for a real port.
func New(port io.ReadWriteCloser) *SerialLink {
	return &SerialLink{port: port, r: bufio.NewReader(port)}
}

// Open dials path as a raw byte stream at baud (115200 if 0),
// grounded on mjolnir's device.Open/tarm/serial.OpenPort dial.
func Open(path string, baud int) (*SerialLink, error) {
	if baud <= 0 {
		baud = 115200
	}
	p, err := tserial.OpenPort(&tserial.Config{Name: path, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", path, err)
	}
	return New(p), nil
}

// Close releases the underlying port.
func (l *SerialLink) Close() error { return l.port.Close() }

// SendCommand writes cmd followed by an optional payload as a single
// frame (spec.md §4.1's command/prefix byte shapes).
func (l *SerialLink) SendCommand(cmd byte, payload ...byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	frame := make([]byte, 0, 1+len(payload))
	frame = append(frame, cmd)
	frame = append(frame, payload...)
	_, err := l.port.Write(frame)
	return err
}

// withDeadline runs a blocking read in its own goroutine and returns
// ErrTimeout if it hasn't finished within ReadTimeout. Per spec.md §9
// ("a desktop timeout closes the port; the firmware detects no client
// and continues its loop") the timed-out read's port is closed, which
// also unblocks the abandoned goroutine's Read.
func (l *SerialLink) withDeadline(read func() error) error {
	done := make(chan error, 1)
	go func() { done <- read() }()
	select {
	case err := <-done:
		return err
	case <-time.After(ReadTimeout):
		l.port.Close()
		return ErrTimeout
	}
}

// ReadExact reads exactly n bytes, failing with ErrTimeout after 2s.
func (l *SerialLink) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	err := l.withDeadline(func() error {
		_, err := io.ReadFull(l.r, buf)
		return err
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadUntilCRLF reads bytes until a "\r\n" terminator (inclusive) or
// max is exceeded, failing with ErrTimeout after 2s.
func (l *SerialLink) ReadUntilCRLF(max int) ([]byte, error) {
	var line []byte
	err := l.withDeadline(func() error {
		for {
			b, err := l.r.ReadByte()
			if err != nil {
				return err
			}
			line = append(line, b)
			if n := len(line); n >= 2 && line[n-2] == '\r' && line[n-1] == '\n' {
				return nil
			}
			if len(line) > max {
				return fmt.Errorf("serial: line exceeds %d bytes", max)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// Ack reads one byte and reports whether it was wire.Ack.
func (l *SerialLink) Ack() (bool, error) {
	b, err := l.ReadExact(1)
	if err != nil {
		return false, err
	}
	return b[0] == wire.Ack, nil
}
