package session

import (
	"fmt"

	"busbridge/firmware/errlog"
)

// ProtocolError wraps an unexpected failure at the wire level with
// the operation that triggered it ({Op, Err} call-site wrapping).
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("session: %s: %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// Timeout reports that an operation's 2s read deadline (serial.
// ReadTimeout) elapsed before the board replied.
type Timeout struct{ Op string }

func (e Timeout) Error() string { return fmt.Sprintf("session: %s: timed out", e.Op) }

// HandshakeFailed reports a connect reply whose first two bytes
// weren't 'O','K'.
type HandshakeFailed struct{ Got []byte }

func (e HandshakeFailed) Error() string {
	return fmt.Sprintf("session: handshake failed: got %#v", e.Got)
}

// BusBusy reports an ERR reply whose last-error code means the bus is
// in the wrong state for the request (not ready, not started, already
// stopped) rather than a hard protocol fault.
type BusBusy struct {
	Op   string
	Code errlog.Code
}

func (e BusBusy) Error() string { return fmt.Sprintf("session: %s: bus busy (%v)", e.Op, e.Code) }

// InvalidArgument reports a parameter rejected before anything was
// sent to the board (e.g. an out-of-range I2C address or mode code).
type InvalidArgument struct {
	Op  string
	Msg string
}

func (e InvalidArgument) Error() string {
	return fmt.Sprintf("session: %s: invalid argument: %s", e.Op, e.Msg)
}
