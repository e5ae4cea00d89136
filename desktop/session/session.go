// Package session implements BoardSession, the desktop's view of one
// connected board: the connect handshake and version probe, mode
// negotiation, heartbeat LED control, and last-error retrieval of
// spec.md §4.6, each operation synchronous over a serial.SerialLink.
package session

import (
	"fmt"

	"busbridge/desktop/serial"
	"busbridge/firmware/errlog"
	"busbridge/wire"
)

// Version is the firmware major.minor a board reported at handshake.
type Version struct{ Major, Minor byte }

// BoardSession is the desktop's single connection to one board.
// Not safe for concurrent use (spec.md §5: one thread per session).
type BoardSession struct {
	link      *serial.SerialLink
	version   Version
	connected bool
}

// Connect performs the handshake (spec.md §4.6 step 2-4): send '!',
// read 4 bytes, classify them, and mark the session connected. A
// legacy board (reply "OK\r\n") is reported as version 1.1.
func Connect(link *serial.SerialLink) (*BoardSession, error) {
	if err := link.SendCommand(wire.CmdHandshake); err != nil {
		return nil, &ProtocolError{Op: "connect", Err: err}
	}
	reply, err := link.ReadExact(4)
	if err == serial.ErrTimeout {
		return nil, Timeout{Op: "connect"}
	}
	if err != nil {
		return nil, &ProtocolError{Op: "connect", Err: err}
	}
	if reply[0] != 'O' || reply[1] != 'K' {
		return nil, HandshakeFailed{Got: reply}
	}

	s := &BoardSession{link: link, connected: true}
	if reply[2] == '\r' {
		s.version = Version{Major: 1, Minor: 1}
	} else {
		s.version = Version{Major: reply[2], Minor: reply[3]}
	}
	return s, nil
}

// Version reports the firmware version classified at Connect.
func (s *BoardSession) Version() Version { return s.version }

// Connected reports whether the handshake has succeeded.
func (s *BoardSession) Connected() bool { return s.connected }

var modeCodes = map[byte]bool{
	wire.ModeNone: true, wire.ModeI2C: true, wire.ModeSPI: true,
	wire.ModeUART: true, wire.ModeOneWire: true,
}

// SetMode sends '#'<code> and waits for the board's ack. code must be
// one of the five mode bytes wire.go defines.
func (s *BoardSession) SetMode(code byte) error {
	if !modeCodes[code] {
		return InvalidArgument{Op: "set_mode", Msg: fmt.Sprintf("unknown mode code %q", code)}
	}
	if err := s.link.SendCommand(wire.CmdSetMode, code); err != nil {
		return &ProtocolError{Op: "set_mode", Err: err}
	}
	return s.checkAck("set_mode")
}

// SetHeartbeat enables or disables the heartbeat LED via '*'.
func (s *BoardSession) SetHeartbeat(on bool) error {
	var arg byte
	if on {
		arg = 1
	}
	if err := s.link.SendCommand(wire.CmdHeartbeat, arg); err != nil {
		return &ProtocolError{Op: "set_heartbeat", Err: err}
	}
	return s.checkAck("set_heartbeat")
}

// LastError fetches the board's detailed last-error register with '$'.
func (s *BoardSession) LastError() (errlog.Code, error) {
	if err := s.link.SendCommand(wire.CmdLastError); err != nil {
		return 0, &ProtocolError{Op: "last_error", Err: err}
	}
	reply, err := s.link.ReadExact(3)
	if err == serial.ErrTimeout {
		return 0, Timeout{Op: "last_error"}
	}
	if err != nil {
		return 0, &ProtocolError{Op: "last_error", Err: err}
	}
	return errlog.Code(reply[0]), nil
}

// StatusLine sends '?' and returns the CRLF-terminated status string
// (spec.md §6's I2C/1-Wire status formats; the caller distinguishes
// them by field count after splitting on '.').
func (s *BoardSession) StatusLine() (string, error) {
	if err := s.link.SendCommand(wire.CmdStatus); err != nil {
		return "", &ProtocolError{Op: "status", Err: err}
	}
	line, err := s.link.ReadUntilCRLF(256)
	if err == serial.ErrTimeout {
		return "", Timeout{Op: "status"}
	}
	if err != nil {
		return "", &ProtocolError{Op: "status", Err: err}
	}
	return string(line), nil
}

// Link exposes the underlying SerialLink so per-bus operation
// packages (i2cops, onewireops, gpioops) can issue commands directly
// while still going through this session's typed-error conventions
// via CheckAck/LastError.
func (s *BoardSession) Link() *serial.SerialLink { return s.link }

// CheckAck reads the ack byte a command just issued by Link produced
// and classifies a non-ack reply into a typed error, for operation
// packages that send their own command bytes.
func (s *BoardSession) CheckAck(op string) error { return s.checkAck(op) }

// checkAck reads the single ack byte a command produces and turns a
// non-ack reply into a typed error carrying the board's detailed
// last-error code, fetched with a follow-up '$' the way a CLI would.
func (s *BoardSession) checkAck(op string) error {
	ok, err := s.link.Ack()
	if err == serial.ErrTimeout {
		return Timeout{Op: op}
	}
	if err != nil {
		return &ProtocolError{Op: op, Err: err}
	}
	if ok {
		return nil
	}
	code, cerr := s.LastError()
	if cerr != nil {
		return &ProtocolError{Op: op, Err: cerr}
	}
	if isBusyCode(code) {
		return BusBusy{Op: op, Code: code}
	}
	return &ProtocolError{Op: op, Err: code}
}

// isBusyCode classifies last-error codes that mean "the bus is in the
// wrong state for this request" rather than a hard protocol fault.
func isBusyCode(c errlog.Code) bool {
	switch c {
	case errlog.I2CNotReady, errlog.I2CNotStarted, errlog.I2CAlreadyStopped, errlog.OneWireNotReady:
		return true
	default:
		return false
	}
}
