// Package onewireops mirrors the firmware's 1-Wire command table
// (spec.md §4.6), decoding the scan reply's concatenated 16-hex-digit
// ROM codes into Address values the way periph.io's onewire package
// represents a device address: a plain uint64 newtype, not a byte
// array, so callers can compare/sort/map devices by value.
package onewireops

import (
	"strconv"

	"busbridge/desktop/serial"
	"busbridge/desktop/session"
	"busbridge/wire"
)

// Address is a 1-Wire device's 64-bit ROM code, grounded on periph.io/
// x/conn/v3/onewire.Address's uint64-newtype convention.
type Address uint64

// Ops issues 1-Wire commands against one connected BoardSession
// already switched into 1-Wire mode (session.SetMode(wire.ModeOneWire)).
type Ops struct {
	s *session.BoardSession
}

func New(s *session.BoardSession) *Ops { return &Ops{s: s} }

// Configure sends 'c' dataPin.
func (o *Ops) Configure(dataPin int) error {
	if err := o.s.Link().SendCommand(wire.CmdConfigure, byte(dataPin)); err != nil {
		return &session.ProtocolError{Op: "onewire_configure", Err: err}
	}
	return o.s.CheckAck("onewire_configure")
}

// Init sends 'i'; the firmware performs the full ROM search in line
// with this call (spec.md §4.3), so a successful ack means the device
// table behind Scan is already populated.
func (o *Ops) Init() error { return o.simple(wire.CmdInit, "onewire_init") }

// Reset sends 'x'. Unlike I2C's 'k', 'k' itself is unavailable in
// 1-Wire mode (spec.md §8 property 4); deinit happens implicitly on
// the next mode switch.
func (o *Ops) Reset() error { return o.simple(wire.CmdReset, "onewire_reset") }

func (o *Ops) simple(cmd byte, op string) error {
	if err := o.s.Link().SendCommand(cmd); err != nil {
		return &session.ProtocolError{Op: op, Err: err}
	}
	return o.s.CheckAck(op)
}

// Scan sends 'd' and decodes the reply into the discovered device
// addresses, or nil for the literal "Z\r\n" empty-bus reply.
func (o *Ops) Scan() ([]Address, error) {
	if err := o.s.Link().SendCommand(wire.CmdScan); err != nil {
		return nil, &session.ProtocolError{Op: "onewire_scan", Err: err}
	}
	line, err := o.s.Link().ReadUntilCRLF(64 * 17)
	if err == serial.ErrTimeout {
		return nil, session.Timeout{Op: "onewire_scan"}
	}
	if err != nil {
		return nil, &session.ProtocolError{Op: "onewire_scan", Err: err}
	}
	return parseScanReply(line)
}

const idHexDigits = 16

func parseScanReply(line []byte) ([]Address, error) {
	if len(line) >= 1 && line[0] == 'Z' {
		return nil, nil
	}
	var ids []Address
	field := line
	for len(field) >= idHexDigits {
		v, err := strconv.ParseUint(string(field[:idHexDigits]), 16, 64)
		if err != nil {
			return ids, &session.ProtocolError{Op: "onewire_scan", Err: err}
		}
		ids = append(ids, Address(v))
		field = field[idHexDigits:]
	}
	return ids, nil
}
