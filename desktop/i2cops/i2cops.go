// Package i2cops mirrors the firmware's I2C command table one-to-one
// (spec.md §4.6), adding the typed parameter validation the firmware
// itself never performs: address range, frequency choice, and chunk
// size all fail locally with session.InvalidArgument before a byte
// ever reaches the board.
package i2cops

import (
	"fmt"
	"strconv"

	"busbridge/desktop/serial"
	"busbridge/desktop/session"
	"busbridge/wire"
)

// Ops issues I2C commands against one connected BoardSession. The
// session must already be in I2C mode (session.SetMode(wire.ModeI2C)).
type Ops struct {
	s *session.BoardSession
}

func New(s *session.BoardSession) *Ops { return &Ops{s: s} }

// Configure sends 'c' busID sda scl.
func (o *Ops) Configure(busID, sda, scl int) error {
	if err := o.s.Link().SendCommand(wire.CmdConfigure, byte(busID), byte(sda), byte(scl)); err != nil {
		return &session.ProtocolError{Op: "i2c_configure", Err: err}
	}
	return o.s.CheckAck("i2c_configure")
}

// Init sends 'i'.
func (o *Ops) Init() error { return o.simple(wire.CmdInit, "i2c_init") }

// Deinit sends 'k'.
func (o *Ops) Deinit() error { return o.simple(wire.CmdDeinit, "i2c_deinit") }

// Reset sends 'x'.
func (o *Ops) Reset() error { return o.simple(wire.CmdReset, "i2c_reset") }

func (o *Ops) simple(cmd byte, op string) error {
	if err := o.s.Link().SendCommand(cmd); err != nil {
		return &session.ProtocolError{Op: op, Err: err}
	}
	return o.s.CheckAck(op)
}

// SetFrequency accepts only 100 or 400 kHz (spec.md §4.2); anything
// else is rejected locally rather than silently accepted on the wire
// (spec.md §8 property 5 documents the firmware's own laxity here).
func (o *Ops) SetFrequency(khz int) error {
	var cmd byte
	switch khz {
	case 100:
		cmd = wire.CmdFreq100
	case 400:
		cmd = wire.CmdFreq400
	default:
		return session.InvalidArgument{Op: "i2c_set_frequency", Msg: fmt.Sprintf("unsupported frequency %dkHz", khz)}
	}
	return o.simple(cmd, "i2c_set_frequency")
}

// minAddr/maxAddr bound the 7-bit I2C address space scan covers
// (spec.md §4.2's 0x00..0x77 probe range; 0x08..0x77 is the portion
// usable as a transaction target per the standard reserved blocks).
const (
	minAddr = 0x08
	maxAddr = 0x77
)

// Start sends 's' (addr<<1|rw). addr must be in [0x08,0x77].
func (o *Ops) Start(addr byte, read bool) error {
	if addr < minAddr || addr > maxAddr {
		return session.InvalidArgument{Op: "i2c_start", Msg: fmt.Sprintf("address %#02x out of range [%#02x,%#02x]", addr, minAddr, maxAddr)}
	}
	b := addr << 1
	if read {
		b |= 1
	}
	if err := o.s.Link().SendCommand(wire.CmdStart, b); err != nil {
		return &session.ProtocolError{Op: "i2c_start", Err: err}
	}
	return o.s.CheckAck("i2c_start")
}

// Stop sends 'p'.
func (o *Ops) Stop() error { return o.simple(wire.CmdStop, "i2c_stop") }

// Write sends data in blocks of at most wire.MaxChunk bytes, each
// block framed by a write prefix and individually ack'd. It returns
// the number of bytes the board actually acked before any failure.
func (o *Ops) Write(data []byte) (int, error) {
	sent := 0
	for len(data) > 0 {
		n := len(data)
		if n > wire.MaxChunk {
			n = wire.MaxChunk
		}
		chunk := data[:n]
		prefix := wire.MakeWritePrefix(n)
		if err := o.s.Link().SendCommand(byte(prefix), chunk...); err != nil {
			return sent, &session.ProtocolError{Op: "i2c_write", Err: err}
		}
		if err := o.s.CheckAck("i2c_write"); err != nil {
			return sent, err
		}
		sent += n
		data = data[n:]
	}
	return sent, nil
}

// Read pulls n bytes back in blocks of at most wire.MaxChunk, unack'd
// (the data itself is the reply, spec.md §4.2's chunking rule).
func (o *Ops) Read(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for n > 0 {
		chunk := n
		if chunk > wire.MaxChunk {
			chunk = wire.MaxChunk
		}
		prefix := wire.MakeReadPrefix(chunk)
		if err := o.s.Link().SendCommand(byte(prefix)); err != nil {
			return out, &session.ProtocolError{Op: "i2c_read", Err: err}
		}
		got, err := o.s.Link().ReadExact(chunk)
		if err == serial.ErrTimeout {
			return out, session.Timeout{Op: "i2c_read"}
		}
		if err != nil {
			return out, &session.ProtocolError{Op: "i2c_read", Err: err}
		}
		out = append(out, got...)
		n -= chunk
	}
	return out, nil
}

// Scan sends 'd' and parses the reply into a list of two-hex
// addresses, or an empty slice for the literal "Z\r\n" empty-bus reply.
func (o *Ops) Scan() ([]byte, error) {
	if err := o.s.Link().SendCommand(wire.CmdScan); err != nil {
		return nil, &session.ProtocolError{Op: "i2c_scan", Err: err}
	}
	line, err := o.s.Link().ReadUntilCRLF(256)
	if err == serial.ErrTimeout {
		return nil, session.Timeout{Op: "i2c_scan"}
	}
	if err != nil {
		return nil, &session.ProtocolError{Op: "i2c_scan", Err: err}
	}
	return parseScanReply(line)
}

func parseScanReply(line []byte) ([]byte, error) {
	if len(line) >= 1 && line[0] == 'Z' {
		return nil, nil
	}
	var addrs []byte
	field := line
	for len(field) >= 3 && field[2] == '.' {
		v, err := strconv.ParseUint(string(field[:2]), 16, 8)
		if err != nil {
			return addrs, &session.ProtocolError{Op: "i2c_scan", Err: err}
		}
		addrs = append(addrs, byte(v))
		field = field[3:]
	}
	return addrs, nil
}
