// Package gpioops mirrors the firmware's raw-GPIO and button command
// tables (spec.md §4.4/§4.5), packing/unpacking the single-byte
// encodings wire.GPIOByte/wire.ButtonByte define and validating pin
// numbers locally before a byte reaches the board.
package gpioops

import (
	"encoding/binary"
	"fmt"

	"busbridge/desktop/serial"
	"busbridge/desktop/session"
	"busbridge/wire"
)

// Ops issues GPIO and button commands against one connected
// BoardSession; neither command is mode-gated, so no prior SetMode is
// required.
type Ops struct {
	s *session.BoardSession
}

func New(s *session.BoardSession) *Ops { return &Ops{s: s} }

func validatePin(op string, pin int) error {
	if pin < 0 || pin > 31 {
		return session.InvalidArgument{Op: op, Msg: fmt.Sprintf("pin %d out of range [0,31]", pin)}
	}
	return nil
}

// validateButtonPin additionally rejects pin 0, reserved/illegal for
// buttons (spec.md §9 note 2: the states bit index is pin-1).
func validateButtonPin(op string, pin int) error {
	if pin == 0 {
		return session.InvalidArgument{Op: op, Msg: "pin 0 is reserved and cannot be used for a button"}
	}
	return validatePin(op, pin)
}

// Set configures pin as out/in and, if out, drives it to state.
func (o *Ops) Set(pin int, out, state bool) error {
	if err := validatePin("gpio_set", pin); err != nil {
		return err
	}
	b := wire.MakeGPIOByte(pin, out, state, false)
	if err := o.s.Link().SendCommand(wire.CmdGPIO, byte(b)); err != nil {
		return &session.ProtocolError{Op: "gpio_set", Err: err}
	}
	return o.s.CheckAck("gpio_set")
}

// Read samples pin's current input level; the reply echoes the pin
// number in its low 5 bits for caller verification (spec.md §4.4).
func (o *Ops) Read(pin int) (bool, error) {
	if err := validatePin("gpio_read", pin); err != nil {
		return false, err
	}
	b := wire.MakeGPIOByte(pin, false, false, true)
	if err := o.s.Link().SendCommand(wire.CmdGPIO, byte(b)); err != nil {
		return false, &session.ProtocolError{Op: "gpio_read", Err: err}
	}
	reply, err := o.s.Link().ReadExact(1)
	if err == serial.ErrTimeout {
		return false, session.Timeout{Op: "gpio_read"}
	}
	if err != nil {
		return false, &session.ProtocolError{Op: "gpio_read", Err: err}
	}
	echoed := int(reply[0] & 0x1F)
	if echoed != pin {
		return false, &session.ProtocolError{Op: "gpio_read", Err: fmt.Errorf("echoed pin %d, want %d", echoed, pin)}
	}
	return reply[0]&0x80 != 0, nil
}

// Clear releases pin, sending the 0xF0 follow-up byte.
func (o *Ops) Clear(pin int) error {
	if err := validatePin("gpio_clear", pin); err != nil {
		return err
	}
	b := wire.MakeGPIOByte(pin, false, false, false)
	if err := o.s.Link().SendCommand(wire.CmdGPIO, byte(b), wire.GPIOClear); err != nil {
		return &session.ProtocolError{Op: "gpio_clear", Err: err}
	}
	return o.s.CheckAck("gpio_clear")
}

// ConfigureButton binds a logical button to pin with the given
// polarity and trigger edge (spec.md §4.5).
func (o *Ops) ConfigureButton(pin int, activeHigh, triggerOnRelease bool) error {
	if err := validateButtonPin("button_configure", pin); err != nil {
		return err
	}
	b := wire.MakeButtonByte(pin, activeHigh, triggerOnRelease, false)
	if err := o.s.Link().SendCommand(wire.CmdButton, byte(b)); err != nil {
		return &session.ProtocolError{Op: "button_configure", Err: err}
	}
	return o.s.CheckAck("button_configure")
}

// ReadStates reads the 32-bit button event latch (little-endian on
// the wire per spec.md §9) and clears it on the board.
func (o *Ops) ReadStates() (uint32, error) {
	b := wire.MakeButtonByte(0, false, false, true)
	if err := o.s.Link().SendCommand(wire.CmdButton, byte(b)); err != nil {
		return 0, &session.ProtocolError{Op: "button_read", Err: err}
	}
	reply, err := o.s.Link().ReadExact(4)
	if err == serial.ErrTimeout {
		return 0, session.Timeout{Op: "button_read"}
	}
	if err != nil {
		return 0, &session.ProtocolError{Op: "button_read", Err: err}
	}
	return binary.LittleEndian.Uint32(reply), nil
}

// ClearButton releases a configured button and its pin.
func (o *Ops) ClearButton(pin int) error {
	if err := validateButtonPin("button_clear", pin); err != nil {
		return err
	}
	b := wire.MakeButtonByte(pin, false, false, false)
	if err := o.s.Link().SendCommand(wire.CmdButton, byte(b), wire.ButtonClear); err != nil {
		return &session.ProtocolError{Op: "button_clear", Err: err}
	}
	return o.s.CheckAck("button_clear")
}
