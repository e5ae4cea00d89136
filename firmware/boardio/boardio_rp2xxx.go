//go:build rp2040 || rp2350

package boardio

import (
	"machine"

	"busbridge/firmware/pin"

	"tinygo.org/x/drivers"
)

// rp2I2CFactory exposes the board's two hardware I2C peripherals at
// 400kHz default pins; firmware/i2c.Engine.Configure/Init reconfigure
// as needed once the desktop selects pins and frequency.
type rp2I2CFactory struct{ buses map[int]drivers.I2C }

// DefaultI2CFactory wires machine.I2C0/I2C1 for a Pico/Pico 2 build.
func DefaultI2CFactory() I2CFactory {
	f := &rp2I2CFactory{buses: make(map[int]drivers.I2C, 2)}

	b0 := machine.I2C0
	_ = b0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	})
	f.buses[0] = b0

	b1 := machine.I2C1
	_ = b1.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C1_SDA_PIN,
		SCL:       machine.I2C1_SCL_PIN,
	})
	f.buses[1] = b1

	return f
}

func (f *rp2I2CFactory) ByID(busID int) (drivers.I2C, bool) {
	b, ok := f.buses[busID]
	return b, ok
}

// rp2PinFactory maps logical pin numbers directly to machine.Pin(n),
// matching Pico/Pico 2 GP numbering.
type rp2PinFactory struct{}

// DefaultPinFactory returns the board's GPIO factory for a Pico/Pico 2
// build.
func DefaultPinFactory() pin.Factory { return rp2PinFactory{} }

func (rp2PinFactory) ByNumber(n int) (pin.GPIOPin, bool) {
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull pin.Pull) error {
	mode := machine.PinInput
	switch pull {
	case pin.PullUp:
		mode = machine.PinInputPullup
	case pin.PullDown:
		mode = machine.PinInputPulldown
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Number() int    { return r.n }
