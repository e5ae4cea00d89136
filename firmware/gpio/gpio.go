// Package gpio implements the firmware's raw GPIO engine behind the
// dispatcher's 'g' command: per-pin direction/state/read using the
// single encoded command byte from wire.GPIOByte.
package gpio

import (
	"busbridge/firmware/errlog"
	"busbridge/firmware/pin"
)

// direction tracks what a pin was last configured as, so a repeat use
// with the same direction is a no-op reconfigure and a changed
// direction gets a fresh Configure call (§4.4 "detect direction
// change and reconfigure").
type direction uint8

const (
	dirUnset direction = iota
	dirIn
	dirOut
)

// Engine owns the raw GPIO pins it has claimed in the registry.
type Engine struct {
	pins *pin.Registry
	errs *errlog.Log
	dirs map[int]direction
}

func NewEngine(pins *pin.Registry, errs *errlog.Log) *Engine {
	return &Engine{pins: pins, errs: errs, dirs: make(map[int]direction)}
}

func (e *Engine) fail(c errlog.Code) error {
	e.errs.Record(c)
	return c
}

// Set configures pin to out/in as requested and, if out, drives it to
// state. Rejects pins owned by another subsystem.
func (e *Engine) Set(pinNum int, out bool, state bool) error {
	if owner := e.pins.OwnerOf(pinNum); owner != pin.OwnerNone && owner != pin.OwnerGPIO {
		return e.fail(errlog.GPIOPinAlreadyInUse)
	}
	p, ok := e.pins.Pin(pinNum)
	if !ok {
		return e.fail(errlog.GPIOIllegalPin)
	}

	want := dirIn
	if out {
		want = dirOut
	}
	if e.dirs[pinNum] != want {
		var err error
		if out {
			err = p.ConfigureOutput(state)
		} else {
			err = p.ConfigureInput(pin.PullDown)
		}
		if err != nil {
			return e.fail(errlog.GPIOCantSetPin)
		}
		e.dirs[pinNum] = want
	}

	if out {
		p.Set(state)
	}

	if err := e.pins.Claim(pinNum, pin.OwnerGPIO); err != nil {
		return e.fail(errlog.GPIOPinAlreadyInUse)
	}
	return nil
}

// Read samples pin's current input level. A pin owned by another
// subsystem is rejected. A pin with no direction set yet is first
// configured as an input with pull-down and claimed for GPIO.
func (e *Engine) Read(pinNum int) (bool, error) {
	p, ok := e.pins.Pin(pinNum)
	if !ok {
		return false, e.fail(errlog.GPIOIllegalPin)
	}
	if owner := e.pins.OwnerOf(pinNum); owner != pin.OwnerNone && owner != pin.OwnerGPIO {
		return false, e.fail(errlog.GPIOPinAlreadyInUse)
	}
	if e.dirs[pinNum] == dirUnset {
		if err := p.ConfigureInput(pin.PullDown); err != nil {
			return false, e.fail(errlog.GPIOCantSetPin)
		}
		e.dirs[pinNum] = dirIn
		if err := e.pins.Claim(pinNum, pin.OwnerGPIO); err != nil {
			return false, e.fail(errlog.GPIOPinAlreadyInUse)
		}
	}
	return p.Get(), nil
}

// Clear releases pinNum and forgets its configured direction.
func (e *Engine) Clear(pinNum int) {
	e.pins.Release(pinNum, pin.OwnerGPIO)
	delete(e.dirs, pinNum)
}
