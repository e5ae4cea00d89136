// Package button implements the firmware's debounced button engine:
// a small table of GPIO-bound logical buttons and a 32-bit event latch
// (states) that records which pins have fired since it was last read.
package button

import (
	"sync/atomic"
	"time"

	"busbridge/firmware/errlog"
	"busbridge/firmware/pin"
)

const defaultDebounceWindow = 5 * time.Millisecond

// Now is overridable so tests can drive debounce timing deterministically.
var Now = time.Now

// buttonState is one logical button's record (spec §3 Button).
type buttonState struct {
	pinNum           int
	activeHigh       bool
	triggerOnRelease bool
	pressed          bool
	pressStart       time.Time // zero value is the READY sentinel
}

func (b *buttonState) ready() bool { return b.pressStart.IsZero() }

// Engine maintains the button table and the states event latch. Bit
// index is pin-1 (pin 0 is reserved/illegal, §9 note 2); the word is
// sent little-endian on the wire (§9).
type Engine struct {
	pins     *pin.Registry
	errs     *errlog.Log
	buttons  map[int]*buttonState
	states   atomic.Uint32
	debounce time.Duration
}

func NewEngine(pins *pin.Registry, errs *errlog.Log) *Engine {
	return &Engine{pins: pins, errs: errs, buttons: make(map[int]*buttonState), debounce: defaultDebounceWindow}
}

// SetDebounce overrides the glitch-rejection window a board's config
// requests (boardcfg.Config.DebounceMs); zero is ignored.
func (e *Engine) SetDebounce(d time.Duration) {
	if d > 0 {
		e.debounce = d
	}
}

func (e *Engine) fail(c errlog.Code) error {
	e.errs.Record(c)
	return c
}

// Configure binds a logical button to pinNum. pin 0 is illegal.
// Rejected if the pin is owned by another subsystem.
func (e *Engine) Configure(pinNum int, activeHigh, triggerOnRelease bool) error {
	if pinNum <= 0 || pinNum > 31 {
		return e.fail(errlog.GPIOIllegalPin)
	}
	if owner := e.pins.OwnerOf(pinNum); owner != pin.OwnerNone && owner != pin.OwnerButton {
		return e.fail(errlog.GPIOPinAlreadyInUse)
	}
	if err := e.pins.Claim(pinNum, pin.OwnerButton); err != nil {
		return e.fail(errlog.GPIOPinAlreadyInUse)
	}
	p, ok := e.pins.Pin(pinNum)
	if !ok {
		e.pins.Release(pinNum, pin.OwnerButton)
		return e.fail(errlog.GPIOIllegalPin)
	}
	pull := pin.PullUp
	if activeHigh {
		pull = pin.PullDown
	}
	if err := p.ConfigureInput(pull); err != nil {
		e.pins.Release(pinNum, pin.OwnerButton)
		return e.fail(errlog.GPIOCantSetButton)
	}
	e.buttons[pinNum] = &buttonState{pinNum: pinNum, activeHigh: activeHigh, triggerOnRelease: triggerOnRelease}
	return nil
}

// Clear releases a configured button and its pin.
func (e *Engine) Clear(pinNum int) {
	delete(e.buttons, pinNum)
	e.pins.Release(pinNum, pin.OwnerButton)
}

func (e *Engine) pushed(b *buttonState) bool {
	p, ok := e.pins.Pin(b.pinNum)
	if !ok {
		return false
	}
	level := p.Get()
	if b.activeHigh {
		return level
	}
	return !level
}

func (e *Engine) latch(pinNum int) {
	e.states.Or(1 << uint(pinNum-1))
}

// Tick runs one polling pass over every configured button (the
// polling variant, §4.5). Call it from the dispatcher's housekeeping
// step.
func (e *Engine) Tick(now time.Time) {
	for _, b := range e.buttons {
		pushed := e.pushed(b)
		switch {
		case pushed && !b.pressed:
			if b.ready() {
				b.pressStart = now
			} else if now.Sub(b.pressStart) > e.debounce {
				b.pressed = true
				b.pressStart = time.Time{}
				if !b.triggerOnRelease {
					e.latch(b.pinNum)
				}
			}
		case !pushed && b.pressed:
			b.pressed = false
			b.pressStart = time.Time{}
			if b.triggerOnRelease {
				e.latch(b.pinNum)
			}
		case !pushed && !b.pressed:
			// Glitch shorter than the debounce window: reset press
			// timing without latching anything (§8 property 7).
			b.pressStart = time.Time{}
		}
	}
}

// OnEdge services the interrupt variant: called once from a 1ms timer
// armed by the pin's edge ISR, after which the caller re-enables the
// IRQ. It samples the pin once and applies the same polarity/trigger
// rules as the polling path, without the debounce wait (the hardware
// edge has already implied the transition; the 1ms timer itself is
// the interrupt variant's debounce).
func (e *Engine) OnEdge(pinNum int) {
	b, ok := e.buttons[pinNum]
	if !ok {
		return
	}
	pushed := e.pushed(b)
	switch {
	case pushed && !b.pressed:
		b.pressed = true
		if !b.triggerOnRelease {
			e.latch(b.pinNum)
		}
	case !pushed && b.pressed:
		b.pressed = false
		if b.triggerOnRelease {
			e.latch(b.pinNum)
		}
	}
}

// States returns the 32-bit event latch and clears it (read-clears
// semantics, §4.5/§4.5 data model).
func (e *Engine) States() uint32 {
	return e.states.Swap(0)
}

// StatesLE encodes States() as four little-endian bytes, the wire
// format for the 'b' read command (§4.5, §9).
func (e *Engine) StatesLE() [4]byte {
	s := e.States()
	return [4]byte{byte(s), byte(s >> 8), byte(s >> 16), byte(s >> 24)}
}
