// Package pin defines the board-side GPIO abstraction and the pin
// ownership registry that arbitrates which subsystem (GPIO, I2C,
// Button, 1-Wire) may currently use a physical pin.
package pin

import "busbridge/errcode"

// Pull selects an input pin's internal resistor.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Edge selects which transitions an IRQPin reports.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// GPIOPin is the minimal surface the engines need from a physical pin.
// Concrete boards satisfy it with machine.Pin on MCU builds or an
// in-memory fake on host/test builds.
type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// IRQPin extends GPIOPin with edge-triggered interrupts, used by the
// interrupt-driven button variant.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// Factory supplies pins by the board's numbering scheme.
type Factory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// Owner identifies the subsystem currently holding a pin. Values are
// the single-bit flags stored in Registry's owner bitfield (SPEC_FULL.md
// §3): bit0 GPIO, bit1 I2C, bit2 Button, bit4 OneWire. Bit3 is reserved.
type Owner uint8

const (
	OwnerNone    Owner = 0
	OwnerGPIO    Owner = 1 << 0
	OwnerI2C     Owner = 1 << 1
	OwnerButton  Owner = 1 << 2
	OwnerOneWire Owner = 1 << 4
)

func (o Owner) String() string {
	switch o {
	case OwnerNone:
		return "none"
	case OwnerGPIO:
		return "gpio"
	case OwnerI2C:
		return "i2c"
	case OwnerButton:
		return "button"
	case OwnerOneWire:
		return "onewire"
	default:
		return "unknown"
	}
}

const numPins = 32

// Registry tracks exclusive ownership of each physical pin so two
// engines can never drive the same pin at once. It is not safe for
// concurrent use: the firmware dispatcher is single-threaded (§5) and
// is the registry's only caller.
type Registry struct {
	factory Factory
	owners  [numPins]Owner
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory}
}

// Claim assigns pin n to owner, returning errcode.PinInUse if another
// subsystem already holds it. Claiming the same owner again is a no-op
// success (idempotent re-configure).
func (r *Registry) Claim(n int, owner Owner) error {
	if n < 0 || n >= numPins {
		return errcode.UnknownPin
	}
	cur := r.owners[n]
	if cur != OwnerNone && cur != owner {
		return errcode.PinInUse
	}
	r.owners[n] = owner
	return nil
}

// Release frees pin n if owner currently holds it. Releasing a pin
// that owner does not hold, or that is already free, is a no-op.
func (r *Registry) Release(n int, owner Owner) {
	if n < 0 || n >= numPins {
		return
	}
	if r.owners[n] == owner {
		r.owners[n] = OwnerNone
	}
}

// OwnerOf reports the current owner of pin n, or OwnerNone if free or
// out of range.
func (r *Registry) OwnerOf(n int) Owner {
	if n < 0 || n >= numPins {
		return OwnerNone
	}
	return r.owners[n]
}

// Pin resolves pin n to a GPIOPin via the board factory.
func (r *Registry) Pin(n int) (GPIOPin, bool) {
	return r.factory.ByNumber(n)
}

// ReleaseAll frees every pin currently held by owner. Used when a mode
// switch or deinit tears down a whole subsystem at once.
func (r *Registry) ReleaseAll(owner Owner) {
	for i := range r.owners {
		if r.owners[i] == owner {
			r.owners[i] = OwnerNone
		}
	}
}
