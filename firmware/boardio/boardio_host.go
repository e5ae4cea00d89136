//go:build !rp2040 && !rp2350

package boardio

import (
	"sync"

	"busbridge/firmware/pin"

	"tinygo.org/x/drivers"
)

// hostI2C is an inert drivers.I2C standing in for real hardware on
// host builds (cmd/boardsim's simulator mode), grounded on the
// teacher's platform.HostI2C.
type hostI2C struct {
	mu     sync.Mutex
	lastTx struct {
		addr uint16
		w    []byte
		rn   int
	}
}

func (h *hostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTx.addr = addr
	h.lastTx.w = append([]byte(nil), w...)
	h.lastTx.rn = len(r)
	return nil
}

type hostI2CFactory struct{ buses map[int]drivers.I2C }

// DefaultI2CFactory returns inert host I2C buses 0 and 1, for
// exercising the protocol without real hardware attached.
func DefaultI2CFactory() I2CFactory {
	return &hostI2CFactory{buses: map[int]drivers.I2C{0: &hostI2C{}, 1: &hostI2C{}}}
}

func (f *hostI2CFactory) ByID(busID int) (drivers.I2C, bool) {
	b, ok := f.buses[busID]
	return b, ok
}

// hostPin is an in-memory GPIOPin for host builds and tests.
type hostPin struct {
	mu    sync.RWMutex
	n     int
	level bool
}

func (p *hostPin) ConfigureInput(pull pin.Pull) error  { return nil }
func (p *hostPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.level = initial
	p.mu.Unlock()
	return nil
}
func (p *hostPin) Set(level bool) { p.mu.Lock(); p.level = level; p.mu.Unlock() }
func (p *hostPin) Get() bool      { p.mu.RLock(); defer p.mu.RUnlock(); return p.level }
func (p *hostPin) Number() int    { return p.n }

type hostPinFactory struct{ pins map[int]*hostPin }

// DefaultPinFactory returns 32 in-memory pins (the registry's full
// numbering range) for host builds.
func DefaultPinFactory() pin.Factory {
	f := &hostPinFactory{pins: make(map[int]*hostPin, 32)}
	for i := 0; i < 32; i++ {
		f.pins[i] = &hostPin{n: i}
	}
	return f
}

func (f *hostPinFactory) ByNumber(n int) (pin.GPIOPin, bool) {
	p, ok := f.pins[n]
	return p, ok
}
