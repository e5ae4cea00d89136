// Package i2c implements the firmware's I2C bus engine: the
// configure/init/deinit/reset/set_frequency/scan/start/stop/write/read
// state machine behind the dispatcher's 'c','i','k','x','1','4','d',
// 's','p' commands and chunked prefix transfers.
package i2c

import (
	"busbridge/firmware/errlog"
	"busbridge/firmware/pin"
)

// Bus is the hardware-level surface the engine drives. Unlike the
// high-level Tx(addr,w,r) shape most TinyGo drivers expose, the wire
// protocol surfaces start/stop and byte-at-a-time read/write directly
// to the desktop, so the engine needs that granularity from the
// underlying peripheral too.
type Bus interface {
	Enable(freqHz uint32) error
	Disable()
	Start(addr uint16, read bool) error
	Stop() error
	WriteByte(b byte) error
	ReadByte() (byte, error)
}

// Factory builds a Bus for one of the board's I2C peripherals by ID
// (0 or 1, per spec §3's bus_id domain).
type Factory interface {
	ByID(busID int) (Bus, bool)
}

// PermittedPair reports whether (sda,scl) is one of the board's wired
// I2C pin pairs for busID. Board bring-up supplies this; it is the
// board-specific pin table the spec keeps out of the core (§1).
type PermittedPair func(busID, sda, scl int) bool

const (
	freq100 = 100
	freq400 = 400
)

// Engine holds one I2CState (spec §3) and the pin/bus resources it
// has claimed.
type Engine struct {
	factory   Factory
	pins      *pin.Registry
	permitted PermittedPair
	errs      *errlog.Log

	isReady      bool
	isStarted    bool
	isReadOp     bool
	busID        int
	sdaPin       int
	sclPin       int
	frequencyKHz int
	address      int

	bus Bus
}

func NewEngine(factory Factory, pins *pin.Registry, permitted PermittedPair, errs *errlog.Log) *Engine {
	return &Engine{factory: factory, pins: pins, permitted: permitted, errs: errs, frequencyKHz: freq100}
}

func (e *Engine) fail(c errlog.Code) error {
	e.errs.Record(c)
	return c
}

// Configure sets bus_id/sda/scl. Rejected if already ready, if the
// pair is not permitted, if sda==scl, or if either pin is owned
// elsewhere (§4.2).
func (e *Engine) Configure(busID, sda, scl int) error {
	if e.isReady {
		return e.fail(errlog.CantConfigBus)
	}
	if sda == scl {
		return e.fail(errlog.I2CCouldNotConfigure)
	}
	if e.permitted != nil && !e.permitted(busID, sda, scl) {
		return e.fail(errlog.I2CCouldNotConfigure)
	}
	if owner := e.pins.OwnerOf(sda); owner != pin.OwnerNone && owner != pin.OwnerI2C {
		return e.fail(errlog.I2CPinsAlreadyInUse)
	}
	if owner := e.pins.OwnerOf(scl); owner != pin.OwnerNone && owner != pin.OwnerI2C {
		return e.fail(errlog.I2CPinsAlreadyInUse)
	}
	e.busID, e.sdaPin, e.sclPin = busID, sda, scl
	return nil
}

// Init acquires sda/scl in the pin registry, enables the peripheral at
// the configured frequency, and sets is_ready. Calling Init again
// while ready is a silent no-op success.
func (e *Engine) Init() error {
	if e.isReady {
		return nil
	}
	b, ok := e.factory.ByID(e.busID)
	if !ok {
		return e.fail(errlog.CantGetBusInfo)
	}
	if err := e.pins.Claim(e.sdaPin, pin.OwnerI2C); err != nil {
		return e.fail(errlog.I2CPinsAlreadyInUse)
	}
	if err := e.pins.Claim(e.sclPin, pin.OwnerI2C); err != nil {
		e.pins.Release(e.sdaPin, pin.OwnerI2C)
		return e.fail(errlog.I2CPinsAlreadyInUse)
	}
	if err := b.Enable(uint32(e.frequencyKHz) * 1000); err != nil {
		e.pins.Release(e.sdaPin, pin.OwnerI2C)
		e.pins.Release(e.sclPin, pin.OwnerI2C)
		return e.fail(errlog.CantConfigBus)
	}
	e.bus = b
	e.isReady = true
	return nil
}

// Deinit releases the bus and pins, clearing is_ready and is_started.
func (e *Engine) Deinit() error {
	if !e.isReady {
		return nil
	}
	e.bus.Disable()
	e.pins.Release(e.sdaPin, pin.OwnerI2C)
	e.pins.Release(e.sclPin, pin.OwnerI2C)
	e.bus = nil
	e.isReady = false
	e.isStarted = false
	return nil
}

// Reset disables and re-enables the peripheral at the current
// frequency, leaving is_started false.
func (e *Engine) Reset() error {
	if !e.isReady {
		return e.fail(errlog.I2CNotReady)
	}
	e.bus.Disable()
	if err := e.bus.Enable(uint32(e.frequencyKHz) * 1000); err != nil {
		e.isReady = false
		return e.fail(errlog.CantConfigBus)
	}
	e.isStarted = false
	return nil
}

// SetFrequency accepts 100 or 400 kHz; anything else is silently
// ignored (current frequency unchanged) and the command still
// succeeds (spec §8 property 5, §9 note 3). A real change while ready
// performs a Reset.
func (e *Engine) SetFrequency(khz int) error {
	if khz != freq100 && khz != freq400 {
		return nil
	}
	if khz == e.frequencyKHz {
		return nil
	}
	e.frequencyKHz = khz
	if e.isReady {
		return e.Reset()
	}
	return nil
}

// Start sets the transaction address/direction; succeeds iff ready.
func (e *Engine) Start(addr uint16, read bool) error {
	if !e.isReady {
		return e.fail(errlog.I2CNotReady)
	}
	if err := e.bus.Start(addr, read); err != nil {
		return e.fail(errlog.I2CCouldNotConfigure)
	}
	e.address = int(addr)
	e.isReadOp = read
	e.isStarted = true
	return nil
}

// Stop succeeds iff ready and started.
func (e *Engine) Stop() error {
	if !e.isReady || !e.isStarted {
		return e.fail(errlog.I2CAlreadyStopped)
	}
	if err := e.bus.Stop(); err != nil {
		return e.fail(errlog.I2CCouldNotWrite)
	}
	e.isStarted = false
	return nil
}

// Write sends buf; reported as ERR(COULD_NOT_WRITE) on any bus
// failure.
func (e *Engine) Write(buf []byte) error {
	if !e.isReady || !e.isStarted {
		return e.fail(errlog.I2CNotStarted)
	}
	for _, b := range buf {
		if err := e.bus.WriteByte(b); err != nil {
			return e.fail(errlog.I2CCouldNotWrite)
		}
	}
	return nil
}

// Read fills buf with n bytes read from the bus.
func (e *Engine) Read(buf []byte) error {
	if !e.isReady || !e.isStarted {
		return e.fail(errlog.I2CNotStarted)
	}
	for i := range buf {
		b, err := e.bus.ReadByte()
		if err != nil {
			return e.fail(errlog.I2CCouldNotRead)
		}
		buf[i] = b
	}
	return nil
}

// IsReady, IsStarted, BusID, SdaPin, SclPin, FrequencyKHz, Address
// expose the I2CState fields the '?' status line needs (§6).
func (e *Engine) IsReady() bool     { return e.isReady }
func (e *Engine) IsStarted() bool   { return e.isStarted }
func (e *Engine) BusID() int        { return e.busID }
func (e *Engine) SdaPin() int       { return e.sdaPin }
func (e *Engine) SclPin() int       { return e.sclPin }
func (e *Engine) FrequencyKHz() int { return e.frequencyKHz }
func (e *Engine) Address() int      { return e.address }

// Scan probes 0x00..0x77 with a one-byte read, returning the
// addresses that acknowledge. The one-transfer-per-address timeout
// required by §4.2 is the Bus implementation's responsibility; engines
// built over a bit-banged or register-level peripheral should bound
// each Start/ReadByte pair to about 1ms.
func (e *Engine) Scan() ([]byte, error) {
	if !e.isReady {
		return nil, e.fail(errlog.I2CNotReady)
	}
	var found []byte
	for addr := byte(0x00); addr <= 0x77; addr++ {
		if err := e.bus.Start(uint16(addr), true); err != nil {
			continue
		}
		_, rerr := e.bus.ReadByte()
		_ = e.bus.Stop()
		if rerr == nil {
			found = append(found, addr)
		}
	}
	return found, nil
}
