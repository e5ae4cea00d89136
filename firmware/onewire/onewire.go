// Package onewire implements the firmware's bit-banged 1-Wire engine:
// reset/presence pulse, byte read/write, and the classic next-fork
// ROM search that enumerates every device on the bus.
package onewire

import (
	"time"

	"busbridge/firmware/errlog"
	"busbridge/firmware/pin"
)

// Line is the single data pin the engine drives open-drain: DriveLow
// pulls it to ground, ReleaseHigh lets the external pullup take over,
// Sample reads the current level.
type Line interface {
	DriveLow()
	ReleaseHigh()
	Sample() bool
}

// Factory resolves a physical pin number to a Line.
type Factory interface {
	ByPin(n int) (Line, bool)
}

// Timing constants in microseconds, per the classic bit-bang table.
const (
	tResetLow        = 485 // H
	tPresenceWait    = 55  // I
	tPresenceRecover = 430 // J

	tWrite1Low     = 10 // A
	tWrite1Release = 70 // B
	tWrite0Low     = 60 // C
	tWrite0Release = 20 // D

	tReadLow     = 10 // A
	tReadSample  = 4  // E
	tReadRecover = 66 // F

	tSlotRecover = 1 // R
)

const searchROM = 0xF0
const maxDevices = 64

// Sleep is overridable so tests can run the timing-heavy search
// algorithm without real microsecond delays.
var Sleep = func(d time.Duration) { time.Sleep(d) }

func sleepUs(us int) { Sleep(time.Duration(us) * time.Microsecond) }

// Engine holds one OneWireState (spec §3).
type Engine struct {
	factory Factory
	pins    *pin.Registry
	errs    *errlog.Log

	acquired      bool // data pin claimed; independent of whether a search found any devices
	dataPin       int
	deviceCount   int
	currentDevice int
	deviceIDs     []uint64

	line Line
}

func NewEngine(factory Factory, pins *pin.Registry, errs *errlog.Log) *Engine {
	return &Engine{factory: factory, pins: pins, errs: errs}
}

func (e *Engine) fail(c errlog.Code) error {
	e.errs.Record(c)
	return c
}

// Configure sets the data pin. Rejected while the pin is already
// acquired, or if it is owned elsewhere.
func (e *Engine) Configure(dataPin int) error {
	if e.acquired {
		return e.fail(errlog.OneWireCouldNotConfigure)
	}
	if owner := e.pins.OwnerOf(dataPin); owner != pin.OwnerNone && owner != pin.OwnerOneWire {
		return e.fail(errlog.OneWirePinAlreadyInUse)
	}
	e.dataPin = dataPin
	return nil
}

// Init acquires the pin and performs a full bus search, populating
// device_ids/device_count. An empty bus (no presence pulse) is not an
// error: device_count is simply 0, and the 'd' scan command reports
// "Z\r\n" for that case, mirroring the I2C scan's empty-bus reply.
// IsReady reports device_count != 0, matching the original: the status
// line's ready bit reflects whether any device was actually found, even
// though the pin stays acquired either way.
func (e *Engine) Init() error {
	if e.acquired {
		return nil
	}
	l, ok := e.factory.ByPin(e.dataPin)
	if !ok {
		return e.fail(errlog.OneWireCouldNotConfigure)
	}
	if err := e.pins.Claim(e.dataPin, pin.OwnerOneWire); err != nil {
		return e.fail(errlog.OneWirePinAlreadyInUse)
	}
	e.line = l
	e.acquired = true

	e.deviceIDs = e.search()
	e.deviceCount = len(e.deviceIDs)
	return nil
}

// Deinit releases the pin and clears state.
func (e *Engine) Deinit() {
	if !e.acquired {
		return
	}
	e.pins.Release(e.dataPin, pin.OwnerOneWire)
	e.line = nil
	e.acquired = false
	e.deviceIDs = nil
	e.deviceCount = 0
}

func (e *Engine) IsReady() bool       { return e.acquired && e.deviceCount != 0 }
func (e *Engine) DataPin() int        { return e.dataPin }
func (e *Engine) DeviceCount() int    { return e.deviceCount }
func (e *Engine) DeviceIDs() []uint64 { return e.deviceIDs }

// reset drives the line low for H us, releases it, and samples after I
// us; true means a device pulled the line low (presence).
func (e *Engine) reset() bool {
	e.line.DriveLow()
	sleepUs(tResetLow)
	e.line.ReleaseHigh()
	sleepUs(tPresenceWait)
	present := !e.line.Sample()
	sleepUs(tPresenceRecover)
	return present
}

func (e *Engine) writeBit(bit bool) {
	if bit {
		e.line.DriveLow()
		sleepUs(tWrite1Low)
		e.line.ReleaseHigh()
		sleepUs(tWrite1Release)
	} else {
		e.line.DriveLow()
		sleepUs(tWrite0Low)
		e.line.ReleaseHigh()
		sleepUs(tWrite0Release)
	}
	sleepUs(tSlotRecover)
}

func (e *Engine) readBit() bool {
	e.line.DriveLow()
	sleepUs(tReadLow)
	e.line.ReleaseHigh()
	sleepUs(tReadSample)
	v := e.line.Sample()
	sleepUs(tReadRecover)
	sleepUs(tSlotRecover)
	return v
}

// writeByte sends v LSB first.
func (e *Engine) writeByte(v byte) {
	for i := 0; i < 8; i++ {
		e.writeBit(v&(1<<uint(i)) != 0)
	}
}

// readByte assembles a byte from eight read slots, MSB-into-byte:
// each bit is shifted into the top of the result as it arrives, the
// same accumulation the search algorithm uses for ROM IDs.
func (e *Engine) readByte() byte {
	var v byte
	for i := 0; i < 8; i++ {
		v >>= 1
		if e.readBit() {
			v |= 1 << 7
		}
	}
	return v
}

// WriteBytes sends buf over the bus, one bit-banged byte at a time.
// Used for the chunked write-prefix transfers §3 describes for 1-Wire
// mode, which bit-bang directly without a Start/Stop transaction.
func (e *Engine) WriteBytes(buf []byte) error {
	if !e.acquired {
		return e.fail(errlog.OneWireNotReady)
	}
	for _, b := range buf {
		e.writeByte(b)
	}
	return nil
}

// ReadBytes fills buf by bit-banging len(buf) bytes off the bus.
func (e *Engine) ReadBytes(buf []byte) error {
	if !e.acquired {
		return e.fail(errlog.OneWireNotReady)
	}
	for i := range buf {
		buf[i] = e.readByte()
	}
	return nil
}

// search performs the next-fork ROM enumeration described in §4.3,
// repeating passes until a pass's last discriminating bit leaves no
// further branch (last_fork == 0) or maxDevices is reached. An empty
// bus (no presence pulse on the very first pass) yields a nil slice,
// not an error.
func (e *Engine) search() []uint64 {
	var ids []uint64
	nextFork := 65
	var prevID uint64

	for {
		if !e.reset() {
			break
		}
		e.writeByte(searchROM)

		var id uint64
		lastFork := 0
		aborted := false

		for i := 64; i >= 1; i-- {
			b1 := e.readBit()
			b2 := e.readBit()

			var chosen bool
			switch {
			case b1 && b2:
				aborted = true
			case !b1 && !b2:
				// Position i was shifted into id bit 64-i on the previous pass.
				prevBit := (prevID>>uint(64-i))&1 == 1
				if nextFork > i || (nextFork != i && prevBit) {
					chosen = true
					lastFork = i
				}
			default:
				chosen = b1
			}

			if aborted {
				break
			}

			e.writeBit(chosen)
			id >>= 1
			if chosen {
				id |= 1 << 63
			}
		}

		if aborted {
			break
		}

		ids = append(ids, id)
		if len(ids) >= maxDevices {
			break
		}

		prevID = id
		nextFork = lastFork
		if nextFork == 0 {
			break
		}
	}

	return ids
}
