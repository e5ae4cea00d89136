// Package boardio adapts tinygo.org/x/drivers-shaped hardware handles
// (an I2C bus, a GPIO pin factory) to the engine-level interfaces
// firmware/i2c and firmware/pin depend on. Board bring-up (cmd/boardsim
// or an equivalent) picks the rp2xxx or host variant at build time via
// the rp2040/rp2350 build tags, the same split the teacher's
// services/hal/internal/platform package uses.
package boardio

import (
	"busbridge/firmware/i2c"

	"tinygo.org/x/drivers"
)

// I2CFactory resolves a board's numbered I2C peripherals to a
// tinygo.org/x/drivers.I2C handle, mirroring halcore.I2CBusFactory.
type I2CFactory interface {
	ByID(busID int) (drivers.I2C, bool)
}

// I2CBus adapts a single-shot drivers.I2C.Tx transaction to the
// byte-at-a-time Start/WriteByte/ReadByte/Stop surface firmware/i2c
// needs, grounded on the teacher's drvshim.I2C adaptor. Writes are
// buffered until Stop commits them in one Tx call; reads issue one
// Tx(addr, nil, buf[:1]) per byte, since the wire protocol allows a
// read-prefix frame of arbitrary length to arrive in more than one
// chunk.
type I2CBus struct {
	bus      drivers.I2C
	addr     uint16
	isRead   bool
	writeBuf []byte
}

func NewI2CBus(bus drivers.I2C) *I2CBus { return &I2CBus{bus: bus} }

func (b *I2CBus) Enable(freqHz uint32) error { return nil }
func (b *I2CBus) Disable()                   {}

func (b *I2CBus) Start(addr uint16, read bool) error {
	b.addr = addr
	b.isRead = read
	b.writeBuf = b.writeBuf[:0]
	return nil
}

func (b *I2CBus) Stop() error {
	if b.isRead || len(b.writeBuf) == 0 {
		return nil
	}
	err := b.bus.Tx(b.addr, b.writeBuf, nil)
	b.writeBuf = b.writeBuf[:0]
	return err
}

func (b *I2CBus) WriteByte(v byte) error {
	b.writeBuf = append(b.writeBuf, v)
	return nil
}

func (b *I2CBus) ReadByte() (byte, error) {
	var buf [1]byte
	if err := b.bus.Tx(b.addr, nil, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// engineFactory implements firmware/i2c.Factory over an I2CFactory,
// wrapping each resolved bus in a fresh I2CBus.
type engineFactory struct{ f I2CFactory }

// NewEngineFactory lets board bring-up hand its drivers.I2C-level
// factory straight to i2c.NewEngine.
func NewEngineFactory(f I2CFactory) i2c.Factory { return engineFactory{f: f} }

func (e engineFactory) ByID(busID int) (i2c.Bus, bool) {
	b, ok := e.f.ByID(busID)
	if !ok {
		return nil, false
	}
	return NewI2CBus(b), true
}
