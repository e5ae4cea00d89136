// Package firmware composes the bridge protocol core's engines into a
// single explicitly-constructed value: the redesign spec.md §9 calls
// for in place of the original's top-level globals. One Board is
// created at startup (by cmd/boardsim or real board bring-up) and
// passed down instead of being reached for from package-level state.
package firmware

import (
	"io"
	"time"

	"busbridge/bus"
	"busbridge/firmware/boardcfg"
	"busbridge/firmware/button"
	"busbridge/firmware/dispatch"
	"busbridge/firmware/errlog"
	"busbridge/firmware/gpio"
	"busbridge/firmware/i2c"
	"busbridge/firmware/led"
	"busbridge/firmware/mode"
	"busbridge/firmware/onewire"
	"busbridge/firmware/pin"
)

// Board bundles every engine the dispatcher touches plus the shared
// resources (pin registry, error log, internal event bus) they're
// built over. Nothing here is package-level state; every field is
// reachable only through a *Board a caller constructed.
type Board struct {
	Config boardcfg.Config

	Pins    *pin.Registry
	Modes   *mode.Registry
	I2C     *i2c.Engine
	OneWire *onewire.Engine
	GPIO    *gpio.Engine
	Button  *button.Engine
	LED     *led.Service
	Errs    *errlog.Log

	Bus     *bus.Bus
	busConn *bus.Connection

	Dispatch *dispatch.Dispatcher
}

// Deps is the set of hardware-facing factories a board brings to New;
// board bring-up supplies boardio's rp2xxx or host implementations.
type Deps struct {
	Pins       pin.Factory
	I2C        i2c.Factory
	OneWire    onewire.Factory
	LEDDriver  led.Driver
	I2CPinPair i2c.PermittedPair // board-specific sda/scl pairing table; nil allows any pair
}

// busLEDDriver decorates a board's physical LED driver so every colour
// change is also retained-published on the internal bus, letting a
// diagnostics subscriber (or a future cmd/boardsim debug view) observe
// the LED's current state without polling the driver directly. A late
// subscriber gets the retained value immediately, the same pattern the
// teacher uses for config/telemetry topics.
type busLEDDriver struct {
	driver led.Driver
	conn   *bus.Connection
}

var topicLEDColor = bus.T("led", "color")

func (d *busLEDDriver) Set(c led.RGB) {
	d.driver.Set(c)
	d.conn.Publish(d.conn.NewMessage(topicLEDColor, c, true))
}

// New builds a Board for boardID, loading its tunables from boardcfg
// and wiring every engine over deps. supported lists the modes this
// board build accepts besides None (spec.md §3's mode enum).
func New(boardID string, deps Deps, build dispatch.BuildInfo, supported ...mode.Mode) (*Board, error) {
	cfg, err := boardcfg.Load(boardID)
	if err != nil {
		return nil, err
	}

	pins := pin.NewRegistry(deps.Pins)
	errs := errlog.NewLog()
	modes := mode.NewRegistry(supported...)

	i2cEngine := i2c.NewEngine(deps.I2C, pins, deps.I2CPinPair, errs)
	i2cEngine.SetFrequency(cfg.DefaultI2CKHz)

	owEngine := onewire.NewEngine(deps.OneWire, pins, errs)
	gpioEngine := gpio.NewEngine(pins, errs)

	buttonEngine := button.NewEngine(pins, errs)
	buttonEngine.SetDebounce(time.Duration(cfg.DebounceMs) * time.Millisecond)

	eventBus := bus.NewBus(4)
	conn := eventBus.NewConnection("firmware")

	ledDriver := deps.LEDDriver
	if ledDriver != nil {
		ledDriver = &busLEDDriver{driver: ledDriver, conn: conn}
	}
	ledSvc := led.NewService(ledDriver, time.Duration(cfg.HeartbeatMs)*time.Millisecond)

	d := dispatch.New(modes, i2cEngine, owEngine, gpioEngine, buttonEngine, ledSvc, errs, build)

	return &Board{
		Config:   cfg,
		Pins:     pins,
		Modes:    modes,
		I2C:      i2cEngine,
		OneWire:  owEngine,
		GPIO:     gpioEngine,
		Button:   buttonEngine,
		LED:      ledSvc,
		Errs:     errs,
		Bus:      eventBus,
		busConn:  conn,
		Dispatch: d,
	}, nil
}

// Run drives the dispatch loop over src/w using the real clock and a
// real sleep for the cooperative yield, until done is closed.
func (b *Board) Run(src dispatch.ByteSource, w io.Writer, done <-chan struct{}) {
	b.Dispatch.Run(src, w, time.Now, time.Sleep, done)
}
