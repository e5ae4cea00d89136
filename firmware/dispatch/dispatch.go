// Package dispatch implements the firmware's single-threaded
// cooperative command loop: it reads framed commands off the byte
// stream, classifies and routes them per the command table, and
// drives the housekeeping ticks (LED heartbeat, button polling)
// between frames.
package dispatch

import (
	"io"
	"time"

	"busbridge/firmware/button"
	"busbridge/firmware/errlog"
	"busbridge/firmware/gpio"
	"busbridge/firmware/i2c"
	"busbridge/firmware/led"
	"busbridge/firmware/mode"
	"busbridge/firmware/onewire"
	"busbridge/wire"
	"busbridge/x/fmtx"
	"busbridge/x/strx"
)

// ByteSource is the framed byte stream a Dispatcher reads commands
// from. A call that cannot produce a byte within the per-byte timeout
// window (§4.1 step 1's "read with timeout" framing) must return a
// non-nil error; the Dispatcher treats any such error as "no further
// bytes belong to this frame", never as a fatal transport fault. Real
// boards satisfy this with a USB-CDC/UART driver whose Read enforces
// the timeout; tests satisfy it with a canned byte queue.
type ByteSource interface {
	ReadByte() (byte, error)
}

// BuildInfo is the static identity block the '?' status line reports
// alongside live engine state (§6). Firmware major/minor come from
// wire.FirmwareMajor/Minor; everything board-build-specific lives here.
type BuildInfo struct {
	Patch  int
	Build  int
	ChipID uint64 // printed as 16 hex digits
	Model  string
}

// housekeepYield is the cooperative sleep Run takes after every
// dispatcher iteration, whether or not a frame arrived (§4.1 step 6).
const housekeepYield = 5 * time.Millisecond

// Dispatcher wires together every engine the command table can touch.
// It holds no hardware references itself — those live inside the
// engines — so it can be exercised entirely against fakes.
type Dispatcher struct {
	Modes   *mode.Registry
	I2C     *i2c.Engine
	OneWire *onewire.Engine
	GPIO    *gpio.Engine
	Button  *button.Engine
	LED     *led.Service
	Errs    *errlog.Log

	Build           BuildInfo
	HeartbeatBuilt  bool // feature flag: heartbeat support compiled in
	HeartbeatPeriod time.Duration
	heartbeatWindow time.Time
}

func New(modes *mode.Registry, i2cEngine *i2c.Engine, oneWire *onewire.Engine, gpioEngine *gpio.Engine, buttons *button.Engine, leds *led.Service, errs *errlog.Log, build BuildInfo) *Dispatcher {
	build.Model = strx.Coalesce(build.Model, "unknown")
	return &Dispatcher{
		Modes:           modes,
		I2C:             i2cEngine,
		OneWire:         oneWire,
		GPIO:            gpioEngine,
		Button:          buttons,
		LED:             leds,
		Errs:            errs,
		Build:           build,
		HeartbeatBuilt:  true,
		HeartbeatPeriod: 2 * time.Second,
	}
}

func (d *Dispatcher) ack(w io.Writer)     { w.Write([]byte{wire.Ack}) }
func (d *Dispatcher) errByte(w io.Writer) { w.Write([]byte{wire.Err}) }
func (d *Dispatcher) fail(w io.Writer, c errlog.Code) {
	d.Errs.Record(c)
	d.errByte(w)
}

// ackOrErr writes ACK if err is nil, else ERR. An errlog.Code err is
// recorded in Errs before the ERR byte goes out, so failures the
// dispatcher raises itself (an init with no bus mode selected) reach
// the last-error register as well as those the engines record.
func (d *Dispatcher) ackOrErr(w io.Writer, err error) {
	if err != nil {
		if c, ok := err.(errlog.Code); ok {
			d.Errs.Record(c)
		}
		d.errByte(w)
		return
	}
	d.ack(w)
}

func readN(src ByteSource, n int) ([]byte, bool) {
	buf := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		b, err := src.ReadByte()
		if err != nil {
			return buf, false
		}
		buf = append(buf, b)
	}
	return buf, true
}

// tryReadByte attempts one more byte without requiring it: used for
// the optional clear-marker postfix on 'g' and 'b' (§4.1, §4.4, §4.5).
// Absence (a timeout/EOF from the source) is not an error, it just
// means the frame ends here.
func tryReadByte(src ByteSource) (byte, bool) {
	b, err := src.ReadByte()
	return b, err == nil
}

// Step processes exactly one frame: it reads the first byte, and if
// one arrives within the transport's timeout, classifies and
// dispatches it. A Step call that sees nothing at all is a no-op —
// the caller (Run) still performs its housekeeping tick afterward.
func (d *Dispatcher) Step(src ByteSource, w io.Writer) {
	first, err := src.ReadByte()
	if err != nil {
		return
	}
	switch wire.Classify(first) {
	case wire.KindWritePrefix:
		d.handleWritePrefix(src, w, first)
	case wire.KindReadPrefix:
		d.handleReadPrefix(w, first)
	case wire.KindCommand:
		d.handleCommand(src, w, first)
	default:
		d.fail(w, errlog.UnknownCommand)
	}
}

// Run drives Step in a loop, performing housekeeping after every
// frame (including idle ones) and yielding briefly between iterations
// (§4.1 step 6). now is injectable so tests never depend on the real
// clock; idle is the cooperative sleep (time.Sleep in production).
func (d *Dispatcher) Run(src ByteSource, w io.Writer, now func() time.Time, idle func(time.Duration), done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		d.Step(src, w)
		d.Housekeep(now())
		idle(housekeepYield)
	}
}

// Housekeep runs the LED heartbeat tick and button polling tick. It
// is exposed separately from Run so tests can drive it without a real
// timer loop.
func (d *Dispatcher) Housekeep(now time.Time) {
	if d.LED != nil {
		elapsed := false
		if d.heartbeatWindow.IsZero() || !now.Before(d.heartbeatWindow) {
			elapsed = true
			d.heartbeatWindow = now.Add(d.HeartbeatPeriod)
		}
		d.LED.Tick(now, elapsed)
	}
	if d.Button != nil {
		d.Button.Tick(now)
	}
}

func (d *Dispatcher) handleWritePrefix(src ByteSource, w io.Writer, first byte) {
	n := wire.PrefixLen(first)
	payload, ok := readN(src, n)
	if !ok {
		d.fail(w, errlog.UnknownCommand)
		return
	}
	switch d.Modes.Current() {
	case mode.I2C:
		d.ackOrErr(w, d.I2C.Write(payload))
	case mode.OneWire:
		d.ackOrErr(w, d.OneWire.WriteBytes(payload))
	default:
		d.fail(w, errlog.UnknownMode)
	}
}

func (d *Dispatcher) handleReadPrefix(w io.Writer, first byte) {
	n := wire.PrefixLen(first)
	buf := make([]byte, n)
	var err error
	switch d.Modes.Current() {
	case mode.I2C:
		err = d.I2C.Read(buf)
	case mode.OneWire:
		err = d.OneWire.ReadBytes(buf)
	default:
		d.fail(w, errlog.UnknownMode)
		return
	}
	if err != nil {
		d.errByte(w)
		return
	}
	w.Write(buf)
}

// onewireBlocked is the set of commands spec §8 property 4 names as
// producing GEN_UNKNOWN_MODE while the current mode is 1-Wire. 'k'
// sits in this list alongside the I2C-only frequency/transaction
// commands: explicit deinit of the 1-Wire bus happens implicitly, as
// part of switching away from 1-Wire mode with '#', not via 'k'.
var onewireBlocked = map[byte]bool{
	wire.CmdFreq100: true,
	wire.CmdFreq400: true,
	wire.CmdStart:   true,
	wire.CmdStop:    true,
	wire.CmdDeinit:  true,
}

func (d *Dispatcher) handleCommand(src ByteSource, w io.Writer, cmd byte) {
	if d.Modes.Current() == mode.OneWire && onewireBlocked[cmd] {
		d.fail(w, errlog.UnknownMode)
		return
	}

	switch cmd {
	case wire.CmdHandshake:
		w.Write([]byte{'O', 'K', wire.FirmwareMajor, wire.FirmwareMinor})
	case wire.CmdSetMode:
		d.handleSetMode(src, w)
	case wire.CmdStatus:
		d.handleStatus(w)
	case wire.CmdLastError:
		w.Write([]byte{byte(d.Errs.Last()), '\r', '\n'})
	case wire.CmdHeartbeat:
		d.handleHeartbeat(src, w)
	case wire.CmdConfigure:
		d.handleConfigure(src, w)
	case wire.CmdInit:
		d.ackOrErr(w, d.currentInit())
	case wire.CmdDeinit:
		d.ackOrErr(w, d.currentDeinit())
	case wire.CmdReset:
		d.ackOrErr(w, d.currentReset())
	case wire.CmdScan:
		d.handleScan(w)
	case wire.CmdFreq100:
		d.ackOrErr(w, d.I2C.SetFrequency(100))
	case wire.CmdFreq400:
		d.ackOrErr(w, d.I2C.SetFrequency(400))
	case wire.CmdStart:
		d.handleStart(src, w)
	case wire.CmdStop:
		d.ackOrErr(w, d.I2C.Stop())
	case wire.CmdGPIO:
		d.handleGPIO(src, w)
	case wire.CmdButton:
		d.handleButton(src, w)
	default:
		d.fail(w, errlog.UnknownCommand)
	}
}

func (d *Dispatcher) currentInit() error {
	switch d.Modes.Current() {
	case mode.I2C:
		return d.I2C.Init()
	case mode.OneWire:
		return d.OneWire.Init()
	default:
		return errlog.UnknownMode
	}
}

func (d *Dispatcher) currentDeinit() error {
	switch d.Modes.Current() {
	case mode.I2C:
		return d.I2C.Deinit()
	case mode.OneWire:
		// unreachable in normal traffic: onewireBlocked rejects 'k'
		// before currentDeinit is ever called in 1-Wire mode.
		d.OneWire.Deinit()
		return nil
	default:
		return errlog.UnknownMode
	}
}

func (d *Dispatcher) currentReset() error {
	switch d.Modes.Current() {
	case mode.I2C:
		return d.I2C.Reset()
	case mode.OneWire:
		d.OneWire.Deinit()
		return d.OneWire.Init()
	default:
		return errlog.UnknownMode
	}
}

func (d *Dispatcher) handleSetMode(src ByteSource, w io.Writer) {
	args, ok := readN(src, 1)
	if !ok {
		d.fail(w, errlog.UnknownCommand)
		return
	}
	requested := mode.Mode(args[0])
	if !d.Modes.Supports(requested) {
		d.fail(w, errlog.UnknownMode)
		return
	}

	switch d.Modes.Current() {
	case mode.I2C:
		d.I2C.Deinit()
	case mode.OneWire:
		d.OneWire.Deinit()
	}

	d.Modes.Set(requested)
	if d.LED != nil {
		d.LED.SetMode(args[0])
	}
	d.ack(w)
}

func (d *Dispatcher) handleHeartbeat(src ByteSource, w io.Writer) {
	args, ok := readN(src, 1)
	if !ok {
		d.fail(w, errlog.UnknownCommand)
		return
	}
	if !d.HeartbeatBuilt {
		d.fail(w, errlog.LedNotEnabled)
		return
	}
	if d.LED != nil {
		d.LED.SetHeartbeat(args[0] != 0)
	}
	d.ack(w)
}

func (d *Dispatcher) handleConfigure(src ByteSource, w io.Writer) {
	switch d.Modes.Current() {
	case mode.I2C:
		args, ok := readN(src, 3)
		if !ok {
			d.fail(w, errlog.UnknownCommand)
			return
		}
		d.ackOrErr(w, d.I2C.Configure(int(args[0]), int(args[1]), int(args[2])))
	case mode.OneWire:
		args, ok := readN(src, 1)
		if !ok {
			d.fail(w, errlog.UnknownCommand)
			return
		}
		d.ackOrErr(w, d.OneWire.Configure(int(args[0])))
	default:
		d.fail(w, errlog.UnknownMode)
	}
}

func (d *Dispatcher) handleStart(src ByteSource, w io.Writer) {
	args, ok := readN(src, 1)
	if !ok {
		d.fail(w, errlog.UnknownCommand)
		return
	}
	b := args[0]
	addr := uint16(b >> 1)
	read := b&1 != 0
	d.ackOrErr(w, d.I2C.Start(addr, read))
}

func (d *Dispatcher) handleScan(w io.Writer) {
	switch d.Modes.Current() {
	case mode.I2C:
		found, err := d.I2C.Scan()
		if err != nil {
			d.errByte(w)
			return
		}
		if len(found) == 0 {
			w.Write([]byte("Z\r\n"))
			return
		}
		var s string
		for _, a := range found {
			s += fmtx.Sprintf("%02X.", a)
		}
		w.Write([]byte(s + "\r\n"))
	case mode.OneWire:
		ids := d.OneWire.DeviceIDs()
		if len(ids) == 0 {
			w.Write([]byte("Z\r\n"))
			return
		}
		var s string
		for _, id := range ids {
			s += hex16(id)
		}
		w.Write([]byte(s + "\r\n"))
	default:
		d.fail(w, errlog.UnknownMode)
	}
}

func hex16(v uint64) string {
	const digits = "0123456789ABCDEF"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = digits[v&0xF]
		v >>= 4
	}
	return string(buf)
}

func (d *Dispatcher) handleGPIO(src ByteSource, w io.Writer) {
	args, ok := readN(src, 1)
	if !ok {
		d.fail(w, errlog.UnknownCommand)
		return
	}
	gb := wire.GPIOByte(args[0])

	if clear, present := tryReadByte(src); present && clear == wire.GPIOClear {
		d.GPIO.Clear(gb.Pin())
		d.ack(w)
		return
	}

	if gb.Read() {
		level, err := d.GPIO.Read(gb.Pin())
		if err != nil {
			d.errByte(w)
			return
		}
		w.Write([]byte{wire.GPIOReadReply(gb.Pin(), level)})
		return
	}

	d.ackOrErr(w, d.GPIO.Set(gb.Pin(), gb.Out(), gb.State()))
}

func (d *Dispatcher) handleButton(src ByteSource, w io.Writer) {
	args, ok := readN(src, 1)
	if !ok {
		d.fail(w, errlog.UnknownCommand)
		return
	}
	bb := wire.ButtonByte(args[0])

	if clear, present := tryReadByte(src); present && clear == wire.ButtonClear {
		d.Button.Clear(bb.Pin())
		d.ack(w)
		return
	}

	if bb.Read() {
		w.Write(statesBytes(d.Button.StatesLE()))
		return
	}

	d.ackOrErr(w, d.Button.Configure(bb.Pin(), bb.ActiveHigh(), bb.TriggerOnRelease()))
}

func statesBytes(le [4]byte) []byte { return le[:] }

func (d *Dispatcher) handleStatus(w io.Writer) {
	var line string
	switch d.Modes.Current() {
	case mode.I2C:
		line = fmtx.Sprintf("%d.%d.%d.%d.%d.%d.%d.%d.%d.%d.%d.%s.%s\r\n",
			boolDigit(d.I2C.IsReady()), boolDigit(d.I2C.IsStarted()), d.I2C.BusID(),
			d.I2C.SdaPin(), d.I2C.SclPin(), d.I2C.FrequencyKHz(), d.I2C.Address(),
			int(wire.FirmwareMajor), int(wire.FirmwareMinor), d.Build.Patch, d.Build.Build,
			hex16(d.Build.ChipID), d.Build.Model)
	case mode.OneWire:
		line = fmtx.Sprintf("%d.%d.%d.%d.%d.%d.%d.%s.%s\r\n",
			boolDigit(d.OneWire.IsReady()), d.OneWire.DataPin(), d.OneWire.DeviceCount(),
			int(wire.FirmwareMajor), int(wire.FirmwareMinor), d.Build.Patch, d.Build.Build,
			hex16(d.Build.ChipID), d.Build.Model)
	default:
		d.fail(w, errlog.CantGetBusInfo)
		return
	}
	w.Write([]byte(line))
}

func boolDigit(b bool) int {
	if b {
		return 1
	}
	return 0
}
