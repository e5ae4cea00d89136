package firmware

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"busbridge/firmware/boardio"
	"busbridge/firmware/dispatch"
	"busbridge/firmware/led"
	"busbridge/firmware/mode"
	"busbridge/firmware/onewire"
	"busbridge/firmware/pin"
	"busbridge/wire"

	"tinygo.org/x/drivers"
)

type fakePin struct {
	n     int
	level bool
}

func (p *fakePin) ConfigureInput(pull pin.Pull) error { return nil }
func (p *fakePin) ConfigureOutput(initial bool) error { p.level = initial; return nil }
func (p *fakePin) Set(level bool)                     { p.level = level }
func (p *fakePin) Get() bool                          { return p.level }
func (p *fakePin) Number() int                        { return p.n }

type fakePinFactory struct{ pins map[int]*fakePin }

func (f fakePinFactory) ByNumber(n int) (pin.GPIOPin, bool) {
	p, ok := f.pins[n]
	return p, ok
}

func newFakePins(nums ...int) fakePinFactory {
	pins := map[int]*fakePin{}
	for _, n := range nums {
		pins[n] = &fakePin{n: n}
	}
	return fakePinFactory{pins: pins}
}

type fakeI2C struct{}

func (fakeI2C) Tx(addr uint16, w, r []byte) error { return nil }

type fakeI2CFactory struct{}

func (fakeI2CFactory) ByID(busID int) (drivers.I2C, bool) { return fakeI2C{}, true }

type fakeOWLine struct{}

func (fakeOWLine) DriveLow()    {}
func (fakeOWLine) ReleaseHigh() {}
func (fakeOWLine) Sample() bool { return true } // empty bus

type fakeOWFactory struct{}

func (fakeOWFactory) ByPin(n int) (onewire.Line, bool) { return fakeOWLine{}, true }

type fakeLEDDriver struct{ calls int }

func (d *fakeLEDDriver) Set(c led.RGB) { d.calls++ }

func newTestBoard(t *testing.T) *Board {
	t.Helper()
	onewire.Sleep = func(time.Duration) {}
	b, err := New("pico", Deps{
		Pins:      newFakePins(1, 2, 3, 4, 5),
		I2C:       boardio.NewEngineFactory(fakeI2CFactory{}),
		OneWire:   fakeOWFactory{},
		LEDDriver: &fakeLEDDriver{},
	}, dispatch.BuildInfo{Model: "test"}, mode.I2C, mode.OneWire)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestNewWiresDefaultBoardConfig(t *testing.T) {
	b := newTestBoard(t)
	if b.Config.HeartbeatMs != 2000 {
		t.Fatalf("HeartbeatMs = %d, want 2000", b.Config.HeartbeatMs)
	}
	if b.I2C.FrequencyKHz() != 100 {
		t.Fatalf("FrequencyKHz = %d, want 100", b.I2C.FrequencyKHz())
	}
}

func TestDispatchStepHandlesHandshake(t *testing.T) {
	b := newTestBoard(t)
	var out bytes.Buffer
	b.Dispatch.Step(queue(wire.CmdHandshake), &out)
	if out.Bytes()[0] != 'O' {
		t.Fatalf("handshake reply = %v, want leading 'O'", out.Bytes())
	}
}

func TestBusPublishesLEDColorOnModeChange(t *testing.T) {
	b := newTestBoard(t)
	sub := b.busConn.Subscribe(topicLEDColor)
	defer sub.Unsubscribe()

	var out bytes.Buffer
	b.Dispatch.Step(queue(wire.CmdSetMode, wire.ModeI2C), &out)

	select {
	case msg := <-sub.Channel():
		if _, ok := msg.Payload.(led.RGB); !ok {
			t.Fatalf("payload type = %T, want led.RGB", msg.Payload)
		}
	default:
		t.Fatal("expected a retained/published led color message after mode change")
	}
}

type queueSource struct{ buf []byte }

func queue(b ...byte) *queueSource { return &queueSource{buf: b} }

func (q *queueSource) ReadByte() (byte, error) {
	if len(q.buf) == 0 {
		return 0, errors.New("no more bytes")
	}
	b := q.buf[0]
	q.buf = q.buf[1:]
	return b, nil
}
