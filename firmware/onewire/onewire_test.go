package onewire

import (
	"testing"
	"time"

	"busbridge/firmware/errlog"
	"busbridge/firmware/pin"
)

// singleDeviceLine simulates exactly one device on the bus. With only
// one device there is never a discriminating (0,0) bit: every search
// position is forced, so the fake needs no knowledge of what the
// master writes, only the device's own ROM bits in order, least
// significant first, as a real device sends them.
type singleDeviceLine struct {
	rom         uint64
	present     bool
	sampleCalls int
}

func (l *singleDeviceLine) DriveLow()    {}
func (l *singleDeviceLine) ReleaseHigh() {}
func (l *singleDeviceLine) Sample() bool {
	defer func() { l.sampleCalls++ }()
	if l.sampleCalls == 0 {
		// reset's presence sample: Sample()==false means "pulled low", i.e. present.
		return !l.present
	}
	idx := l.sampleCalls - 1
	k := idx / 2 // ROM bit presented by this pair, bit 0 first
	bit := (l.rom>>uint(k))&1 == 1
	if idx%2 == 0 {
		return bit
	}
	return !bit
}

type emptyBusLine struct{}

func (emptyBusLine) DriveLow()    {}
func (emptyBusLine) ReleaseHigh() {}
func (emptyBusLine) Sample() bool { return true } // never pulled low: nothing present

type fakeLineFactory struct{ line Line }

func (f fakeLineFactory) ByPin(n int) (Line, bool) { return f.line, true }

type fakePinFactory struct{}

func (fakePinFactory) ByNumber(n int) (pin.GPIOPin, bool) { return nil, false }

func newEngine(l Line) *Engine {
	reg := pin.NewRegistry(fakePinFactory{})
	return NewEngine(fakeLineFactory{line: l}, reg, errlog.NewLog())
}

func init() {
	Sleep = func(time.Duration) {}
}

func TestSearchSingleDeviceRoundTrips(t *testing.T) {
	const rom = uint64(0x1122334455667788)
	e := newEngine(&singleDeviceLine{rom: rom, present: true})
	if err := e.Configure(4); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if e.DeviceCount() != 1 {
		t.Fatalf("DeviceCount() = %d, want 1", e.DeviceCount())
	}
	if got := e.DeviceIDs()[0]; got != rom {
		t.Fatalf("DeviceIDs()[0] = %#x, want %#x", got, rom)
	}
}

func TestSearchEmptyBusYieldsZeroDevices(t *testing.T) {
	e := newEngine(emptyBusLine{})
	if err := e.Configure(4); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if e.DeviceCount() != 0 {
		t.Fatalf("DeviceCount() = %d, want 0", e.DeviceCount())
	}
	if len(e.DeviceIDs()) != 0 {
		t.Fatalf("DeviceIDs() = %v, want empty", e.DeviceIDs())
	}
}

func TestInitIsIdempotent(t *testing.T) {
	e := newEngine(&singleDeviceLine{rom: 0xABCD, present: true})
	e.Configure(4)
	if err := e.Init(); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	first := e.DeviceCount()
	if err := e.Init(); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if e.DeviceCount() != first {
		t.Fatalf("second Init changed DeviceCount: %d -> %d", first, e.DeviceCount())
	}
}

func TestWriteBytesReadBytesRequireReady(t *testing.T) {
	e := newEngine(&singleDeviceLine{rom: 1, present: true})
	if err := e.WriteBytes([]byte{0x01}); err == nil {
		t.Fatal("expected WriteBytes to fail before Init")
	}
	if err := e.ReadBytes(make([]byte, 1)); err == nil {
		t.Fatal("expected ReadBytes to fail before Init")
	}

	e.Configure(4)
	e.Init()
	if err := e.WriteBytes([]byte{0x01, 0x02}); err != nil {
		t.Fatalf("WriteBytes after Init: %v", err)
	}
	buf := make([]byte, 2)
	if err := e.ReadBytes(buf); err != nil {
		t.Fatalf("ReadBytes after Init: %v", err)
	}
}

func TestConfigureRejectsPinOwnedElsewhere(t *testing.T) {
	reg := pin.NewRegistry(fakePinFactory{})
	reg.Claim(4, pin.OwnerGPIO)
	e := NewEngine(fakeLineFactory{line: emptyBusLine{}}, reg, errlog.NewLog())
	if err := e.Configure(4); err == nil {
		t.Fatal("expected Configure to reject a pin owned by GPIO")
	}
}

func TestEmptyBusReportsNotReadyButDeinitStillReleasesPin(t *testing.T) {
	e := newEngine(emptyBusLine{})
	e.Configure(4)
	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if e.IsReady() {
		t.Fatal("expected IsReady false on an empty bus")
	}
	if err := e.WriteBytes([]byte{0x01}); err != nil {
		t.Fatalf("WriteBytes should still work once the pin is acquired: %v", err)
	}
	e.Deinit()
	if e.pins.OwnerOf(4) != pin.OwnerNone {
		t.Fatal("expected pin 4 released after Deinit even though the bus was empty")
	}
}

func TestDeinitReleasesPin(t *testing.T) {
	e := newEngine(&singleDeviceLine{rom: 1, present: true})
	e.Configure(4)
	e.Init()
	e.Deinit()
	if e.IsReady() {
		t.Fatal("expected IsReady false after Deinit")
	}
	if e.pins.OwnerOf(4) != pin.OwnerNone {
		t.Fatal("expected pin 4 released after Deinit")
	}
}
