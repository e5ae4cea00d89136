package gpioops

import (
	"io"
	"sync"
	"testing"
	"time"

	"busbridge/desktop/serial"
	"busbridge/desktop/session"
	"busbridge/wire"
)

type fakePort struct {
	toLink  *io.PipeReader
	toLinkW *io.PipeWriter

	mu      sync.Mutex
	written []byte
}

func newFakePort() *fakePort {
	tr, tw := io.Pipe()
	return &fakePort{toLink: tr, toLinkW: tw}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.toLink.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.written = append(p.written, b...)
	p.mu.Unlock()
	return len(b), nil
}
func (p *fakePort) Close() error  { p.toLinkW.Close(); return nil }
func (p *fakePort) feed(b []byte) { go p.toLinkW.Write(b) }
func (p *fakePort) drainWrite(n int) []byte {
	for {
		p.mu.Lock()
		if len(p.written) >= n {
			got := append([]byte(nil), p.written[:n]...)
			p.written = p.written[n:]
			p.mu.Unlock()
			return got
		}
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
}

func newConnectedOps(t *testing.T) (*Ops, *fakePort) {
	t.Helper()
	p := newFakePort()
	link := serial.New(p)
	p.feed([]byte{'O', 'K', 0x01, 0x02})
	s, err := session.Connect(link)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	p.drainWrite(1)
	return New(s), p
}

func TestSetRejectsOutOfRangePin(t *testing.T) {
	o, p := newConnectedOps(t)
	defer p.Close()
	if err := o.Set(40, true, true); err == nil {
		t.Fatal("expected InvalidArgument for pin 40")
	} else if _, ok := err.(session.InvalidArgument); !ok {
		t.Fatalf("err = %T, want InvalidArgument", err)
	}
}

func TestSetEncodesGPIOByte(t *testing.T) {
	o, p := newConnectedOps(t)
	defer p.Close()
	p.feed([]byte{wire.Ack})
	if err := o.Set(5, true, true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got := p.drainWrite(2)
	want := byte(wire.MakeGPIOByte(5, true, true, false))
	if got[0] != wire.CmdGPIO || got[1] != want {
		t.Fatalf("frame = %#v, want [CmdGPIO, %#x]", got, want)
	}
}

func TestReadVerifiesEchoedPin(t *testing.T) {
	o, p := newConnectedOps(t)
	defer p.Close()
	p.feed([]byte{wire.GPIOReadReply(5, true)})
	level, err := o.Read(5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !level {
		t.Fatal("level = false, want true")
	}
}

func TestConfigureButtonRejectsPinZero(t *testing.T) {
	o, p := newConnectedOps(t)
	defer p.Close()
	if err := o.ConfigureButton(0, true, false); err == nil {
		t.Fatal("expected InvalidArgument for pin 0")
	} else if _, ok := err.(session.InvalidArgument); !ok {
		t.Fatalf("err = %T, want InvalidArgument", err)
	}
}

func TestReadStatesDecodesLittleEndian(t *testing.T) {
	o, p := newConnectedOps(t)
	defer p.Close()
	p.feed([]byte{0x01, 0x00, 0x00, 0x00})
	states, err := o.ReadStates()
	if err != nil {
		t.Fatalf("ReadStates: %v", err)
	}
	if states != 1 {
		t.Fatalf("states = %#x, want 1 (bit 0 set, pin 1 fired)", states)
	}
}
