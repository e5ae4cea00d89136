package session

import (
	"io"
	"sync"
	"testing"
	"time"

	"busbridge/desktop/serial"
	"busbridge/wire"
)

// fakePort simulates a board's byte stream: bytes fed via feed arrive
// on Read (an io.Pipe, since the session reads those asynchronously
// against a deadline), while bytes written by the session accumulate
// in a plain buffer a test can poll with drainWrite without risking
// the write/read deadlock a second io.Pipe would introduce.
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

func (p *fakePort) Close() error {
	p.toLinkW.Close()
	return nil
}

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

func TestConnectClassifiesNewFirmware(t *testing.T) {
	p := newFakePort()
	defer p.Close()
	link := serial.New(p)
	p.feed([]byte{'O', 'K', 0x01, 0x02})

	s, err := Connect(link)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if v := s.Version(); v.Major != 1 || v.Minor != 2 {
		t.Fatalf("Version = %+v, want {1 2}", v)
	}
}

func TestConnectClassifiesLegacyFirmware(t *testing.T) {
	p := newFakePort()
	defer p.Close()
	link := serial.New(p)
	p.feed([]byte{'O', 'K', '\r', '\n'})

	s, err := Connect(link)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if v := s.Version(); v.Major != 1 || v.Minor != 1 {
		t.Fatalf("Version = %+v, want {1 1} (legacy)", v)
	}
}

func TestConnectRejectsBadMagic(t *testing.T) {
	p := newFakePort()
	defer p.Close()
	link := serial.New(p)
	p.feed([]byte{'X', 'X', 0, 0})

	if _, err := Connect(link); err == nil {
		t.Fatal("expected HandshakeFailed for bad magic bytes")
	} else if _, ok := err.(HandshakeFailed); !ok {
		t.Fatalf("err = %T, want HandshakeFailed", err)
	}
}

func TestSetModeRejectsUnknownCode(t *testing.T) {
	p := newFakePort()
	defer p.Close()
	link := serial.New(p)
	p.feed([]byte{'O', 'K', 0x01, 0x02})
	s, _ := Connect(link)

	if err := s.SetMode('z'); err == nil {
		t.Fatal("expected InvalidArgument for unknown mode code")
	} else if _, ok := err.(InvalidArgument); !ok {
		t.Fatalf("err = %T, want InvalidArgument", err)
	}
}

func TestSetModeSendsFrameAndAcks(t *testing.T) {
	p := newFakePort()
	defer p.Close()
	link := serial.New(p)
	p.feed([]byte{'O', 'K', 0x01, 0x02})
	s, _ := Connect(link)
	p.drainWrite(1) // consume the handshake '!' byte

	p.feed([]byte{wire.Ack})
	if err := s.SetMode(wire.ModeI2C); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	got := p.drainWrite(2)
	if got[0] != wire.CmdSetMode || got[1] != wire.ModeI2C {
		t.Fatalf("frame = %#v, want [CmdSetMode, ModeI2C]", got)
	}
}

func TestSetModeClassifiesBusBusyOnErr(t *testing.T) {
	p := newFakePort()
	defer p.Close()
	link := serial.New(p)
	p.feed([]byte{'O', 'K', 0x01, 0x02})
	s, _ := Connect(link)
	p.drainWrite(1)

	p.feed([]byte{wire.Err})
	p.feed([]byte{byte(0x10), '\r', '\n'}) // I2CNotReady domain byte
	err := s.SetMode(wire.ModeI2C)
	p.drainWrite(2) // the '#' frame
	p.drainWrite(1) // the '$' frame
	if _, ok := err.(BusBusy); !ok {
		t.Fatalf("err = %T (%v), want BusBusy", err, err)
	}
}
