package onewireops

import (
	"io"
	"sync"
	"testing"
	"time"

	"busbridge/desktop/serial"
	"busbridge/desktop/session"
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

func TestScanParsesEmptyBus(t *testing.T) {
	o, p := newConnectedOps(t)
	defer p.Close()
	p.feed([]byte("Z\r\n"))
	ids, err := o.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %#v, want empty", ids)
	}
}

func TestScanParsesTwoDeviceReply(t *testing.T) {
	o, p := newConnectedOps(t)
	defer p.Close()
	p.feed([]byte("0000000000000001" + "000000000000000F\r\n"))
	ids, err := o.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 0x0F {
		t.Fatalf("ids = %#v, want [1 15]", ids)
	}
}
