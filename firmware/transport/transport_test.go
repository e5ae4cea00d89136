//go:build !rp2040 && !rp2350

package transport

import (
	"testing"
	"time"
)

func TestStreamReadByteRoundTrips(t *testing.T) {
	s, port := OpenSim()
	port.Inject([]byte{0x42})

	b, err := s.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if b != 0x42 {
		t.Fatalf("ReadByte = %#x, want 0x42", b)
	}
}

func TestStreamReadByteTimesOutWithNothingQueued(t *testing.T) {
	old := ByteTimeout
	ByteTimeout = 10 * time.Millisecond
	defer func() { ByteTimeout = old }()

	s, _ := OpenSim()
	if _, err := s.ReadByte(); err == nil {
		t.Fatal("expected ReadByte to time out with nothing injected")
	}
}

func TestStreamWritePassesThrough(t *testing.T) {
	s, _ := OpenSim()
	n, err := s.Write([]byte{0x01, 0x02})
	if err != nil || n != 2 {
		t.Fatalf("Write = (%d, %v), want (2, nil)", n, err)
	}
}
