//go:build !rp2040 && !rp2350

package transport

import (
	"context"
	"sync"
)

// simPort is an in-memory Port for host builds and tests, grounded on
// the teacher's platform.simUART: writes are discarded (nothing reads
// them back on a loopback test double), reads block on a signal
// channel until bytes are injected or the caller's context expires.
type simPort struct {
	mu     sync.Mutex
	rx     []byte
	signal chan struct{}
}

// NewSimPort returns a Port with nothing queued to read; tests use
// Inject to feed it bytes.
func NewSimPort() *simPort { return &simPort{signal: make(chan struct{}, 1)} }

func (s *simPort) Write(p []byte) (int, error) { return len(p), nil }

func (s *simPort) buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rx)
}

func (s *simPort) read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.rx)
	s.rx = s.rx[n:]
	return n, nil
}

func (s *simPort) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	if s.buffered() > 0 {
		return s.read(p)
	}
	select {
	case <-s.signal:
		return s.read(p)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Inject appends b to the port's pending read buffer, waking any
// blocked RecvSomeContext call.
func (s *simPort) Inject(b []byte) {
	s.mu.Lock()
	s.rx = append(s.rx, b...)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// OpenSim returns a Stream over a fresh simPort, for exercising a
// Dispatcher end to end without real hardware.
func OpenSim() (*Stream, *simPort) {
	p := NewSimPort()
	return NewStream(p), p
}
