package led

import (
	"testing"
	"time"
)

type fakeDriver struct {
	sets []RGB
}

func (f *fakeDriver) Set(c RGB) { f.sets = append(f.sets, c) }

func (f *fakeDriver) last() RGB {
	if len(f.sets) == 0 {
		return RGB{}
	}
	return f.sets[len(f.sets)-1]
}

func TestSetModeChangesBaseColorImmediately(t *testing.T) {
	d := &fakeDriver{}
	s := NewService(d, 2*time.Second)

	s.SetMode('i')
	if got := d.last(); got != colorI2C {
		t.Fatalf("after SetMode('i'), LED = %+v, want %+v", got, colorI2C)
	}

	s.SetMode('o')
	if got := d.last(); got != colorOneWire {
		t.Fatalf("after SetMode('o'), LED = %+v, want %+v", got, colorOneWire)
	}
}

func TestHeartbeatFlashesThenRestoresBaseColor(t *testing.T) {
	d := &fakeDriver{}
	s := NewService(d, 2*time.Second)
	s.SetMode('i')
	s.SetHeartbeat(true)

	start := time.Now()
	s.Tick(start, true)
	if got := d.last(); got != colorFlash {
		t.Fatalf("at flash start, LED = %+v, want %+v", got, colorFlash)
	}

	s.Tick(start.Add(10*time.Millisecond), false)
	if got := d.last(); got != colorFlash {
		t.Fatalf("mid-flash, LED = %+v, want still %+v", got, colorFlash)
	}

	s.Tick(start.Add(flashDuration+time.Millisecond), false)
	if got := d.last(); got != colorI2C {
		t.Fatalf("after flash window, LED = %+v, want base %+v", got, colorI2C)
	}
}

func TestDisablingHeartbeatRestoresBaseColor(t *testing.T) {
	d := &fakeDriver{}
	s := NewService(d, 2*time.Second)
	s.SetMode('u')
	s.SetHeartbeat(true)
	s.Tick(time.Now(), true)

	s.SetHeartbeat(false)
	if got := d.last(); got != colorUART {
		t.Fatalf("after disabling heartbeat mid-flash, LED = %+v, want base %+v", got, colorUART)
	}
}
