// Package led drives the board's status LED: a mode-indicator colour
// plus an optional low-duty heartbeat flash used as a liveness signal.
package led

import "time"

// RGB is a simple three-channel colour; boards without an RGB LED can
// map it through a single-channel driver that only looks at whether
// any channel is non-zero.
type RGB struct {
	R, G, B uint8
}

// Driver is the physical output the Service drives. A board supplies
// one backed by machine.Pin/PWM; tests supply an in-memory fake.
type Driver interface {
	Set(c RGB)
}

var (
	colorFlash   = RGB{R: 255, G: 255, B: 255}
	colorNone    = RGB{R: 40}
	colorI2C     = RGB{G: 40}
	colorOneWire = RGB{B: 40}
	colorSPI     = RGB{R: 40, G: 40}
	colorUART    = RGB{G: 40, B: 40}
)

// ModeColor maps a wire mode byte (wire.ModeNone, wire.ModeI2C, ...) to
// the colour the status LED shows while that mode is active.
func ModeColor(modeByte byte) RGB {
	switch modeByte {
	case 'i':
		return colorI2C
	case 'o':
		return colorOneWire
	case 's':
		return colorSPI
	case 'u':
		return colorUART
	default:
		return colorNone
	}
}

const flashDuration = 50 * time.Millisecond

// Service owns the status LED's current mode colour and its heartbeat
// flash. Tick must be called often enough (housekeeping cadence, §4.1)
// to keep the flash duration accurate; it is not driven by its own
// ticker goroutine because the firmware's dispatcher is single-threaded.
type Service struct {
	driver    Driver
	period    time.Duration
	enabled   bool
	base      RGB
	flashTill time.Time
}

func NewService(driver Driver, period time.Duration) *Service {
	return &Service{driver: driver, period: period, base: colorNone}
}

// SetMode updates the colour shown between heartbeat flashes.
func (s *Service) SetMode(modeByte byte) {
	s.base = ModeColor(modeByte)
	if !s.inFlash(time.Now()) {
		s.driver.Set(s.base)
	}
}

// SetHeartbeat enables or disables the periodic flash.
func (s *Service) SetHeartbeat(enabled bool) {
	s.enabled = enabled
	if !enabled {
		s.flashTill = time.Time{}
		s.driver.Set(s.base)
	}
}

func (s *Service) inFlash(now time.Time) bool {
	return !s.flashTill.IsZero() && now.Before(s.flashTill)
}

// Tick is called from the housekeeping loop with the current time and
// a flag indicating whether a new heartbeat period has elapsed since
// the last call (see firmware/dispatch's housekeeping ticker). It
// starts a flash on period boundaries and clears it after flashDuration.
func (s *Service) Tick(now time.Time, periodElapsed bool) {
	if !s.enabled {
		return
	}
	if periodElapsed {
		s.flashTill = now.Add(flashDuration)
		s.driver.Set(colorFlash)
		return
	}
	if !s.flashTill.IsZero() && !now.Before(s.flashTill) {
		s.flashTill = time.Time{}
		s.driver.Set(s.base)
	}
}
