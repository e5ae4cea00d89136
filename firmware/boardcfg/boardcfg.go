// Package boardcfg loads the small set of board-level tunables the
// bridge protocol core needs at startup (heartbeat period, debounce
// window, default I2C frequency) from an embedded JSON document keyed
// by board ID. It deliberately does not carry pin or LED colour
// tables: those are board-specific wiring the caller (cmd/boardsim or
// an equivalent board bring-up) supplies directly to the engines it
// constructs.
package boardcfg

import (
	"errors"

	"github.com/andreyvit/tinyjson"

	"busbridge/x/mathx"
)

// Config holds the tunables a Firmware needs before it can start
// dispatching. Zero values are replaced with the defaults below.
type Config struct {
	HeartbeatMs   int
	DebounceMs    int
	DefaultI2CKHz int
}

const (
	defaultHeartbeatMs = 2000
	defaultDebounceMs  = 5
	defaultI2CFreqKHz  = 100
)

// EmbeddedLookup allows overriding how configs are resolved; tests
// substitute a fake, production code leaves the default in place.
var EmbeddedLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// Load resolves board's embedded JSON document and decodes it into a
// Config, filling in defaults for any field the document omits or
// leaves zero. Returns an error if board has no embedded document.
func Load(board string) (Config, error) {
	cfg := Config{
		HeartbeatMs:   defaultHeartbeatMs,
		DebounceMs:    defaultDebounceMs,
		DefaultI2CKHz: defaultI2CFreqKHz,
	}

	raw, ok := EmbeddedLookup(board)
	if !ok || len(raw) == 0 {
		return cfg, errors.New("boardcfg: no embedded config for board: " + board)
	}

	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return cfg, errors.New("boardcfg: embedded config is not a JSON object")
	}

	if v, ok := m["heartbeat_ms"].(float64); ok && v > 0 {
		cfg.HeartbeatMs = int(v)
	}
	if v, ok := m["debounce_ms"].(float64); ok && v > 0 {
		cfg.DebounceMs = int(v)
	}
	if v, ok := m["i2c_khz"].(float64); ok && v > 0 {
		cfg.DefaultI2CKHz = int(v)
	}

	// Guard against a malformed embedded document nudging a tunable
	// outside a sane range (a zero debounce window defeats the point
	// of debouncing; a multi-minute heartbeat period defeats liveness).
	cfg.HeartbeatMs = mathx.Clamp(cfg.HeartbeatMs, 100, 60_000)
	cfg.DebounceMs = mathx.Clamp(cfg.DebounceMs, 1, 1_000)
	cfg.DefaultI2CKHz = mathx.Clamp(cfg.DefaultI2CKHz, 1, 1_000)

	return cfg, nil
}
