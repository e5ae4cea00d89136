package boardcfg

// embeddedConfigs holds the board tunables document for each board ID
// this firmware ships on. Populate at build time (code generation) or
// by hand during bring-up; the zero-value document ("{}") is valid and
// falls back to the package defaults.
const cfgPico = `{
  "heartbeat_ms": 2000,
  "debounce_ms": 5,
  "i2c_khz": 100
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
}
