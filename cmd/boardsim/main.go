// cmd/boardsim runs the bridge protocol core against in-memory host
// adapters instead of real hardware: a Board built over boardio/
// transport's host variants, fed bytes injected from the console.
// It exists to exercise the dispatcher end to end without a board
// attached, the same role the teacher's cmd/boardtest plays for the
// HAL service.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"busbridge/firmware"
	"busbridge/firmware/boardio"
	"busbridge/firmware/dispatch"
	"busbridge/firmware/led"
	"busbridge/firmware/mode"
	"busbridge/firmware/onewire"
	"busbridge/firmware/transport"
)

// consoleLEDDriver logs every colour change instead of driving a
// physical LED, so a developer can see mode transitions in the
// simulator's console.
type consoleLEDDriver struct{}

func (consoleLEDDriver) Set(c led.RGB) {
	log.Printf("[boardsim] led -> r=%d g=%d b=%d", c.R, c.G, c.B)
}

func main() {
	i2cFactory := boardio.DefaultI2CFactory()
	pinFactory := boardio.DefaultPinFactory()

	board, err := firmware.New("pico", firmware.Deps{
		Pins:      pinFactory,
		I2C:       boardio.NewEngineFactory(i2cFactory),
		OneWire:   hostOneWireFactory{},
		LEDDriver: consoleLEDDriver{},
	}, dispatch.BuildInfo{Model: "boardsim", ChipID: 0xDEADBEEF}, mode.I2C, mode.OneWire)
	if err != nil {
		log.Fatalf("firmware.New: %v", err)
	}

	stream, port := transport.OpenSim()
	log.Println("[boardsim] ready; type hex bytes (e.g. \"21\" for handshake '!') followed by Enter")

	go feedConsole(port)

	done := make(chan struct{})
	board.Run(stream, os.Stdout, done)
}

// injector is satisfied by transport's unexported simPort; declared
// here so feedConsole doesn't need to name that concrete type.
type injector interface{ Inject(b []byte) }

// feedConsole reads whitespace-separated hex byte pairs from stdin
// and injects them into the simulated port, letting a developer drive
// the protocol interactively without a real serial link.
func feedConsole(port injector) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		b, err := parseHexBytes(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "boardsim: %v\n", err)
			continue
		}
		port.Inject(b)
	}
}

func parseHexBytes(line string) ([]byte, error) {
	var out []byte
	var field string
	flush := func() error {
		if field == "" {
			return nil
		}
		var v int
		if _, err := fmt.Sscanf(field, "%x", &v); err != nil {
			return fmt.Errorf("invalid hex byte %q", field)
		}
		out = append(out, byte(v))
		field = ""
		return nil
	}
	for _, r := range line {
		if r == ' ' || r == '\t' {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		field += string(r)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// hostOneWireFactory backs every pin with an always-empty bus, enough
// to exercise the command table's ack/err paths without real devices.
type hostOneWireFactory struct{}

func (hostOneWireFactory) ByPin(n int) (onewire.Line, bool) { return inertOneWireLine{}, true }

type inertOneWireLine struct{}

func (inertOneWireLine) DriveLow()    {}
func (inertOneWireLine) ReleaseHigh() {}
func (inertOneWireLine) Sample() bool { return true } // no device pulls the line low
