// cmd/bridgectl is a minimal demonstrator CLI over desktop/session and
// the per-bus operation packages: argv[1] is the board's device path,
// the remaining arguments are letter-prefixed sub-commands applied in
// order (spec.md §6's CLI surface, described there only as a
// collaborator contract — this is a thin demonstration of that
// contract, not the full argument-parsing/help-text layer spec.md
// explicitly places out of scope).
package main

import (
	"fmt"
	"os"

	"busbridge/desktop/gpioops"
	"busbridge/desktop/i2cops"
	"busbridge/desktop/onewireops"
	"busbridge/desktop/serial"
	"busbridge/desktop/session"
	"busbridge/wire"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: bridgectl <device> [subcommand...]")
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "bridgectl: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, subcommands []string) error {
	link, err := serial.Open(path, 0)
	if err != nil {
		return err
	}
	defer link.Close()

	s, err := session.Connect(link)
	if err != nil {
		return err
	}
	v := s.Version()
	fmt.Printf("connected: firmware %d.%d\n", v.Major, v.Minor)

	i2c := i2cops.New(s)
	ow := onewireops.New(s)
	gp := gpioops.New(s)

	for _, cmd := range subcommands {
		if err := dispatch(s, i2c, ow, gp, cmd); err != nil {
			return fmt.Errorf("%q: %w", cmd, err)
		}
	}
	return nil
}

func dispatch(s *session.BoardSession, i2c *i2cops.Ops, ow *onewireops.Ops, gp *gpioops.Ops, cmd string) error {
	switch cmd {
	case "mi":
		return s.SetMode(wire.ModeI2C)
	case "mo":
		return s.SetMode(wire.ModeOneWire)
	case "ms":
		return s.SetMode(wire.ModeSPI)
	case "mu":
		return s.SetMode(wire.ModeUART)
	case "m0":
		return s.SetMode(wire.ModeNone)
	case "?":
		line, err := s.StatusLine()
		if err != nil {
			return err
		}
		fmt.Print(line)
		return nil
	case "$":
		code, err := s.LastError()
		if err != nil {
			return err
		}
		fmt.Printf("last error: %s\n", code)
		return nil
	case "i2c-init":
		return i2c.Init()
	case "i2c-deinit":
		return i2c.Deinit()
	case "i2c-reset":
		return i2c.Reset()
	case "i2c-scan":
		addrs, err := i2c.Scan()
		if err != nil {
			return err
		}
		for _, a := range addrs {
			fmt.Printf("%02X\n", a)
		}
		return nil
	case "ow-init":
		return ow.Init()
	case "ow-scan":
		ids, err := ow.Scan()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Printf("%016X\n", uint64(id))
		}
		return nil
	case "heartbeat-on":
		return s.SetHeartbeat(true)
	case "heartbeat-off":
		return s.SetHeartbeat(false)
	default:
		_ = gp // reserved for "gpio-set"/"gpio-read"/"button-*" style subcommands
		return fmt.Errorf("unknown subcommand")
	}
}
