package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Pin-ownership codes, returned by firmware/pin.Registry.Claim.
const (
	UnknownPin Code = "unknown_pin"
	PinInUse   Code = "pin_in_use"
)
