// Package errlog implements the firmware's single "last error"
// register: every failing command records a detailed byte code here,
// retrievable by the desktop with the '$' command, while the wire
// itself only ever sees the generic ERR byte.
package errlog

// Code is a detailed firmware error, packed as one byte: the high
// nibble selects a domain (general, I2C, 1-Wire, GPIO), the low
// nibble selects a code within that domain. Never equal to wire.Ack
// (0x0F) or wire.Err (0xF0) — see spec §7.
type Code byte

func (c Code) Error() string { return codeNames[c] }

const (
	domainGeneral = 0x00
	domainI2C     = 0x10
	domainOneWire = 0x20
	domainGPIO    = 0x30
)

const (
	UnknownMode    Code = domainGeneral | 0x00
	UnknownCommand Code = domainGeneral | 0x01
	LedNotEnabled  Code = domainGeneral | 0x02
	CantConfigBus  Code = domainGeneral | 0x03
	CantGetBusInfo Code = domainGeneral | 0x04

	I2CNotReady          Code = domainI2C | 0x00
	I2CNotStarted        Code = domainI2C | 0x01
	I2CCouldNotWrite     Code = domainI2C | 0x02
	I2CCouldNotRead      Code = domainI2C | 0x03
	I2CAlreadyStopped    Code = domainI2C | 0x04
	I2CCouldNotConfigure Code = domainI2C | 0x05
	I2CPinsAlreadyInUse  Code = domainI2C | 0x06

	OneWireNotReady          Code = domainOneWire | 0x00
	OneWireNoDevicesFound    Code = domainOneWire | 0x01
	OneWireCouldNotRead      Code = domainOneWire | 0x02
	OneWireCouldNotConfigure Code = domainOneWire | 0x03
	OneWirePinAlreadyInUse   Code = domainOneWire | 0x04

	GPIOIllegalPin      Code = domainGPIO | 0x00
	GPIOCantSetPin      Code = domainGPIO | 0x01
	GPIOPinAlreadyInUse Code = domainGPIO | 0x02
	GPIOCantSetButton   Code = domainGPIO | 0x03

	// None is the reset value: no command has failed since boot or
	// since the last overwrite. Chosen outside every domain's used
	// range and distinct from wire.Ack/wire.Err.
	None Code = 0x3F
)

var codeNames = map[Code]string{
	UnknownMode:    "unknown_mode",
	UnknownCommand: "unknown_command",
	LedNotEnabled:  "led_not_enabled",
	CantConfigBus:  "cant_config_bus",
	CantGetBusInfo: "cant_get_bus_info",

	I2CNotReady:          "i2c_not_ready",
	I2CNotStarted:        "i2c_not_started",
	I2CCouldNotWrite:     "i2c_could_not_write",
	I2CCouldNotRead:      "i2c_could_not_read",
	I2CAlreadyStopped:    "i2c_already_stopped",
	I2CCouldNotConfigure: "i2c_could_not_configure",
	I2CPinsAlreadyInUse:  "i2c_pins_already_in_use",

	OneWireNotReady:          "onewire_not_ready",
	OneWireNoDevicesFound:    "onewire_no_devices_found",
	OneWireCouldNotRead:      "onewire_could_not_read",
	OneWireCouldNotConfigure: "onewire_could_not_configure",
	OneWirePinAlreadyInUse:   "onewire_pin_already_in_use",

	GPIOIllegalPin:      "gpio_illegal_pin",
	GPIOCantSetPin:      "gpio_cant_set_pin",
	GPIOPinAlreadyInUse: "gpio_pin_already_in_use",
	GPIOCantSetButton:   "gpio_cant_set_button",

	None: "none",
}

// Log is the firmware's single last-error register. A successful
// command never clears it (§7: "A command that succeeds clears
// nothing"); only a subsequent failure overwrites it.
type Log struct {
	last Code
}

func NewLog() *Log { return &Log{last: None} }

// Record overwrites the last-error register.
func (l *Log) Record(c Code) { l.last = c }

// Last returns the most recently recorded error code.
func (l *Log) Last() Code { return l.last }
