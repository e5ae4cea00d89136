package errlog

import (
	"testing"

	"busbridge/wire"
)

func TestNewLogStartsAtNone(t *testing.T) {
	l := NewLog()
	if l.Last() != None {
		t.Fatalf("fresh log = %v, want None", l.Last())
	}
}

func TestRecordOverwritesPreviousError(t *testing.T) {
	l := NewLog()
	l.Record(I2CCouldNotWrite)
	if l.Last() != I2CCouldNotWrite {
		t.Fatalf("Last() = %v, want I2CCouldNotWrite", l.Last())
	}
	l.Record(GPIOIllegalPin)
	if l.Last() != GPIOIllegalPin {
		t.Fatalf("Last() = %v, want GPIOIllegalPin", l.Last())
	}
}

func TestNoCodeCollidesWithWireReservedBytes(t *testing.T) {
	all := []Code{
		UnknownMode, UnknownCommand, LedNotEnabled, CantConfigBus, CantGetBusInfo,
		I2CNotReady, I2CNotStarted, I2CCouldNotWrite, I2CCouldNotRead, I2CAlreadyStopped,
		I2CCouldNotConfigure, I2CPinsAlreadyInUse,
		OneWireNotReady, OneWireNoDevicesFound, OneWireCouldNotRead, OneWireCouldNotConfigure,
		OneWirePinAlreadyInUse,
		GPIOIllegalPin, GPIOCantSetPin, GPIOPinAlreadyInUse, GPIOCantSetButton,
		None,
	}
	for _, c := range all {
		if byte(c) == wire.Ack || byte(c) == wire.Err {
			t.Fatalf("code %v collides with a reserved wire byte", c)
		}
	}
}
