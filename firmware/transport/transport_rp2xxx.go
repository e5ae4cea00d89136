//go:build rp2040 || rp2350

package transport

import (
	"context"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// rp2Port adapts a configured *uartx.UART to the Port surface.
type rp2Port struct{ u *uartx.UART }

func (p *rp2Port) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p *rp2Port) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}

// OpenUART0 configures the board's first UART at baud for the USB-CDC
// or RS232 transport the dispatcher reads its frames from.
func OpenUART0(baud uint32) *Stream {
	hw := uartx.UART0
	_ = hw.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	return NewStream(&rp2Port{u: hw})
}
