//go:build rp2040 || rp2350

package diaglog

import (
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// uartSink mirrors log lines onto UART0 so diagnostics survive when the USB
// console is not attached. println still goes to USB CDC alongside.
type uartSink struct{ u *uartx.UART }

func (s uartSink) WriteLine(line string) {
	println(line)
	_, _ = s.u.Write([]byte(line))
	_, _ = s.u.Write([]byte("\r\n"))
}

func DefaultSink() Sink {
	hw := uartx.UART0
	_ = hw.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	return uartSink{u: hw}
}
