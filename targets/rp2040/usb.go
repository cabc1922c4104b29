//go:build rp2040 || rp2350

package main

import (
	"machine"

	"tinygo.org/x/drivers"
)

// usbSerial adapts the USB CDC port to drivers.UART
type usbSerial struct {
	port machine.Serialer
}

var _ drivers.UART = usbSerial{}

// InitUSB configures USB CDC and returns it as a UART
func InitUSB() usbSerial {
	// machine.Serial is USB CDC on the RP2040 targets
	_ = machine.Serial.Configure(machine.UARTConfig{})
	return usbSerial{port: machine.Serial}
}

// Read drains up to len(p) buffered bytes without blocking
func (u usbSerial) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && u.port.Buffered() > 0 {
		b, err := u.port.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

func (u usbSerial) Write(p []byte) (int, error) {
	return u.port.Write(p)
}

func (u usbSerial) Buffered() int {
	return u.port.Buffered()
}
