// Package serial opens the USB CDC port the DAC firmware enumerates as.
package serial

import (
	"io"
	"time"
)

// Port is an open serial connection to the device
type Port interface {
	io.ReadWriteCloser

	// Flush drops anything still queued in the driver
	Flush() error
}

// Config describes how to open the device
type Config struct {
	Device string // e.g. "/dev/ttyACM0" or "COM3"

	// Baud is only meaningful for a UART bridge; USB CDC ignores it
	Baud int

	// ReadTimeout bounds a single Read; 0 blocks
	ReadTimeout time.Duration
}

// DefaultConfig returns the settings used for the firmware's USB port
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
