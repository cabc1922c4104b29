//go:build rp2350

package main

const (
	mcuName     = "rp2350"
	dmaChannels = 16

	// TIMER0
	timerBase = 0x400B0000
)
