//go:build rp2040

package main

const (
	mcuName     = "rp2040"
	dmaChannels = 12

	// TIMER
	timerBase = 0x40054000
)
