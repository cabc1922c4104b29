//go:build rp2040 || rp2350

package main

import (
	"machine"
	"runtime/volatile"
	"unsafe"

	"piodac/core"
)

// Unlatched counter registers; same offsets on both chips, timerBase
// comes from the chip file.
const (
	timerTIMERAWH = timerBase + 0x24
	timerTIMERAWL = timerBase + 0x28
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// cpuClock reports the system clock as configured by the runtime
type cpuClock struct{}

func (cpuClock) Hz() uint32 { return machine.CPUFrequency() }

// InitClock registers the MCU constant and seeds the core timer
func InitClock() {
	core.RegisterConstant("MCU", mcuName)
	core.SetUptimeSource(GetHardwareUptime)
	UpdateSystemTime()
}

// GetHardwareTime returns the low word of the 1 MHz timer
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// GetHardwareUptime reads the full 64-bit timer, retrying across a
// rollover of the low word.
func GetHardwareUptime() uint64 {
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// UpdateSystemTime copies hardware time into the core timer
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
