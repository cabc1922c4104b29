package core

import "sync/atomic"

// TimerFreq is the rate of the RP2040 microsecond timer
const TimerFreq = 1000000

var systemTicks uint32

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// SetTime sets the current system time (called by the platform clock, or tests)
func SetTime(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// uptimeSource reads the full 64-bit timer; nil extends GetTime instead
var uptimeSource func() uint64

// SetUptimeSource installs the platform's 64-bit timer read
func SetUptimeSource(fn func() uint64) {
	uptimeSource = fn
}

// GetUptime returns the 64-bit tick count since boot
func GetUptime() uint64 {
	if uptimeSource == nil {
		return uint64(GetTime())
	}
	return uptimeSource()
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}
