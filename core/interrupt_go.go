//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// criticalMu stands in for interrupt masking on regular Go, so the
// completion path and a retarget exclude each other the same way they do
// on the MCU.
var criticalMu sync.Mutex

// disableInterrupts enters the critical section
func disableInterrupts() State {
	criticalMu.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	criticalMu.Unlock()
}
