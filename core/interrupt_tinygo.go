//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts on the current core and returns the
// previous state. Nesting is allowed, including from an interrupt handler.
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
