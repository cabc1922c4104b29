package core

import "math"

// Quantize maps a phase in [0, 1) of one sine period to an unsigned code of
// bitWidth bits. The sine is offset to [0, 1] and scaled to full range, so
// phase 0 lands on mid-scale and phase 0.25 on the top code.
func Quantize(phase float64, bitWidth uint8) uint16 {
	full := float64(uint32(1)<<bitWidth - 1)
	v := (math.Sin(2*math.Pi*phase) + 1) / 2 * full
	if !(v > 0) {
		return 0
	}
	if v >= full {
		return uint16(full)
	}
	return uint16(v)
}
