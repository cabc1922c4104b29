package core

import "math"

const (
	// PIOCyclesPerSample is the cost of one emitted sample in the output
	// program: an out instruction plus one delay cycle.
	PIOCyclesPerSample = 2

	// MaxClockDivider is the largest divider the 16.8 fixed-point register holds
	MaxClockDivider = 65535 + 255.0/256

	clockDividerSteps = 256
)

// FrequencyParameters is the outcome of resolving a target frequency:
// how long the table is, how fast the peripheral runs, and what comes out.
type FrequencyParameters struct {
	SampleCount     int
	ClockDivider    float64
	ActualFrequency float64
}

// SampleRate is the number of samples per second leaving the pins
func (p FrequencyParameters) SampleRate(systemClockHz float64) float64 {
	if p.ClockDivider <= 0 {
		return 0
	}
	return systemClockHz / (p.ClockDivider * PIOCyclesPerSample)
}

// Deviation returns |actual - target| / target
func (p FrequencyParameters) Deviation(target float64) float64 {
	if target <= 0 {
		return math.Inf(1)
	}
	return math.Abs(p.ActualFrequency-target) / target
}

// Resolve picks a table length and clock divider for a target output frequency.
//
// The first estimate assumes CycleCost peripheral cycles per sample; the
// count is then rounded down to the DMA alignment and clamped to the
// configured bounds, and the divider is solved for the chosen count.
// Targets that cannot be represented are clamped, never rejected: zero,
// negative and NaN give the slowest output, huge targets the fastest.
func Resolve(target, systemClockHz float64, cfg OutputConfig) FrequencyParameters {
	if !(target > 0) {
		return slowestParameters(systemClockHz, cfg)
	}

	k := float64(cfg.CycleCost)
	if k == 0 {
		k = PIOCyclesPerSample
	}

	n := cfg.MaxSamples
	raw := systemClockHz / (target * k)
	if raw < float64(cfg.MaxSamples) {
		n = int(raw) / cfg.Alignment * cfg.Alignment
		if n < cfg.MinSamples {
			n = cfg.MinSamples
		}
	}

	div := quantizeDivider(systemClockHz / (target * float64(n) * PIOCyclesPerSample))
	return FrequencyParameters{
		SampleCount:     n,
		ClockDivider:    div,
		ActualFrequency: actualFrequency(systemClockHz, div, n),
	}
}

func slowestParameters(systemClockHz float64, cfg OutputConfig) FrequencyParameters {
	n := cfg.MaxSamples
	return FrequencyParameters{
		SampleCount:     n,
		ClockDivider:    MaxClockDivider,
		ActualFrequency: actualFrequency(systemClockHz, MaxClockDivider, n),
	}
}

func actualFrequency(systemClockHz, div float64, n int) float64 {
	return systemClockHz / (div * float64(n) * PIOCyclesPerSample)
}

// quantizeDivider rounds to the nearest 1/256 step the hardware can hold
// and clamps to [1, MaxClockDivider].
func quantizeDivider(div float64) float64 {
	if math.IsNaN(div) || div <= 1 {
		return 1
	}
	if div >= MaxClockDivider {
		return MaxClockDivider
	}
	q := math.Round(div*clockDividerSteps) / clockDividerSteps
	if q < 1 {
		q = 1
	}
	return q
}

// SplitClockDivider converts a divider to the register's integer and
// 1/256 fractional parts.
func SplitClockDivider(div float64) (whole uint16, frac uint8) {
	div = quantizeDivider(div)
	fixed := uint32(math.Round(div * clockDividerSteps))
	return uint16(fixed >> 8), uint8(fixed & 0xFF)
}
