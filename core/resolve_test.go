package core

import (
	"math"
	"testing"
)

const testSysclk = 300e6

func TestResolveScenarios(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         OutputConfig
		target      float64
		wantSamples int
		wantDivider float64
		wantActual  float64
	}{
		// raw estimate 3.75 samples, clamped up to the minimum table
		{"8-bit 5 MHz", Config8Bit(), 5e6, 4, 7.5, 5e6},
		{"8-bit 1 kHz", Config8Bit(), 1000, 256, 585.9375, 1000},
		{"12-bit 100 Hz", Config12Bit(), 100, 4096, 366.2109375, 100},
		{"8-bit 100 kHz", Config8Bit(), 100e3, 184, 8.15234375, 100e3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := Resolve(tc.target, testSysclk, tc.cfg)
			if p.SampleCount != tc.wantSamples {
				t.Errorf("SampleCount = %d, want %d", p.SampleCount, tc.wantSamples)
			}
			if p.ClockDivider != tc.wantDivider {
				t.Errorf("ClockDivider = %v, want %v", p.ClockDivider, tc.wantDivider)
			}
			if math.Abs(p.ActualFrequency-tc.wantActual)/tc.wantActual > 1e-3 {
				t.Errorf("ActualFrequency = %v, want about %v", p.ActualFrequency, tc.wantActual)
			}
		})
	}
}

func TestResolveInvariants(t *testing.T) {
	for _, cfg := range []OutputConfig{Config8Bit(), Config12Bit()} {
		for target := 0.01; target < 200e6; target *= 1.37 {
			p := Resolve(target, testSysclk, cfg)
			if p.SampleCount%cfg.Alignment != 0 {
				t.Fatalf("target %v: %d samples not a multiple of %d", target, p.SampleCount, cfg.Alignment)
			}
			if p.SampleCount < cfg.MinSamples || p.SampleCount > cfg.MaxSamples {
				t.Fatalf("target %v: %d samples outside [%d, %d]", target, p.SampleCount, cfg.MinSamples, cfg.MaxSamples)
			}
			if p.ClockDivider < 1 || p.ClockDivider > MaxClockDivider {
				t.Fatalf("target %v: divider %v out of range", target, p.ClockDivider)
			}
			if steps := p.ClockDivider * 256; steps != math.Trunc(steps) {
				t.Fatalf("target %v: divider %v not a multiple of 1/256", target, p.ClockDivider)
			}
			want := testSysclk / (p.ClockDivider * float64(p.SampleCount) * PIOCyclesPerSample)
			if p.ActualFrequency != want {
				t.Fatalf("target %v: actual %v does not follow from divider and count", target, p.ActualFrequency)
			}
		}
	}
}

func TestResolveDeterministic(t *testing.T) {
	cfg := Config12Bit()
	a := Resolve(12345.6, testSysclk, cfg)
	b := Resolve(12345.6, testSysclk, cfg)
	if a != b {
		t.Errorf("Resolve not deterministic: %+v vs %+v", a, b)
	}
}

func TestResolveClamping(t *testing.T) {
	cfg := Config8Bit()
	slowest := Resolve(0, testSysclk, cfg)
	if slowest.SampleCount != cfg.MaxSamples || slowest.ClockDivider != MaxClockDivider {
		t.Errorf("zero target = %+v, want slowest output", slowest)
	}
	for _, target := range []float64{-5, math.NaN(), 1e-9} {
		p := Resolve(target, testSysclk, cfg)
		if p != slowest {
			t.Errorf("Resolve(%v) = %+v, want %+v", target, p, slowest)
		}
	}

	fastest := Resolve(math.Inf(1), testSysclk, cfg)
	if fastest.SampleCount != cfg.MinSamples || fastest.ClockDivider != 1 {
		t.Errorf("infinite target = %+v, want min samples at divider 1", fastest)
	}
	if got := Resolve(1e12, testSysclk, cfg); got != fastest {
		t.Errorf("huge target = %+v, want %+v", got, fastest)
	}
}

func TestSampleRateAndDeviation(t *testing.T) {
	p := Resolve(5e6, testSysclk, Config8Bit())
	if rate := p.SampleRate(testSysclk); rate != 20e6 {
		t.Errorf("SampleRate = %v, want 20e6", rate)
	}
	if d := p.Deviation(5e6); d != 0 {
		t.Errorf("Deviation = %v, want 0", d)
	}
	if d := p.Deviation(0); !math.IsInf(d, 1) {
		t.Errorf("Deviation(0) = %v, want +Inf", d)
	}
	if rate := (FrequencyParameters{}).SampleRate(testSysclk); rate != 0 {
		t.Errorf("zero divider SampleRate = %v, want 0", rate)
	}
}

func TestSplitClockDivider(t *testing.T) {
	testCases := []struct {
		div   float64
		whole uint16
		frac  uint8
	}{
		{1, 1, 0},
		{7.5, 7, 128},
		{366.2109375, 366, 54},
		{0.25, 1, 0},
		{MaxClockDivider, 65535, 255},
		{1e9, 65535, 255},
	}
	for _, tc := range testCases {
		whole, frac := SplitClockDivider(tc.div)
		if whole != tc.whole || frac != tc.frac {
			t.Errorf("SplitClockDivider(%v) = %d+%d/256, want %d+%d/256", tc.div, whole, frac, tc.whole, tc.frac)
		}
	}
}

// Rounding the divider to the nearest 1/256 step moves it by at most 1/512,
// so the relative error is bounded by 1/(512*div) wherever the divider is
// not clamped.
func TestResolveRoundTripBound(t *testing.T) {
	for _, cfg := range []OutputConfig{Config8Bit(), Config12Bit()} {
		checked := 0
		for target := 1.0; target < 100e6; target *= 1.013 {
			p := Resolve(target, testSysclk, cfg)
			exact := testSysclk / (target * float64(p.SampleCount) * PIOCyclesPerSample)
			if exact <= 1 || exact >= MaxClockDivider {
				continue
			}
			checked++
			bound := 1/(2*clockDividerSteps*p.ClockDivider) + 1e-12
			if d := p.Deviation(target); d > bound {
				t.Fatalf("%d-bit %v Hz: deviation %v exceeds %v (divider %v)",
					cfg.BitWidth, target, d, bound, p.ClockDivider)
			}
		}
		if checked == 0 {
			t.Fatalf("%d-bit: no target in the unclamped range", cfg.BitWidth)
		}
	}
}

// The error follows the divider, not the target: a lower target can land
// on a small divider with a coarser relative step.
func TestResolveDeviationFollowsDivider(t *testing.T) {
	testCases := []struct {
		target float64
		want   float64
	}{
		{1e6, 3.124e-4},
		{100e3, 2.501e-4},
		{10e3, 4.425e-4},
	}
	for _, tc := range testCases {
		t.Run(ftoa(tc.target, 0), func(t *testing.T) {
			p := Resolve(tc.target, testSysclk, Config12Bit())
			if d := p.Deviation(tc.target); math.Abs(d-tc.want) > 1e-6 {
				t.Errorf("deviation = %v, want about %v (divider %v)", d, tc.want, p.ClockDivider)
			}
		})
	}
}
