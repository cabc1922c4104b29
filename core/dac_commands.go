package core

import (
	"math"

	"piodac/protocol"
)

var dacManager *WaveformManager

// InitDACCommands registers the output channel commands for m and
// publishes its configuration as dictionary constants.
func InitDACCommands(m *WaveformManager) {
	dacManager = m

	RegisterCommand("set_frequency", "freq=%u", handleSetFrequency)
	RegisterCommand("get_status", "", handleGetStatus)
	RegisterCommand("get_timing", "", handleGetTiming)

	RegisterResponse("status", "target=%u actual=%u rate=%u sample_count=%u clkdiv=%u "+
		"generation=%u rearms=%u spurious=%u retargets=%u")
	RegisterResponse("timing_event", "type=%c clock=%u v1=%u v2=%u")
	RegisterResponse("timing_done", "count=%u")

	cfg := m.Channel().Config()
	RegisterConstant("BIT_WIDTH", cfg.BitWidth)
	RegisterConstant("BASE_PIN", cfg.BasePin)
	RegisterConstant("MIN_SAMPLES", cfg.MinSamples)
	RegisterConstant("MAX_SAMPLES", cfg.MaxSamples)
	RegisterConstant("ALIGNMENT", cfg.Alignment)
	RegisterConstant("CYCLE_COST", cfg.CycleCost)
	RegisterConstant("CLOCK_FREQ", m.clock.Hz())
}

// handleSetFrequency decodes freq (float32 bits) and retargets the channel
func handleSetFrequency(data *[]byte) error {
	freq, err := protocol.DecodeFloat32(data)
	if err != nil {
		return err
	}
	sendStatus(dacManager.SetFrequency(float64(freq)))
	return nil
}

func handleGetStatus(data *[]byte) error {
	sendStatus(dacManager.Status())
	return nil
}

// handleGetTiming streams the timing ring, oldest first, and closes the
// dump with the event count
func handleGetTiming(data *[]byte) error {
	events := TimingEvents()
	for _, evt := range events {
		evt := evt
		SendResponse("timing_event", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(evt.EventType))
			protocol.EncodeVLQUint(output, evt.Clock)
			protocol.EncodeVLQUint(output, evt.Value1)
			protocol.EncodeVLQUint(output, evt.Value2)
		})
	}
	SendResponse("timing_done", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(len(events)))
	})
	return nil
}

func sendStatus(st Status) {
	whole, frac := SplitClockDivider(st.Params.ClockDivider)
	SendResponse("status", func(output protocol.OutputBuffer) {
		protocol.EncodeFloat32(output, float32(st.Target))
		protocol.EncodeFloat32(output, float32(st.Params.ActualFrequency))
		protocol.EncodeFloat32(output, float32(st.SampleRate))
		protocol.EncodeVLQUint(output, uint32(st.Params.SampleCount))
		protocol.EncodeVLQUint(output, uint32(whole)<<8|uint32(frac))
		protocol.EncodeVLQUint(output, st.Stats.Generation)
		protocol.EncodeVLQUint(output, st.Stats.Rearms)
		protocol.EncodeVLQUint(output, st.Stats.Spurious)
		protocol.EncodeVLQUint(output, st.Stats.Retargets)
	})
}

// ReportStatus prints the status line through the debug writer
func ReportStatus(st Status) {
	if debugPrintln == nil {
		return
	}
	debugPrintln(st.String())
	if st.Params.Deviation(st.Target) > 0.01 && !math.IsInf(st.Target, 0) {
		debugPrintln("[DAC] requested " + ftoa(st.Target, 2) + " Hz is outside the exact range")
	}
}
