//go:build js && wasm

package main

import (
	"encoding/hex"
	"syscall/js"

	"piodac/core"
	"piodac/protocol"
)

func main() {
	js.Global().Set("piodacWasm", js.ValueOf(map[string]interface{}{
		"resolve":       js.FuncOf(resolveWrapper),
		"table":         js.FuncOf(tableWrapper),
		"encodeVLQ":     js.FuncOf(encodeVLQWrapper),
		"crc16":         js.FuncOf(crc16Wrapper),
		"encodeMessage": js.FuncOf(encodeMessageWrapper),
		"version":       protocol.Version,
	}))

	select {}
}

// presetFor picks the output preset by bit width
func presetFor(bits int) core.OutputConfig {
	if bits == 12 {
		return core.Config12Bit()
	}
	return core.Config8Bit()
}

// resolveWrapper runs the frequency resolver
// Args: frequency (number), bits (8 or 12)
// Returns: {samples, divider, actual, sampleRate}
func resolveWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(map[string]interface{}{"error": "missing arguments"})
	}
	cfg := presetFor(args[1].Int())
	sysclk := float64(cfg.SystemClockHz)
	p := core.Resolve(args[0].Float(), sysclk, cfg)
	return js.ValueOf(map[string]interface{}{
		"samples":    p.SampleCount,
		"divider":    p.ClockDivider,
		"actual":     p.ActualFrequency,
		"sampleRate": p.SampleRate(sysclk),
	})
}

// tableWrapper returns the quantised table for a frequency, for plotting
// Args: frequency (number), bits (8 or 12)
// Returns: number[]
func tableWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf([]interface{}{})
	}
	cfg := presetFor(args[1].Int())
	p := core.Resolve(args[0].Float(), float64(cfg.SystemClockHz), cfg)
	out := make([]interface{}, p.SampleCount)
	for i := range out {
		out[i] = int(core.Quantize(float64(i)/float64(p.SampleCount), cfg.BitWidth))
	}
	return js.ValueOf(out)
}

// encodeVLQWrapper encodes a signed integer
// Args: value (int32)
// Returns: hex string
func encodeVLQWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("error: missing value argument")
	}
	output := protocol.NewScratchOutput()
	protocol.EncodeVLQInt(output, int32(args[0].Int()))
	return js.ValueOf(hex.EncodeToString(output.Result()))
}

// crc16Wrapper computes the frame CRC of a hex string
func crc16Wrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(0)
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return js.ValueOf(0)
	}
	return js.ValueOf(int(protocol.CRC16(data)))
}

// encodeMessageWrapper frames a command
// Args: cmdID (uint16), argsHex (string) of VLQ encoded arguments
// Returns: hex string of the frame
func encodeMessageWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("error: missing arguments")
	}
	argBytes, err := hex.DecodeString(args[1].String())
	if err != nil {
		return js.ValueOf("error: invalid args hex: " + err.Error())
	}

	out := protocol.NewScratchOutput()
	tr := protocol.NewTransport(out, nil)
	tr.SendCommand(uint16(args[0].Int()), func(o protocol.OutputBuffer) {
		if len(argBytes) > 0 {
			o.Output(argBytes)
		}
	})
	return js.ValueOf(hex.EncodeToString(out.Result()))
}
