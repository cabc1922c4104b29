// Package preview renders a waveform table to a WAV file so the exact
// codes the firmware streams can be inspected in an audio editor.
package preview

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"piodac/core"
)

// Options control the rendering
type Options struct {
	// SampleRate is written to the WAV header. The real output runs far
	// above audio rates, so this only sets the playback speed.
	SampleRate int

	// Periods is the number of table repetitions rendered
	Periods int
}

// DefaultOptions renders 100 periods at 48 kHz
func DefaultOptions() Options {
	return Options{SampleRate: 48000, Periods: 100}
}

const bitDepth = 16

// WriteWAV writes Periods copies of buf as mono 16-bit PCM. Codes are
// centred on zero and scaled to the full signed range.
func WriteWAV(w io.WriteSeeker, buf *core.WaveformBuffer, opts Options) error {
	if buf == nil || buf.Len() == 0 {
		return errors.New("preview: empty waveform")
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultOptions().SampleRate
	}
	if opts.Periods <= 0 {
		opts.Periods = 1
	}

	pcm := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: opts.SampleRate},
		SourceBitDepth: bitDepth,
		Data:           make([]int, 0, buf.Len()*opts.Periods),
	}
	full := float64(uint32(1)<<buf.BitWidth() - 1)
	for p := 0; p < opts.Periods; p++ {
		for i := 0; i < buf.Len(); i++ {
			pcm.Data = append(pcm.Data, Signed(buf.At(i), full))
		}
	}

	enc := wav.NewEncoder(w, opts.SampleRate, bitDepth, 1, 1)
	if err := enc.Write(pcm); err != nil {
		return fmt.Errorf("preview: write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("preview: finish wav: %w", err)
	}
	return nil
}

// Signed maps an unsigned code in [0, full] onto [-32767, 32767]
func Signed(code uint16, full float64) int {
	v := (float64(code)/full*2 - 1) * 32767
	if v >= 0 {
		return int(v + 0.5)
	}
	return int(v - 0.5)
}
