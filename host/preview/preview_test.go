package preview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"piodac/core"
)

func TestWriteWAV(t *testing.T) {
	buf, err := core.NewWaveformBuffer(&core.HeapAllocator{}, 64, 8)
	if err != nil {
		t.Fatalf("NewWaveformBuffer: %v", err)
	}
	buf.Fill()

	path := filepath.Join(t.TempDir(), "sine.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := WriteWAV(f, buf, Options{SampleRate: 44100, Periods: 3}); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	f.Close()

	in, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer in.Close()

	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() {
		t.Fatal("output is not a valid wav file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	if dec.SampleRate != 44100 || dec.BitDepth != 16 || dec.NumChans != 1 {
		t.Errorf("format = %d Hz, %d bit, %d channels", dec.SampleRate, dec.BitDepth, dec.NumChans)
	}
	if len(pcm.Data) != 3*64 {
		t.Fatalf("%d samples, want %d", len(pcm.Data), 3*64)
	}
	// peak at a quarter period, trough at three quarters, in every period
	for p := 0; p < 3; p++ {
		if got := pcm.Data[p*64+16]; got != 32767 {
			t.Errorf("period %d peak = %d", p, got)
		}
		if got := pcm.Data[p*64+48]; got != -32767 {
			t.Errorf("period %d trough = %d", p, got)
		}
	}
}

func TestWriteWAVEmpty(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "empty.wav"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := WriteWAV(f, nil, DefaultOptions()); err == nil {
		t.Error("expected an error for a missing table")
	}
}

func TestSigned(t *testing.T) {
	testCases := []struct {
		code     uint16
		full     float64
		expected int
	}{
		{0, 255, -32767},
		{255, 255, 32767},
		{4095, 4095, 32767},
		{0, 4095, -32767},
	}
	for _, tc := range testCases {
		if got := Signed(tc.code, tc.full); got != tc.expected {
			t.Errorf("Signed(%d, %v) = %d, want %d", tc.code, tc.full, got, tc.expected)
		}
	}
}
