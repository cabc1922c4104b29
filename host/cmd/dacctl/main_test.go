package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveOffline(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"resolve", "5e6"}, nil, &out); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := "Actual frequency: 5000000.00 Hz\nSampling rate: 20000000.00 Hz\n"
	if !strings.HasPrefix(out.String(), want) {
		t.Errorf("output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Samples: 4  divider: 7+128/256") {
		t.Errorf("output misses table details:\n%s", out.String())
	}
}

func TestPreviewOffline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	var out bytes.Buffer
	if err := run([]string{"preview", "1000Hz", path}, nil, &out); err != nil {
		t.Fatalf("preview: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() <= 44 {
		t.Errorf("wav file: %v, %v", info, err)
	}
}

func TestInteractiveOffline(t *testing.T) {
	in := strings.NewReader("help\nresolve '100 hz'\nresolve 100\nbogus\" \nquit\nresolve 1\n")
	var out bytes.Buffer
	if err := run(nil, in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "resolve <hz>") {
		t.Error("help text missing")
	}
	if !strings.Contains(got, "bad frequency") {
		t.Error("quoted argument with a space was not rejected")
	}
	if !strings.Contains(got, "parse error") {
		t.Error("unterminated quote was not reported")
	}
	if strings.Count(got, "Actual frequency") != 1 {
		t.Errorf("expected exactly one resolve before quit:\n%s", got)
	}
}

func TestFrequencyArg(t *testing.T) {
	testCases := []struct {
		arg  string
		want float64
		ok   bool
	}{
		{"1000", 1000, true},
		{"2.5e6", 2.5e6, true},
		{"440Hz", 440, true},
		{"fast", 0, false},
	}
	for _, tc := range testCases {
		got, err := frequencyArg([]string{"set", tc.arg})
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("frequencyArg(%q) = %v, %v", tc.arg, got, err)
		}
	}
	if _, err := frequencyArg([]string{"set"}); err == nil {
		t.Error("missing argument accepted")
	}
}
