// Command dacctl controls the PIO sine DAC firmware over its USB serial
// port. Without a subcommand it opens an interactive prompt.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"golang.org/x/term"

	"piodac/core"
	"piodac/host/dac"
	"piodac/host/preview"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "serial device of the DAC")
	bits    = flag.Int("bits", 8, "output width for offline commands (8 or 12)")
	periods = flag.Int("periods", 100, "periods rendered by preview")
	rate    = flag.Int("rate", 48000, "WAV sample rate written by preview")
	verbose = flag.Bool("verbose", false, "print the raw dictionary and device debug messages")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if err := run(flag.Args(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "dacctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: dacctl [flags] [command [args]]\n\nCommands:\n%s\nFlags:\n", helpText)
	flag.PrintDefaults()
}

const helpText = `  set <hz>              retarget the output frequency
  status                show the output parameters and engine counters
  timing                dump the firmware timing ring
  clock                 read the device clock
  uptime                time since the device booted
  dict                  print the firmware dictionary
  reset                 reboot the firmware
  resolve <hz>          resolve a frequency offline, without a device
  preview <hz> <file>   render the table for <hz> to a WAV file, offline
  help                  this text
  quit                  leave the prompt
`

// session holds the lazily opened device connection
type session struct {
	out    io.Writer
	client *dac.Client
}

func run(args []string, in io.Reader, out io.Writer) error {
	s := &session{out: out}
	defer s.close()

	if len(args) > 0 {
		return s.exec(args)
	}
	return s.interactive(in)
}

func (s *session) interactive(in io.Reader) error {
	prompt := false
	if f, ok := in.(*os.File); ok {
		prompt = term.IsTerminal(int(f.Fd()))
	}
	if prompt {
		fmt.Fprintln(s.out, "PIO DAC control. Type 'help' for commands.")
	}

	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(s.out, "dac> ")
		}
		if !scanner.Scan() {
			break
		}
		fields, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(s.out, "parse error: %v\n", err)
			continue
		}
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" || fields[0] == "q" {
			return nil
		}
		if err := s.exec(fields); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (s *session) exec(args []string) error {
	switch args[0] {
	case "help", "?":
		fmt.Fprint(s.out, helpText)
		return nil
	case "resolve":
		hz, err := frequencyArg(args)
		if err != nil {
			return err
		}
		return s.resolve(hz)
	case "preview":
		hz, err := frequencyArg(args)
		if err != nil {
			return err
		}
		if len(args) < 3 {
			return errors.New("preview needs an output file")
		}
		return s.preview(hz, args[2])
	}

	c, err := s.connect()
	if err != nil {
		return err
	}
	switch args[0] {
	case "set":
		hz, err := frequencyArg(args)
		if err != nil {
			return err
		}
		st, err := c.SetFrequency(hz)
		if err != nil {
			return err
		}
		s.printStatus(st)
	case "status":
		st, err := c.Status()
		if err != nil {
			return err
		}
		s.printStatus(st)
	case "timing":
		events, err := c.Timing()
		if err != nil {
			return err
		}
		for _, evt := range events {
			fmt.Fprintln(s.out, evt)
		}
	case "clock":
		clock, err := c.Clock()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "clock=%d\n", clock)
	case "uptime":
		up, err := c.Uptime()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "uptime=%s\n", time.Duration(up)*time.Microsecond)
	case "dict":
		fmt.Fprint(s.out, c.Dictionary().Summary())
	case "reset":
		return c.Reset()
	default:
		return fmt.Errorf("unknown command %q (try help)", args[0])
	}
	return nil
}

func (s *session) connect() (*dac.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	c, err := dac.Dial(*device)
	if err != nil {
		return nil, err
	}
	if *verbose {
		c.OnMessage = func(msg string) { fmt.Fprintf(os.Stderr, "device: %s\n", msg) }
	}
	if _, err := c.Identify(); err != nil {
		c.Close()
		return nil, err
	}
	if *verbose {
		fmt.Fprintf(s.out, "%s\n", c.RawDictionary())
	}
	s.client = c
	return c, nil
}

func (s *session) close() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *session) printStatus(st dac.Status) {
	fmt.Fprintln(s.out, st)
	fmt.Fprintf(s.out, "Samples: %d  divider: %.4f  generation: %d  re-arms: %d  spurious: %d  retargets: %d\n",
		st.SampleCount, st.ClockDivider, st.Generation, st.Rearms, st.Spurious, st.Retargets)
}

func offlineConfig() (core.OutputConfig, error) {
	switch *bits {
	case 8:
		return core.Config8Bit(), nil
	case 12:
		return core.Config12Bit(), nil
	}
	return core.OutputConfig{}, fmt.Errorf("unsupported width %d", *bits)
}

func (s *session) resolve(hz float64) error {
	cfg, err := offlineConfig()
	if err != nil {
		return err
	}
	sysclk := float64(cfg.SystemClockHz)
	p := core.Resolve(hz, sysclk, cfg)
	whole, frac := core.SplitClockDivider(p.ClockDivider)
	fmt.Fprintf(s.out, "Actual frequency: %.2f Hz\nSampling rate: %.2f Hz\n", p.ActualFrequency, p.SampleRate(sysclk))
	fmt.Fprintf(s.out, "Samples: %d  divider: %d+%d/256  deviation: %.4f%%\n",
		p.SampleCount, whole, frac, p.Deviation(hz)*100)
	return nil
}

func (s *session) preview(hz float64, path string) error {
	cfg, err := offlineConfig()
	if err != nil {
		return err
	}
	p := core.Resolve(hz, float64(cfg.SystemClockHz), cfg)
	buf, err := core.NewWaveformBuffer(&core.HeapAllocator{}, p.SampleCount, cfg.BitWidth)
	if err != nil {
		return err
	}
	buf.Fill()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := preview.WriteWAV(f, buf, preview.Options{SampleRate: *rate, Periods: *periods}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "wrote %d periods of %d samples to %s\n", *periods, p.SampleCount, path)
	return nil
}

func frequencyArg(args []string) (float64, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s needs a frequency in Hz", args[0])
	}
	hz, err := strconv.ParseFloat(strings.TrimSuffix(strings.ToLower(args[1]), "hz"), 64)
	if err != nil {
		return 0, fmt.Errorf("bad frequency %q: %w", args[1], err)
	}
	return hz, nil
}
