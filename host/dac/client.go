// Package dac is the host-side client of the DAC firmware: it downloads
// the message dictionary and drives frequency changes over the serial link.
package dac

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"piodac/host/serial"
	"piodac/protocol"
)

// identifyChunk is the dictionary slice requested per identify round trip
const identifyChunk = 40

// ErrNotIdentified is returned by calls that need the dictionary first
var ErrNotIdentified = errors.New("dac: dictionary not loaded, call Identify")

// Status is the decoded status response
type Status struct {
	Target       float64
	Actual       float64
	SampleRate   float64
	SampleCount  uint32
	ClockDivider float64
	Generation   uint32
	Rearms       uint32
	Spurious     uint32
	Retargets    uint32
}

// String renders the same two lines the firmware prints on its console
func (s Status) String() string {
	return fmt.Sprintf("Actual frequency: %.2f Hz\nSampling rate: %.2f Hz", s.Actual, s.SampleRate)
}

// TimingEvent is one entry of the firmware timing ring
type TimingEvent struct {
	Type   uint8
	Clock  uint32
	Value1 uint32
	Value2 uint32
}

var timingNames = map[uint8]string{
	1: "START",
	2: "RETARGET",
	3: "FREE",
	4: "SET_FREQ",
	5: "STOP",
	6: "ABORT!",
}

func (e TimingEvent) String() string {
	name, ok := timingNames[e.Type]
	if !ok {
		name = fmt.Sprintf("type%d", e.Type)
	}
	return fmt.Sprintf("%-9s clock=%-10d v1=%-10d v2=%d", name, e.Clock, e.Value1, e.Value2)
}

// Client talks to one device
type Client struct {
	transport *protocol.HostTransport
	dict      *Dictionary
	raw       []byte

	// Timeout bounds each request/response exchange
	Timeout time.Duration

	// OnMessage, if set, receives each debug_msg line the firmware sends.
	// It runs on the transport's read goroutine.
	OnMessage func(string)

	debugID atomic.Int32 // -1 until the dictionary is loaded
}

// Dial opens the serial device and returns a client over it
func Dial(device string) (*Client, error) {
	port, err := serial.Open(serial.DefaultConfig(device))
	if err != nil {
		return nil, err
	}
	return New(port), nil
}

// New returns a client over an already open connection
func New(port io.ReadWriteCloser) *Client {
	c := &Client{
		transport: protocol.NewHostTransport(port),
		Timeout:   time.Second,
	}
	c.debugID.Store(-1)
	c.transport.SetResponseHandler(c.handleResponse)
	return c
}

// handleResponse forwards debug_msg text; everything else is left to
// WaitResponse
func (c *Client) handleResponse(id uint16, data *[]byte) error {
	if int32(id) != c.debugID.Load() || c.OnMessage == nil {
		return nil
	}
	args := *data
	msg, err := protocol.DecodeVLQBytes(&args)
	if err != nil {
		return err
	}
	c.OnMessage(string(msg))
	return nil
}

// Close shuts down the transport and the port under it
func (c *Client) Close() error {
	return c.transport.Close()
}

// Identify downloads and parses the firmware dictionary
func (c *Client) Identify() (*Dictionary, error) {
	var raw bytes.Buffer
	for offset := uint32(0); ; {
		chunk, err := c.identify(offset)
		if err != nil {
			return nil, fmt.Errorf("identify at %d: %w", offset, err)
		}
		raw.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < identifyChunk {
			break
		}
	}

	dict, err := ParseDictionary(raw.Bytes())
	if err != nil {
		return nil, err
	}
	c.raw = raw.Bytes()
	c.dict = dict
	if id, err := dict.ResponseID("debug_msg"); err == nil {
		c.debugID.Store(int32(id))
	}
	return dict, nil
}

// identify and identify_response have fixed IDs so the dictionary can be
// fetched before anything else is known.
func (c *Client) identify(offset uint32) ([]byte, error) {
	err := c.send(1, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, offset)
		protocol.EncodeVLQUint(o, identifyChunk)
	})
	if err != nil {
		return nil, err
	}
	args, err := c.transport.WaitResponse(0, c.Timeout)
	if err != nil {
		return nil, err
	}
	got, err := protocol.DecodeVLQUint(&args)
	if err != nil {
		return nil, err
	}
	if got != offset {
		return nil, fmt.Errorf("offset mismatch: asked %d, got %d", offset, got)
	}
	return protocol.DecodeVLQBytes(&args)
}

// Dictionary returns the dictionary loaded by Identify
func (c *Client) Dictionary() *Dictionary { return c.dict }

// RawDictionary returns the JSON as downloaded
func (c *Client) RawDictionary() []byte { return c.raw }

func (c *Client) send(id uint16, args func(protocol.OutputBuffer)) error {
	return c.transport.SendCommandWithTimeout(id, args, c.Timeout)
}

// request sends command name and waits for response reply
func (c *Client) request(name, reply string, args func(protocol.OutputBuffer)) ([]byte, error) {
	if c.dict == nil {
		return nil, ErrNotIdentified
	}
	cmdID, err := c.dict.CommandID(name)
	if err != nil {
		return nil, err
	}
	replyID, err := c.dict.ResponseID(reply)
	if err != nil {
		return nil, err
	}
	if err := c.send(cmdID, args); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	resp, err := c.transport.WaitResponse(replyID, c.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return resp, nil
}

// SetFrequency asks the device to emit hz and returns what it settled on
func (c *Client) SetFrequency(hz float64) (Status, error) {
	args, err := c.request("set_frequency", "status", func(o protocol.OutputBuffer) {
		protocol.EncodeFloat32(o, float32(hz))
	})
	if err != nil {
		return Status{}, err
	}
	return decodeStatus(args)
}

// Status returns the current output parameters and engine counters
func (c *Client) Status() (Status, error) {
	args, err := c.request("get_status", "status", nil)
	if err != nil {
		return Status{}, err
	}
	return decodeStatus(args)
}

// Clock returns the device microsecond clock
func (c *Client) Clock() (uint32, error) {
	args, err := c.request("get_clock", "clock", nil)
	if err != nil {
		return 0, err
	}
	return protocol.DecodeVLQUint(&args)
}

// Uptime returns the device's 64-bit microsecond timer
func (c *Client) Uptime() (uint64, error) {
	args, err := c.request("get_uptime", "uptime", nil)
	if err != nil {
		return 0, err
	}
	high, err := protocol.DecodeVLQUint(&args)
	if err != nil {
		return 0, err
	}
	low, err := protocol.DecodeVLQUint(&args)
	if err != nil {
		return 0, err
	}
	return uint64(high)<<32 | uint64(low), nil
}

// Timing fetches the firmware timing ring, oldest event first
func (c *Client) Timing() ([]TimingEvent, error) {
	if c.dict == nil {
		return nil, ErrNotIdentified
	}
	eventID, err := c.dict.ResponseID("timing_event")
	if err != nil {
		return nil, err
	}
	doneID, err := c.dict.ResponseID("timing_done")
	if err != nil {
		return nil, err
	}
	cmdID, err := c.dict.CommandID("get_timing")
	if err != nil {
		return nil, err
	}
	if err := c.send(cmdID, nil); err != nil {
		return nil, fmt.Errorf("get_timing: %w", err)
	}

	var events []TimingEvent
	deadline := time.Now().Add(c.Timeout)
	for {
		msg, err := c.transport.ReceiveResponse(time.Until(deadline))
		if err != nil {
			return events, fmt.Errorf("get_timing: %w", err)
		}
		id, args, err := msg.ID()
		if err != nil {
			continue
		}
		switch id {
		case eventID:
			evt, err := decodeTimingEvent(args)
			if err != nil {
				return events, err
			}
			events = append(events, evt)
		case doneID:
			count, err := protocol.DecodeVLQUint(&args)
			if err != nil {
				return events, err
			}
			if int(count) != len(events) {
				return events, fmt.Errorf("get_timing: received %d of %d events", len(events), count)
			}
			return events, nil
		}
	}
}

// Reset asks the firmware to reboot
func (c *Client) Reset() error {
	if c.dict == nil {
		return ErrNotIdentified
	}
	id, err := c.dict.CommandID("reset")
	if err != nil {
		return err
	}
	return c.send(id, nil)
}

func decodeStatus(args []byte) (Status, error) {
	var st Status
	floats := []*float64{&st.Target, &st.Actual, &st.SampleRate}
	for _, f := range floats {
		v, err := protocol.DecodeFloat32(&args)
		if err != nil {
			return st, fmt.Errorf("decode status: %w", err)
		}
		*f = float64(v)
	}

	var clkdiv uint32
	uints := []*uint32{&st.SampleCount, &clkdiv, &st.Generation, &st.Rearms, &st.Spurious, &st.Retargets}
	for _, u := range uints {
		v, err := protocol.DecodeVLQUint(&args)
		if err != nil {
			return st, fmt.Errorf("decode status: %w", err)
		}
		*u = v
	}
	// 16.8 fixed point
	st.ClockDivider = float64(clkdiv) / 256
	return st, nil
}

func decodeTimingEvent(args []byte) (TimingEvent, error) {
	var fields [4]uint32
	for i := range fields {
		v, err := protocol.DecodeVLQUint(&args)
		if err != nil {
			return TimingEvent{}, fmt.Errorf("decode timing event: %w", err)
		}
		fields[i] = v
	}
	return TimingEvent{Type: uint8(fields[0]), Clock: fields[1], Value1: fields[2], Value2: fields[3]}, nil
}
