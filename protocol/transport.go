package protocol

import "sync/atomic"

// CommandHandler is a function type for handling decoded commands
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the device side of the link: it validates incoming frames,
// dispatches their messages in sequence order and acknowledges every frame.
type Transport struct {
	deframer
	// expected sequence of the next host frame; responses carry the same value
	nextSequence uint32 // atomic

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func() // host restarted its sequence
	flushCallback func() // push ACKs out immediately
}

// NewTransport creates a new Transport instance
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
	t.setSynced(true)
	t.resynced = t.encodeAckNak
	return t
}

// Receive consumes complete frames from input; a trailing partial frame
// is left for the next call.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	used := 0
	for used < len(data) {
		frame, n := t.next(data[used:])
		used += n
		if frame == nil {
			break
		}
		t.handleFrame(frame)
	}
	if used > 0 {
		input.Pop(used)
	}
}

func (t *Transport) handleFrame(frame []byte) {
	seq := frame[MessagePositionSeq]
	expected := uint8(atomic.LoadUint32(&t.nextSequence))

	// a host that restarted begins again at MessageDest
	if seq == MessageDest && expected != MessageDest {
		atomic.StoreUint32(&t.nextSequence, MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	if seq == expected {
		atomic.StoreUint32(&t.nextSequence, uint32(nextSeq(seq)))
		_ = t.parseFrame(framePayload(frame))
	}
	// ACK on match, NAK (carrying the expected sequence) otherwise
	t.encodeAckNak()
}

// parseFrame dispatches each message of a payload
func (t *Transport) parseFrame(payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			// a handler panicked; force a resync
			t.setSynced(false)
		}
	}()

	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.setSynced(false)
			return err
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			// the rest of the payload cannot be decoded reliably
			return err
		}
	}
	return nil
}

func (t *Transport) encodeAckNak() {
	ns := uint8(atomic.LoadUint32(&t.nextSequence))
	ack := [MessageLengthMin]byte{MessageLengthMin, ns}
	appendCRC(ack[:2], ack[:2])
	ack[4] = MessageValueSync
	t.output.Output(ack[:])
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame appends a frame whose payload is written by frameData
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	writeFrame(t.output, uint8(atomic.LoadUint32(&t.nextSequence)), frameData)
}

// SendCommand sends a message with arguments
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state
func (t *Transport) Reset() {
	t.setSynced(true)
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback to be called when host reset is detected
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback that writes pending output right away
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}
