package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrTimeout = errors.New("protocol: timeout")
	ErrClosed  = errors.New("protocol: transport closed")
)

// ResponseHandler is a function type for handling received responses
type ResponseHandler func(cmdID uint16, data *[]byte) error

// Message is a received frame
type Message struct {
	Sequence uint8
	Payload  []byte // frame data without header and trailer
}

// ID decodes the message ID at the start of the payload
func (m *Message) ID() (uint16, []byte, error) {
	data := m.Payload
	id, err := DecodeVLQUint(&data)
	return uint16(id), data, err
}

// HostTransport is the host side of the link: it numbers outgoing frames,
// waits for their ACK and queues incoming responses.
type HostTransport struct {
	deframer
	port io.ReadWriteCloser

	currentSeq uint32 // atomic

	input   *FifoBuffer
	readBuf []byte

	ackChan      chan *Message
	responseChan chan *Message
	handler      ResponseHandler

	writeMu sync.Mutex // serialises whole send-and-ack exchanges

	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts a transport over port
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		input:        NewFifoBuffer(1024),
		readBuf:      make([]byte, 256),
		ackChan:      make(chan *Message, 1),
		responseChan: make(chan *Message, 64),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	t.setSynced(true)
	go t.readLoop()
	return t
}

// SendCommand sends a message and waits for the frame to be acknowledged
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

// SendCommandWithTimeout is SendCommand with a custom ACK timeout
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	seq := uint8(atomic.LoadUint32(&t.currentSeq))
	msg, err := buildFrame(seq, cmdID, args)
	if err != nil {
		return err
	}

	// drop a late ACK from an earlier exchange
	select {
	case <-t.ackChan:
	default:
	}

	if n, err := t.port.Write(msg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	} else if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return t.waitForAck(seq, timeout)
}

func buildFrame(seq uint8, cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	out := NewScratchOutput()
	n := writeFrame(out, seq, func(o OutputBuffer) {
		EncodeVLQUint(o, uint32(cmdID))
		if args != nil {
			args(o)
		}
	})
	if n > MessageLengthMax {
		return nil, fmt.Errorf("message too long: %d bytes (max %d)", n, MessageLengthMax)
	}
	frame := make([]byte, len(out.Result()))
	copy(frame, out.Result())
	return frame, nil
}

// waitForAck waits for the ACK of the frame sent with seq. The device
// answers with the sequence it expects next.
func (t *HostTransport) waitForAck(seq uint8, timeout time.Duration) error {
	want := nextSeq(seq)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ack := <-t.ackChan:
			if ack.Sequence != want {
				// NAK: the device expects another sequence; adopt it for the next frame
				atomic.StoreUint32(&t.currentSeq, uint32(ack.Sequence))
				return fmt.Errorf("sequence mismatch: expected 0x%02x, got 0x%02x", want, ack.Sequence)
			}
			atomic.StoreUint32(&t.currentSeq, uint32(want))
			return nil
		case <-deadline.C:
			return fmt.Errorf("ACK for 0x%02x: %w", seq, ErrTimeout)
		case <-t.stopChan:
			return ErrClosed
		}
	}
}

// ReceiveResponse returns the next response message
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("response: %w", ErrTimeout)
	case <-t.stopChan:
		return nil, ErrClosed
	}
}

// WaitResponse returns the arguments of the next response with message ID
// id, discarding other responses received in the meantime.
func (t *HostTransport) WaitResponse(id uint16, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, fmt.Errorf("response %d: %w", id, ErrTimeout)
		}
		msg, err := t.ReceiveResponse(left)
		if err != nil {
			return nil, err
		}
		got, args, err := msg.ID()
		if err != nil {
			continue
		}
		if got == id {
			return args, nil
		}
	}
}

// SetResponseHandler sets a callback invoked for every response, in
// addition to queueing it
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handler = handler
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(t.readBuf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n > 0 {
			t.input.Write(t.readBuf[:n])
			t.processInput()
		}
	}
}

func (t *HostTransport) processInput() {
	data := t.input.Data()
	used := 0
	for used < len(data) {
		frame, n := t.next(data[used:])
		used += n
		if frame == nil {
			break
		}
		payload := make([]byte, len(framePayload(frame)))
		copy(payload, framePayload(frame))
		t.dispatch(&Message{Sequence: frame[MessagePositionSeq], Payload: payload})
	}
	t.input.Pop(used)
}

func (t *HostTransport) dispatch(msg *Message) {
	if len(msg.Payload) == 0 {
		select {
		case t.ackChan <- msg:
		default:
		}
		return
	}

	if t.handler != nil {
		if id, args, err := msg.ID(); err == nil {
			_ = t.handler(id, &args)
		}
	}

	select {
	case t.responseChan <- msg:
	default:
		// queue full: drop the oldest
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the reader and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			// unblocks a pending Read
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Reset restarts the sequence and drops queued messages
func (t *HostTransport) Reset() {
	t.setSynced(true)
	atomic.StoreUint32(&t.currentSeq, MessageDest)
	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
	for len(t.responseChan) > 0 {
		<-t.responseChan
	}
}

// GetCurrentSequence returns the sequence of the next outgoing frame
func (t *HostTransport) GetCurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
