package core

import (
	"tinygo.org/x/drivers"

	"piodac/protocol"
)

// Link runs the framed control protocol over a byte stream such as the
// USB CDC serial port.
type Link struct {
	uart      drivers.UART
	in        *protocol.FifoBuffer
	out       *protocol.ScratchOutput
	transport *protocol.Transport
	rx        [64]byte

	Received uint32
	Errors   uint32
}

// NewLink wires uart to a transport that dispatches frames to handler.
// The link's transport also becomes the global response transport.
func NewLink(uart drivers.UART, handler protocol.CommandHandler) *Link {
	l := &Link{
		uart: uart,
		in:   protocol.NewFifoBuffer(256),
		out:  protocol.NewScratchOutput(),
	}
	l.transport = protocol.NewTransport(l.out, handler)
	l.transport.SetFlushCallback(l.Flush)
	l.transport.SetResetCallback(func() {
		l.in.Reset()
		l.out.Reset()
	})
	SetGlobalTransport(l.transport)
	return l
}

// Transport returns the device-side transport
func (l *Link) Transport() *protocol.Transport {
	return l.transport
}

// Poll moves pending input through the transport and flushes any output.
// It reports whether any bytes were received.
func (l *Link) Poll() bool {
	got := false
	for l.uart.Buffered() > 0 && l.in.Free() > 0 {
		max := len(l.rx)
		if free := l.in.Free(); free < max {
			max = free
		}
		n, err := l.uart.Read(l.rx[:max])
		if err != nil {
			l.Errors++
			break
		}
		if n == 0 {
			break
		}
		l.in.Write(l.rx[:n])
		got = true
	}

	if l.in.Available() > 0 {
		l.transport.Receive(l.in)
		l.Received++
	}
	l.Flush()
	return got
}

// Flush writes buffered output to the UART
func (l *Link) Flush() {
	pending := l.out.Result()
	for len(pending) > 0 {
		n, err := l.uart.Write(pending)
		if err != nil || n == 0 {
			// host gone; stale output is dropped
			l.Errors++
			break
		}
		pending = pending[n:]
	}
	l.out.Reset()
}
