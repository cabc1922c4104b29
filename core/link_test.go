package core

import (
	"bytes"
	"errors"
	"testing"

	"piodac/protocol"
)

// fakeUART feeds queued input to the link and collects what it writes
type fakeUART struct {
	rx       bytes.Buffer
	tx       bytes.Buffer
	writeErr error
}

func (u *fakeUART) Read(p []byte) (int, error) { return u.rx.Read(p) }
func (u *fakeUART) Buffered() int              { return u.rx.Len() }

func (u *fakeUART) Write(p []byte) (int, error) {
	if u.writeErr != nil {
		return 0, u.writeErr
	}
	return u.tx.Write(p)
}

func hostFrame(t *testing.T, seq uint8, id uint16, args ...uint32) []byte {
	t.Helper()
	body := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(body, uint32(id))
	for _, arg := range args {
		protocol.EncodeVLQUint(body, arg)
	}
	payload := body.Result()

	frame := []byte{byte(len(payload) + protocol.MessageLengthMin), seq}
	frame = append(frame, payload...)
	crc := protocol.CRC16(frame)
	return append(frame, byte(crc>>8), byte(crc), protocol.MessageValueSync)
}

func TestLinkPollDispatches(t *testing.T) {
	uart := &fakeUART{}
	var got []uint32
	link := NewLink(uart, func(cmdID uint16, data *[]byte) error {
		v, err := protocol.DecodeVLQUint(data)
		got = append(got, v)
		return err
	})
	defer SetGlobalTransport(nil)

	uart.rx.Write(hostFrame(t, protocol.MessageDest, 3, 7))
	uart.rx.Write(hostFrame(t, protocol.MessageDest+1, 3, 8))

	if !link.Poll() {
		t.Fatal("Poll reported no input")
	}
	if len(got) != 2 || got[0] != 7 || got[1] != 8 {
		t.Errorf("dispatched %v, want [7 8]", got)
	}
	// one ACK per frame, carrying the next expected sequence
	acks := uart.tx.Bytes()
	if len(acks) != 2*protocol.MessageLengthMin || acks[6] != protocol.MessageDest+2 {
		t.Errorf("ACK output %X", acks)
	}
	if link.Poll() {
		t.Error("idle Poll reported input")
	}
}

func TestLinkSendsResponses(t *testing.T) {
	uart := &fakeUART{}
	link := NewLink(uart, DispatchCommand)
	defer SetGlobalTransport(nil)
	InitCoreCommands()

	SetTime(1234)
	uart.rx.Write(hostFrame(t, protocol.MessageDest, commandID(t, "get_clock")))
	link.Poll()

	// the response is queued ahead of the ACK
	out := uart.tx.Bytes()
	if len(out) <= protocol.MessageLengthMin {
		t.Fatalf("output %X has no response", out)
	}
	p := frames(t, out)[0]
	id, _ := protocol.DecodeVLQUint(&p)
	clock, _ := protocol.DecodeVLQUint(&p)
	if uint16(id) != commandID(t, "clock") || clock != 1234 {
		t.Errorf("response id=%d clock=%d", id, clock)
	}
}

func TestLinkWriteError(t *testing.T) {
	uart := &fakeUART{writeErr: errors.New("unplugged")}
	link := NewLink(uart, func(uint16, *[]byte) error { return nil })
	defer SetGlobalTransport(nil)

	uart.rx.Write(hostFrame(t, protocol.MessageDest, 1, 0))
	link.Poll()
	if link.Errors == 0 {
		t.Error("write failure not counted")
	}
}
