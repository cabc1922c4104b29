package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	buf.Pop(2)
	if buf.Available() != 3 || buf.Data()[0] != 3 {
		t.Errorf("after Pop(2): available=%d data=%v", buf.Available(), buf.Data())
	}

	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Pop past end should empty the buffer, %d left", buf.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})
	scratch.Output([]byte{4, 5})

	if scratch.CurPosition() != 5 {
		t.Errorf("Expected position 5, got %d", scratch.CurPosition())
	}

	scratch.Update(0, 99)
	scratch.Update(7, 42) // beyond written data: ignored
	if !bytes.Equal(scratch.Result(), []byte{99, 2, 3, 4, 5}) {
		t.Errorf("Result() = %v", scratch.Result())
	}

	if since := scratch.DataSince(2); !bytes.Equal(since, []byte{3, 4, 5}) {
		t.Errorf("DataSince(2) = %v, want [3 4 5]", since)
	}

	scratch.Reset()
	if scratch.CurPosition() != 0 || len(scratch.Result()) != 0 {
		t.Errorf("After reset, expected empty buffer")
	}
}

func TestScratchOutputTruncates(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, MessageMax-1))
	scratch.Output([]byte{1, 2, 3})
	if scratch.CurPosition() != MessageMax {
		t.Errorf("position = %d, want %d", scratch.CurPosition(), MessageMax)
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)
	if !fifo.IsEmpty() {
		t.Error("New FIFO should be empty")
	}

	if written := fifo.Write([]byte{1, 2, 3, 4, 5}); written != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", written)
	}

	readBuf := make([]byte, 3)
	if read := fifo.Read(readBuf); read != 3 || !bytes.Equal(readBuf, []byte{1, 2, 3}) {
		t.Errorf("Read = %d %v", read, readBuf)
	}

	fifo.Pop(1)
	if fifo.Available() != 1 {
		t.Errorf("After popping 1, expected 1 available, got %d", fifo.Available())
	}

	fifo.Reset()
	if written := fifo.Write(make([]byte, 12)); written != 10 {
		t.Errorf("Expected to fill all 10 bytes, wrote %d", written)
	}
	if fifo.Free() != 0 {
		t.Errorf("Full FIFO should have no free space, got %d", fifo.Free())
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Pop(2)

	if written := fifo.Write([]byte{5, 6, 7}); written != 3 {
		t.Errorf("Expected to write 3 bytes, wrote %d", written)
	}

	// wrapped content must still come back contiguous and in order
	if data := fifo.Data(); !bytes.Equal(data, []byte{3, 4, 5, 6, 7}) {
		t.Errorf("Data() = %v, want [3 4 5 6 7]", data)
	}

	fifo.Pop(4)
	if data := fifo.Data(); !bytes.Equal(data, []byte{7}) {
		t.Errorf("after Pop(4): Data() = %v, want [7]", data)
	}
}
