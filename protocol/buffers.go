package protocol

// InputBuffer is a queue of received bytes the transport parses in place
type InputBuffer interface {
	// Data returns the pending bytes as one contiguous slice
	Data() []byte

	// Available returns the number of pending bytes
	Available() int

	// Pop discards n bytes from the front
	Pop(n int)
}

// OutputBuffer is where the transport assembles outgoing frames
type OutputBuffer interface {
	// Output appends data
	Output(data []byte)

	// CurPosition returns the current write offset
	CurPosition() int

	// Update overwrites the byte at pos
	Update(pos int, val byte)

	// DataSince returns everything written from pos on
	DataSince(pos int) []byte
}

// SliceInputBuffer is an InputBuffer over a fixed slice
type SliceInputBuffer struct {
	data []byte
}

// NewSliceInputBuffer creates a new SliceInputBuffer
func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput is an OutputBuffer backed by a fixed array, so encoding
// never allocates. Writes past the end are truncated.
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

func (s *ScratchOutput) CurPosition() int { return s.pos }

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written since the last Reset
func (s *ScratchOutput) Result() []byte { return s.buf[:s.pos] }

// Reset empties the buffer
func (s *ScratchOutput) Reset() { s.pos = 0 }

// FifoBuffer is a ring buffer between the serial reader and the transport
type FifoBuffer struct {
	buf   []byte
	head  int // next byte to read
	count int
	lin   []byte // scratch for Data when the content wraps
}

// NewFifoBuffer creates a FifoBuffer holding up to capacity bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count written
func (f *FifoBuffer) Write(data []byte) int {
	n := 0
	for _, b := range data {
		if f.count == len(f.buf) {
			break
		}
		f.buf[(f.head+f.count)%len(f.buf)] = b
		f.count++
		n++
	}
	return n
}

// Read moves up to len(data) bytes out of the buffer
func (f *FifoBuffer) Read(data []byte) int {
	n := copy(data, f.Data())
	f.Pop(n)
	return n
}

func (f *FifoBuffer) Available() int { return f.count }
func (f *FifoBuffer) Free() int      { return len(f.buf) - f.count }
func (f *FifoBuffer) IsEmpty() bool  { return f.count == 0 }

// Data returns the pending bytes contiguously. When the content wraps it
// is copied into an internal scratch slice, valid until the next call.
func (f *FifoBuffer) Data() []byte {
	end := f.head + f.count
	if end <= len(f.buf) {
		return f.buf[f.head:end]
	}
	if cap(f.lin) < len(f.buf) {
		f.lin = make([]byte, len(f.buf))
	}
	lin := f.lin[:f.count]
	n := copy(lin, f.buf[f.head:])
	copy(lin[n:], f.buf[:end-len(f.buf)])
	return lin
}

// Pop discards n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	if n > f.count {
		n = f.count
	}
	f.head = (f.head + n) % len(f.buf)
	f.count -= n
	if f.count == 0 {
		f.head = 0
	}
}

// Reset empties the buffer
func (f *FifoBuffer) Reset() {
	f.head = 0
	f.count = 0
}
