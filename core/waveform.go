package core

import (
	"encoding/binary"
	"errors"
	"sync"
	"unsafe"
)

var ErrOutOfMemory = errors.New("waveform allocation exceeds memory budget")

// Allocator hands out backing storage for waveform tables.
// Free is only called once a table is no longer referenced by the DMA engine.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free(buf []byte)
}

// HeapAllocator allocates from the Go heap under an optional byte budget.
// On the MCU the budget is sized for two tables (the one streaming and the
// one being built), so a request beyond it is reported instead of letting
// the runtime fault.
type HeapAllocator struct {
	Limit int // bytes; 0 = unlimited

	mu    sync.Mutex
	inUse int
}

func (a *HeapAllocator) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrSampleBounds
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Limit > 0 && a.inUse+size > a.Limit {
		return nil, ErrOutOfMemory
	}
	a.inUse += size
	return make([]byte, size), nil
}

func (a *HeapAllocator) Free(buf []byte) {
	a.mu.Lock()
	a.inUse -= len(buf)
	if a.inUse < 0 {
		a.inUse = 0
	}
	a.mu.Unlock()
}

// InUse returns the bytes currently handed out
func (a *HeapAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// WaveformBuffer is one period of quantised sine, laid out the way the DMA
// engine reads it: one byte per sample for widths up to 8 bits, otherwise
// one little-endian halfword.
type WaveformBuffer struct {
	data     []byte
	count    int
	bitWidth uint8
	size     TransferSize
}

// NewWaveformBuffer allocates storage for count samples of bitWidth bits
func NewWaveformBuffer(alloc Allocator, count int, bitWidth uint8) (*WaveformBuffer, error) {
	size := TransferSizeFor(bitWidth)
	data, err := alloc.Alloc(count * int(size))
	if err != nil {
		return nil, err
	}
	return &WaveformBuffer{
		data:     data,
		count:    count,
		bitWidth: bitWidth,
		size:     size,
	}, nil
}

// Fill writes one full sine period into the table
func (b *WaveformBuffer) Fill() {
	n := float64(b.count)
	for i := 0; i < b.count; i++ {
		b.set(i, Quantize(float64(i)/n, b.bitWidth))
	}
}

func (b *WaveformBuffer) set(i int, v uint16) {
	if b.size == TransferSize8 {
		b.data[i] = byte(v)
		return
	}
	binary.LittleEndian.PutUint16(b.data[i*2:], v)
}

// At returns sample i
func (b *WaveformBuffer) At(i int) uint16 {
	if b.size == TransferSize8 {
		return uint16(b.data[i])
	}
	return binary.LittleEndian.Uint16(b.data[i*2:])
}

func (b *WaveformBuffer) Len() int                   { return b.count }
func (b *WaveformBuffer) BitWidth() uint8            { return b.bitWidth }
func (b *WaveformBuffer) TransferSize() TransferSize { return b.size }
func (b *WaveformBuffer) Bytes() []byte              { return b.data }

// Addr is the bus address of the first sample, as programmed into the DMA
// read pointer.
func (b *WaveformBuffer) Addr() uintptr {
	if len(b.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.data[0]))
}

// release returns the storage to alloc. The buffer must not be used after.
func (b *WaveformBuffer) release(alloc Allocator) {
	if b.data == nil {
		return
	}
	alloc.Free(b.data)
	b.data = nil
}
