package core

import "errors"

// TransferSize is the width of one DMA transfer into the output FIFO
type TransferSize uint8

const (
	TransferSize8  TransferSize = 1 // one byte per sample
	TransferSize16 TransferSize = 2 // one halfword per sample
)

// Bits returns the transfer width in bits
func (s TransferSize) Bits() uint8 {
	return uint8(s) * 8
}

// TransferSizeFor picks the narrowest transfer that holds a sample of bitWidth
func TransferSizeFor(bitWidth uint8) TransferSize {
	if bitWidth <= 8 {
		return TransferSize8
	}
	return TransferSize16
}

var (
	ErrBitWidth     = errors.New("bit width out of range")
	ErrPinRange     = errors.New("output pins exceed platform pin count")
	ErrSampleBounds = errors.New("invalid sample count bounds")
	ErrAlignment    = errors.New("sample bounds not aligned")
)

// MaxBitWidth is the widest sample the table format can hold
const MaxBitWidth = 16

// OutputConfig holds the fixed parameters of one parallel output channel.
// It is validated once when the channel is built.
type OutputConfig struct {
	BasePin    uint8 // first GPIO of the contiguous output group
	BitWidth   uint8 // number of output pins / bits per sample
	MinSamples int   // shortest table per period
	MaxSamples int   // longest table per period
	Alignment  int   // table length granularity for the DMA engine

	// CycleCost is the number of peripheral cycles spent per emitted sample
	// in the resolver's first estimate. Zero means ask the state machine.
	CycleCost uint32

	SystemClockHz uint32 // clock the firmware configures at boot
	PinLimit      uint8  // number of usable GPIOs on the part
}

// Config8Bit is the 8-pin variant: short tables, high top frequency.
func Config8Bit() OutputConfig {
	return OutputConfig{
		BasePin:       0,
		BitWidth:      8,
		MinSamples:    4,
		MaxSamples:    256,
		Alignment:     4,
		CycleCost:     16,
		SystemClockHz: 300000000,
		PinLimit:      30,
	}
}

// Config12Bit is the 12-pin variant: long tables for low frequencies.
func Config12Bit() OutputConfig {
	return OutputConfig{
		BasePin:       0,
		BitWidth:      12,
		MinSamples:    8,
		MaxSamples:    4096,
		Alignment:     4,
		CycleCost:     8,
		SystemClockHz: 300000000,
		PinLimit:      30,
	}
}

// Validate checks the configuration against the hardware limits
func (c OutputConfig) Validate() error {
	if c.BitWidth < 1 || c.BitWidth > MaxBitWidth {
		return ErrBitWidth
	}
	if int(c.BasePin)+int(c.BitWidth) > int(c.PinLimit) {
		return ErrPinRange
	}
	if c.Alignment < 1 {
		return ErrAlignment
	}
	if c.MinSamples < c.Alignment || c.MaxSamples < c.MinSamples {
		return ErrSampleBounds
	}
	if c.MinSamples%c.Alignment != 0 || c.MaxSamples%c.Alignment != 0 {
		return ErrAlignment
	}
	return nil
}

// TransferSize returns the DMA transfer width for this configuration
func (c OutputConfig) TransferSize() TransferSize {
	return TransferSizeFor(c.BitWidth)
}

// MaxTableBytes is the size of the largest table this channel can build
func (c OutputConfig) MaxTableBytes() int {
	return c.MaxSamples * int(c.TransferSize())
}
