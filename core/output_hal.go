package core

// DMAConfig describes how a DMA channel feeds the output FIFO
type DMAConfig struct {
	Write          uintptr      // destination register (the state machine TX FIFO)
	Size           TransferSize // bytes per transfer
	DREQ           uint32       // pacing signal
	ReadIncrement  bool
	WriteIncrement bool
}

// DMAChannel is the abstract DMA interface the output engine drives.
// Platform-specific implementations own the channel registers and the
// completion interrupt.
type DMAChannel interface {
	// Configure programs destination, width and pacing. It does not start
	// a transfer.
	Configure(cfg DMAConfig)

	// SetCompletionHandler arms the completion interrupt with fn, or
	// disarms it when fn is nil. fn runs in interrupt context.
	SetCompletionHandler(fn func())

	// Trigger loads the read address and transfer count and starts the
	// channel.
	Trigger(src uintptr, count uint32)

	// Stop aborts any in-flight transfer and returns once the channel is
	// idle and safe to restart.
	Stop()

	// Busy reports whether a transfer is still running
	Busy() bool

	// AckCompletion clears this channel's pending completion flag
	AckCompletion()
}

// OutputStateMachine is the peripheral that shifts samples onto the pins
type OutputStateMachine interface {
	// SetClockDivider changes the state machine clock divider. The value
	// is already quantised to the hardware's 1/256 resolution.
	SetClockDivider(div float64)

	// TxFIFOAddr is the bus address of the transmit FIFO
	TxFIFOAddr() uintptr

	// TxDREQ is the data request line that paces writes into the FIFO
	TxDREQ() uint32

	// SampleCycleCost is the number of state machine cycles per sample
	SampleCycleCost() uint32
}

// SystemClock reports the frequency the core clock actually runs at
type SystemClock interface {
	Hz() uint32
}

// FixedClock is a SystemClock with a constant frequency
type FixedClock uint32

func (c FixedClock) Hz() uint32 { return uint32(c) }
