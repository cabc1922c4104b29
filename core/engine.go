package core

import "sync/atomic"

// ChannelState is the lifecycle of an output channel
type ChannelState uint32

const (
	StateIdle ChannelState = iota
	StateStreaming
)

func (s ChannelState) String() string {
	if s == StateStreaming {
		return "streaming"
	}
	return "idle"
}

// transfer is the descriptor the completion handler re-arms from. Address
// and count travel together so the handler never pairs a new address with
// an old length.
type transfer struct {
	buf   *WaveformBuffer // keeps the table reachable while the DMA reads it
	addr  uintptr
	count uint32
	gen   uint32
}

// ChannelStats is a snapshot of the engine counters
type ChannelStats struct {
	State           ChannelState
	Generation      uint32 // generation of the published descriptor
	ArmedGeneration uint32 // generation last handed to the DMA engine
	Rearms          uint32 // completions that restarted the transfer
	Spurious        uint32 // completions ignored because the channel was busy
	Retargets       uint32
	ActiveAddr      uintptr
	ActiveCount     uint32
}

// OutputChannel streams one waveform table to the output state machine in
// a loop. Each DMA completion re-arms the same table from interrupt
// context; Retarget swaps in a new table between two re-arms.
type OutputChannel struct {
	cfg OutputConfig
	dma DMAChannel
	sm  OutputStateMachine

	state    uint32 // atomic ChannelState
	current  atomic.Pointer[transfer]
	armedGen uint32 // atomic

	rearms    uint32 // atomic
	spurious  uint32 // atomic
	retargets uint32 // atomic
}

// NewOutputChannel validates cfg and binds the channel to its hardware.
// An invalid configuration is fatal.
func NewOutputChannel(cfg OutputConfig, dma DMAChannel, sm OutputStateMachine) *OutputChannel {
	if err := cfg.Validate(); err != nil {
		Abort("output config: " + err.Error())
	}
	if cfg.CycleCost == 0 {
		cfg.CycleCost = sm.SampleCycleCost()
	}
	return &OutputChannel{cfg: cfg, dma: dma, sm: sm}
}

// Config returns the validated channel configuration
func (c *OutputChannel) Config() OutputConfig {
	return c.cfg
}

// State returns the current lifecycle state
func (c *OutputChannel) State() ChannelState {
	return ChannelState(atomic.LoadUint32(&c.state))
}

// Current returns the table the DMA engine is reading, or nil when idle
func (c *OutputChannel) Current() *WaveformBuffer {
	if xfer := c.current.Load(); xfer != nil {
		return xfer.buf
	}
	return nil
}

// Start programs the DMA channel to feed buf into the state machine FIFO,
// arms the completion interrupt and begins streaming.
func (c *OutputChannel) Start(buf *WaveformBuffer, params FrequencyParameters) {
	if c.State() == StateStreaming {
		return
	}
	gen := uint32(1)
	if prev := c.current.Load(); prev != nil {
		gen = prev.gen + 1
	}
	xfer := newTransfer(buf, gen)

	c.dma.Configure(DMAConfig{
		Write:         c.sm.TxFIFOAddr(),
		Size:          buf.TransferSize(),
		DREQ:          c.sm.TxDREQ(),
		ReadIncrement: true,
	})

	state := disableInterrupts()
	c.current.Store(xfer)
	c.dma.SetCompletionHandler(c.HandleCompletion)
	c.sm.SetClockDivider(params.ClockDivider)
	c.dma.Trigger(xfer.addr, xfer.count)
	atomic.StoreUint32(&c.armedGen, xfer.gen)
	atomic.StoreUint32(&c.state, uint32(StateStreaming))
	restoreInterrupts(state)

	RecordTiming(EvtStart, GetTime(), xfer.gen, xfer.count)
}

// HandleCompletion runs in interrupt context when a transfer finishes.
// A wakeup while the channel is still busy is ignored; otherwise the
// completion is acknowledged and the published descriptor re-armed.
func (c *OutputChannel) HandleCompletion() {
	state := disableInterrupts()
	if c.dma.Busy() {
		restoreInterrupts(state)
		atomic.AddUint32(&c.spurious, 1)
		return
	}
	xfer := c.current.Load()
	if xfer == nil || c.State() != StateStreaming {
		c.dma.AckCompletion()
		restoreInterrupts(state)
		return
	}
	c.dma.AckCompletion()
	c.dma.Trigger(xfer.addr, xfer.count)
	atomic.StoreUint32(&c.armedGen, xfer.gen)
	restoreInterrupts(state)
	atomic.AddUint32(&c.rearms, 1)
}

// Retarget hands the channel a new table and clock divider. With
// interrupts masked it sets the divider, stops the running transfer,
// publishes the new descriptor and restarts from the first sample of buf.
// When it returns the DMA engine no longer references the previous table,
// which is returned for the caller to release.
func (c *OutputChannel) Retarget(buf *WaveformBuffer, params FrequencyParameters) *WaveformBuffer {
	if c.State() != StateStreaming {
		c.Start(buf, params)
		return nil
	}

	state := disableInterrupts()
	prev := c.current.Load()
	next := newTransfer(buf, prev.gen+1)
	c.sm.SetClockDivider(params.ClockDivider)
	c.dma.Stop()
	// a completion raised by the transfer we just stopped is stale
	c.dma.AckCompletion()
	c.current.Store(next)
	c.dma.Trigger(next.addr, next.count)
	atomic.StoreUint32(&c.armedGen, next.gen)
	restoreInterrupts(state)

	atomic.AddUint32(&c.retargets, 1)
	RecordTiming(EvtRetarget, GetTime(), next.gen, next.count)
	if prev.buf == buf {
		return nil
	}
	return prev.buf
}

// Stop disarms the completion interrupt and halts the DMA channel. The
// table that was streaming is returned for release.
func (c *OutputChannel) Stop() *WaveformBuffer {
	if c.State() != StateStreaming {
		return nil
	}
	state := disableInterrupts()
	c.dma.SetCompletionHandler(nil)
	c.dma.Stop()
	c.dma.AckCompletion()
	atomic.StoreUint32(&c.state, uint32(StateIdle))
	xfer := c.current.Load()
	c.current.Store(&transfer{gen: xfer.gen})
	restoreInterrupts(state)

	RecordTiming(EvtStop, GetTime(), xfer.gen, 0)
	return xfer.buf
}

// Stats returns a snapshot of the engine counters
func (c *OutputChannel) Stats() ChannelStats {
	st := ChannelStats{
		State:           c.State(),
		ArmedGeneration: atomic.LoadUint32(&c.armedGen),
		Rearms:          atomic.LoadUint32(&c.rearms),
		Spurious:        atomic.LoadUint32(&c.spurious),
		Retargets:       atomic.LoadUint32(&c.retargets),
	}
	if xfer := c.current.Load(); xfer != nil {
		st.Generation = xfer.gen
		st.ActiveAddr = xfer.addr
		st.ActiveCount = xfer.count
	}
	return st
}

func newTransfer(buf *WaveformBuffer, gen uint32) *transfer {
	return &transfer{
		buf:   buf,
		addr:  buf.Addr(),
		count: uint32(buf.Len()),
		gen:   gen,
	}
}
