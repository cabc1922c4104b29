//go:build rp2040 || rp2350

package main

import (
	"device/rp"
	"errors"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"piodac/core"
)

// dmaChannelHW is one channel's register block. See rp.DMA_Type.
type dmaChannelHW struct {
	READ_ADDR   volatile.Register32
	WRITE_ADDR  volatile.Register32
	TRANS_COUNT volatile.Register32
	CTRL_TRIG   volatile.Register32
	AL1_CTRL    volatile.Register32 // CTRL without the trigger side effect
	_           [11]volatile.Register32
}

var (
	dmaHW = (*[dmaChannels]dmaChannelHW)(unsafe.Pointer(rp.DMA))

	claimedDMA  uint32
	dmaHandlers [dmaChannels]func()
	dmaIRQ      interrupt.Interrupt
)

var errNoDMAChannel = errors.New("no free DMA channel")

type dmaTxSize uint32

const (
	dmaTxSize8 dmaTxSize = iota
	dmaTxSize16
	dmaTxSize32
)

// dmaCtrl builds a CTRL_TRIG word
type dmaCtrl uint32

func (c *dmaCtrl) setTREQSel(dreq uint32) {
	*c = dmaCtrl(uint32(*c)&^uint32(rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Msk) | dreq<<rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos)
}

func (c *dmaCtrl) setChainTo(ch uint32) {
	*c = dmaCtrl(uint32(*c)&^uint32(rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Msk) | ch<<rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos)
}

func (c *dmaCtrl) setDataSize(size dmaTxSize) {
	*c = dmaCtrl(uint32(*c)&^uint32(rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Msk) | uint32(size)<<rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos)
}

func (c *dmaCtrl) setBit(pos uint32, on bool) {
	if on {
		*c |= 1 << pos
	} else {
		*c &^= 1 << pos
	}
}

func (c *dmaCtrl) setReadIncrement(on bool)  { c.setBit(rp.DMA_CH0_CTRL_TRIG_INCR_READ_Pos, on) }
func (c *dmaCtrl) setWriteIncrement(on bool) { c.setBit(rp.DMA_CH0_CTRL_TRIG_INCR_WRITE_Pos, on) }
func (c *dmaCtrl) setEnable(on bool)         { c.setBit(rp.DMA_CH0_CTRL_TRIG_EN_Pos, on) }

// initDMAInterrupt installs the shared DMA_IRQ_0 handler
func initDMAInterrupt() {
	dmaIRQ = interrupt.New(rp.IRQ_DMA_IRQ_0, handleDMAInterrupt)
	dmaIRQ.Enable()
}

func handleDMAInterrupt(interrupt.Interrupt) {
	pending := rp.DMA.INTS0.Get()
	for ch := uint32(0); ch < dmaChannels; ch++ {
		mask := uint32(1) << ch
		if pending&mask == 0 {
			continue
		}
		if h := dmaHandlers[ch]; h != nil {
			// the handler acknowledges
			h()
		} else {
			rp.DMA.INTS0.Set(mask)
		}
	}
}

// DMAOutput is a DMA channel feeding a peripheral FIFO, with its
// completion routed through DMA_IRQ_0.
type DMAOutput struct {
	hw      *dmaChannelHW
	channel uint8
	ctrl    dmaCtrl
}

// ClaimDMAOutput reserves the lowest free channel
func ClaimDMAOutput() (*DMAOutput, error) {
	for ch := uint8(0); ch < dmaChannels; ch++ {
		if claimedDMA&(1<<ch) == 0 {
			claimedDMA |= 1 << ch
			return &DMAOutput{hw: &dmaHW[ch], channel: ch}, nil
		}
	}
	return nil, errNoDMAChannel
}

func (d *DMAOutput) mask() uint32 { return 1 << d.channel }

func (d *DMAOutput) Configure(cfg core.DMAConfig) {
	d.Stop()

	var ctrl dmaCtrl
	ctrl.setTREQSel(cfg.DREQ)
	if cfg.Size == core.TransferSize16 {
		ctrl.setDataSize(dmaTxSize16)
	} else {
		ctrl.setDataSize(dmaTxSize8)
	}
	// chaining to itself disables chaining
	ctrl.setChainTo(uint32(d.channel))
	ctrl.setReadIncrement(cfg.ReadIncrement)
	ctrl.setWriteIncrement(cfg.WriteIncrement)
	ctrl.setEnable(true)
	d.ctrl = ctrl

	d.hw.WRITE_ADDR.Set(uint32(cfg.Write))
}

func (d *DMAOutput) SetCompletionHandler(fn func()) {
	state := interrupt.Disable()
	dmaHandlers[d.channel] = fn
	if fn != nil {
		rp.DMA.INTE0.SetBits(d.mask())
	} else {
		rp.DMA.INTE0.ClearBits(d.mask())
	}
	interrupt.Restore(state)
}

// Trigger loads the source and count, then starts the channel by writing
// the control word through the trigger alias.
func (d *DMAOutput) Trigger(src uintptr, count uint32) {
	d.hw.READ_ADDR.Set(uint32(src))
	d.hw.TRANS_COUNT.Set(count)
	d.hw.CTRL_TRIG.Set(uint32(d.ctrl))
}

// Stop aborts the channel and waits for in-flight transfers to drain.
// The abort itself raises a completion, so the interrupt enable is masked
// across it and the stale flag cleared.
func (d *DMAOutput) Stop() {
	mask := d.mask()
	enabled := rp.DMA.INTE0.HasBits(mask)
	rp.DMA.INTE0.ClearBits(mask)

	d.hw.AL1_CTRL.ClearBits(1 << rp.DMA_CH0_CTRL_TRIG_EN_Pos)
	rp.DMA.CHAN_ABORT.Set(mask)
	for rp.DMA.CHAN_ABORT.Get()&mask != 0 {
	}

	rp.DMA.INTS0.Set(mask)
	if enabled {
		rp.DMA.INTE0.SetBits(mask)
	}
}

func (d *DMAOutput) Busy() bool {
	return d.hw.CTRL_TRIG.Get()&rp.DMA_CH0_CTRL_TRIG_BUSY != 0
}

func (d *DMAOutput) AckCompletion() {
	rp.DMA.INTS0.Set(d.mask())
}
