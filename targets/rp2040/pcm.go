//go:build rp2040 || rp2350

package main

import (
	"machine"
	"unsafe"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"piodac/core"
)

// pcmOrigin lets the program load anywhere in instruction memory
const pcmOrigin = -1

// dreqPIOTx is the DMA request number of PIO block n, state machine 0 TX
func dreqPIOTx(block uint8) uint32 {
	return uint32(block) * 8
}

// buildPCMProgram returns the one-instruction sample loop. Autopull
// refills the OSR from the TX FIFO, so every sample costs the out cycle
// plus one delay cycle.
func buildPCMProgram(bitWidth uint8) []uint16 {
	return []uint16{
		// .wrap_target
		rp2pio.EncodeOut(rp2pio.SrcDestPins, bitWidth) | pioDelay(core.PIOCyclesPerSample-1), // 0: out pins, N [1]
		// .wrap
	}
}

// pioDelay encodes the delay field (bits 8-12) of an instruction.
// rp2pio.EncodeDelay masks the shifted value to the low five bits and
// always yields zero.
func pioDelay(cycles uint8) uint16 {
	return uint16(cycles&0x1F) << 8
}

// PCMOutput drives a contiguous GPIO group from a PIO state machine
type PCMOutput struct {
	pio      *rp2pio.PIO
	sm       rp2pio.StateMachine
	basePin  machine.Pin
	bitWidth uint8
	offset   uint8
}

// NewPCMOutput claims a free state machine on block p
func NewPCMOutput(p *rp2pio.PIO) (*PCMOutput, error) {
	sm, err := p.ClaimStateMachine()
	if err != nil {
		return nil, err
	}
	return &PCMOutput{pio: p, sm: sm}, nil
}

// Init loads the program and starts the state machine with the pins of
// cfg. The divider stays at 1 until the first frequency is published.
func (o *PCMOutput) Init(cfg core.OutputConfig) error {
	o.basePin = machine.Pin(cfg.BasePin)
	o.bitWidth = cfg.BitWidth

	program := buildPCMProgram(cfg.BitWidth)
	offset, err := o.pio.AddProgram(program, pcmOrigin)
	if err != nil {
		return err
	}
	o.offset = offset

	for i := uint8(0); i < cfg.BitWidth; i++ {
		(o.basePin + machine.Pin(i)).Configure(machine.PinConfig{Mode: o.pio.PinMode()})
	}

	smCfg := rp2pio.DefaultStateMachineConfig()
	smCfg.SetOutPins(o.basePin, cfg.BitWidth)
	// shift right, autopull after each sample
	smCfg.SetOutShift(true, true, uint16(cfg.BitWidth))
	smCfg.SetWrap(offset, offset+uint8(len(program))-1)
	smCfg.SetFIFOJoin(rp2pio.FifoJoinTx)
	smCfg.SetClkDivIntFrac(1, 0)

	o.sm.Init(offset, smCfg)
	// pin directions only stick after Init
	o.sm.SetPindirsConsecutive(o.basePin, cfg.BitWidth, true)
	o.sm.SetPinsConsecutive(o.basePin, cfg.BitWidth, false)
	o.sm.SetEnabled(true)
	return nil
}

// SetClockDivider writes the 16.8 divider without restarting the program
func (o *PCMOutput) SetClockDivider(div float64) {
	whole, frac := core.SplitClockDivider(div)
	o.sm.SetClkDiv(whole, frac)
}

func (o *PCMOutput) TxFIFOAddr() uintptr {
	return uintptr(unsafe.Pointer(o.sm.TxReg()))
}

func (o *PCMOutput) TxDREQ() uint32 {
	return dreqPIOTx(o.pio.BlockIndex()) + uint32(o.sm.StateMachineIndex())
}

func (o *PCMOutput) SampleCycleCost() uint32 {
	return core.PIOCyclesPerSample
}
