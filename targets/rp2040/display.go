//go:build rp2040 || rp2350

package main

import (
	"machine"

	"tinygo.org/x/drivers/ssd1306"

	"piodac/core"
)

// I2C0 on GP20/GP21 stays clear of the output pin group
const (
	displaySDA     = machine.GPIO20
	displaySCL     = machine.GPIO21
	displayAddress = 0x3C
)

// scope mirrors the streaming table on an optional SSD1306. A panel that
// stops acknowledging is switched off for good.
type scope struct {
	dev   *ssd1306.Device
	dirty bool
}

func newScope() *scope {
	err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       displaySDA,
		SCL:       displaySCL,
	})
	if err != nil {
		return &scope{}
	}
	dev := ssd1306.NewI2C(machine.I2C0)
	dev.Configure(ssd1306.Config{
		Width:   128,
		Height:  64,
		Address: displayAddress,
	})
	return &scope{dev: dev}
}

// invalidate marks the frame stale; called after a frequency change
func (s *scope) invalidate(core.Status) {
	s.dirty = true
}

// update redraws a stale frame from the main loop
func (s *scope) update(ch *core.OutputChannel) {
	if s.dev == nil || !s.dirty {
		return
	}
	s.dirty = false
	if err := core.DrawWaveform(s.dev, ch.Current()); err != nil {
		core.DebugPrintln("[SCOPE] display disabled: " + err.Error())
		s.dev = nil
	}
}
