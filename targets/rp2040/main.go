//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"piodac/core"
)

// initialFrequency is emitted from boot until the host asks otherwise
const initialFrequency = 5e6

var (
	link    *core.Link
	manager *core.WaveformManager
	display *scope

	loopErrors uint32
)

func main() {
	// clear any watchdog state left over from a previous reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	usb := InitUSB()
	InitClock()

	link = core.NewLink(usb, core.DispatchCommand)
	// shutdown and debug_msg must be registered before anything can abort
	core.InitCoreCommands()
	// text travels as debug_msg frames so it cannot break the framing
	core.SetDebugWriter(core.SendDebugMessage)
	core.SetAbortHandler(func(msg string) {
		core.SendShutdown(msg)
		link.Flush()
		halt()
	})

	cfg := core.Config8Bit()
	// run at whatever the runtime configured the PLL to
	cfg.SystemClockHz = machine.CPUFrequency()
	if err := cfg.Validate(); err != nil {
		core.Abort("output config: " + err.Error())
	}

	pcm, err := NewPCMOutput(rp2pio.PIO0)
	if err != nil {
		core.Abort("claim state machine: " + err.Error())
	}
	if err := pcm.Init(cfg); err != nil {
		core.Abort("load PIO program: " + err.Error())
	}
	dma, err := ClaimDMAOutput()
	if err != nil {
		core.Abort("claim DMA: " + err.Error())
	}
	initDMAInterrupt()

	channel := core.NewOutputChannel(cfg, dma, pcm)
	manager = core.NewWaveformManager(channel, nil, cpuClock{})

	display = newScope()
	manager.OnStatus(core.ReportStatus)
	manager.OnStatus(display.invalidate)

	core.InitDACCommands(manager)
	core.GetGlobalDictionary().BuildDictionary()

	// watchdog reset is more reliable than SYSRESETREQ with USB attached
	core.SetResetHandler(func() {
		manager.Shutdown()
		if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}); err != nil {
			return
		}
		if err := machine.Watchdog.Start(); err != nil {
			return
		}
		halt()
	})

	manager.SetFrequency(initialFrequency)

	for {
		serviceLoop()
		time.Sleep(10 * time.Microsecond)
	}
}

// serviceLoop runs one pass of the main loop. Streaming itself needs no
// attention here: the DMA interrupt keeps it going.
func serviceLoop() {
	defer func() {
		if r := recover(); r != nil {
			loopErrors++
		}
	}()

	UpdateSystemTime()
	link.Poll()
	// after Poll so the ACK is out before the reset
	core.CheckPendingReset()
	display.update(manager.Channel())
}

func halt() {
	for {
		time.Sleep(time.Second)
	}
}
