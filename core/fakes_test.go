package core

import (
	"sync"
	"testing"
)

// eventLog records hardware and allocator calls in order
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(ev string) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// indexOf returns the position of the last occurrence of ev, or -1
func indexOf(events []string, ev string) int {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i] == ev {
			return i
		}
	}
	return -1
}

// trackingAllocator remembers live allocations by address so a fake DMA
// engine can tell whether it is reading freed memory.
type trackingAllocator struct {
	log *eventLog

	mu    sync.Mutex
	live  map[uintptr]int
	freed int
	fail  bool
}

func newTrackingAllocator(log *eventLog) *trackingAllocator {
	return &trackingAllocator{log: log, live: make(map[uintptr]int)}
}

func (a *trackingAllocator) Alloc(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return nil, ErrOutOfMemory
	}
	buf := make([]byte, size)
	a.live[addrOf(buf)] = size
	return buf, nil
}

func (a *trackingAllocator) Free(buf []byte) {
	a.mu.Lock()
	delete(a.live, addrOf(buf))
	a.freed++
	// poison, so a late reader sees garbage
	for i := range buf {
		buf[i] = 0xEE
	}
	a.mu.Unlock()
	if a.log != nil {
		a.log.add("free")
	}
}

// liveSize returns the size of the live allocation at addr, or -1
func (a *trackingAllocator) liveSize(addr uintptr) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if size, ok := a.live[addr]; ok {
		return size
	}
	return -1
}

func (a *trackingAllocator) liveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

func addrOf(buf []byte) uintptr {
	return (&WaveformBuffer{data: buf}).Addr()
}

// fakeDMA models one DMA channel. Transfers are "performed" by calling
// complete, which checks the memory being read and then raises the
// completion interrupt.
type fakeDMA struct {
	log   *eventLog
	alloc *trackingAllocator

	mu       sync.Mutex
	cfg      DMAConfig
	handler  func()
	busy     bool
	addr     uintptr
	count    uint32
	triggers int
	stops    int
	acks     int
	faults   []string
}

func (d *fakeDMA) Configure(cfg DMAConfig) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	d.log.add("configure")
}

func (d *fakeDMA) SetCompletionHandler(fn func()) {
	d.mu.Lock()
	d.handler = fn
	d.mu.Unlock()
}

func (d *fakeDMA) Trigger(src uintptr, count uint32) {
	d.mu.Lock()
	d.addr, d.count, d.busy = src, count, true
	d.triggers++
	d.checkLocked("trigger")
	d.mu.Unlock()
	d.log.add("trigger")
}

func (d *fakeDMA) Stop() {
	d.mu.Lock()
	d.busy = false
	d.addr, d.count = 0, 0
	d.stops++
	d.mu.Unlock()
	d.log.add("stop")
}

func (d *fakeDMA) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

func (d *fakeDMA) AckCompletion() {
	d.mu.Lock()
	d.acks++
	d.mu.Unlock()
}

// checkLocked verifies the channel points at live memory whose size
// matches the transfer count.
func (d *fakeDMA) checkLocked(where string) {
	if d.alloc == nil || d.addr == 0 {
		return
	}
	size := d.alloc.liveSize(d.addr)
	if size < 0 {
		d.faults = append(d.faults, where+": reading freed memory")
		return
	}
	if uint32(size) != d.count*uint32(d.cfg.Size) {
		d.faults = append(d.faults, where+": count does not match table size")
	}
}

// complete finishes the running transfer and raises the interrupt
func (d *fakeDMA) complete() {
	d.mu.Lock()
	if d.busy {
		d.checkLocked("transfer")
		d.busy = false
	}
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h()
	}
}

// spuriousWake raises the interrupt while the transfer is still running
func (d *fakeDMA) spuriousWake() {
	d.mu.Lock()
	d.busy = true
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h()
	}
}

func (d *fakeDMA) state() (addr uintptr, count uint32, triggers int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr, d.count, d.triggers
}

func (d *fakeDMA) faultList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.faults...)
}

type fakeStateMachine struct {
	log *eventLog

	mu       sync.Mutex
	dividers []float64
}

func (s *fakeStateMachine) SetClockDivider(div float64) {
	s.mu.Lock()
	s.dividers = append(s.dividers, div)
	s.mu.Unlock()
	s.log.add("divider")
}

func (s *fakeStateMachine) lastDivider() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dividers) == 0 {
		return 0
	}
	return s.dividers[len(s.dividers)-1]
}

func (s *fakeStateMachine) TxFIFOAddr() uintptr     { return 0x50200010 }
func (s *fakeStateMachine) TxDREQ() uint32          { return 0 }
func (s *fakeStateMachine) SampleCycleCost() uint32 { return PIOCyclesPerSample }

type rig struct {
	log     *eventLog
	alloc   *trackingAllocator
	dma     *fakeDMA
	sm      *fakeStateMachine
	channel *OutputChannel
	manager *WaveformManager
}

func newRig(t *testing.T, cfg OutputConfig) *rig {
	t.Helper()
	log := &eventLog{}
	alloc := newTrackingAllocator(log)
	r := &rig{
		log:   log,
		alloc: alloc,
		dma:   &fakeDMA{log: log, alloc: alloc},
		sm:    &fakeStateMachine{log: log},
	}
	r.channel = NewOutputChannel(cfg, r.dma, r.sm)
	r.manager = NewWaveformManager(r.channel, alloc, FixedClock(cfg.SystemClockHz))
	return r
}

// expectAbort runs fn and fails the test unless it aborts
func expectAbort(t *testing.T, fn func()) (msg string) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected an abort")
		}
		msg, _ = r.(string)
	}()
	fn()
	return ""
}
