package core

import (
	"math"
	"sync"
)

// Status describes what the channel is emitting after a frequency request
type Status struct {
	Target     float64
	Params     FrequencyParameters
	SampleRate float64
	Stats      ChannelStats
}

// String renders the console status line
func (s Status) String() string {
	return "Actual frequency: " + ftoa(s.Params.ActualFrequency, 2) + " Hz\n" +
		"Sampling rate: " + ftoa(s.SampleRate, 2) + " Hz"
}

// StatusHandler receives the status after every completed frequency change
type StatusHandler func(Status)

// WaveformManager owns the waveform tables of one output channel. It turns
// frequency requests into a resolved table, hands it to the engine and
// releases the superseded table once the engine has let go of it.
type WaveformManager struct {
	mu       sync.Mutex
	channel  *OutputChannel
	alloc    Allocator
	clock    SystemClock
	status   Status
	handlers []StatusHandler
}

// NewWaveformManager creates a manager for channel. A nil allocator means
// the heap with a budget of two maximum-size tables.
func NewWaveformManager(channel *OutputChannel, alloc Allocator, clock SystemClock) *WaveformManager {
	if alloc == nil {
		alloc = &HeapAllocator{Limit: 2 * channel.Config().MaxTableBytes()}
	}
	return &WaveformManager{
		channel: channel,
		alloc:   alloc,
		clock:   clock,
	}
}

// Channel returns the managed output channel
func (m *WaveformManager) Channel() *OutputChannel {
	return m.channel
}

// OnStatus registers h to be called after each frequency change
func (m *WaveformManager) OnStatus(h StatusHandler) {
	m.mu.Lock()
	m.handlers = append(m.handlers, h)
	m.mu.Unlock()
}

// Rebuild allocates and fills a table for params. The table is not yet
// visible to the DMA engine. Running out of memory is fatal.
func (m *WaveformManager) Rebuild(params FrequencyParameters) *WaveformBuffer {
	buf, err := NewWaveformBuffer(m.alloc, params.SampleCount, m.channel.Config().BitWidth)
	if err != nil {
		Abort("waveform rebuild: " + err.Error())
		return nil
	}
	buf.Fill()
	return buf
}

// Publish makes buf the streaming table. The previous table is released
// only after the engine has been retargeted to buf.
func (m *WaveformManager) Publish(buf *WaveformBuffer, params FrequencyParameters) {
	if m.channel.State() == StateIdle {
		m.channel.Start(buf, params)
		return
	}
	prevGen := m.channel.Stats().Generation
	prev := m.channel.Retarget(buf, params)
	if prev != nil {
		bytes := uint32(len(prev.Bytes()))
		prev.release(m.alloc)
		RecordTiming(EvtFree, GetTime(), prevGen, bytes)
	}
}

// SetFrequency resolves target, rebuilds the table and publishes it.
// Requests are serialised; the returned status reflects this request.
func (m *WaveformManager) SetFrequency(target float64) Status {
	st, handlers := m.retune(target)

	RecordTiming(EvtFrequency, GetTime(), clampUint32(target), clampUint32(st.Params.ActualFrequency))
	for _, h := range handlers {
		h(st)
	}
	return st
}

// retune does the locked part of SetFrequency. The lock is released even
// when Rebuild aborts, so a recovered abort does not wedge later requests.
func (m *WaveformManager) retune(target float64) (Status, []StatusHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sysclk := float64(m.clock.Hz())
	params := Resolve(target, sysclk, m.channel.Config())
	buf := m.Rebuild(params)
	m.Publish(buf, params)

	m.status = Status{
		Target:     target,
		Params:     params,
		SampleRate: params.SampleRate(sysclk),
		Stats:      m.channel.Stats(),
	}
	return m.status, m.handlers
}

// Status returns the status of the last frequency change with fresh counters
func (m *WaveformManager) Status() Status {
	m.mu.Lock()
	st := m.status
	m.mu.Unlock()
	st.Stats = m.channel.Stats()
	return st
}

// Shutdown stops streaming and releases the active table
func (m *WaveformManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if buf := m.channel.Stop(); buf != nil {
		buf.release(m.alloc)
	}
}

func clampUint32(v float64) uint32 {
	if !(v > 0) {
		return 0
	}
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
