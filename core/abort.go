package core

// AbortHandler is called with the reason before a fatal fault halts the firmware
type AbortHandler func(msg string)

var abortHandler AbortHandler

// SetAbortHandler registers the platform reaction to a fatal fault
// (report over the console, blink, halt). It must not return normally if
// the platform wants to halt; otherwise Abort panics afterwards.
func SetAbortHandler(h AbortHandler) {
	abortHandler = h
}

// Abort reports an unrecoverable fault and stops. Only invalid
// configuration and waveform allocation failure end up here.
func Abort(msg string) {
	RecordTiming(EvtAbort, GetTime(), 0, 0)
	DebugPrintln("[ABORT] " + msg)
	if abortHandler != nil {
		abortHandler(msg)
	}
	panic(msg)
}
