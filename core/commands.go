package core

import (
	"sync/atomic"

	"piodac/protocol"
)

// InitCoreCommands registers the bootstrap and housekeeping commands.
// identify_response and identify must stay IDs 0 and 1: the host asks for
// the dictionary before it knows any other ID.
func InitCoreCommands() {
	RegisterCommand("identify_response", "offset=%u data=%*s", nil) // ID 0
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify) // ID 1

	RegisterCommand("get_clock", "", handleGetClock)
	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("reset", "", handleReset)

	RegisterResponse("clock", "clock=%u")
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("shutdown", "clock=%u reason=%*s")
	RegisterResponse("debug_msg", "msg=%*s")
}

// handleIdentify returns chunks of the data dictionary
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func handleGetClock(data *[]byte) error {
	clock := GetTime()
	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
	return nil
}

func handleGetUptime(data *[]byte) error {
	up := GetUptime()
	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(up>>32))
		protocol.EncodeVLQUint(output, uint32(up))
	})
	return nil
}

// SendResponse sends a registered response using the global transport
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		// all responses are registered at init
		panic("Response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

// SendShutdown tells the host the firmware is about to halt
func SendShutdown(reason string) {
	SendResponse("shutdown", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, GetTime())
		protocol.EncodeVLQBytes(output, []byte(reason))
	})
}

// debugMsgMax keeps a debug_msg frame within MessageLengthMax: two bytes
// of message ID and one of string length precede the text.
const debugMsgMax = protocol.MessageLengthMax - protocol.MessageLengthMin - 4

// SendDebugMessage is a DebugWriter for a link that carries the protocol.
// Each line goes out as its own debug_msg frame, cut to fit one frame, so
// text never reaches the host outside a frame.
func SendDebugMessage(msg string) {
	for msg != "" {
		n := 0
		for n < len(msg) && msg[n] != '\n' {
			n++
		}
		line := msg[:n]
		if n < len(msg) {
			n++
		}
		msg = msg[n:]
		if line == "" {
			continue
		}
		if len(line) > debugMsgMax {
			line = line[:debugMsgMax]
		}
		SendResponse("debug_msg", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQBytes(output, []byte(line))
		})
	}
}

// Global transport for sending responses (set by main)
var globalTransport *protocol.Transport

// SetGlobalTransport sets the global transport for sending responses
func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}

// Global reset handler (set by target-specific code)
var globalResetHandler func()

// resetPending is set by the reset command; the reset itself happens in
// the main loop once the ACK is on the wire.
var resetPending uint32 // atomic bool

// SetResetHandler sets the platform-specific reset handler
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

func handleReset(_ *[]byte) error {
	atomic.StoreUint32(&resetPending, 1)
	return nil
}

// CheckPendingReset runs the reset handler if a reset was requested.
// Call it from the main loop after pending output has been flushed.
func CheckPendingReset() {
	if atomic.LoadUint32(&resetPending) == 0 {
		return
	}
	atomic.StoreUint32(&resetPending, 0)
	if globalResetHandler != nil {
		globalResetHandler()
	}
}
