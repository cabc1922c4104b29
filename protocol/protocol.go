// Package protocol implements the framed control link between the DAC
// firmware and its host tool.
//
// A frame is laid out as
//
//	[len][seq][payload...][crc hi][crc lo][0x7E]
//
// where len counts the whole frame, seq carries 0x10 plus a 4-bit sequence
// number and the CRC covers len, seq and payload. A frame with an empty
// payload is an ACK (or a NAK when it carries an unexpected sequence).
// Payloads are a series of messages, each a VLQ message ID followed by
// its VLQ-encoded arguments.
package protocol

// Version is the protocol revision implemented here
const Version = "0.1.0"

const (
	MessageMax = 512 // scratch output capacity

	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F
)

// nextSeq advances a sequence byte, keeping the destination bits
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
