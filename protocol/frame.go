package protocol

import (
	"bytes"
	"sync/atomic"
)

type scanResult int

const (
	scanNeedMore scanResult = iota
	scanOK
	scanBad
)

// scanFrame checks whether data starts with a complete, valid frame and
// returns its length.
func scanFrame(data []byte) (int, scanResult) {
	if len(data) < MessageLengthMin {
		return 0, scanNeedMore
	}
	n := int(data[MessagePositionLen])
	if n < MessageLengthMin || n > MessageLengthMax {
		return 0, scanBad
	}
	if data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
		return 0, scanBad
	}
	if len(data) < n {
		return 0, scanNeedMore
	}
	if data[n-MessageTrailerSync] != MessageValueSync {
		return 0, scanBad
	}
	crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
	if crc != CRC16(data[:n-MessageTrailerSize]) {
		return 0, scanBad
	}
	return n, scanOK
}

// deframer splits a byte stream into frames, dropping garbage up to the
// next sync byte whenever a frame fails validation.
type deframer struct {
	synced   uint32 // atomic bool
	resynced func() // called when sync is regained
}

func (d *deframer) isSynced() bool { return atomic.LoadUint32(&d.synced) != 0 }

func (d *deframer) setSynced(v bool) {
	if v {
		atomic.StoreUint32(&d.synced, 1)
	} else {
		atomic.StoreUint32(&d.synced, 0)
	}
}

// next returns the first complete frame in data (nil if none) and the
// number of bytes consumed, including any skipped garbage.
func (d *deframer) next(data []byte) (frame []byte, used int) {
	for used < len(data) {
		rest := data[used:]
		if !d.isSynced() {
			i := bytes.IndexByte(rest, MessageValueSync)
			if i < 0 {
				return nil, len(data)
			}
			used += i + 1
			d.setSynced(true)
			if d.resynced != nil {
				d.resynced()
			}
			continue
		}
		if rest[0] == MessageValueSync {
			used++
			continue
		}
		n, res := scanFrame(rest)
		switch res {
		case scanNeedMore:
			return nil, used
		case scanBad:
			d.setSynced(false)
			continue
		}
		return rest[:n], used + n
	}
	return nil, used
}

// writeFrame appends a frame with sequence seq whose payload is produced
// by body, and returns the frame length.
func writeFrame(out OutputBuffer, seq uint8, body func(OutputBuffer)) int {
	start := out.CurPosition()
	out.Output([]byte{0, seq})
	if body != nil {
		body(out)
	}
	n := len(out.DataSince(start)) + MessageTrailerSize
	out.Update(start, uint8(n))

	var trailer [MessageTrailerSize]byte
	t := appendCRC(trailer[:0], out.DataSince(start))
	out.Output(append(t, MessageValueSync))
	return n
}

// framePayload strips header and trailer from a validated frame
func framePayload(frame []byte) []byte {
	return frame[MessageHeaderSize : len(frame)-MessageTrailerSize]
}
