package protocol

import (
	"errors"
	"math"
)

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// appendVLQ encodes v most significant group first, 7 bits per byte, with
// the high bit marking continuation. The ranges are asymmetric so small
// negative numbers stay short.
func appendVLQ(out []byte, v int32) []byte {
	for shift := uint(28); shift >= 7; shift -= 7 {
		lim := int32(1) << (shift - 2)
		if v < -lim || v >= 3*lim {
			out = append(out, byte(v>>shift)&0x7F|0x80)
		}
	}
	return append(out, byte(v)&0x7F)
}

// EncodeVLQInt encodes a signed integer
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [5]byte
	output.Output(appendVLQ(buf[:0], v))
}

// EncodeVLQUint encodes an unsigned integer
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt decodes a signed integer and advances data past it
func DecodeVLQInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}
	c := buf[0]
	v := uint32(c & 0x7F)
	if c&0x60 == 0x60 {
		// negative: sign-extend the first group
		v |= ^uint32(0x1F)
	}
	i := 1
	for c&0x80 != 0 {
		if i >= len(buf) {
			return 0, ErrBufferTooSmall
		}
		if i >= 5 {
			return 0, ErrInvalidVLQ
		}
		c = buf[i]
		v = v<<7 | uint32(c&0x7F)
		i++
	}
	*data = buf[i:]
	return int32(v), nil
}

// DecodeVLQUint decodes an unsigned integer
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// EncodeVLQBytes encodes a length-prefixed byte string
func EncodeVLQBytes(output OutputBuffer, b []byte) {
	EncodeVLQUint(output, uint32(len(b)))
	output.Output(b)
}

// DecodeVLQBytes decodes a length-prefixed byte string. The result aliases data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	n, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < n {
		return nil, ErrBufferTooSmall
	}
	b := (*data)[:n]
	*data = (*data)[n:]
	return b, nil
}

// EncodeFloat32 sends f as its IEEE-754 bit pattern
func EncodeFloat32(output OutputBuffer, f float32) {
	EncodeVLQUint(output, math.Float32bits(f))
}

// DecodeFloat32 is the inverse of EncodeFloat32
func DecodeFloat32(data *[]byte) (float32, error) {
	bits, err := DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}
