package protocol

// CRC16 is the CRC-16/MCRF4XX checksum used on the link (initial value 0xFFFF,
// reflected, no final xor), computed without a table.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		x := b ^ uint8(crc)
		x ^= x << 4
		w := uint16(x)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}

// appendCRC appends the big-endian CRC of data to out
func appendCRC(out []byte, data []byte) []byte {
	crc := CRC16(data)
	return append(out, uint8(crc>>8), uint8(crc))
}
