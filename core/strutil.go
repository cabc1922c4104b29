package core

// String helpers that keep fmt out of the firmware image.

// utoa converts an unsigned integer to a decimal string
func utoa(n uint32) string {
	return string(appendUint(nil, uint64(n)))
}

// itoa converts a signed integer to a decimal string
func itoa(n int) string {
	if n < 0 {
		return "-" + string(appendUint(nil, uint64(-int64(n))))
	}
	return string(appendUint(nil, uint64(n)))
}

func appendUint(dst []byte, n uint64) []byte {
	var buf [20]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, buf[pos:]...)
}

// ftoa formats v with a fixed number of decimals (at most 6), rounding
// half away from zero.
func ftoa(v float64, decimals int) string {
	if v != v {
		return "NaN"
	}
	if decimals > 6 {
		decimals = 6
	}
	var out []byte
	if v < 0 {
		out = append(out, '-')
		v = -v
	}
	scale := uint64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	if v*float64(scale) > 1.8e19 {
		return string(append(out, "Inf"...))
	}
	fixed := uint64(v*float64(scale) + 0.5)
	out = appendUint(out, fixed/scale)
	if decimals > 0 {
		out = append(out, '.')
		frac := fixed % scale
		for div := scale / 10; div > 0; div /= 10 {
			out = append(out, byte('0'+frac/div%10))
		}
	}
	return string(out)
}

// valueToString converts a dictionary constant to its string form
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case uint8:
		return utoa(uint32(val))
	case uint32:
		return utoa(val)
	case float64:
		return ftoa(val, 2)
	}
	return ""
}
