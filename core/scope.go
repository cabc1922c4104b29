package core

import (
	"image/color"

	"tinygo.org/x/drivers"
)

var (
	scopeOn  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	scopeOff = color.RGBA{}
)

// bufferClearer is implemented by displays with a fast framebuffer clear
type bufferClearer interface {
	ClearBuffer()
}

// DrawWaveform plots one period of buf across the display, full scale
// mapped to the display height, and pushes the frame.
func DrawWaveform(d drivers.Displayer, buf *WaveformBuffer) error {
	w, h := d.Size()
	if c, ok := d.(bufferClearer); ok {
		c.ClearBuffer()
	} else {
		for y := int16(0); y < h; y++ {
			for x := int16(0); x < w; x++ {
				d.SetPixel(x, y, scopeOff)
			}
		}
	}
	if buf == nil || buf.Len() == 0 || w <= 0 || h <= 0 {
		return d.Display()
	}

	full := float64(uint32(1)<<buf.BitWidth() - 1)
	prevY := int16(-1)
	for x := int16(0); x < w; x++ {
		i := int(x) * buf.Len() / int(w)
		y := h - 1 - int16(float64(buf.At(i))/full*float64(h-1))
		d.SetPixel(x, y, scopeOn)
		// join steep edges so short tables still read as a curve
		if prevY >= 0 {
			for yy := prevY; yy != y; {
				d.SetPixel(x, yy, scopeOn)
				if yy < y {
					yy++
				} else {
					yy--
				}
			}
		}
		prevY = y
	}
	return d.Display()
}
