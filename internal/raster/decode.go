package raster

import (
	"bytes"
	"fmt"
	"image"

	_ "image/jpeg"
	_ "image/png"
)

// Decode turns a GetMap response payload into a 3-band RGB buffer. Any
// registered image format is accepted; PNG is what the fetcher requests.
func Decode(data []byte) (*Buffer, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("decoded image is empty (%dx%d)", w, h)
	}

	buf := NewBuffer(3, w, h, Uint8)
	plane := w * h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*w + x
			buf.Pix[i] = byte(r >> 8)
			buf.Pix[plane+i] = byte(g >> 8)
			buf.Pix[2*plane+i] = byte(b >> 8)
		}
	}
	return buf, nil
}
