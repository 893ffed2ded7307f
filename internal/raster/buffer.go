// Package raster holds in-memory pixel buffers shared by the fetcher and
// the mosaicker.
package raster

import "fmt"

// Dtype identifies the sample type of a buffer. WMS GetMap responses are
// decoded from PNG, so only unsigned 8-bit samples exist today; the field is
// carried so the mosaicker can reject a mixed-type stack instead of
// guessing.
type Dtype string

const Uint8 Dtype = "uint8"

func (d Dtype) Size() int {
	switch d {
	case Uint8:
		return 1
	default:
		return 0
	}
}

// Buffer is a band-sequential raster of shape (bands, height, width).
type Buffer struct {
	Bands  int
	Width  int
	Height int
	Dtype  Dtype
	Pix    []byte
}

func NewBuffer(bands, width, height int, dt Dtype) *Buffer {
	return &Buffer{
		Bands:  bands,
		Width:  width,
		Height: height,
		Dtype:  dt,
		Pix:    make([]byte, bands*width*height*dt.Size()),
	}
}

// At returns the sample of an 8-bit buffer at (band, x, y).
func (b *Buffer) At(band, x, y int) byte {
	return b.Pix[(band*b.Height+y)*b.Width+x]
}

// Fill sets every sample of every band to v.
func (b *Buffer) Fill(v byte) {
	for i := range b.Pix {
		b.Pix[i] = v
	}
}

// WriteRegion copies src into b at pixel offset (offX, offY) for all bands.
// Band counts, dtypes and the window extent must agree.
func (b *Buffer) WriteRegion(offX, offY int, src *Buffer) error {
	if src.Bands != b.Bands || src.Dtype != b.Dtype {
		return fmt.Errorf("region has %d %s bands, buffer has %d %s bands",
			src.Bands, src.Dtype, b.Bands, b.Dtype)
	}
	if offX < 0 || offY < 0 || offX+src.Width > b.Width || offY+src.Height > b.Height {
		return fmt.Errorf("region %dx%d at (%d,%d) outside buffer %dx%d",
			src.Width, src.Height, offX, offY, b.Width, b.Height)
	}
	for band := 0; band < b.Bands; band++ {
		for y := 0; y < src.Height; y++ {
			srcRow := (band*src.Height + y) * src.Width
			dstRow := (band*b.Height+offY+y)*b.Width + offX
			copy(b.Pix[dstRow:dstRow+src.Width], src.Pix[srcRow:srcRow+src.Width])
		}
	}
	return nil
}
