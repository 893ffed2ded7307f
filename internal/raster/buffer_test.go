package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestWriteRegion_CopiesAllBands(t *testing.T) {
	dst := NewBuffer(3, 4, 4, Uint8)
	src := NewBuffer(3, 2, 2, Uint8)
	for band := 0; band < 3; band++ {
		for i := 0; i < 4; i++ {
			src.Pix[band*4+i] = byte(10 * (band + 1))
		}
	}
	if err := dst.WriteRegion(2, 1, src); err != nil {
		t.Fatalf("WriteRegion: %v", err)
	}
	for band := 0; band < 3; band++ {
		if got := dst.At(band, 2, 1); got != byte(10*(band+1)) {
			t.Fatalf("band %d at (2,1) = %d", band, got)
		}
		if got := dst.At(band, 3, 2); got != byte(10*(band+1)) {
			t.Fatalf("band %d at (3,2) = %d", band, got)
		}
		if got := dst.At(band, 0, 0); got != 0 {
			t.Fatalf("band %d at (0,0) = %d, want untouched 0", band, got)
		}
	}
}

func TestWriteRegion_RejectsOutOfBounds(t *testing.T) {
	dst := NewBuffer(3, 4, 4, Uint8)
	src := NewBuffer(3, 3, 3, Uint8)
	if err := dst.WriteRegion(2, 2, src); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestWriteRegion_RejectsBandMismatch(t *testing.T) {
	dst := NewBuffer(3, 4, 4, Uint8)
	src := NewBuffer(1, 2, 2, Uint8)
	if err := dst.WriteRegion(0, 0, src); err == nil {
		t.Fatal("expected band mismatch error")
	}
}

func TestDecode_PNGToBandSequentialRGB(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	img.Set(2, 1, color.NRGBA{R: 0, G: 128, B: 64, A: 255})

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	buf, err := Decode(pngBuf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.Bands != 3 || buf.Width != 3 || buf.Height != 2 || buf.Dtype != Uint8 {
		t.Fatalf("unexpected shape %d/%dx%d/%s", buf.Bands, buf.Width, buf.Height, buf.Dtype)
	}
	if buf.At(0, 0, 0) != 255 || buf.At(1, 0, 0) != 0 || buf.At(2, 0, 0) != 0 {
		t.Fatalf("pixel (0,0) = %d,%d,%d, want 255,0,0",
			buf.At(0, 0, 0), buf.At(1, 0, 0), buf.At(2, 0, 0))
	}
	if buf.At(0, 2, 1) != 0 || buf.At(1, 2, 1) != 128 || buf.At(2, 2, 1) != 64 {
		t.Fatalf("pixel (2,1) = %d,%d,%d, want 0,128,64",
			buf.At(0, 2, 1), buf.At(1, 2, 1), buf.At(2, 2, 1))
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("definitely not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}
