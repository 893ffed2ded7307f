// Package geotiff writes mosaicked buffers as georeferenced TIFF files.
//
// Output is a classic little-endian TIFF with one uncompressed strip and
// pixel-interleaved samples, plus the three GeoTIFF tags that tie the raster
// to a coordinate system: ModelPixelScale, ModelTiepoint and the
// GeoKeyDirectory. That subset is enough for GDAL, QGIS and the usual
// readers to place the image correctly.
package geotiff

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
	"github.com/mohammed-shakir/wms-mosaic/internal/raster"
)

const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
)

const (
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

const (
	photometricGray = 1
	photometricRGB  = 2
)

// EPSGCode parses a "EPSG:NNNN" CRS identifier. Authorities other than EPSG
// cannot be expressed in the key directory subset written here.
func EPSGCode(crs string) (int, bool) {
	s := strings.TrimSpace(crs)
	const prefix = "EPSG:"
	if len(s) <= len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return 0, false
	}
	code, err := strconv.Atoi(s[len(prefix):])
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}

type field struct {
	tag   uint16
	typ   uint16
	count uint32
	// value holds the inline value or the offset of the external block
	value uint32
}

// Encode writes buf as a GeoTIFF. The transform supplies the pixel scale and
// the world position of the raster's top-left corner.
func Encode(w io.Writer, buf *raster.Buffer, tr geom.Transform, crs string) error {
	if buf == nil || buf.Width <= 0 || buf.Height <= 0 {
		return fmt.Errorf("geotiff: empty buffer")
	}
	if buf.Dtype != raster.Uint8 {
		return fmt.Errorf("geotiff: unsupported sample type %q", buf.Dtype)
	}
	if buf.Bands != 1 && buf.Bands != 3 {
		return fmt.Errorf("geotiff: unsupported band count %d", buf.Bands)
	}
	if tr.ResX <= 0 || tr.ResY <= 0 {
		return fmt.Errorf("geotiff: non-positive pixel scale %gx%g", tr.ResX, tr.ResY)
	}

	bands := uint32(buf.Bands)
	width := uint32(buf.Width)
	height := uint32(buf.Height)
	stripLen := bands * width * height

	// Layout: header (8) | pixel strip | external values | IFD. External
	// values must start on a word boundary, so an odd strip gets one pad
	// byte.
	const headerLen = 8
	stripOff := uint32(headerLen)
	stripPad := stripLen % 2
	extOff := stripOff + stripLen + stripPad

	pixelScale := []float64{tr.ResX, tr.ResY, 0}
	// Raster point (0,0) pins to the geo origin.
	tiepoint := []float64{0, 0, 0, tr.OriginX, tr.OriginY, 0}
	geoKeys := buildGeoKeys(crs)

	ext := newExtBlock(extOff)

	photometric := uint32(photometricRGB)
	if bands == 1 {
		photometric = photometricGray
	}

	fields := []field{
		{tagImageWidth, typeLong, 1, width},
		{tagImageLength, typeLong, 1, height},
		{tagBitsPerSample, typeShort, bands, ext.shorts(repeatU16(8, int(bands)))},
		{tagCompression, typeShort, 1, 1},
		{tagPhotometric, typeShort, 1, photometric},
		{tagStripOffsets, typeLong, 1, stripOff},
		{tagSamplesPerPixel, typeShort, 1, bands},
		{tagRowsPerStrip, typeLong, 1, height},
		{tagStripByteCounts, typeLong, 1, stripLen},
		{tagPlanarConfig, typeShort, 1, 1},
		{tagSampleFormat, typeShort, bands, ext.shorts(repeatU16(1, int(bands)))},
		{tagModelPixelScale, typeDouble, 3, ext.doubles(pixelScale)},
		{tagModelTiepoint, typeDouble, 6, ext.doubles(tiepoint)},
		{tagGeoKeyDirectory, typeShort, uint32(len(geoKeys)), ext.shorts(geoKeys)},
	}

	ifdOff := extOff + uint32(len(ext.buf))

	bw := bufio.NewWriterSize(w, 1<<16)

	header := make([]byte, headerLen)
	header[0], header[1] = 'I', 'I'
	binary.LittleEndian.PutUint16(header[2:], 42)
	binary.LittleEndian.PutUint32(header[4:], ifdOff)
	if _, err := bw.Write(header); err != nil {
		return fmt.Errorf("geotiff: write header: %w", err)
	}

	if err := writeInterleaved(bw, buf); err != nil {
		return fmt.Errorf("geotiff: write pixel strip: %w", err)
	}
	if stripPad != 0 {
		if err := bw.WriteByte(0); err != nil {
			return fmt.Errorf("geotiff: write pad: %w", err)
		}
	}

	if _, err := bw.Write(ext.buf); err != nil {
		return fmt.Errorf("geotiff: write tag values: %w", err)
	}

	if err := writeIFD(bw, fields); err != nil {
		return fmt.Errorf("geotiff: write IFD: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("geotiff: flush: %w", err)
	}
	return nil
}

// writeInterleaved converts the band-sequential buffer to the
// pixel-interleaved order TIFF strips use.
func writeInterleaved(w io.Writer, buf *raster.Buffer) error {
	if buf.Bands == 1 {
		_, err := w.Write(buf.Pix)
		return err
	}
	planeSize := buf.Width * buf.Height
	row := make([]byte, buf.Width*buf.Bands)
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			for band := 0; band < buf.Bands; band++ {
				row[x*buf.Bands+band] = buf.Pix[band*planeSize+y*buf.Width+x]
			}
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// buildGeoKeys emits a GeoKeyDirectory with the model type, raster type and
// the CRS code. Unparseable CRS identifiers become the user-defined code
// 32767 so the file still opens, just without an authority reference.
func buildGeoKeys(crs string) []uint16 {
	code, ok := EPSGCode(crs)

	modelType := uint16(1) // projected
	crsKey := uint16(3072) // ProjectedCSTypeGeoKey
	if ok && code >= 4000 && code < 5000 {
		modelType = 2 // geographic
		crsKey = 2048 // GeographicTypeGeoKey
	}
	crsVal := uint16(32767)
	if ok {
		crsVal = uint16(code)
	}

	return []uint16{
		1, 1, 0, 3, // version, revision, minor, key count
		1024, 0, 1, modelType,
		1025, 0, 1, 1, // RasterPixelIsArea
		crsKey, 0, 1, crsVal,
	}
}

// extBlock accumulates tag values too large for the 4-byte inline slot and
// hands back their final file offsets.
type extBlock struct {
	base uint32
	buf  []byte
}

func newExtBlock(base uint32) *extBlock {
	return &extBlock{base: base}
}

func (e *extBlock) shorts(vals []uint16) uint32 {
	if len(vals) <= 2 {
		// fits inline, packed low-to-high
		var v uint32
		for i, s := range vals {
			v |= uint32(s) << (16 * i)
		}
		return v
	}
	off := e.base + uint32(len(e.buf))
	for _, s := range vals {
		e.buf = binary.LittleEndian.AppendUint16(e.buf, s)
	}
	if len(e.buf)%2 != 0 {
		e.buf = append(e.buf, 0)
	}
	return off
}

func (e *extBlock) doubles(vals []float64) uint32 {
	off := e.base + uint32(len(e.buf))
	for _, f := range vals {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
		e.buf = append(e.buf, b[:]...)
	}
	return off
}

func writeIFD(w io.Writer, fields []field) error {
	out := make([]byte, 0, 2+len(fields)*12+4)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(fields)))
	for _, f := range fields {
		out = binary.LittleEndian.AppendUint16(out, f.tag)
		out = binary.LittleEndian.AppendUint16(out, f.typ)
		out = binary.LittleEndian.AppendUint32(out, f.count)
		out = binary.LittleEndian.AppendUint32(out, f.value)
	}
	// no further IFDs
	out = binary.LittleEndian.AppendUint32(out, 0)
	_, err := w.Write(out)
	return err
}

func repeatU16(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}
