// Package geom defines planar geometry types and the extent resolver that
// turns an area of interest into a pixel-exact bounding box.
package geom

import (
	"fmt"
	"math"
)

type Point struct {
	X, Y float64
}

// Ring is a closed sequence of vertices. The closing vertex may be omitted.
type Ring []Point

// Polygon is one outer ring followed by optional holes. Holes do not affect
// the extent and are carried only for callers that need them.
type Polygon []Ring

type MultiPolygon []Polygon

// Geometry is the opaque input contract of the extent resolver.
type Geometry interface {
	Bounds() (BBox, error)
}

type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b BBox) Width() float64  { return b.MaxX - b.MinX }
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

func (b BBox) IsValid() bool {
	return b.MaxX > b.MinX && b.MaxY > b.MinY
}

func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// Resolution is georeferenced units per pixel, one value per axis.
type Resolution struct {
	X, Y float64
}

// Res is the square-pixel convenience constructor.
func Res(r float64) Resolution { return Resolution{X: r, Y: r} }

func (r Resolution) IsValid() bool { return r.X > 0 && r.Y > 0 }

// Padding expands an extent symmetrically, in georeferenced units per axis.
type Padding struct {
	X, Y float64
}

// Pad applies the same padding on both axes.
func Pad(p float64) Padding { return Padding{X: p, Y: p} }

type InvalidGeometryError struct {
	Reason string
}

func (e *InvalidGeometryError) Error() string {
	return "invalid geometry: " + e.Reason
}

func (p Polygon) Bounds() (BBox, error) {
	if len(p) == 0 || len(p[0]) == 0 {
		return BBox{}, &InvalidGeometryError{Reason: "empty polygon"}
	}
	b := BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, v := range p[0] {
		b.MinX = math.Min(b.MinX, v.X)
		b.MinY = math.Min(b.MinY, v.Y)
		b.MaxX = math.Max(b.MaxX, v.X)
		b.MaxY = math.Max(b.MaxY, v.Y)
	}
	if !b.IsValid() {
		return BBox{}, &InvalidGeometryError{Reason: "degenerate polygon (zero area)"}
	}
	return b, nil
}

func (mp MultiPolygon) Bounds() (BBox, error) {
	if len(mp) == 0 {
		return BBox{}, &InvalidGeometryError{Reason: "empty multipolygon"}
	}
	var out BBox
	first := true
	for _, p := range mp {
		b, err := p.Bounds()
		if err != nil {
			return BBox{}, err
		}
		if first {
			out = b
			first = false
			continue
		}
		out.MinX = math.Min(out.MinX, b.MinX)
		out.MinY = math.Min(out.MinY, b.MinY)
		out.MaxX = math.Max(out.MaxX, b.MaxX)
		out.MaxY = math.Max(out.MaxY, b.MaxY)
	}
	return out, nil
}

// Rect builds a rectangular polygon from a bounding box.
func Rect(b BBox) Polygon {
	return Polygon{Ring{
		{b.MinX, b.MinY},
		{b.MaxX, b.MinY},
		{b.MaxX, b.MaxY},
		{b.MinX, b.MaxY},
		{b.MinX, b.MinY},
	}}
}

// Resolve computes the padded extent of g and snaps it outward to the
// resolution grid so that (MaxX-MinX)/res.X and (MaxY-MinY)/res.Y are whole
// pixel counts. Snapping always expands, never crops, so the geometry stays
// fully covered. When minLen > 0 and an axis ends up shorter than minLen
// pixels, that axis is widened symmetrically in whole pixels.
func Resolve(g Geometry, res Resolution, pad Padding, minLen int) (BBox, int, int, error) {
	if g == nil {
		return BBox{}, 0, 0, &InvalidGeometryError{Reason: "nil geometry"}
	}
	b, err := g.Bounds()
	if err != nil {
		return BBox{}, 0, 0, err
	}

	b.MinX -= pad.X
	b.MaxX += pad.X
	b.MinY -= pad.Y
	b.MaxY += pad.Y

	b = snapOut(b, res)
	w := pixels(b.Width(), res.X)
	h := pixels(b.Height(), res.Y)

	if minLen > 0 {
		if w < minLen {
			b = growAxisX(b, minLen-w, res.X)
			w = minLen
		}
		if h < minLen {
			b = growAxisY(b, minLen-h, res.Y)
			h = minLen
		}
	}
	return b, w, h, nil
}

func snapOut(b BBox, res Resolution) BBox {
	return BBox{
		MinX: math.Floor(b.MinX/res.X) * res.X,
		MinY: math.Floor(b.MinY/res.Y) * res.Y,
		MaxX: math.Ceil(b.MaxX/res.X) * res.X,
		MaxY: math.Ceil(b.MaxY/res.Y) * res.Y,
	}
}

// pixels converts a snapped geo length into an exact pixel count.
func pixels(length, res float64) int {
	return int(math.Round(length / res))
}

func growAxisX(b BBox, extra int, res float64) BBox {
	left := extra / 2
	right := extra - left
	b.MinX -= float64(left) * res
	b.MaxX += float64(right) * res
	return b
}

func growAxisY(b BBox, extra int, res float64) BBox {
	bottom := extra / 2
	top := extra - bottom
	b.MinY -= float64(bottom) * res
	b.MaxY += float64(top) * res
	return b
}
