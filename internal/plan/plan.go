// Package plan partitions a pixel-exact bounding box into a grid of
// sub-requests bounded by a maximum axis length.
package plan

import (
	"fmt"
	"math"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
)

type InvalidPlanError struct {
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return "invalid tile plan: " + e.Reason
}

// TileSpec is one sub-request: a pixel window inside the parent box and the
// geo bounds of that window under the shared affine transform.
type TileSpec struct {
	OffX, OffY    int
	Width, Height int
	Bounds        geom.BBox
}

// TilePlan is an exact, gap-free, non-overlapping partition of the parent
// bounding box. Tiles are ordered row-major from the top-left corner.
type TilePlan struct {
	Box       geom.BBox
	Res       geom.Resolution
	Transform geom.Transform

	Width, Height int
	Cols, Rows    int
	Tiles         []TileSpec
}

// Build plans the tiling of box at the given resolution. maxLen bounds the
// pixel length of every tile on both axes. Column widths and row heights are
// near-equal integers summing exactly to the box dimensions; the remainder
// goes to the trailing (edge) tiles so no coverage is truncated.
func Build(box geom.BBox, res geom.Resolution, maxLen int) (*TilePlan, error) {
	if maxLen <= 0 {
		return nil, &InvalidPlanError{Reason: fmt.Sprintf("maxLen must be positive, got %d", maxLen)}
	}
	if !res.IsValid() {
		return nil, &InvalidPlanError{Reason: fmt.Sprintf("resolution must be positive, got %v", res)}
	}
	if !box.IsValid() {
		return nil, &InvalidPlanError{Reason: fmt.Sprintf("bounding box %v is empty", box)}
	}

	w, err := axisPixels(box.Width(), res.X, "x")
	if err != nil {
		return nil, err
	}
	h, err := axisPixels(box.Height(), res.Y, "y")
	if err != nil {
		return nil, err
	}

	cols := splitAxis(w, maxLen)
	rows := splitAxis(h, maxLen)
	tr := geom.TransformFrom(box, res)

	p := &TilePlan{
		Box:       box,
		Res:       res,
		Transform: tr,
		Width:     w,
		Height:    h,
		Cols:      len(cols),
		Rows:      len(rows),
		Tiles:     make([]TileSpec, 0, len(cols)*len(rows)),
	}

	offY := 0
	for _, th := range rows {
		offX := 0
		for _, tw := range cols {
			p.Tiles = append(p.Tiles, TileSpec{
				OffX:   offX,
				OffY:   offY,
				Width:  tw,
				Height: th,
				Bounds: tr.CellBounds(offX, offY, tw, th),
			})
			offX += tw
		}
		offY += th
	}
	return p, nil
}

// axisPixels converts a geo length into an exact pixel count, rejecting
// bounds that are not aligned to the resolution grid.
func axisPixels(length, res float64, axis string) (int, error) {
	px := length / res
	n := int(math.Round(px))
	if n <= 0 || math.Abs(px-float64(n)) > 1e-6 {
		return 0, &InvalidPlanError{
			Reason: fmt.Sprintf("%s bounds are not aligned to the resolution grid (%.9f pixels)", axis, px),
		}
	}
	return n, nil
}

// splitAxis divides total pixels into ceil(total/maxLen) near-equal integer
// segments summing exactly to total. The remainder is spread one pixel at a
// time over the trailing segments.
func splitAxis(total, maxLen int) []int {
	n := (total + maxLen - 1) / maxLen
	base := total / n
	rem := total % n
	out := make([]int, n)
	for i := range out {
		out[i] = base
		if i >= n-rem {
			out[i]++
		}
	}
	return out
}
