package geom

// Transform is the affine mapping between pixel space and geo space for a
// north-up raster anchored at the top-left corner of its bounding box.
// Both the tile planner and the mosaicker derive tile geo bounds through
// this one type so coordinate rounding stays identical on both sides.
type Transform struct {
	OriginX, OriginY float64
	ResX, ResY       float64
}

func TransformFrom(b BBox, res Resolution) Transform {
	return Transform{
		OriginX: b.MinX,
		OriginY: b.MaxY,
		ResX:    res.X,
		ResY:    res.Y,
	}
}

// PixelToGeo maps the top-left corner of pixel (px, py) to geo coordinates.
func (t Transform) PixelToGeo(px, py int) (float64, float64) {
	return t.OriginX + float64(px)*t.ResX, t.OriginY - float64(py)*t.ResY
}

// CellBounds returns the geo bounds of a pixel-aligned window.
func (t Transform) CellBounds(offX, offY, width, height int) BBox {
	minX, maxY := t.PixelToGeo(offX, offY)
	maxX, minY := t.PixelToGeo(offX+width, offY+height)
	return BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}
