// Package grid resolves named grid cells into request geometries. Supported
// systems are the Danish Kvadratnet kilometre grids and H3.
package grid

import (
	"fmt"
	"strconv"
	"strings"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
)

const (
	SystemDK1km  = "dk1km"
	SystemDK10km = "dk10km"
	SystemH3     = "h3"
)

func Systems() []string {
	return []string{SystemDK1km, SystemDK10km, SystemH3}
}

// Cell resolves one grid cell name to its polygon and the CRS the polygon's
// coordinates are expressed in. Kvadratnet cells come back in EPSG:25832,
// H3 cells in EPSG:4326.
func Cell(system, index string) (geom.Polygon, string, error) {
	switch strings.ToLower(strings.TrimSpace(system)) {
	case SystemDK1km:
		poly, err := kvadratnetCell(index, "1km", 1000)
		return poly, "EPSG:25832", err
	case SystemDK10km:
		poly, err := kvadratnetCell(index, "10km", 10000)
		return poly, "EPSG:25832", err
	case SystemH3:
		poly, err := h3CellPolygon(index)
		return poly, "EPSG:4326", err
	default:
		return nil, "", fmt.Errorf("grid: unknown system %q (known: %s)",
			system, strings.Join(Systems(), ", "))
	}
}

// kvadratnetCell parses names like "1km_6171_512" or "10km_617_51": the
// prefix, then northing and easting in units of the cell size.
func kvadratnetCell(index, prefix string, size float64) (geom.Polygon, error) {
	parts := strings.Split(strings.TrimSpace(index), "_")
	if len(parts) != 3 || parts[0] != prefix {
		return nil, fmt.Errorf("grid: malformed %s cell name %q", prefix, index)
	}
	northing, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("grid: northing in %q: %w", index, err)
	}
	easting, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("grid: easting in %q: %w", index, err)
	}
	if northing <= 0 || easting <= 0 {
		return nil, fmt.Errorf("grid: non-positive cell coordinates in %q", index)
	}

	minX := float64(easting) * size
	minY := float64(northing) * size
	return geom.Rect(geom.BBox{
		MinX: minX,
		MinY: minY,
		MaxX: minX + size,
		MaxY: minY + size,
	}), nil
}

func h3CellPolygon(index string) (geom.Polygon, error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(strings.TrimSpace(index))); err != nil {
		return nil, fmt.Errorf("grid: parse h3 cell %q: %w", index, err)
	}
	if !c.IsValid() {
		return nil, fmt.Errorf("grid: invalid h3 cell %q", index)
	}
	boundary, err := c.Boundary()
	if err != nil {
		return nil, fmt.Errorf("grid: h3 boundary for %q: %w", index, err)
	}
	if len(boundary) < 3 {
		return nil, fmt.Errorf("grid: degenerate h3 boundary for %q", index)
	}

	ring := make(geom.Ring, 0, len(boundary)+1)
	for _, ll := range boundary {
		ring = append(ring, geom.Point{X: ll.Lng, Y: ll.Lat})
	}
	// close the ring
	ring = append(ring, ring[0])
	return geom.Polygon{ring}, nil
}
