package grid

import (
	"math"
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
)

func TestCell_DK1km(t *testing.T) {
	poly, crs, err := Cell("dk1km", "1km_6171_512")
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if crs != "EPSG:25832" {
		t.Fatalf("crs = %q, want EPSG:25832", crs)
	}
	b, err := poly.Bounds()
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	want := geom.BBox{MinX: 512000, MinY: 6171000, MaxX: 513000, MaxY: 6172000}
	if b != want {
		t.Fatalf("bounds = %+v, want %+v", b, want)
	}
}

func TestCell_DK10km(t *testing.T) {
	poly, crs, err := Cell("dk10km", "10km_617_51")
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if crs != "EPSG:25832" {
		t.Fatalf("crs = %q", crs)
	}
	b, err := poly.Bounds()
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	want := geom.BBox{MinX: 510000, MinY: 6170000, MaxX: 520000, MaxY: 6180000}
	if b != want {
		t.Fatalf("bounds = %+v, want %+v", b, want)
	}
}

func TestCell_H3(t *testing.T) {
	// derive a res 8 index over central Copenhagen
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: 55.6761, Lng: 12.5683}, 8)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}

	poly, crs, err := Cell("h3", cell.String())
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if crs != "EPSG:4326" {
		t.Fatalf("crs = %q, want EPSG:4326", crs)
	}
	if len(poly) != 1 {
		t.Fatalf("polygon has %d rings, want 1", len(poly))
	}
	ring := poly[0]
	if len(ring) < 7 {
		t.Fatalf("hexagon ring has %d vertices, want at least 7 (closed)", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		t.Fatal("ring is not closed")
	}
	b, err := poly.Bounds()
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	// a res 8 hexagon spans well under a tenth of a degree
	if b.Width() > 0.1 || b.Height() > 0.1 {
		t.Fatalf("implausible cell extent: %+v", b)
	}
	if math.Abs(b.MinY-55.6) > 1 || math.Abs(b.MinX-12.5) > 1 {
		t.Fatalf("cell landed far from Copenhagen: %+v", b)
	}
}

func TestCell_Rejections(t *testing.T) {
	cases := []struct {
		system, index string
	}{
		{"dk1km", "1km_6171"},
		{"dk1km", "10km_617_51"},
		{"dk1km", "1km_abc_512"},
		{"dk1km", "1km_-1_512"},
		{"dk10km", "10km_617"},
		{"h3", "not-a-cell"},
		{"mgrs", "33UUB"},
		{"", "x"},
	}
	for _, c := range cases {
		if _, _, err := Cell(c.system, c.index); err == nil {
			t.Errorf("Cell(%q, %q) accepted", c.system, c.index)
		}
	}
}
