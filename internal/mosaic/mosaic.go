// Package mosaic assembles fetched tiles into one output raster and
// persists it as a GeoTIFF.
package mosaic

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
	"github.com/mohammed-shakir/wms-mosaic/internal/geotiff"
	"github.com/mohammed-shakir/wms-mosaic/internal/observability"
	"github.com/mohammed-shakir/wms-mosaic/internal/plan"
	"github.com/mohammed-shakir/wms-mosaic/internal/raster"
)

// MosaicMismatchError reports a tile whose pixel dimensions disagree with
// the slot the plan reserved for it.
type MosaicMismatchError struct {
	OffX, OffY   int
	WantW, WantH int
	GotW, GotH   int
	WantBands    int
	GotBands     int
}

func (e *MosaicMismatchError) Error() string {
	if e.WantBands != e.GotBands {
		return fmt.Sprintf("tile at (%d,%d) has %d bands, mosaic has %d",
			e.OffX, e.OffY, e.GotBands, e.WantBands)
	}
	return fmt.Sprintf("tile at (%d,%d) is %dx%d, slot is %dx%d",
		e.OffX, e.OffY, e.GotW, e.GotH, e.WantW, e.WantH)
}

// PersistError wraps a failure to write the finished mosaic to disk.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist mosaic to %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Mosaic is the single output canvas for one image request. Place is safe
// for concurrent use; everything else expects placement to have finished.
type Mosaic struct {
	plan *plan.TilePlan
	crs  string

	mu  sync.Mutex
	buf *raster.Buffer
}

// New allocates the canvas at the plan's full extent.
func New(p *plan.TilePlan, bands int, dt raster.Dtype, crs string) (*Mosaic, error) {
	if p == nil {
		return nil, fmt.Errorf("mosaic: nil plan")
	}
	if bands <= 0 {
		return nil, fmt.Errorf("mosaic: band count %d", bands)
	}
	if dt.Size() == 0 {
		return nil, fmt.Errorf("mosaic: unknown sample type %q", dt)
	}
	return &Mosaic{
		plan: p,
		crs:  crs,
		buf:  raster.NewBuffer(bands, p.Width, p.Height, dt),
	}, nil
}

// Place copies one fetched tile into its slot. The tile must match the slot
// exactly; a mismatch poisons the whole mosaic, so nothing is written.
func (m *Mosaic) Place(spec plan.TileSpec, tile *raster.Buffer) error {
	if tile == nil {
		return &MosaicMismatchError{
			OffX: spec.OffX, OffY: spec.OffY,
			WantW: spec.Width, WantH: spec.Height,
			WantBands: m.buf.Bands,
		}
	}
	if tile.Width != spec.Width || tile.Height != spec.Height ||
		tile.Bands != m.buf.Bands || tile.Dtype != m.buf.Dtype {
		return &MosaicMismatchError{
			OffX: spec.OffX, OffY: spec.OffY,
			WantW: spec.Width, WantH: spec.Height,
			GotW: tile.Width, GotH: tile.Height,
			WantBands: m.buf.Bands, GotBands: tile.Bands,
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.buf.WriteRegion(spec.OffX, spec.OffY, tile); err != nil {
		return fmt.Errorf("mosaic: %w", err)
	}
	return nil
}

func (m *Mosaic) Buffer() *raster.Buffer { return m.buf }

func (m *Mosaic) Transform() geom.Transform { return m.plan.Transform }

func (m *Mosaic) CRS() string { return m.crs }

// WriteTo encodes the mosaic as a GeoTIFF stream.
func (m *Mosaic) WriteTo(w io.Writer) error {
	start := time.Now()
	err := geotiff.Encode(w, m.buf, m.plan.Transform, m.crs)
	observability.ObserveMosaic(time.Since(start).Seconds())
	return err
}

// WriteFile persists the mosaic atomically enough for a single writer: the
// file is created fresh and removed again when encoding fails partway.
func (m *Mosaic) WriteFile(path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return &PersistError{Path: path, Err: err}
	}
	if err := m.WriteTo(fh); err != nil {
		fh.Close()
		os.Remove(path)
		return &PersistError{Path: path, Err: err}
	}
	if err := fh.Close(); err != nil {
		os.Remove(path)
		return &PersistError{Path: path, Err: err}
	}
	return nil
}
