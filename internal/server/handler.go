package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/wms-mosaic/internal/config"
	"github.com/mohammed-shakir/wms-mosaic/internal/fetch"
	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
	"github.com/mohammed-shakir/wms-mosaic/internal/grid"
	"github.com/mohammed-shakir/wms-mosaic/internal/imagery"
	"github.com/mohammed-shakir/wms-mosaic/internal/layers"
	"github.com/mohammed-shakir/wms-mosaic/internal/logger"
	"github.com/mohammed-shakir/wms-mosaic/internal/plan"
)

type ImageHandler struct {
	Svc *imagery.Service
	Cfg config.Config
	Log *zerolog.Logger
}

// ServeHTTP renders a mosaic for the query parameters and streams it back
// as a GeoTIFF. The area of interest comes either from bbox=x1,y1,x2,y2 or
// from grid=<system>&cell=<name>; the layer either directly from layer= or
// derived from service=&year=.
func (h *ImageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := h.Svc.Render(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		logger.FromContext(r.Context(), h.Log).Error().Err(err).
			Int("status", status).
			Str("layer", req.Layer).
			Msg("image request failed")
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "image/tiff")
	w.Header().Set("Content-Disposition", `attachment; filename="mosaic.tif"`)
	if err := m.WriteTo(w); err != nil {
		// headers are gone; nothing left to do but log
		logger.FromContext(r.Context(), h.Log).Error().Err(err).Msg("streaming mosaic failed")
	}
}

func (h *ImageHandler) parseRequest(r *http.Request) (imagery.Request, error) {
	q := r.URL.Query()

	res := h.floatParam(q.Get("res"), 0.125)
	if res <= 0 {
		return imagery.Request{}, fmt.Errorf("res must be positive")
	}

	crs := strings.TrimSpace(q.Get("crs"))
	if crs == "" {
		crs = h.Cfg.CRS
	}

	var g geom.Geometry
	switch {
	case q.Get("bbox") != "":
		if q.Get("grid") != "" || q.Get("cell") != "" {
			return imagery.Request{}, fmt.Errorf("bbox and grid/cell are mutually exclusive")
		}
		box, err := parseBBox(q.Get("bbox"))
		if err != nil {
			return imagery.Request{}, err
		}
		g = geom.Rect(box)
	case q.Get("grid") != "" || q.Get("cell") != "":
		poly, cellCRS, err := grid.Cell(q.Get("grid"), q.Get("cell"))
		if err != nil {
			return imagery.Request{}, err
		}
		g = poly
		crs = cellCRS
	default:
		return imagery.Request{}, fmt.Errorf("one of bbox or grid+cell is required")
	}

	layer := strings.TrimSpace(q.Get("layer"))
	if layer == "" && q.Get("service") != "" {
		year, err := strconv.Atoi(q.Get("year"))
		if err != nil {
			return imagery.Request{}, fmt.Errorf("year: %w", err)
		}
		layer, err = layers.Name(q.Get("service"), year, res, q.Get("season"), q.Get("bands"))
		if err != nil {
			return imagery.Request{}, err
		}
	}
	if layer == "" {
		layer = h.Cfg.WMSLayer
	}
	if layer == "" {
		return imagery.Request{}, fmt.Errorf("one of layer or service+year is required")
	}

	backend := q.Get("backend")
	if backend == "" {
		backend = h.Cfg.Backend
	}

	return imagery.Request{
		Geom:      g,
		URL:       h.Cfg.WMSURL,
		Layer:     layer,
		CRS:       crs,
		Res:       geom.Res(res),
		MaxLen:    h.intParam(q.Get("max_len"), h.Cfg.MaxLen),
		MinLen:    h.intParam(q.Get("min_len"), h.Cfg.MinLen),
		Padding:   geom.Pad(h.floatParam(q.Get("padding"), 0)),
		Backend:   backend,
		Version:   h.Cfg.Version,
		Tries:     h.intParam(q.Get("tries"), h.Cfg.Tries),
		Workers:   h.Cfg.Workers,
		RetryWait: h.Cfg.RetryWait,
		CacheTTL:  h.Cfg.CacheTTL,
	}, nil
}

func (h *ImageHandler) floatParam(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return def
}

func (h *ImageHandler) intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	return def
}

func parseBBox(raw string) (geom.BBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return geom.BBox{}, fmt.Errorf("bbox wants 4 comma-separated values: minx,miny,maxx,maxy")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.BBox{}, fmt.Errorf("bbox value %d: %w", i+1, err)
		}
		vals[i] = v
	}
	box := geom.BBox{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}
	if !box.IsValid() {
		return geom.BBox{}, fmt.Errorf("bbox must satisfy maxx>minx and maxy>miny")
	}
	return box, nil
}

// statusFor maps pipeline errors to response codes: caller mistakes are
// 400s, upstream trouble is a 502, anything else a 500.
func statusFor(err error) int {
	var ce *imagery.ConfigError
	var ge *geom.InvalidGeometryError
	var pe *plan.InvalidPlanError
	var fe *fetch.TileFetchError
	switch {
	case errors.As(err, &ce), errors.As(err, &ge), errors.As(err, &pe):
		return http.StatusBadRequest
	case errors.As(err, &fe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
