// Package imagery is the request orchestrator: it turns a geometry and a
// WMS endpoint into one georeferenced image on disk or on a stream.
package imagery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/wms-mosaic/internal/cache"
	"github.com/mohammed-shakir/wms-mosaic/internal/fetch"
	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
	"github.com/mohammed-shakir/wms-mosaic/internal/logger"
	"github.com/mohammed-shakir/wms-mosaic/internal/mosaic"
	"github.com/mohammed-shakir/wms-mosaic/internal/plan"
	"github.com/mohammed-shakir/wms-mosaic/internal/raster"
	"github.com/mohammed-shakir/wms-mosaic/internal/wms"
)

const (
	DefaultMaxLen  = 4000
	DefaultMinLen  = 256
	DefaultTries   = 3
	DefaultWorkers = 4
)

// ConfigError reports an unusable request before any network traffic.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "image request: " + e.Reason }

// Request describes one image to assemble.
type Request struct {
	Geom    geom.Geometry
	URL     string
	Layer   string
	CRS     string
	Res     geom.Resolution
	OutPath string

	// MaxLen caps tile edge length in pixels. MinLen widens tiny extents
	// to at least that many pixels per axis; 0 disables widening.
	MaxLen  int
	MinLen  int
	Padding geom.Padding

	Backend string
	Version string
	Tries   int
	Workers int

	// RetryWait is the pause between fetch attempts. Zero means the
	// fetcher's default.
	RetryWait time.Duration

	// CacheTTL bounds the lifetime of cached tile payloads. Zero means the
	// fetcher's default.
	CacheTTL time.Duration
}

func (r *Request) validate() error {
	switch {
	case r.Geom == nil:
		return &ConfigError{Reason: "geometry is required"}
	case r.URL == "":
		return &ConfigError{Reason: "WMS endpoint URL is required"}
	case r.Layer == "":
		return &ConfigError{Reason: "layer name is required"}
	case r.CRS == "":
		return &ConfigError{Reason: "CRS is required"}
	case !r.Res.IsValid():
		return &ConfigError{Reason: fmt.Sprintf("resolution %gx%g must be positive", r.Res.X, r.Res.Y)}
	case r.MaxLen < 0:
		return &ConfigError{Reason: fmt.Sprintf("max tile length %d must not be negative", r.MaxLen)}
	case r.Tries < 0:
		return &ConfigError{Reason: fmt.Sprintf("tries %d must not be negative", r.Tries)}
	case r.Padding.X < 0 || r.Padding.Y < 0:
		return &ConfigError{Reason: "padding must not be negative"}
	}
	return nil
}

func (r *Request) maxLen() int {
	if r.MaxLen == 0 {
		return DefaultMaxLen
	}
	return r.MaxLen
}

func (r *Request) minLen() int {
	if r.MinLen < 0 {
		return 0
	}
	return r.MinLen
}

func (r *Request) tries() int {
	if r.Tries == 0 {
		return DefaultTries
	}
	return r.Tries
}

func (r *Request) workers() int {
	if r.Workers <= 0 {
		return DefaultWorkers
	}
	return r.Workers
}

// Service wires the pipeline stages together. A nil cache disables tile
// caching without changing behaviour.
type Service struct {
	log    *zerolog.Logger
	client *http.Client
	cache  cache.TileCache
}

func New(log *zerolog.Logger, client *http.Client, tileCache cache.TileCache) *Service {
	return &Service{log: log, client: client, cache: tileCache}
}

// Render runs the pipeline up to the assembled in-memory mosaic. The result
// is all-or-nothing: any stage failure aborts and returns that stage's error
// untouched.
func (s *Service) Render(ctx context.Context, req Request) (*mosaic.Mosaic, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ctx = logger.WithLayer(ctx, req.Layer)
	log := logger.FromContext(ctx, s.log)

	box, wpx, hpx, err := geom.Resolve(req.Geom, req.Res, req.Padding, req.minLen())
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("bounds", box.String()).
		Int("width", wpx).Int("height", hpx).
		Msg("extent resolved")

	p, err := plan.Build(box, req.Res, req.maxLen())
	if err != nil {
		return nil, err
	}
	log.Debug().
		Int("cols", p.Cols).Int("rows", p.Rows).
		Int("tiles", len(p.Tiles)).
		Msg("tile plan built")

	backend, err := wms.New(req.Backend, wms.Options{
		URL:     req.URL,
		Version: req.Version,
		Client:  s.client,
	})
	if err != nil {
		return nil, err
	}

	// GetMap responses decode to 3-band 8-bit rasters.
	m, err := mosaic.New(p, 3, raster.Uint8, req.CRS)
	if err != nil {
		return nil, err
	}

	fetcher := &fetch.Fetcher{
		Backend: backend,
		Layer:   req.Layer,
		CRS:     req.CRS,
		Tries:   req.tries(),
		Wait:    req.RetryWait,
		Cache:   s.cache,
		TTL:     req.CacheTTL,
		Log:     s.log,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(req.workers())
	for _, spec := range p.Tiles {
		g.Go(func() error {
			tile, err := fetcher.Fetch(gctx, spec)
			if err != nil {
				return err
			}
			return m.Place(tile.Spec, tile.Buf)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().
		Int("tiles", len(p.Tiles)).
		Int("width", p.Width).Int("height", p.Height).
		Msg("mosaic assembled")
	return m, nil
}

// GetImage runs the full pipeline and persists the result at req.OutPath.
// Nothing is written when any earlier stage fails.
func (s *Service) GetImage(ctx context.Context, req Request) error {
	if req.OutPath == "" {
		return &ConfigError{Reason: "output path is required"}
	}
	m, err := s.Render(ctx, req)
	if err != nil {
		return err
	}
	if err := m.WriteFile(req.OutPath); err != nil {
		return err
	}
	log := logger.FromContext(logger.WithLayer(ctx, req.Layer), s.log)
	log.Info().Str("path", req.OutPath).Msg("mosaic persisted")
	return nil
}
