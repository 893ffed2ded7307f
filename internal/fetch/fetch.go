// Package fetch pulls individual map tiles from a WMS backend, with retries
// and an optional cache in front.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/wms-mosaic/internal/cache"
	"github.com/mohammed-shakir/wms-mosaic/internal/cache/keys"
	"github.com/mohammed-shakir/wms-mosaic/internal/logger"
	"github.com/mohammed-shakir/wms-mosaic/internal/observability"
	"github.com/mohammed-shakir/wms-mosaic/internal/plan"
	"github.com/mohammed-shakir/wms-mosaic/internal/raster"
	"github.com/mohammed-shakir/wms-mosaic/internal/wms"
)

// TileFetchError reports that a single tile could not be obtained after all
// attempts. OffX/OffY locate the tile in the mosaic pixel grid.
type TileFetchError struct {
	OffX     int
	OffY     int
	Attempts int
	Err      error
}

func (e *TileFetchError) Error() string {
	return fmt.Sprintf("tile at offset (%d,%d) failed after %d attempt(s): %v", e.OffX, e.OffY, e.Attempts, e.Err)
}

func (e *TileFetchError) Unwrap() error { return e.Err }

// FetchedTile pairs a decoded tile with its slot in the plan.
type FetchedTile struct {
	Spec plan.TileSpec
	Buf  *raster.Buffer
}

// Fetcher retrieves tiles for one request. Tries is the total number of
// attempts per tile, not the number of retries; Tries=3 means at most three
// upstream calls. A decoded response whose pixel size does not match the
// requested tile counts as a failed attempt like any transport error.
type Fetcher struct {
	Backend wms.Backend
	Layer   string
	CRS     string
	Tries   int
	Wait    time.Duration
	Cache   cache.TileCache
	TTL     time.Duration
	Log     *zerolog.Logger
}

const DefaultRetryWait = 5 * time.Second

// DefaultCacheTTL is how long fetched tile payloads stay cached when no TTL
// is configured. Aerial layers change on the season scale, so a day is
// conservative.
const DefaultCacheTTL = 24 * time.Hour

func (f *Fetcher) tries() int {
	if f.Tries < 1 {
		return 1
	}
	return f.Tries
}

func (f *Fetcher) wait() time.Duration {
	if f.Wait <= 0 {
		return DefaultRetryWait
	}
	return f.Wait
}

func (f *Fetcher) ttl() time.Duration {
	if f.TTL <= 0 {
		return DefaultCacheTTL
	}
	return f.TTL
}

// Fetch obtains one tile, consulting the cache first. Cache read or write
// failures are logged and ignored; the upstream call is the source of truth.
func (f *Fetcher) Fetch(ctx context.Context, spec plan.TileSpec) (FetchedTile, error) {
	log := logger.FromContext(ctx, f.Log)

	var key string
	if f.Cache != nil {
		key = keys.Key(f.Layer, f.CRS, spec.Bounds, spec.Width, spec.Height)
		if data, ok, err := f.Cache.Get(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("tile cache read failed")
		} else if ok {
			buf, err := raster.Decode(data)
			if err == nil && buf.Width == spec.Width && buf.Height == spec.Height {
				return FetchedTile{Spec: spec, Buf: buf}, nil
			}
			// Stale or corrupt payload, fall through to the backend.
			log.Warn().Str("key", key).Msg("discarding undecodable cached tile")
		}
	}

	tries := f.tries()
	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		if attempt > 1 {
			observability.IncTileRetry()
			select {
			case <-ctx.Done():
				observability.IncTileFetch("canceled")
				return FetchedTile{}, &TileFetchError{OffX: spec.OffX, OffY: spec.OffY, Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(f.wait()):
			}
		}

		start := time.Now()
		data, err := f.Backend.Fetch(ctx, spec.Bounds, spec.Width, spec.Height, f.Layer, f.CRS)
		observability.ObserveUpstreamLatency(f.Backend.Name(), time.Since(start).Seconds())
		if err != nil {
			lastErr = err
			log.Warn().Err(err).
				Int("off_x", spec.OffX).Int("off_y", spec.OffY).
				Int("attempt", attempt).Int("tries", tries).
				Msg("tile fetch attempt failed")
			if ctx.Err() != nil {
				observability.IncTileFetch("canceled")
				return FetchedTile{}, &TileFetchError{OffX: spec.OffX, OffY: spec.OffY, Attempts: attempt, Err: lastErr}
			}
			continue
		}

		buf, err := raster.Decode(data)
		if err != nil {
			lastErr = fmt.Errorf("decode tile image: %w", err)
			log.Warn().Err(err).
				Int("off_x", spec.OffX).Int("off_y", spec.OffY).
				Int("attempt", attempt).
				Msg("tile response did not decode")
			continue
		}
		if buf.Width != spec.Width || buf.Height != spec.Height {
			lastErr = fmt.Errorf("tile size mismatch: got %dx%d, want %dx%d",
				buf.Width, buf.Height, spec.Width, spec.Height)
			log.Warn().
				Int("off_x", spec.OffX).Int("off_y", spec.OffY).
				Int("got_w", buf.Width).Int("got_h", buf.Height).
				Int("want_w", spec.Width).Int("want_h", spec.Height).
				Msg("tile size mismatch")
			continue
		}

		observability.IncTileFetch("ok")
		if f.Cache != nil {
			if err := f.Cache.Set(ctx, key, data, f.ttl()); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("tile cache write failed")
			}
		}
		return FetchedTile{Spec: spec, Buf: buf}, nil
	}

	observability.IncTileFetch("failed")
	return FetchedTile{}, &TileFetchError{OffX: spec.OffX, OffY: spec.OffY, Attempts: tries, Err: lastErr}
}
