// Command wms-mosaic fetches a tiled WMS mosaic for an area of interest and
// writes it to disk as a GeoTIFF.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
	"github.com/mohammed-shakir/wms-mosaic/internal/grid"
	"github.com/mohammed-shakir/wms-mosaic/internal/httpclient"
	"github.com/mohammed-shakir/wms-mosaic/internal/imagery"
	"github.com/mohammed-shakir/wms-mosaic/internal/layers"
	"github.com/mohammed-shakir/wms-mosaic/internal/logger"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		url     = flag.String("url", "", "WMS endpoint URL (required)")
		layer   = flag.String("layer", "", "WMS layer name")
		service = flag.String("service", "", "service shorthand for layer naming (e.g. dk)")
		year    = flag.Int("year", 0, "imagery year, used with -service")
		season  = flag.String("season", "spring", "imagery season, used with -service")
		bands   = flag.String("bands", "rgb", "band order (rgb or cir), used with -service")

		crs     = flag.String("crs", "EPSG:25832", "coordinate reference system")
		res     = flag.Float64("res", 0.125, "resolution in georeferenced units per pixel")
		out     = flag.String("out", "", "output GeoTIFF path (required)")
		bbox    = flag.String("bbox", "", "area of interest as minx,miny,maxx,maxy")
		gridSys = flag.String("grid", "", "grid system for -cell (dk1km, dk10km, h3)")
		cell    = flag.String("cell", "", "grid cell name, used with -grid")

		padding = flag.Float64("padding", 0, "extent padding in georeferenced units")
		maxLen  = flag.Int("max-len", imagery.DefaultMaxLen, "maximum tile edge in pixels")
		minLen  = flag.Int("min-len", imagery.DefaultMinLen, "minimum output axis in pixels (0 disables widening)")
		backend = flag.String("backend", "client", "fetch backend (client or raw)")
		wmsVer  = flag.String("wms-version", "1.3.0", "WMS protocol version")
		tries   = flag.Int("tries", imagery.DefaultTries, "total fetch attempts per tile")
		wait    = flag.Duration("retry-wait", 5*time.Second, "pause between fetch attempts")
		workers = flag.Int("workers", imagery.DefaultWorkers, "concurrent tile fetches")

		logLevel = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	zl := logger.Build(logger.Config{
		Level:     *logLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "wms-mosaic",
	}, os.Stderr)

	if *url == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "both -url and -out are required")
		flag.Usage()
		return 2
	}

	reqCRS := *crs
	var g geom.Geometry
	switch {
	case *bbox != "" && *cell != "":
		fmt.Fprintln(os.Stderr, "-bbox and -grid/-cell are mutually exclusive")
		return 2
	case *bbox != "":
		box, err := parseBBox(*bbox)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		g = geom.Rect(box)
	case *cell != "":
		poly, cellCRS, err := grid.Cell(*gridSys, *cell)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		g = poly
		reqCRS = cellCRS
	default:
		fmt.Fprintln(os.Stderr, "one of -bbox or -grid/-cell is required")
		return 2
	}

	layerName := *layer
	if layerName == "" && *service != "" {
		var err error
		layerName, err = layers.Name(*service, *year, *res, *season, *bands)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	if layerName == "" {
		fmt.Fprintln(os.Stderr, "one of -layer or -service/-year is required")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := imagery.New(&zl, httpclient.NewOutbound(), nil)
	req := imagery.Request{
		Geom:      g,
		URL:       *url,
		Layer:     layerName,
		CRS:       reqCRS,
		Res:       geom.Res(*res),
		OutPath:   *out,
		MaxLen:    *maxLen,
		MinLen:    *minLen,
		Padding:   geom.Pad(*padding),
		Backend:   *backend,
		Version:   *wmsVer,
		Tries:     *tries,
		Workers:   *workers,
		RetryWait: *wait,
	}

	zl.Info().
		Str("version", Version).
		Str("layer", layerName).
		Str("out", *out).
		Msg("starting mosaic request")

	if err := svc.GetImage(ctx, req); err != nil {
		zl.Error().Err(err).Msg("mosaic request failed")
		return 1
	}
	return 0
}

func parseBBox(raw string) (geom.BBox, error) {
	var b geom.BBox
	if _, err := fmt.Sscanf(raw, "%g,%g,%g,%g", &b.MinX, &b.MinY, &b.MaxX, &b.MaxY); err != nil {
		return geom.BBox{}, fmt.Errorf("parse -bbox %q: %w", raw, err)
	}
	if !b.IsValid() {
		return geom.BBox{}, fmt.Errorf("-bbox must satisfy maxx>minx and maxy>miny")
	}
	return b, nil
}
