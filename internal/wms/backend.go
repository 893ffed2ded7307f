// Package wms implements the GetMap transport backends used by the tile
// fetcher. Both backends speak to the same endpoint; they differ only in
// how the request is assembled.
package wms

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
)

const (
	DefaultVersion = "1.3.0"
	DefaultFormat  = "image/png"
)

// Backend issues one GetMap-style request for a pixel window and returns
// the raw image payload. Implementations must not resize or reinterpret
// the response.
type Backend interface {
	Name() string
	Fetch(ctx context.Context, bounds geom.BBox, width, height int, layer, crs string) ([]byte, error)
}

type Options struct {
	URL     string
	Version string
	Format  string
	Client  *http.Client
}

func (o *Options) defaults() error {
	if strings.TrimSpace(o.URL) == "" {
		return fmt.Errorf("wms: endpoint URL is required")
	}
	if o.Version == "" {
		o.Version = DefaultVersion
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	return nil
}

// New selects a backend by name. Known names: "client" (structured WMS
// protocol client) and "raw" (plain query-string request).
func New(name string, opts Options) (Backend, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "client":
		return newClientBackend(opts)
	case "raw":
		return newRawBackend(opts)
	default:
		return nil, fmt.Errorf("wms: unknown backend %q (known: %s)", name, strings.Join(KnownBackends(), ", "))
	}
}

func KnownBackends() []string {
	names := []string{"client", "raw"}
	sort.Strings(names)
	return names
}

// crsParamName returns the GetMap parameter that carries the reference
// system: WMS 1.3.0 renamed srs to crs.
func crsParamName(version string) string {
	if strings.HasPrefix(version, "1.3") {
		return "crs"
	}
	return "srs"
}

func bboxParam(b geom.BBox) string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinX, b.MinY, b.MaxX, b.MaxY)
}
