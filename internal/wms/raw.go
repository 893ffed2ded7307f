package wms

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
)

// rawBackend concatenates the GetMap query onto the endpoint string the way
// ad-hoc scripts do. Some endpoints only accept this exact shape (fixed
// query prefixes, pre-encoded credentials), which is why it exists next to
// the structured client.
type rawBackend struct {
	url     string
	version string
	format  string
	client  *http.Client
}

func newRawBackend(opts Options) (*rawBackend, error) {
	return &rawBackend{
		url:     opts.URL,
		version: opts.Version,
		format:  opts.Format,
		client:  opts.Client,
	}, nil
}

func (b *rawBackend) Name() string { return "raw" }

func (b *rawBackend) requestURL(bounds geom.BBox, width, height int, layer, crs string) string {
	sep := "&"
	if !strings.Contains(b.url, "?") {
		sep = "?"
	}
	return b.url + sep + strings.Join([]string{
		"request=GetMap",
		"service=WMS",
		"version=" + b.version,
		"layers=" + layer,
		"format=" + b.format,
		crsParamName(b.version) + "=" + crs,
		fmt.Sprintf("width=%d", width),
		fmt.Sprintf("height=%d", height),
		"bbox=" + bboxParam(bounds),
	}, "&")
}

func (b *rawBackend) Fetch(ctx context.Context, bounds geom.BBox, width, height int, layer, crs string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.requestURL(bounds, width, height, layer, crs), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return readMapResponse(resp)
}
