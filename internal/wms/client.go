package wms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
)

// clientBackend is the structured protocol client: parameters go through
// url.Values, the endpoint URL is parsed up front and service exception
// responses are decoded into errors.
type clientBackend struct {
	endpoint *url.URL
	version  string
	format   string
	client   *http.Client
}

func newClientBackend(opts Options) (*clientBackend, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("wms: parse endpoint url: %w", err)
	}
	return &clientBackend{
		endpoint: u,
		version:  opts.Version,
		format:   opts.Format,
		client:   opts.Client,
	}, nil
}

func (b *clientBackend) Name() string { return "client" }

// BuildGetMapParams assembles the GetMap query for one pixel window.
func BuildGetMapParams(version, format, layer, crs string, bounds geom.BBox, width, height int) url.Values {
	params := url.Values{}
	params.Set("service", "WMS")
	params.Set("version", version)
	params.Set("request", "GetMap")
	params.Set("layers", layer)
	params.Set("styles", "")
	params.Set(crsParamName(version), crs)
	params.Set("bbox", bboxParam(bounds))
	params.Set("width", strconv.Itoa(width))
	params.Set("height", strconv.Itoa(height))
	params.Set("format", format)
	return params
}

func (b *clientBackend) Fetch(ctx context.Context, bounds geom.BBox, width, height int, layer, crs string) ([]byte, error) {
	u := *b.endpoint
	params := BuildGetMapParams(b.version, b.format, layer, crs, bounds, width, height)
	// Preserve fixed query parts of the endpoint (api keys, map= selectors).
	if base := b.endpoint.Query(); len(base) > 0 {
		for k, vs := range base {
			if params.Get(k) == "" {
				params[k] = vs
			}
		}
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", b.format)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return readMapResponse(resp)
}

// readMapResponse validates an upstream response shared by both backends.
// WMS servers report errors either as non-2xx statuses or as XML service
// exception bodies under a 200.
func readMapResponse(resp *http.Response) ([]byte, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "xml") || strings.Contains(ct, "html") {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("upstream service exception (%s): %s", ct, strings.TrimSpace(string(snippet)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("upstream returned an empty body")
	}
	return data, nil
}
