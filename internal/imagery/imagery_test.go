package imagery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/wms-mosaic/internal/fetch"
	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
)

// wmsStub serves solid-color tiles whose color encodes the requested bbox,
// so the test can verify each tile landed in the right mosaic slot.
func wmsStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		width, _ := strconv.Atoi(q.Get("width"))
		height, _ := strconv.Atoi(q.Get("height"))
		var minX, minY, maxX, maxY float64
		if _, err := fmt.Sscanf(q.Get("bbox"), "%g,%g,%g,%g", &minX, &minY, &maxX, &maxY); err != nil {
			http.Error(w, "bad bbox", http.StatusBadRequest)
			return
		}
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		c := color.RGBA{R: byte(int(minX) % 256), G: byte(int(minY) % 256), B: 1, A: 255}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetRGBA(x, y, c)
			}
		}
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, img)
	}))
}

func newService(tb testing.TB) *Service {
	nop := zerolog.Nop()
	return New(&nop, http.DefaultClient, nil)
}

func baseRequest(url, outPath string) Request {
	return Request{
		Geom:      geom.Rect(geom.BBox{MinX: 0, MinY: 0, MaxX: 300, MaxY: 300}),
		URL:       url,
		Layer:     "ortho",
		CRS:       "EPSG:25832",
		Res:       geom.Res(1),
		OutPath:   outPath,
		MaxLen:    200,
		MinLen:    0, // keep the natural 300x300 extent
		Backend:   "client",
		Tries:     2,
		Workers:   4,
		RetryWait: time.Millisecond,
	}
}

func TestGetImage_EndToEnd(t *testing.T) {
	srv := wmsStub(t)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.tif")
	svc := newService(t)

	if err := svc.GetImage(context.Background(), baseRequest(srv.URL, path)); err != nil {
		t.Fatalf("GetImage: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) < 8+300*300*3 {
		t.Fatalf("output suspiciously small: %d bytes", len(data))
	}
	if data[0] != 'I' || data[1] != 'I' {
		t.Fatal("output is not a little-endian TIFF")
	}
}

func TestRender_TilesLandInCorrectSlots(t *testing.T) {
	srv := wmsStub(t)
	defer srv.Close()

	svc := newService(t)
	req := baseRequest(srv.URL, "")

	m, err := svc.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	buf := m.Buffer()
	if buf.Width != 300 || buf.Height != 300 {
		t.Fatalf("mosaic is %dx%d, want 300x300", buf.Width, buf.Height)
	}

	// 300px at max 200 splits into 2x2 tiles of 150. Row 0 is the top of
	// the extent, so its tiles carry minY=150; green encodes minY.
	cases := []struct {
		x, y int
		r, g byte
	}{
		{10, 10, 0, 150},
		{160, 10, 150, 150},
		{10, 160, 0, 0},
		{160, 160, 150, 0},
	}
	for _, c := range cases {
		if got := buf.At(0, c.x, c.y); got != c.r {
			t.Errorf("red at (%d,%d) = %d, want %d", c.x, c.y, got, c.r)
		}
		if got := buf.At(1, c.x, c.y); got != c.g {
			t.Errorf("green at (%d,%d) = %d, want %d", c.x, c.y, got, c.g)
		}
	}
}

func TestRender_MinLenZeroDisablesWidening(t *testing.T) {
	srv := wmsStub(t)
	defer srv.Close()

	svc := newService(t)
	req := baseRequest(srv.URL, "")
	req.Geom = geom.Rect(geom.BBox{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100})
	req.MinLen = 0

	m, err := svc.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf := m.Buffer(); buf.Width != 100 || buf.Height != 100 {
		t.Fatalf("mosaic is %dx%d, want 100x100 (MinLen 0 must not widen)", buf.Width, buf.Height)
	}
}

func TestRender_MinLenWidensShortAxes(t *testing.T) {
	srv := wmsStub(t)
	defer srv.Close()

	svc := newService(t)
	req := baseRequest(srv.URL, "")
	req.Geom = geom.Rect(geom.BBox{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100})
	req.MinLen = 256

	m, err := svc.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf := m.Buffer(); buf.Width != 256 || buf.Height != 256 {
		t.Fatalf("mosaic is %dx%d, want 256x256", buf.Width, buf.Height)
	}
}

func TestGetImage_Idempotent(t *testing.T) {
	srv := wmsStub(t)
	defer srv.Close()

	dir := t.TempDir()
	svc := newService(t)

	p1 := filepath.Join(dir, "a.tif")
	p2 := filepath.Join(dir, "b.tif")
	if err := svc.GetImage(context.Background(), baseRequest(srv.URL, p1)); err != nil {
		t.Fatalf("first GetImage: %v", err)
	}
	if err := svc.GetImage(context.Background(), baseRequest(srv.URL, p2)); err != nil {
		t.Fatalf("second GetImage: %v", err)
	}

	d1, _ := os.ReadFile(p1)
	d2, _ := os.ReadFile(p2)
	if !bytes.Equal(d1, d2) {
		t.Fatal("same request produced different output bytes")
	}
}

func TestGetImage_UpstreamFailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.tif")
	svc := newService(t)

	err := svc.GetImage(context.Background(), baseRequest(srv.URL, path))
	if err == nil {
		t.Fatal("expected error from failing upstream")
	}
	var tfe *fetch.TileFetchError
	if !errors.As(err, &tfe) {
		t.Fatalf("got %T, want TileFetchError", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("partial output file was left behind")
	}
}

func TestRequestValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing geometry", func(r *Request) { r.Geom = nil }},
		{"missing url", func(r *Request) { r.URL = "" }},
		{"missing layer", func(r *Request) { r.Layer = "" }},
		{"missing crs", func(r *Request) { r.CRS = "" }},
		{"zero resolution", func(r *Request) { r.Res = geom.Resolution{} }},
		{"negative padding", func(r *Request) { r.Padding = geom.Padding{X: -1} }},
		{"negative tries", func(r *Request) { r.Tries = -1 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := baseRequest("http://wms.invalid", "")
			c.mutate(&req)
			_, err := svc.Render(ctx, req)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("got %T (%v), want ConfigError", err, err)
			}
		})
	}

	if err := svc.GetImage(ctx, baseRequest("http://wms.invalid", "")); err == nil {
		t.Fatal("empty output path accepted")
	}
}

func TestRender_UnknownBackendRejected(t *testing.T) {
	svc := newService(t)
	req := baseRequest("http://wms.invalid", "")
	req.Backend = "soap"
	if _, err := svc.Render(context.Background(), req); err == nil {
		t.Fatal("unknown backend accepted")
	}
}
