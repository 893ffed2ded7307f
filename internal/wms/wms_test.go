package wms

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestBuildGetMapParams(t *testing.T) {
	b := geom.BBox{MinX: 1000, MinY: 2000, MaxX: 1500, MaxY: 2500}
	params := BuildGetMapParams("1.3.0", "image/png", "ortho", "EPSG:25832", b, 4000, 4000)

	want := map[string]string{
		"service": "WMS",
		"version": "1.3.0",
		"request": "GetMap",
		"layers":  "ortho",
		"crs":     "EPSG:25832",
		"bbox":    "1000,2000,1500,2500",
		"width":   "4000",
		"height":  "4000",
		"format":  "image/png",
	}
	for k, v := range want {
		if got := params.Get(k); got != v {
			t.Fatalf("param %s = %q, want %q", k, got, v)
		}
	}
}

func TestBuildGetMapParams_LegacyVersionUsesSRS(t *testing.T) {
	b := geom.BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	params := BuildGetMapParams("1.1.1", "image/png", "l", "EPSG:4326", b, 10, 10)
	if params.Get("srs") != "EPSG:4326" {
		t.Fatalf("srs = %q, want EPSG:4326", params.Get("srs"))
	}
	if params.Get("crs") != "" {
		t.Fatalf("crs should be unset for 1.1.1")
	}
}

func TestClientBackend_FetchesAndValidates(t *testing.T) {
	payload := pngBytes(t, 8, 8)
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	be, err := New("client", Options{URL: srv.URL + "?apikey=secret", Client: srv.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := be.Fetch(context.Background(), geom.BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, 8, 8, "ortho", "EPSG:25832")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("payload altered in transit")
	}
	if gotQuery["request"][0] != "GetMap" || gotQuery["layers"][0] != "ortho" {
		t.Fatalf("unexpected query %v", gotQuery)
	}
	// Fixed endpoint query parts must survive.
	if gotQuery["apikey"][0] != "secret" {
		t.Fatalf("endpoint query dropped: %v", gotQuery)
	}
}

func TestClientBackend_ServiceExceptionIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.ogc.se_xml")
		_, _ = w.Write([]byte(`<ServiceExceptionReport>bad layer</ServiceExceptionReport>`))
	}))
	defer srv.Close()

	be, _ := New("client", Options{URL: srv.URL, Client: srv.Client()})
	_, err := be.Fetch(context.Background(), geom.BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, 8, 8, "l", "EPSG:4326")
	if err == nil || !strings.Contains(err.Error(), "service exception") {
		t.Fatalf("err = %v, want service exception", err)
	}
}

func TestClientBackend_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	be, _ := New("client", Options{URL: srv.URL, Client: srv.Client()})
	_, err := be.Fetch(context.Background(), geom.BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, 8, 8, "l", "EPSG:4326")
	if err == nil || !strings.Contains(err.Error(), "504") {
		t.Fatalf("err = %v, want status 504 error", err)
	}
}

func TestRawBackend_RequestURL(t *testing.T) {
	be := &rawBackend{url: "https://host/wms?map=dk", version: "1.3.0", format: "image/png"}
	u := be.requestURL(geom.BBox{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}, 100, 200, "ortho", "EPSG:25832")
	for _, part := range []string{
		"https://host/wms?map=dk&request=GetMap",
		"service=WMS",
		"version=1.3.0",
		"layers=ortho",
		"crs=EPSG:25832",
		"width=100",
		"height=200",
		"bbox=1,2,3,4",
	} {
		if !strings.Contains(u, part) {
			t.Fatalf("url %q missing %q", u, part)
		}
	}
}

func TestRawBackend_Fetch(t *testing.T) {
	payload := pngBytes(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("request") != "GetMap" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	be, err := New("raw", Options{URL: srv.URL, Client: srv.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := be.Fetch(context.Background(), geom.BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, 4, 4, "l", "EPSG:4326")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("payload altered in transit")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New("soap", Options{URL: "http://host"}); err == nil {
		t.Fatal("expected unknown backend error")
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New("client", Options{}); err == nil {
		t.Fatal("expected missing URL error")
	}
}
