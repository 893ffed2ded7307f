// Package server exposes the mosaic pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/wms-mosaic/internal/cache"
	"github.com/mohammed-shakir/wms-mosaic/internal/config"
	"github.com/mohammed-shakir/wms-mosaic/internal/httpclient"
	"github.com/mohammed-shakir/wms-mosaic/internal/imagery"
)

// Run serves until ctx is canceled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config, log *zerolog.Logger, tileCache cache.TileCache) error {
	svc := imagery.New(log, httpclient.NewOutbound(), tileCache)

	r := chi.NewRouter()
	r.Use(Recover(log))
	r.Use(Logging(log))
	r.Use(CORS())

	r.Get("/healthz", Liveness())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Method(http.MethodGet, "/image", &ImageHandler{Svc: svc, Cfg: cfg, Log: log})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// mosaics for large extents take a while to assemble and stream
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
