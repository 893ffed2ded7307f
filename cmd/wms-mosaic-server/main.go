// Command wms-mosaic-server exposes the mosaic pipeline over HTTP, with an
// optional tile cache and Kafka-driven layer invalidation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/wms-mosaic/internal/cache"
	"github.com/mohammed-shakir/wms-mosaic/internal/cache/memory"
	"github.com/mohammed-shakir/wms-mosaic/internal/cache/redisstore"
	"github.com/mohammed-shakir/wms-mosaic/internal/config"
	"github.com/mohammed-shakir/wms-mosaic/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/wms-mosaic/internal/logger"
	"github.com/mohammed-shakir/wms-mosaic/internal/observability"
	"github.com/mohammed-shakir/wms-mosaic/internal/server"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "wms-mosaic-server",
	}, os.Stdout)
	// route slog-based library logging through zerolog
	slog.SetDefault(logger.NewSlog(&zl))

	observability.ExposeBuildInfo(Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tileCache, err := buildCache(ctx, cfg)
	if err != nil {
		zl.Error().Err(err).Str("driver", cfg.CacheDriver).Msg("cache setup failed")
		return 1
	}
	if tileCache != nil {
		defer func() { _ = tileCache.Close() }()
	}

	if cfg.Invalidation.Enabled {
		if tileCache == nil {
			zl.Error().Msg("invalidation requires a cache driver")
			return 1
		}
		consumer, err := kafkaconsumer.New(kafkaconsumer.FromEnv(), &zl, tileCache)
		if err != nil {
			zl.Error().Err(err).Msg("invalidation consumer setup failed")
			return 1
		}
		go func() {
			if err := consumer.Start(ctx); err != nil {
				zl.Error().Err(err).Msg("invalidation consumer stopped")
			}
		}()
	}

	zl.Info().
		Str("version", Version).
		Str("addr", cfg.Addr).
		Str("wms", cfg.WMSURL).
		Str("cache", cfg.CacheDriver).
		Msg("starting server")

	if err := server.Run(ctx, cfg, &zl, tileCache); err != nil {
		zl.Error().Err(err).Msg("server exited")
		return 1
	}
	return 0
}

func buildCache(ctx context.Context, cfg config.Config) (cache.TileCache, error) {
	switch cfg.CacheDriver {
	case "", "none":
		return nil, nil
	case "memory":
		return memory.New(cfg.CacheEntries)
	case "redis":
		return redisstore.New(ctx, cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown cache driver %q (known: none, memory, redis)", cfg.CacheDriver)
	}
}
