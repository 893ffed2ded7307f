// Package cache defines the optional tile cache consulted by the fetcher
// before going upstream. Correctness never depends on it: a nil cache and a
// cold cache behave identically apart from latency.
package cache

import (
	"context"
	"time"
)

type TileCache interface {
	// Get returns the cached payload for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// PurgeLayer removes every key under the layer's prefix and reports how
	// many entries were dropped.
	PurgeLayer(ctx context.Context, layer string) (int, error)
	Close() error
}
