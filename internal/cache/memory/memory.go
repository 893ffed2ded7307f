// Package memory is an in-process tile cache for single-node deployments
// where running Redis is not worth the trouble.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/wms-mosaic/internal/cache/keys"
	"github.com/mohammed-shakir/wms-mosaic/internal/observability"
)

type entry struct {
	val     []byte
	expires time.Time
}

// Store caps memory by entry count through LRU eviction. TTL is enforced
// lazily on Get, so an expired entry occupies a slot until evicted or read.
type Store struct {
	lru *lru.Cache[string, entry]
	now func() time.Time
}

func New(maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("memory cache: maxEntries must be positive, got %d", maxEntries)
	}
	c, err := lru.New[string, entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("memory cache: %w", err)
	}
	return &Store{lru: c, now: time.Now}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	start := s.now()
	e, ok := s.lru.Get(key)
	if ok && s.now().After(e.expires) {
		s.lru.Remove(key)
		ok = false
	}
	observability.ObserveCacheOp("get", nil, time.Since(start).Seconds())
	if !ok {
		observability.IncCacheMiss()
		return nil, false, nil
	}
	observability.IncCacheHit()
	return e.val, true, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := s.now()
	s.lru.Add(key, entry{val: val, expires: s.now().Add(ttl)})
	observability.ObserveCacheOp("set", nil, time.Since(start).Seconds())
	return nil
}

func (s *Store) PurgeLayer(ctx context.Context, layer string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	start := s.now()
	prefix := keys.LayerPrefix(layer)
	purged := 0
	for _, k := range s.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			s.lru.Remove(k)
			purged++
		}
	}
	observability.ObserveCacheOp("purge", nil, time.Since(start).Seconds())
	return purged, nil
}

func (s *Store) Close() error {
	s.lru.Purge()
	return nil
}
