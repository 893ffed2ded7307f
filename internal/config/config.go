// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	GroupID string
}

type Config struct {
	Addr      string
	LogLevel  string
	WMSURL    string
	WMSLayer  string
	CRS       string
	Backend   string
	Version   string
	MaxLen    int
	MinLen    int
	Tries     int
	RetryWait time.Duration
	Workers   int

	CacheDriver  string // none | memory | redis
	CacheTTL     time.Duration
	CacheEntries int
	RedisAddr    string

	Invalidation InvalidationCfg
}

func FromEnv() Config {
	return Config{
		Addr:      getenv("ADDR", ":8090"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		WMSURL:    getenv("WMS_URL", ""),
		WMSLayer:  getenv("WMS_LAYER", ""),
		CRS:       getenv("WMS_CRS", "EPSG:25832"),
		Backend:   getenv("WMS_BACKEND", "client"),
		Version:   getenv("WMS_VERSION", "1.3.0"),
		MaxLen:    getint("MAX_TILE_LEN", 4000),
		MinLen:    getint("MIN_AXIS_LEN", 256),
		Tries:     getint("FETCH_TRIES", 3),
		RetryWait: getduration("FETCH_RETRY_WAIT", 5*time.Second),
		Workers:   getint("FETCH_WORKERS", 4),

		CacheDriver:  strings.ToLower(getenv("CACHE_DRIVER", "none")),
		CacheTTL:     getduration("CACHE_TTL", 24*time.Hour),
		CacheEntries: getint("CACHE_ENTRIES", 512),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "layer-invalidation"),
			GroupID: getenv("KAFKA_GROUP_ID", "tile-invalidator"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
