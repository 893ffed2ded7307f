package kafkaconsumer

import (
	"os"
	"strings"
	"time"
)

// Config holds the consumer-group settings for the layer-invalidation topic.
type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
}

// FromEnv reads the KAFKA_* variables. Invalidation events are purges, so
// the consumer starts from the oldest offset; a replayed purge is harmless
// while a skipped one leaves stale tiles cached.
func FromEnv() Config {
	return Config{
		Brokers:             brokerList(envOr("KAFKA_BROKERS", "localhost:9092")),
		Topic:               envOr("KAFKA_TOPIC", "layer-invalidation"),
		GroupID:             envOr("KAFKA_GROUP_ID", "tile-invalidator"),
		SessionTimeout:      durationOr("KAFKA_SESSION_TIMEOUT", 30*time.Second),
		Heartbeat:           durationOr("KAFKA_HEARTBEAT", 3*time.Second),
		RebalanceTimeout:    durationOr("KAFKA_REBALANCE_TIMEOUT", 30*time.Second),
		InitialOffsetOldest: true,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func brokerList(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
