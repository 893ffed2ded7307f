package kafkaconsumer

import (
	"reflect"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_GROUP_ID", "KAFKA_SESSION_TIMEOUT", "KAFKA_HEARTBEAT", "KAFKA_REBALANCE_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	if !reflect.DeepEqual(cfg.Brokers, []string{"localhost:9092"}) {
		t.Fatalf("brokers = %v", cfg.Brokers)
	}
	if cfg.Topic != "layer-invalidation" || cfg.GroupID != "tile-invalidator" {
		t.Fatalf("topic/group = %q/%q", cfg.Topic, cfg.GroupID)
	}
	if cfg.SessionTimeout != 30*time.Second || cfg.Heartbeat != 3*time.Second {
		t.Fatalf("timeouts = %v/%v", cfg.SessionTimeout, cfg.Heartbeat)
	}
	if !cfg.InitialOffsetOldest {
		t.Fatal("consumer must start from the oldest offset")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092,,")
	t.Setenv("KAFKA_TOPIC", "imagery-updates")
	t.Setenv("KAFKA_SESSION_TIMEOUT", "45s")

	cfg := FromEnv()
	if !reflect.DeepEqual(cfg.Brokers, []string{"b1:9092", "b2:9092"}) {
		t.Fatalf("brokers = %v", cfg.Brokers)
	}
	if cfg.Topic != "imagery-updates" {
		t.Fatalf("topic = %q", cfg.Topic)
	}
	if cfg.SessionTimeout != 45*time.Second {
		t.Fatalf("session timeout = %v", cfg.SessionTimeout)
	}
}
