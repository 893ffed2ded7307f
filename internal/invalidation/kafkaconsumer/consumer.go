// Package kafkaconsumer drains layer invalidation events from Kafka and
// purges the tile cache for the affected layers.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/wms-mosaic/internal/cache"
	"github.com/mohammed-shakir/wms-mosaic/internal/invalidation"
	"github.com/mohammed-shakir/wms-mosaic/internal/logger"
	"github.com/mohammed-shakir/wms-mosaic/internal/observability"
)

// dedupeSize bounds the per-layer last-seen-timestamp table. Deployments
// rarely have more than a handful of active layers.
const dedupeSize = 1024

type Consumer struct {
	cfg  Config
	log  *zerolog.Logger
	tc   cache.TileCache
	seen *lru.Cache[string, int64]
}

func New(cfg Config, log *zerolog.Logger, tc cache.TileCache) (*Consumer, error) {
	if tc == nil {
		return nil, errors.New("kafkaconsumer: tile cache is required")
	}
	seen, err := lru.New[string, int64](dedupeSize)
	if err != nil {
		return nil, fmt.Errorf("kafkaconsumer: %w", err)
	}
	return &Consumer{cfg: cfg, log: log, tc: tc, seen: seen}, nil
}

// Start joins the consumer group and blocks until ctx is canceled. Transient
// group errors are logged and retried after a short pause.
func (c *Consumer) Start(ctx context.Context) error {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	log := logger.FromContext(logger.WithComponent(ctx, "kafka_consumer"), c.log)
	log.Info().
		Strs("brokers", c.cfg.Brokers).
		Str("topic", c.cfg.Topic).
		Str("group", c.cfg.GroupID).
		Msg("invalidation consumer starting")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				log.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single event message. Events older than the newest
// one already applied for the same layer are skipped, so replays after a
// rebalance do not trigger redundant purges.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	log := logger.FromContext(logger.WithComponent(ctx, "kafka_consumer"), c.log)

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.ObserveInvalidation("decode", err, 0)
		log.Error().Err(err).
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("invalidation event decode failed")
		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		observability.ObserveInvalidation(ev.Op, err, 0)
		log.Error().Err(err).
			Str("layer", ev.Layer).
			Int64("offset", msg.Offset).
			Msg("invalidation event rejected")
		return fmt.Errorf("validate event: %w", err)
	}

	version := ev.TS.UnixNano()
	if last, ok := c.seen.Get(ev.Layer); ok && last >= version {
		log.Debug().
			Str("layer", ev.Layer).Str("op", ev.Op).
			Msg("stale invalidation event skipped")
		return nil
	}

	purged, err := c.tc.PurgeLayer(ctx, ev.Layer)
	observability.ObserveInvalidation(ev.Op, err, purged)
	if err != nil {
		log.Error().Err(err).
			Str("layer", ev.Layer).Str("op", ev.Op).
			Msg("layer purge failed")
		return fmt.Errorf("purge layer %q: %w", ev.Layer, err)
	}

	c.seen.Add(ev.Layer, version)
	log.Info().
		Str("layer", ev.Layer).Str("op", ev.Op).
		Int("keys", purged).
		Msg("layer invalidated")
	return nil
}
