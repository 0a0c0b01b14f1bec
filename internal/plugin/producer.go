package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/marko911/geyser-kafka/internal/config"
	"github.com/marko911/geyser-kafka/internal/platform/kafka"
	"github.com/marko911/geyser-kafka/internal/platform/metrics"
	pnats "github.com/marko911/geyser-kafka/internal/platform/nats"
	"github.com/marko911/geyser-kafka/internal/publisher"
)

// topicWaitTimeout bounds how long load waits for a created topic's
// metadata to become visible.
const topicWaitTimeout = 10 * time.Second

// ProducerFactory builds the transport for a loaded configuration.
type ProducerFactory func(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (publisher.Producer, error)

// NewProducer builds the transport named by cfg.Transport.
func NewProducer(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (publisher.Producer, error) {
	switch cfg.Transport {
	case config.TransportNATS:
		return newNATSProducer(ctx, cfg, logger)
	default:
		return newKafkaProducer(ctx, cfg, m, logger)
	}
}

func newKafkaProducer(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (publisher.Producer, error) {
	p, err := kafka.NewProducer(cfg.Kafka, m, logger)
	if err != nil {
		return nil, err
	}

	if et := cfg.EnsureTopics; et != nil {
		tm := kafka.NewTopicManager(p.Client())
		created, err := tm.EnsureTopics(ctx, kafka.TopicConfigs(cfg.Topics(), et.Partitions, et.ReplicationFactor))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("ensure topics: %w", err)
		}
		for _, topic := range created {
			if err := tm.WaitForTopic(ctx, topic, topicWaitTimeout); err != nil {
				p.Close()
				return nil, fmt.Errorf("ensure topics: %w", err)
			}
		}
		if len(created) > 0 {
			logger.Info("created kafka topics", "topics", created)
		}
	}
	return p, nil
}

func newNATSProducer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (publisher.Producer, error) {
	natsCfg := pnats.DefaultConfig()
	natsCfg.URL = cfg.NATS.URL
	natsCfg.Name = cfg.NATS.Name
	natsCfg.MaxPending = cfg.NATS.MaxPending

	client, err := pnats.Connect(ctx, natsCfg, logger)
	if err != nil {
		return nil, err
	}

	streamCfg := pnats.DefaultStreamConfig(cfg.NATS.Stream, cfg.Topics())
	if _, err := pnats.EnsureStream(ctx, client.JetStream(), streamCfg); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("NATS JetStream initialized", "url", natsCfg.URL, "stream", streamCfg.Name)
	return pnats.NewProducer(client), nil
}
