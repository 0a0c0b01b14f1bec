package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// StreamConfig defines the configuration for a JetStream stream.
type StreamConfig struct {
	Name        string        // Stream name (e.g., "GEYSER_EVENTS")
	Subjects    []string      // Subjects to capture, one per output topic
	Retention   jetstream.RetentionPolicy
	MaxAge      time.Duration // Maximum message age (0 = unlimited)
	MaxBytes    int64         // Maximum stream size in bytes (0 = unlimited)
	Replicas    int           // Number of replicas (1 for dev, 3 for prod)
	Description string
}

// DefaultStreamConfig returns the stream configuration capturing every
// configured output topic.
func DefaultStreamConfig(name string, topics []string) StreamConfig {
	return StreamConfig{
		Name:        name,
		Subjects:    topics,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024, // 10GB max
		Replicas:    1,
		Description: "Solana validator events published by geyser-kafka",
	}
}

// EnsureStream creates or updates a JetStream stream with the given configuration.
// This is idempotent - safe to call multiple times.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg StreamConfig) (jetstream.Stream, error) {
	if len(cfg.Subjects) == 0 {
		return nil, fmt.Errorf("ensure stream %s: no subjects", cfg.Name)
	}

	streamCfg := jetstream.StreamConfig{
		Name:        cfg.Name,
		Subjects:    cfg.Subjects,
		Retention:   cfg.Retention,
		MaxAge:      cfg.MaxAge,
		MaxBytes:    cfg.MaxBytes,
		Replicas:    cfg.Replicas,
		Description: cfg.Description,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
	}

	stream, err := js.CreateOrUpdateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
	}

	return stream, nil
}
