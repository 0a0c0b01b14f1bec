// Package kafka provides the franz-go producer the publisher submits to and
// topic management for the configured output topics.
package kafka

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// TopicConfig defines the configuration for a Kafka topic.
type TopicConfig struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Configs           map[string]*string
}

// TopicConfigs builds one TopicConfig per output topic with shared sizing.
func TopicConfigs(topics []string, partitions int32, replicationFactor int16) []TopicConfig {
	configs := make([]TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, TopicConfig{
			Name:              t,
			Partitions:        partitions,
			ReplicationFactor: replicationFactor,
		})
	}
	return configs
}

// TopicManager manages Kafka topics over an existing client. It does not
// own the client.
type TopicManager struct {
	admin *kadm.Client
}

func NewTopicManager(client *kgo.Client) *TopicManager {
	return &TopicManager{admin: kadm.NewClient(client)}
}

// EnsureTopics creates topics if they don't exist.
func (m *TopicManager) EnsureTopics(ctx context.Context, configs []TopicConfig) ([]string, error) {
	names, err := m.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]struct{}, len(names))
	for _, name := range names {
		existing[name] = struct{}{}
	}

	var created []string
	for _, cfg := range configs {
		if _, ok := existing[cfg.Name]; ok {
			continue
		}
		if err := m.CreateTopic(ctx, cfg); err != nil {
			return created, err
		}
		created = append(created, cfg.Name)
	}

	return created, nil
}

// CreateTopic creates a single topic with the given configuration.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	resp, err := m.admin.CreateTopics(ctx, cfg.Partitions, cfg.ReplicationFactor, cfg.Configs, cfg.Name)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", cfg.Name, err)
	}

	for _, r := range resp {
		if r.Err != nil {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}

	return nil
}

// ListTopics returns all topics.
func (m *TopicManager) ListTopics(ctx context.Context) ([]string, error) {
	topics, err := m.admin.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	names := make([]string, 0, len(topics))
	for name := range topics {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// WaitForTopic waits for a topic to be available.
func (m *TopicManager) WaitForTopic(ctx context.Context, topic string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		topics, err := m.admin.ListTopics(ctx, topic)
		if d, ok := topics[topic]; err == nil && ok && d.Err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return fmt.Errorf("timeout waiting for topic %s", topic)
}
