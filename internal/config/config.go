// Package config loads the plugin configuration file handed over by the
// validator host.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportKafka = "kafka"
	TransportNATS  = "nats"

	DefaultShutdownTimeoutMs = 30000
)

// kafkaDefaults are injected into the producer settings only when the key
// is absent.
var kafkaDefaults = map[string]string{
	"request.required.acks": "1",
	"message.timeout.ms":    "30000",
	"compression.type":      "lz4",
	"partitioner":           "murmur2_random",
}

// Config is the process-wide plugin configuration.
type Config struct {
	// Libpath is read by the host's loader; the plugin ignores it.
	Libpath string `json:"libpath" yaml:"libpath"`

	// Kafka holds librdkafka-style producer settings, forwarded verbatim
	// to the transport client.
	Kafka map[string]string `json:"kafka" yaml:"kafka"`

	// ShutdownTimeoutMs bounds the flush performed on unload. It must be
	// positive.
	ShutdownTimeoutMs uint64 `json:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms"`

	// Filters configures the fan-out channels. An empty list publishes
	// nothing except block metadata.
	Filters []FilterConfig `json:"filters" yaml:"filters"`

	// BlockEventsTopic enables block metadata publishing when non-empty.
	BlockEventsTopic string `json:"block_events_topic" yaml:"block_events_topic"`

	// WrapBlockMessages publishes block events inside a MessageWrapper.
	WrapBlockMessages bool `json:"wrap_block_messages" yaml:"wrap_block_messages"`

	// Prometheus is the host:port of the metrics endpoint. Empty disables it.
	Prometheus string `json:"prometheus" yaml:"prometheus"`

	// Transport selects the transport client: "kafka" (default) or "nats".
	Transport string `json:"transport" yaml:"transport"`

	// NATS configures the JetStream transport.
	NATS NATSConfig `json:"nats" yaml:"nats"`

	// EnsureTopics creates missing Kafka topics at load time when set.
	EnsureTopics *EnsureTopicsConfig `json:"ensure_topics" yaml:"ensure_topics"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// FilterConfig describes one fan-out channel. An empty topic disables the
// channel for that event kind.
type FilterConfig struct {
	UpdateAccountTopic string   `json:"update_account_topic" yaml:"update_account_topic"`
	SlotStatusTopic    string   `json:"slot_status_topic" yaml:"slot_status_topic"`
	TransactionTopic   string   `json:"transaction_topic" yaml:"transaction_topic"`
	ProgramIgnores     []string `json:"program_ignores" yaml:"program_ignores"`
	ProgramFilters     []string `json:"program_filters" yaml:"program_filters"`
	AccountFilters     []string `json:"account_filters" yaml:"account_filters"`
	PublishAllAccounts bool     `json:"publish_all_accounts" yaml:"publish_all_accounts"`

	// IncludeVoteTransactions and IncludeFailedTransactions default to true
	// when omitted.
	IncludeVoteTransactions   *bool `json:"include_vote_transactions" yaml:"include_vote_transactions"`
	IncludeFailedTransactions *bool `json:"include_failed_transactions" yaml:"include_failed_transactions"`

	WrapMessages bool `json:"wrap_messages" yaml:"wrap_messages"`
}

// IncludeVotes reports whether vote transactions are published.
func (f FilterConfig) IncludeVotes() bool {
	return f.IncludeVoteTransactions == nil || *f.IncludeVoteTransactions
}

// IncludeFailed reports whether failed transactions are published.
func (f FilterConfig) IncludeFailed() bool {
	return f.IncludeFailedTransactions == nil || *f.IncludeFailedTransactions
}

// NATSConfig holds JetStream transport settings.
type NATSConfig struct {
	URL        string `json:"url" yaml:"url"`
	Name       string `json:"name" yaml:"name"`
	Stream     string `json:"stream" yaml:"stream"`
	MaxPending int    `json:"max_pending" yaml:"max_pending"`
}

// EnsureTopicsConfig is used when creating missing topics.
type EnsureTopicsConfig struct {
	Partitions        int32 `json:"partitions" yaml:"partitions"`
	ReplicationFactor int16 `json:"replication_factor" yaml:"replication_factor"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Kafka:             map[string]string{},
		ShutdownTimeoutMs: DefaultShutdownTimeoutMs,
		Transport:         TransportKafka,
		NATS: NATSConfig{
			URL:        "nats://localhost:4222",
			Name:       "geyser-kafka",
			Stream:     "GEYSER_EVENTS",
			MaxPending: 4000,
		},
		LogLevel: "info",
	}
}

// Load reads the configuration file at path. Files ending in .yaml or .yml
// are parsed as YAML, anything else as JSON. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes configuration data. ext selects the format the same way
// Load does.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Kafka == nil {
		c.Kafka = map[string]string{}
	}
	for k, v := range kafkaDefaults {
		if _, ok := c.Kafka[k]; !ok {
			c.Kafka[k] = v
		}
	}
	if c.Transport == "" {
		c.Transport = TransportKafka
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	def := Default().NATS
	if c.NATS.URL == "" {
		c.NATS.URL = def.URL
	}
	if c.NATS.Name == "" {
		c.NATS.Name = def.Name
	}
	if c.NATS.Stream == "" {
		c.NATS.Stream = def.Stream
	}
	if c.NATS.MaxPending <= 0 {
		c.NATS.MaxPending = def.MaxPending
	}
	if c.EnsureTopics != nil {
		if c.EnsureTopics.Partitions <= 0 {
			c.EnsureTopics.Partitions = 1
		}
		if c.EnsureTopics.ReplicationFactor <= 0 {
			c.EnsureTopics.ReplicationFactor = 1
		}
	}
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportKafka, TransportNATS:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.ShutdownTimeoutMs == 0 {
		return fmt.Errorf("shutdown_timeout_ms must be positive")
	}
	if c.EnsureTopics != nil && c.Transport != TransportKafka {
		return fmt.Errorf("ensure_topics requires the %s transport", TransportKafka)
	}
	return nil
}

// ShutdownTimeout returns the flush bound as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// Topics returns every distinct topic named by the configuration, in
// declaration order.
func (c *Config) Topics() []string {
	seen := make(map[string]bool)
	var topics []string
	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		topics = append(topics, t)
	}
	for _, f := range c.Filters {
		add(f.UpdateAccountTopic)
		add(f.SlotStatusTopic)
		add(f.TransactionTopic)
	}
	add(c.BlockEventsTopic)
	return topics
}
