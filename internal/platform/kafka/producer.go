package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/marko911/geyser-kafka/internal/platform/metrics"
)

var (
	// ErrQueueFull is returned by Send when the local buffer is at capacity.
	ErrQueueFull = errors.New("kafka producer queue full")

	// ErrProducerClosed is returned by Send after Close.
	ErrProducerClosed = errors.New("kafka producer closed")
)

// Producer submits records without waiting on the network. Delivery results
// are only counted; Send reports synchronous rejections.
type Producer struct {
	client  *kgo.Client
	metrics *metrics.Metrics
	logger  *slog.Logger

	maxBuffered int64
	inflight    atomic.Int64
	overruns    atomic.Int64
	closed      atomic.Bool
}

// NewProducer builds a franz-go client from librdkafka-style settings.
// Extra options are appended after the translated ones.
func NewProducer(settings map[string]string, m *metrics.Metrics, logger *slog.Logger, extra ...kgo.Opt) (*Producer, error) {
	if m == nil {
		m = metrics.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "kafka-producer")

	s, err := parseSettings(settings)
	if err != nil {
		return nil, err
	}
	for _, k := range s.ignored {
		logger.Warn("ignoring unsupported kafka setting", "key", k)
	}
	for _, k := range s.clamped {
		logger.Warn("raising kafka setting to the client minimum", "key", k, "value", minDeliveryTimeout)
	}

	opts := append(s.opts(), kgo.WithHooks(&statsHooks{metrics: m}))
	opts = append(opts, extra...)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	logger.Info("kafka producer created",
		"brokers", s.brokers,
		"max_buffered", s.maxBuffered,
		"compression", s.compression,
	)

	return &Producer{
		client:      client,
		metrics:     m,
		logger:      logger,
		maxBuffered: int64(s.maxBuffered),
	}, nil
}

// Client exposes the underlying client for admin operations.
func (p *Producer) Client() *kgo.Client {
	return p.client
}

// Send enqueues one record. The producer keeps references to key and value
// until delivery, so callers must not reuse them.
func (p *Producer) Send(topic string, key, value []byte) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if p.inflight.Add(1) > p.maxBuffered {
		p.inflight.Add(-1)
		return ErrQueueFull
	}

	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	p.client.TryProduce(context.Background(), rec, p.delivered)
	return nil
}

func (p *Producer) delivered(r *kgo.Record, err error) {
	p.inflight.Add(-1)
	p.metrics.RecordDelivery(err)
	if errors.Is(err, kgo.ErrMaxBuffered) {
		p.overruns.Add(1)
		p.logger.Error("record accepted by Send was rejected by the client buffer", "topic", r.Topic)
		return
	}
	if err != nil {
		p.logger.Debug("record delivery failed", "topic", r.Topic, "error", err)
	}
}

// Buffered returns the number of records awaiting delivery.
func (p *Producer) Buffered() int64 {
	return p.inflight.Load()
}

// Flush waits until every buffered record is delivered or ctx is done.
func (p *Producer) Flush(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	return nil
}

// Close releases the client. Records still buffered fail delivery.
func (p *Producer) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.client.Close()
}

// statsHooks feeds per-broker client activity into the kafka_stats gauges.
type statsHooks struct {
	metrics *metrics.Metrics
}

var (
	_ kgo.HookBrokerWrite         = (*statsHooks)(nil)
	_ kgo.HookProduceBatchWritten = (*statsHooks)(nil)
)

func brokerName(meta kgo.BrokerMetadata) string {
	return fmt.Sprintf("%s:%d/%d", meta.Host, meta.Port, meta.NodeID)
}

func (h *statsHooks) OnBrokerWrite(meta kgo.BrokerMetadata, _ int16, bytesWritten int, writeWait, timeToWrite time.Duration, err error) {
	b := brokerName(meta)
	h.metrics.AddKafkaStat(b, "tx", 1)
	h.metrics.AddKafkaStat(b, "tx_bytes", float64(bytesWritten))
	if err != nil {
		h.metrics.AddKafkaStat(b, "txerrs", 1)
	}
	h.metrics.SetKafkaStat(b, "outbuf_latency_us", float64(writeWait.Microseconds()))
	h.metrics.SetKafkaStat(b, "write_latency_us", float64(timeToWrite.Microseconds()))
}

func (h *statsHooks) OnProduceBatchWritten(meta kgo.BrokerMetadata, _ string, _ int32, m kgo.ProduceBatchMetrics) {
	b := brokerName(meta)
	h.metrics.AddKafkaStat(b, "batches", 1)
	h.metrics.AddKafkaStat(b, "batch_records", float64(m.NumRecords))
	h.metrics.AddKafkaStat(b, "batch_uncompressed_bytes", float64(m.UncompressedBytes))
	h.metrics.AddKafkaStat(b, "batch_compressed_bytes", float64(m.CompressedBytes))
}
