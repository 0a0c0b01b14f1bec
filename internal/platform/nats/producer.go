package nats

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// KeyHeader carries the hex-encoded record key. JetStream has no key field.
const KeyHeader = "Geyser-Key"

// stallWait bounds how long a publish may block on a full async window.
const stallWait = time.Millisecond

var (
	// ErrQueueFull is returned by Send when the async publish window is full.
	ErrQueueFull = errors.New("nats producer queue full")

	// ErrProducerClosed is returned by Send after Close.
	ErrProducerClosed = errors.New("nats producer closed")
)

// asyncPublisher is the part of jetstream.JetStream the producer uses.
type asyncPublisher interface {
	PublishMsgAsync(msg *nats.Msg, opts ...jetstream.PublishOpt) (jetstream.PubAckFuture, error)
	PublishAsyncPending() int
	PublishAsyncComplete() <-chan struct{}
}

// Producer publishes records as JetStream messages, one subject per topic.
type Producer struct {
	js         asyncPublisher
	maxPending int
	connected  func() bool
	closeFn    func() error
	logger     *slog.Logger
	closed     atomic.Bool
}

// NewProducer publishes over the client's JetStream context. Close closes
// the client.
func NewProducer(c *Client) *Producer {
	return &Producer{
		js:         c.js,
		maxPending: c.cfg.MaxPending,
		connected:  c.IsConnected,
		closeFn:    c.Close,
		logger:     c.logger,
	}
}

func (p *Producer) Send(topic string, key, value []byte) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if p.maxPending > 0 && p.js.PublishAsyncPending() >= p.maxPending {
		return ErrQueueFull
	}

	msg := &nats.Msg{
		Subject: topic,
		Data:    value,
		Header:  nats.Header{},
	}
	msg.Header.Set(KeyHeader, hex.EncodeToString(key))

	if _, err := p.js.PublishMsgAsync(msg, jetstream.WithStallWait(stallWait)); err != nil {
		if errors.Is(err, jetstream.ErrTooManyStalledMsgs) {
			return ErrQueueFull
		}
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Flush waits for every outstanding publish to be acknowledged.
func (p *Producer) Flush(ctx context.Context) error {
	select {
	case <-p.js.PublishAsyncComplete():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush nats producer: %w", ctx.Err())
	}
}

func (p *Producer) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	if pending := p.js.PublishAsyncPending(); pending > 0 && p.logger != nil {
		connected := p.connected != nil && p.connected()
		p.logger.Warn("closing nats producer with unacknowledged publishes",
			"pending", pending,
			"connected", connected,
		)
	}
	if p.closeFn != nil {
		_ = p.closeFn()
	}
}
