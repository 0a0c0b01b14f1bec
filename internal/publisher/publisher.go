// Package publisher encodes canonical events, keys them and hands them to a
// transport producer.
package publisher

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"

	"github.com/marko911/geyser-kafka/internal/platform/metrics"
	protov1 "github.com/marko911/geyser-kafka/pkg/proto/v1"
)

// Key tags prefixed to unwrapped keys. They are part of the wire contract.
const (
	TagAccount     byte = 'A'
	TagSlot        byte = 'S'
	TagTransaction byte = 'T'
	TagBlock       byte = 'B'
)

// ErrPublisherClosed is returned by every publish call after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// Producer is the transport the publisher submits records to. Send must not
// block on network I/O; it either enqueues the record or rejects it.
type Producer interface {
	Send(topic string, key, value []byte) error
	Flush(ctx context.Context) error
	Close()
}

// Publisher is safe for concurrent use.
type Publisher struct {
	producer        Producer
	metrics         *metrics.Metrics
	logger          *slog.Logger
	shutdownTimeout time.Duration

	closed atomic.Bool
}

func New(producer Producer, m *metrics.Metrics, shutdownTimeout time.Duration, logger *slog.Logger) *Publisher {
	if m == nil {
		m = metrics.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		producer:        producer,
		metrics:         m,
		logger:          logger.With("component", "publisher"),
		shutdownTimeout: shutdownTimeout,
	}
}

func (p *Publisher) PublishAccount(ev *protov1.UpdateAccountEvent, wrap bool, topic string) error {
	return p.publish(metrics.KindAccount, TagAccount, ev.Pubkey, ev, wrap, topic)
}

func (p *Publisher) PublishSlotStatus(ev *protov1.SlotStatusEvent, wrap bool, topic string) error {
	var slot [8]byte
	binary.LittleEndian.PutUint64(slot[:], ev.Slot)
	return p.publish(metrics.KindSlot, TagSlot, slot[:], ev, wrap, topic)
}

func (p *Publisher) PublishTransaction(ev *protov1.TransactionEvent, wrap bool, topic string) error {
	return p.publish(metrics.KindTransaction, TagTransaction, ev.Signature, ev, wrap, topic)
}

func (p *Publisher) PublishBlock(ev *protov1.BlockEvent, wrap bool, topic string) error {
	return p.publish(metrics.KindBlock, TagBlock, blockhashBytes(ev.Blockhash), ev, wrap, topic)
}

func (p *Publisher) publish(kind metrics.Kind, tag byte, id []byte, ev protov1.Event, wrap bool, topic string) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	// Keys are always copied: id may borrow host memory and transports keep
	// the key until delivery.
	var key, value []byte
	if wrap {
		key = append(make([]byte, 0, len(id)), id...)
		value = (&protov1.MessageWrapper{EventMessage: ev}).Marshal()
	} else {
		key = make([]byte, 0, len(id)+1)
		key = append(key, tag)
		key = append(key, id...)
		value = ev.Marshal()
	}

	err := p.producer.Send(topic, key, value)
	p.metrics.RecordUpload(kind, err)
	return err
}

// Close flushes the producer, waiting at most the shutdown timeout, then
// closes it. Only the first call has any effect.
func (p *Publisher) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.shutdownTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.producer.Flush(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			p.logger.Warn("flush failed", "error", err)
		}
		p.producer.Close()
	case <-ctx.Done():
		// The transport ignored its deadline. Release it without waiting.
		p.logger.Warn("flush timed out", "timeout", p.shutdownTimeout)
		go p.producer.Close()
	}
}

// blockhashBytes decodes a base58 blockhash, falling back to its text.
func blockhashBytes(hash string) []byte {
	b, err := base58.Decode(hash)
	if err != nil || len(b) == 0 {
		return []byte(hash)
	}
	return b
}
