package kafka

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultMaxBufferedRecords bounds the records awaiting delivery when
// queue.buffering.max.messages is not set.
const DefaultMaxBufferedRecords = 100000

// minDeliveryTimeout is the smallest record timeout franz-go accepts.
const minDeliveryTimeout = time.Second

// producerSettings is the typed form of a librdkafka-style settings map.
type producerSettings struct {
	brokers         []string
	clientID        string
	acks            int
	acksSet         bool
	idempotent      *bool
	deliveryTimeout time.Duration
	compression     string
	partitioner     string
	linger          time.Duration
	maxBuffered     int
	batchMaxBytes   int32
	retries         int
	retryBackoff    time.Duration
	autoCreate      bool

	// ignored lists keys with no franz-go counterpart.
	ignored []string
	// clamped lists keys whose values were raised to a franz-go minimum.
	clamped []string
}

func parseSettings(m map[string]string) (*producerSettings, error) {
	s := &producerSettings{
		maxBuffered: DefaultMaxBufferedRecords,
		retries:     -1,
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := strings.TrimSpace(m[k])
		if err := s.apply(k, v); err != nil {
			return nil, fmt.Errorf("kafka setting %s=%q: %w", k, v, err)
		}
	}

	if len(s.brokers) == 0 {
		return nil, fmt.Errorf("kafka settings: bootstrap.servers is required")
	}
	return s, nil
}

func (s *producerSettings) apply(k, v string) error {
	switch k {
	case "bootstrap.servers", "metadata.broker.list":
		s.brokers = splitBrokers(v)

	case "client.id":
		s.clientID = v

	case "request.required.acks", "acks":
		switch v {
		case "0":
			s.acks = 0
		case "1":
			s.acks = 1
		case "-1", "all":
			s.acks = -1
		default:
			return fmt.Errorf("acks must be 0, 1, -1 or all")
		}
		s.acksSet = true

	case "enable.idempotence":
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		s.idempotent = &b

	case "message.timeout.ms", "delivery.timeout.ms":
		d, err := parseMillis(v)
		if err != nil {
			return err
		}
		if d > 0 && d < minDeliveryTimeout {
			d = minDeliveryTimeout
			s.clamped = append(s.clamped, k)
		}
		s.deliveryTimeout = d

	case "compression.type", "compression.codec":
		switch v {
		case "none", "gzip", "snappy", "lz4", "zstd":
			s.compression = v
		default:
			return fmt.Errorf("unknown compression codec")
		}

	case "partitioner":
		switch v {
		case "murmur2_random", "murmur2", "consistent_random", "consistent", "random":
			s.partitioner = v
		default:
			return fmt.Errorf("unknown partitioner")
		}

	case "linger.ms", "queue.buffering.max.ms":
		d, err := parseMillis(v)
		if err != nil {
			return err
		}
		s.linger = d

	case "queue.buffering.max.messages":
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("must be positive")
		}
		s.maxBuffered = n

	case "batch.size", "message.max.bytes":
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return err
		}
		s.batchMaxBytes = int32(n)

	case "message.send.max.retries", "retries":
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		s.retries = n

	case "retry.backoff.ms":
		d, err := parseMillis(v)
		if err != nil {
			return err
		}
		s.retryBackoff = d

	case "allow.auto.create.topics":
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		s.autoCreate = b

	default:
		s.ignored = append(s.ignored, k)
	}
	return nil
}

func (s *producerSettings) opts() []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(s.brokers...),
		kgo.MaxBufferedRecords(s.clientBufferLimit()),
	}
	if s.clientID != "" {
		opts = append(opts, kgo.ClientID(s.clientID))
	}

	if s.acksSet {
		switch s.acks {
		case 0:
			opts = append(opts, kgo.RequiredAcks(kgo.NoAck()))
		case 1:
			opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()))
		default:
			opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
		}
	}
	if s.disableIdempotence() {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}

	if s.deliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(s.deliveryTimeout))
	}

	switch s.compression {
	case "none":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.NoCompression()))
	case "gzip":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.GzipCompression()))
	case "snappy":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.SnappyCompression()))
	case "lz4":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.Lz4Compression()))
	case "zstd":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.ZstdCompression()))
	}

	switch s.partitioner {
	case "random":
		opts = append(opts, kgo.RecordPartitioner(kgo.RoundRobinPartitioner()))
	case "":
	default:
		// librdkafka's murmur2 and consistent partitioners both hash the key;
		// franz-go's sticky key partitioner with a nil hasher matches the
		// Java client's murmur2 placement.
		opts = append(opts, kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)))
	}

	if s.linger > 0 {
		opts = append(opts, kgo.ProducerLinger(s.linger))
	}
	if s.batchMaxBytes > 0 {
		opts = append(opts, kgo.ProducerBatchMaxBytes(s.batchMaxBytes))
	}
	if s.retries >= 0 {
		opts = append(opts, kgo.RecordRetries(s.retries))
	}
	if s.retryBackoff > 0 {
		backoff := s.retryBackoff
		opts = append(opts, kgo.RetryBackoffFn(func(n int) time.Duration {
			return time.Duration(n) * backoff
		}))
	}
	if s.autoCreate {
		opts = append(opts, kgo.AllowAutoTopicCreation())
	}
	return opts
}

// clientBufferLimit is the buffer cap handed to franz-go. It stays above
// maxBuffered so the producer's in-flight counter is the only queue-full
// gate; franz-go frees a buffer slot only after the delivery promise returns.
func (s *producerSettings) clientBufferLimit() int {
	if s.maxBuffered > math.MaxInt/2 {
		return math.MaxInt
	}
	return 2 * s.maxBuffered
}

// disableIdempotence reports whether idempotent writes must be turned off.
// franz-go requires acks=all for them.
func (s *producerSettings) disableIdempotence() bool {
	if s.idempotent != nil && !*s.idempotent {
		return true
	}
	return s.acksSet && s.acks != -1
}

func splitBrokers(v string) []string {
	var out []string
	for _, b := range strings.Split(v, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func parseMillis(v string) (time.Duration, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return time.Duration(n) * time.Millisecond, nil
}
