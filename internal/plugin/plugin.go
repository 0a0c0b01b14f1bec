// Package plugin implements geyser.Plugin: it loads the configuration,
// builds the channel filters and the publisher, and fans every host
// notification out to the channels that want it.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/marko911/geyser-kafka/internal/config"
	"github.com/marko911/geyser-kafka/internal/filter"
	"github.com/marko911/geyser-kafka/internal/geyser"
	"github.com/marko911/geyser-kafka/internal/platform/metrics"
	"github.com/marko911/geyser-kafka/internal/processor"
	"github.com/marko911/geyser-kafka/internal/publisher"
	protov1 "github.com/marko911/geyser-kafka/pkg/proto/v1"
)

const name = "KafkaPlugin"

// metricsShutdownTimeout bounds the metrics server shutdown on unload.
const metricsShutdownTimeout = 10 * time.Second

var (
	// ErrNotLoaded is returned by callbacks invoked before OnLoad or after
	// OnUnload.
	ErrNotLoaded = errors.New("plugin not loaded")

	ErrAlreadyLoaded = errors.New("plugin already loaded")
)

// state is everything OnLoad builds. It is replaced as a whole so callbacks
// never observe a partially loaded plugin.
type state struct {
	cfg           *config.Config
	channels      []*filter.Channel
	publisher     *publisher.Publisher
	metricsServer *metrics.Server
}

// Plugin is safe for concurrent callbacks.
type Plugin struct {
	logger      *slog.Logger
	level       *slog.LevelVar
	metrics     *metrics.Metrics
	newProducer ProducerFactory

	lifecycle sync.Mutex
	state     atomic.Pointer[state]
}

var _ geyser.Plugin = (*Plugin)(nil)

type Option func(*Plugin)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Plugin) { p.logger = logger }
}

// WithLevel lets the configuration's log_level adjust the given level.
func WithLevel(level *slog.LevelVar) Option {
	return func(p *Plugin) { p.level = level }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Plugin) { p.metrics = m }
}

func WithProducerFactory(f ProducerFactory) Option {
	return func(p *Plugin) { p.newProducer = f }
}

func New(opts ...Option) *Plugin {
	p := &Plugin{
		logger:      slog.Default(),
		newProducer: NewProducer,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.Default()
	}
	p.logger = p.logger.With("component", "plugin")
	return p
}

func (p *Plugin) Name() string { return name }

func (p *Plugin) OnLoad(ctx context.Context, configFile string) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.state.Load() != nil {
		return geyser.NewPluginError(geyser.ErrCustom, ErrAlreadyLoaded)
	}

	p.logger.Info("loading plugin", "name", name, "config_file", configFile)

	cfg, err := config.Load(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return geyser.NewPluginError(geyser.ErrConfigFileOpen, err)
		}
		return geyser.NewPluginError(geyser.ErrConfigFileRead, err)
	}

	if p.level != nil {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			p.logger.Warn("invalid log level, keeping current", "log_level", cfg.LogLevel)
		} else {
			p.level.Set(lvl)
		}
	}

	producer, err := p.newProducer(ctx, cfg, p.metrics, p.logger)
	if err != nil {
		return geyser.NewPluginError(geyser.ErrCustom, fmt.Errorf("create producer: %w", err))
	}

	st := &state{
		cfg:       cfg,
		channels:  filter.NewChannels(cfg.Filters, p.logger),
		publisher: publisher.New(producer, p.metrics, cfg.ShutdownTimeout(), p.logger),
	}

	if cfg.Prometheus != "" {
		srv := metrics.NewServer(cfg.Prometheus, p.metrics, p.logger)
		if err := srv.Start(); err != nil {
			st.publisher.Close()
			return geyser.NewPluginError(geyser.ErrCustom, err)
		}
		st.metricsServer = srv
	}

	p.state.Store(st)
	p.logger.Info("plugin loaded",
		"transport", cfg.Transport,
		"channels", len(st.channels),
		"topics", cfg.Topics(),
		"block_events_topic", cfg.BlockEventsTopic,
	)
	return nil
}

// OnUnload flushes and closes the publisher. Callbacks racing with it
// either publish before the flush or get ErrNotLoaded or
// publisher.ErrPublisherClosed.
func (p *Plugin) OnUnload() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	st := p.state.Swap(nil)
	if st == nil {
		return
	}

	p.logger.Info("unloading plugin", "shutdown_timeout", st.cfg.ShutdownTimeout())
	st.publisher.Close()

	if st.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := st.metricsServer.Shutdown(ctx); err != nil {
			p.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
}

func (p *Plugin) load(kind geyser.ErrorKind) (*state, error) {
	st := p.state.Load()
	if st == nil {
		return nil, geyser.NewPluginError(kind, ErrNotLoaded)
	}
	return st, nil
}

// unsupported reports a replica layout the plugin cannot read. Hosts treat
// it as fatal.
func (p *Plugin) unsupported(kind geyser.ErrorKind, err error) error {
	p.logger.Error("unsupported replica version", "kind", kind.String(), "error", err)
	return geyser.NewPluginError(kind, err)
}

func publishErr(kind geyser.ErrorKind, errs error) error {
	if errs == nil {
		return nil
	}
	return geyser.NewPluginError(kind, errs)
}

func (p *Plugin) OnAccountUpdate(info geyser.ReplicaAccountInfo, slot uint64, isStartup bool) error {
	const kind = geyser.ErrAccountsUpdate
	st, err := p.load(kind)
	if err != nil {
		return err
	}

	route, err := processor.RouteAccount(info)
	if err != nil {
		return p.unsupported(kind, err)
	}

	var (
		ev   *protov1.UpdateAccountEvent
		errs error
	)
	for _, ch := range st.channels {
		if !ch.AcceptAccount(route.Owner, route.Pubkey, isStartup) {
			continue
		}
		if ev == nil {
			if ev, err = processor.BuildAccountEvent(info, slot, isStartup); err != nil {
				return p.unsupported(kind, err)
			}
		}
		if err := st.publisher.PublishAccount(ev, ch.WrapMessages(), ch.AccountTopic()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish account to %s: %w", ch.AccountTopic(), err))
		}
	}
	return publishErr(kind, errs)
}

func (p *Plugin) OnSlotStatus(slot uint64, parent *uint64, status geyser.SlotStatus) error {
	const kind = geyser.ErrSlotStatusUpdate
	st, err := p.load(kind)
	if err != nil {
		return err
	}

	var (
		ev   *protov1.SlotStatusEvent
		errs error
	)
	for _, ch := range st.channels {
		if !ch.AcceptSlotStatus() {
			continue
		}
		if ev == nil {
			ev = processor.BuildSlotStatusEvent(slot, parent, status)
		}
		if err := st.publisher.PublishSlotStatus(ev, ch.WrapMessages(), ch.SlotStatusTopic()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish slot to %s: %w", ch.SlotStatusTopic(), err))
		}
	}
	return publishErr(kind, errs)
}

func (p *Plugin) OnTransaction(info geyser.ReplicaTransactionInfo, slot uint64) error {
	const kind = geyser.ErrTransactionUpdate
	st, err := p.load(kind)
	if err != nil {
		return err
	}

	route, err := processor.RouteTransaction(info)
	if err != nil {
		return p.unsupported(kind, err)
	}

	var (
		ev   *protov1.TransactionEvent
		errs error
	)
	for _, ch := range st.channels {
		if !ch.AcceptTransaction(route.IsVote, route.IsFailed, route.AccountKeys) {
			continue
		}
		if ev == nil {
			if ev, err = processor.BuildTransactionEvent(info, slot); err != nil {
				return p.unsupported(kind, err)
			}
		}
		if err := st.publisher.PublishTransaction(ev, ch.WrapMessages(), ch.TransactionTopic()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish transaction to %s: %w", ch.TransactionTopic(), err))
		}
	}
	return publishErr(kind, errs)
}

func (p *Plugin) OnBlock(info geyser.ReplicaBlockInfo) error {
	const kind = geyser.ErrBlockUpdate
	st, err := p.load(kind)
	if err != nil {
		return err
	}

	topic := st.cfg.BlockEventsTopic
	if topic == "" {
		return nil
	}

	ev, err := processor.BuildBlockEvent(info)
	if err != nil {
		return p.unsupported(kind, err)
	}
	if err := st.publisher.PublishBlock(ev, st.cfg.WrapBlockMessages, topic); err != nil {
		return geyser.NewPluginError(kind, fmt.Errorf("publish block to %s: %w", topic, err))
	}
	return nil
}

func (p *Plugin) OnEndOfStartup() error {
	p.logger.Info("end of startup snapshot")
	return nil
}

func (p *Plugin) AccountDataNotificationsEnabled() bool {
	st := p.state.Load()
	if st == nil {
		return false
	}
	for _, ch := range st.channels {
		if ch.AccountTopic() != "" {
			return true
		}
	}
	return false
}

func (p *Plugin) TransactionNotificationsEnabled() bool {
	st := p.state.Load()
	if st == nil {
		return false
	}
	for _, ch := range st.channels {
		if ch.TransactionTopic() != "" {
			return true
		}
	}
	return false
}
