// Package solana_ws feeds live slot updates from a Solana RPC node's
// websocket endpoint into a geyser.Plugin.
package solana_ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marko911/geyser-kafka/internal/adapter"
	"github.com/marko911/geyser-kafka/internal/geyser"
)

const (
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// Config holds Solana WebSocket adapter configuration.
type Config struct {
	// WebSocket endpoint (e.g. wss://api.mainnet-beta.solana.com).
	// http and https endpoints are converted.
	Endpoint string

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Adapter subscribes to slotsUpdatesSubscribe and reports every update as
// a slot status callback.
type Adapter struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &Adapter{
		cfg:    cfg,
		logger: logger.With("adapter", "solana-ws"),
	}
}

func (a *Adapter) Name() string {
	return "solana-ws"
}

// Stream connects and reconnects with exponential backoff until ctx is done
// or the plugin returns a fatal error.
func (a *Adapter) Stream(ctx context.Context, p geyser.Plugin) error {
	a.logger.Info("starting solana websocket adapter", "endpoint", a.cfg.Endpoint)
	defer a.logger.Info("solana websocket adapter stopped")

	backoff := a.cfg.InitialBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		received, err := a.connectAndStream(ctx, p)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if adapter.IsFatal(err) {
			return err
		}
		if received {
			backoff = a.cfg.InitialBackoff
		}

		a.logger.Error("websocket error, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > a.cfg.MaxBackoff {
			backoff = a.cfg.MaxBackoff
		}
	}
}

// wsEndpoint converts http(s) endpoints to ws(s).
func wsEndpoint(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https"):
		return "wss" + endpoint[len("https"):]
	case strings.HasPrefix(endpoint, "http"):
		return "ws" + endpoint[len("http"):]
	default:
		return endpoint
	}
}

// connectAndStream reads notifications until the connection fails. It
// reports whether any update was delivered.
func (a *Adapter) connectAndStream(ctx context.Context, p geyser.Plugin) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsEndpoint(a.cfg.Endpoint), nil)
	if err != nil {
		return false, fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := subscribeSlotsUpdates(conn); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	received := false
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return received, fmt.Errorf("read error: %w", err)
		}

		update, ok := parseSlotsUpdate(message)
		if !ok {
			continue
		}
		status, ok := slotStatuses[update.Type]
		if !ok {
			a.logger.Debug("ignoring slot update", "type", update.Type, "slot", update.Slot)
			continue
		}
		received = true

		if err := p.OnSlotStatus(update.Slot, update.Parent, status); err != nil {
			if adapter.IsFatal(err) {
				return received, err
			}
			a.logger.Warn("slot status callback failed", "slot", update.Slot, "status", status.String(), "error", err)
		}
	}
}

// slotStatuses maps slotsUpdatesNotification types onto host statuses.
var slotStatuses = map[string]geyser.SlotStatus{
	"firstShredReceived":     geyser.SlotFirstShredReceived,
	"completed":              geyser.SlotCompleted,
	"createdBank":            geyser.SlotCreatedBank,
	"frozen":                 geyser.SlotProcessed,
	"optimisticConfirmation": geyser.SlotConfirmed,
	"root":                   geyser.SlotRooted,
	"dead":                   geyser.SlotDead,
}

type slotsUpdate struct {
	Slot   uint64  `json:"slot"`
	Parent *uint64 `json:"parent"`
	Type   string  `json:"type"`
}

// parseSlotsUpdate ignores malformed messages and anything that is not a
// slotsUpdatesNotification, including the subscription reply.
func parseSlotsUpdate(msg []byte) (slotsUpdate, bool) {
	var base struct {
		Method string `json:"method"`
		Params struct {
			Result slotsUpdate `json:"result"`
		} `json:"params"`
	}
	if err := json.Unmarshal(msg, &base); err != nil {
		return slotsUpdate{}, false
	}
	if base.Method != "slotsUpdatesNotification" {
		return slotsUpdate{}, false
	}
	return base.Params.Result, true
}

func subscribeSlotsUpdates(conn *websocket.Conn) error {
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "slotsUpdatesSubscribe",
	}
	return conn.WriteJSON(req)
}

var _ adapter.Source = (*Adapter)(nil)
