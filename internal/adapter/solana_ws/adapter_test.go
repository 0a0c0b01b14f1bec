package solana_ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marko911/geyser-kafka/internal/geyser"
	"github.com/marko911/geyser-kafka/internal/processor"
)

type slotUpdate struct {
	slot   uint64
	parent *uint64
	status geyser.SlotStatus
}

type slotPlugin struct {
	geyser.Plugin

	mu      sync.Mutex
	updates []slotUpdate
	err     error
	got     chan struct{}
}

func (s *slotPlugin) OnSlotStatus(slot uint64, parent *uint64, status geyser.SlotStatus) error {
	s.mu.Lock()
	s.updates = append(s.updates, slotUpdate{slot, parent, status})
	s.mu.Unlock()
	select {
	case s.got <- struct{}{}:
	default:
	}
	return s.err
}

func (s *slotPlugin) snapshot() []slotUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]slotUpdate(nil), s.updates...)
}

// newServer serves the given notifications to every connection after the
// subscription request, then holds the connection open.
func newServer(t *testing.T, notifications ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil || req["method"] != "slotsUpdatesSubscribe" {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","result":0,"id":1}`))
		for _, n := range notifications {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(n)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func notification(slot uint64, parent, typ string) string {
	p := ""
	if parent != "" {
		p = `"parent":` + parent + `,`
	}
	return `{"jsonrpc":"2.0","method":"slotsUpdatesNotification","params":{"result":{` + p +
		`"slot":` + strconv.FormatUint(slot, 10) + `,"timestamp":1700000000000,"type":"` + typ + `"},"subscription":0}}`
}

func waitFor(t *testing.T, p *slotPlugin, n int) []slotUpdate {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if got := p.snapshot(); len(got) >= n {
			return got
		}
		select {
		case <-p.got:
		case <-deadline:
			t.Fatalf("received %d updates, want %d", len(p.snapshot()), n)
		}
	}
}

func TestStreamSlotUpdates(t *testing.T) {
	srv := newServer(t,
		notification(76, "75", "createdBank"),
		notification(76, "", "frozen"),
		notification(76, "", "optimisticConfirmation"),
		`{"jsonrpc":"2.0","method":"slotsUpdatesNotification","params":{"result":{"slot":76,"type":"somethingNew"}}}`,
		`not json`,
		notification(70, "", "root"),
	)

	p := &slotPlugin{got: make(chan struct{}, 1)}
	a := New(Config{Endpoint: srv.URL}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Stream(ctx, p) }()

	got := waitFor(t, p, 4)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Stream() error = %v, want context.Canceled", err)
	}

	want := []geyser.SlotStatus{geyser.SlotCreatedBank, geyser.SlotProcessed, geyser.SlotConfirmed, geyser.SlotRooted}
	for i, w := range want {
		if got[i].status != w {
			t.Errorf("updates[%d].status = %v, want %v", i, got[i].status, w)
		}
	}
	if got[0].parent == nil || *got[0].parent != 75 {
		t.Errorf("updates[0].parent = %v, want 75", got[0].parent)
	}
	if got[1].parent != nil {
		t.Errorf("updates[1].parent = %v, want nil", *got[1].parent)
	}
	if got[3].slot != 70 {
		t.Errorf("updates[3].slot = %d, want 70", got[3].slot)
	}
}

func TestStreamStopsOnFatalError(t *testing.T) {
	srv := newServer(t, notification(1, "", "root"))

	p := &slotPlugin{
		got: make(chan struct{}, 1),
		err: geyser.NewPluginError(geyser.ErrSlotStatusUpdate, processor.ErrUnsupportedVersion),
	}
	a := New(Config{Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http")}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stream(ctx, p); !errors.Is(err, processor.ErrUnsupportedVersion) {
		t.Errorf("Stream() error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestStreamReconnects(t *testing.T) {
	var (
		mu    sync.Mutex
		conns int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		conns++
		mu.Unlock()
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := New(Config{
		Endpoint:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := a.Stream(ctx, &slotPlugin{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stream() error = %v, want deadline exceeded", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if conns < 2 {
		t.Errorf("connection attempts = %d, want at least 2", conns)
	}
}

func TestWSEndpoint(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://api.mainnet-beta.solana.com", "wss://api.mainnet-beta.solana.com"},
		{"http://localhost:8900", "ws://localhost:8900"},
		{"wss://node.example", "wss://node.example"},
	}
	for _, tt := range tests {
		if got := wsEndpoint(tt.in); got != tt.want {
			t.Errorf("wsEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
