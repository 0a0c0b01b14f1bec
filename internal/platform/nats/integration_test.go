//go:build integration

package nats_test

import (
	"context"
	"encoding/hex"
	"os"
	"testing"
	"time"

	pnats "github.com/marko911/geyser-kafka/internal/platform/nats"
)

func TestNATSIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := pnats.DefaultConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.URL = url
	}
	cfg.Name = "integration-test"

	client, err := pnats.Connect(ctx, cfg, nil)
	if err != nil {
		t.Skipf("nats unavailable at %s: %v", cfg.URL, err)
	}

	subject := "geyser.it.slots"
	streamCfg := pnats.DefaultStreamConfig("GEYSER_IT", []string{subject})
	stream, err := pnats.EnsureStream(ctx, client.JetStream(), streamCfg)
	if err != nil {
		t.Fatalf("Failed to create stream: %v", err)
	}

	p := pnats.NewProducer(client)
	defer p.Close()

	key := []byte{'S', 1, 0, 0, 0, 0, 0, 0, 0}
	if err := p.Send(subject, key, []byte("slot")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	msg, err := stream.GetLastMsgForSubject(ctx, subject)
	if err != nil {
		t.Fatalf("GetLastMsgForSubject: %v", err)
	}
	if string(msg.Data) != "slot" {
		t.Errorf("data = %q, want slot", msg.Data)
	}
	if got := msg.Header.Get(pnats.KeyHeader); got != hex.EncodeToString(key) {
		t.Errorf("key header = %q, want %q", got, hex.EncodeToString(key))
	}
}
