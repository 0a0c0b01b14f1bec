// Command geyser-kafka runs the geyser publishing plugin under a Go host.
//
// The host replays recorded fixtures or follows a live cluster's slot
// updates, invoking the plugin callbacks a validator would invoke.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marko911/geyser-kafka/internal/adapter"
	"github.com/marko911/geyser-kafka/internal/adapter/replay"
	"github.com/marko911/geyser-kafka/internal/adapter/solana_ws"
	"github.com/marko911/geyser-kafka/internal/plugin"
)

func main() {
	configFile := flag.String("config", getEnv("GEYSER_CONFIG", "config.json"), "Plugin configuration file (JSON or YAML)")
	source := flag.String("source", getEnv("GEYSER_SOURCE", "replay"), "Event source: replay, ws")
	fixturesDir := flag.String("fixtures", getEnv("FIXTURES_DIR", "./fixtures"), "Fixtures directory for the replay source")
	loop := flag.Bool("loop", false, "Replay fixtures continuously")
	speed := flag.Float64("speed", 0, "Replay speed (0 = instant, 1.0 = realtime)")
	workers := flag.Int("workers", replay.DefaultWorkers, "Concurrent callback workers for the replay source")
	wsEndpoint := flag.String("ws-endpoint", getEnv("SOLANA_WS_ENDPOINT", "wss://api.mainnet-beta.solana.com"), "Solana websocket endpoint for the ws source")
	logLevel := flag.String("log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.Parse()

	var level slog.LevelVar
	level.Set(parseLogLevel(*logLevel))

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &level,
	}))
	slog.SetDefault(logger)

	var src adapter.Source
	switch *source {
	case "replay":
		src = replay.NewFileSource(replay.FileSourceConfig{
			FixturesDir:   *fixturesDir,
			Loop:          *loop,
			PlaybackSpeed: *speed,
			Workers:       *workers,
		}, logger)
	case "ws":
		src = solana_ws.New(solana_ws.Config{Endpoint: *wsEndpoint}, logger)
	default:
		logger.Error("unsupported source", "source", *source)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	p := plugin.New(plugin.WithLogger(logger), plugin.WithLevel(&level))

	logger.Info("starting geyser-kafka",
		"plugin", p.Name(),
		"config", *configFile,
		"source", src.Name(),
	)

	if err := p.OnLoad(ctx, *configFile); err != nil {
		logger.Error("failed to load plugin", "error", err)
		os.Exit(1)
	}

	err := src.Stream(ctx, p)

	// Unload flushes pending records within the configured shutdown timeout.
	p.OnUnload()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("source stopped", "source", src.Name(), "error", err)
		os.Exit(1)
	}
	logger.Info("geyser-kafka shutdown complete")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
