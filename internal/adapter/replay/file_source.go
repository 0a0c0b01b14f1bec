// Package replay provides a FileSource that replays recorded Solana fixtures
// into a geyser.Plugin during testing and development.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marko911/geyser-kafka/internal/adapter"
	"github.com/marko911/geyser-kafka/internal/geyser"
)

// DefaultWorkers is the number of concurrent callback workers.
const DefaultWorkers = 4

// maxPlaybackDelay caps the pause between two fixtures.
const maxPlaybackDelay = 60 * time.Second

// FileSourceConfig holds configuration for FileSource.
type FileSourceConfig struct {
	// Path to fixtures directory
	FixturesDir string

	// Whether to loop continuously
	Loop bool

	// Playback speed (0 = instant, 1.0 = realtime based on timestamps)
	PlaybackSpeed float64

	// Workers invoke plugin callbacks concurrently, the way a validator
	// does from several threads.
	Workers int
}

// FileSource implements adapter.Source by replaying fixture files.
type FileSource struct {
	cfg    FileSourceConfig
	logger *slog.Logger
}

// call is one plugin callback.
type call func(geyser.Plugin) error

func NewFileSource(cfg FileSourceConfig, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &FileSource{
		cfg:    cfg,
		logger: logger.With("source", "file"),
	}
}

func (s *FileSource) Name() string {
	return "file"
}

// Stream replays every fixture in filename order. Callbacks of one file run
// concurrently and complete before the next file starts. The end of the
// first pass is reported to the plugin as the end of startup.
//
// Stream returns the first fatal callback error. Other callback errors are
// logged and counted.
func (s *FileSource) Stream(ctx context.Context, p geyser.Plugin) error {
	s.logger.Info("starting file source stream",
		"fixtures_dir", s.cfg.FixturesDir,
		"loop", s.cfg.Loop,
		"playback_speed", s.cfg.PlaybackSpeed,
		"workers", s.cfg.Workers,
	)

	var (
		dispatched, failed int64
		startupDone        bool
	)
	for {
		files, err := s.findFixtureFiles()
		if err != nil {
			return fmt.Errorf("find fixture files: %w", err)
		}

		if len(files) == 0 {
			s.logger.Warn("no fixture files found", "dir", s.cfg.FixturesDir)
			return nil
		}

		s.logger.Info("found fixture files", "count", len(files))

		var lastTimestamp int64
		for _, file := range files {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			calls, timestamp, err := s.loadFixtureFile(file)
			if err != nil {
				s.logger.Warn("failed to load fixture", "file", file, "error", err)
				continue
			}

			if s.cfg.PlaybackSpeed > 0 && lastTimestamp > 0 && timestamp > lastTimestamp {
				delay := time.Duration(float64(timestamp-lastTimestamp)/s.cfg.PlaybackSpeed) * time.Second
				if delay > 0 && delay < maxPlaybackDelay {
					s.logger.Debug("playback delay", "delay", delay)
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(delay):
					}
				}
			}
			lastTimestamp = timestamp

			n, err := s.dispatch(ctx, p, calls)
			dispatched += int64(len(calls))
			failed += n
			if err != nil {
				return err
			}
		}

		if !startupDone {
			startupDone = true
			if err := p.OnEndOfStartup(); err != nil {
				s.logger.Warn("end of startup failed", "error", err)
			}
		}

		if !s.cfg.Loop {
			break
		}

		s.logger.Info("looping fixtures")
	}

	s.logger.Info("file source stream completed", "dispatched", dispatched, "failed", failed)
	return nil
}

// dispatch runs calls on the worker pool and waits for them. It returns the
// number of failed calls and the first fatal error, which also stops
// workers from taking more calls.
func (s *FileSource) dispatch(ctx context.Context, p geyser.Plugin, calls []call) (int64, error) {
	if len(calls) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	numWorkers := s.cfg.Workers
	if numWorkers > len(calls) {
		numWorkers = len(calls)
	}

	jobs := make(chan call)
	var (
		wg       sync.WaitGroup
		failed   atomic.Int64
		fatalMu  sync.Mutex
		fatalErr error
	)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				err := c(p)
				if err == nil {
					continue
				}
				failed.Add(1)
				if adapter.IsFatal(err) {
					fatalMu.Lock()
					if fatalErr == nil {
						fatalErr = err
					}
					fatalMu.Unlock()
					cancel()
					continue
				}
				s.logger.Warn("callback failed", "error", err)
			}
		}()
	}

feed:
	for _, c := range calls {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- c:
		}
	}
	close(jobs)
	wg.Wait()

	if fatalErr != nil {
		return failed.Load(), fmt.Errorf("replay stopped: %w", fatalErr)
	}
	return failed.Load(), ctx.Err()
}

// findFixtureFiles returns the sorted list of solana fixture files.
func (s *FileSource) findFixtureFiles() ([]string, error) {
	var files []string

	err := filepath.Walk(s.cfg.FixturesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".json" {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Sort by filename (ensures slot order with default naming)
	sort.Strings(files)
	return files, nil
}

// loadFixtureFile loads a fixture file and converts it to plugin callbacks.
func (s *FileSource) loadFixtureFile(path string) ([]call, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return nil, 0, fmt.Errorf("parse fixture: %w", err)
	}
	if fixture.Chain != ChainSolana {
		return nil, 0, fmt.Errorf("unsupported chain: %s", fixture.Chain)
	}

	calls, timestamp, err := parseFixture(fixture)
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s fixture: %w", fixture.Type, err)
	}
	return calls, timestamp, nil
}

func parseFixture(fixture Fixture) ([]call, int64, error) {
	switch fixture.Type {
	case TypeBlock:
		var block BlockFixture
		if err := json.Unmarshal(fixture.Data, &block); err != nil {
			return nil, 0, err
		}
		info := block.ToReplica()
		return []call{func(p geyser.Plugin) error { return p.OnBlock(info) }}, block.BlockTime, nil

	case TypeTransactions:
		var txs []TransactionFixture
		if err := json.Unmarshal(fixture.Data, &txs); err != nil {
			return nil, 0, err
		}
		calls := make([]call, 0, len(txs))
		for _, tx := range txs {
			info, err := tx.ToReplica()
			if err != nil {
				return nil, 0, fmt.Errorf("transaction %s: %w", tx.Signature, err)
			}
			slot := tx.Slot
			calls = append(calls, func(p geyser.Plugin) error { return p.OnTransaction(info, slot) })
		}
		var timestamp int64
		if len(txs) > 0 {
			timestamp = txs[0].BlockTime
		}
		return calls, timestamp, nil

	case TypeAccounts:
		var accounts []AccountFixture
		if err := json.Unmarshal(fixture.Data, &accounts); err != nil {
			return nil, 0, err
		}
		calls := make([]call, 0, len(accounts))
		for _, acc := range accounts {
			info, err := acc.ToReplica()
			if err != nil {
				return nil, 0, fmt.Errorf("account %s: %w", acc.Pubkey, err)
			}
			slot, isStartup := acc.Slot, acc.IsStartup
			calls = append(calls, func(p geyser.Plugin) error { return p.OnAccountUpdate(info, slot, isStartup) })
		}
		return calls, fixture.RecordedAt.Unix(), nil

	case TypeSlots:
		var slots []SlotFixture
		if err := json.Unmarshal(fixture.Data, &slots); err != nil {
			return nil, 0, err
		}
		calls := make([]call, 0, len(slots))
		for _, sl := range slots {
			status, err := ParseSlotStatus(sl.Status)
			if err != nil {
				return nil, 0, err
			}
			slot, parent := sl.Slot, sl.Parent
			calls = append(calls, func(p geyser.Plugin) error { return p.OnSlotStatus(slot, parent, status) })
		}
		return calls, fixture.RecordedAt.Unix(), nil

	default:
		return nil, 0, fmt.Errorf("unknown fixture type %q", fixture.Type)
	}
}

var _ adapter.Source = (*FileSource)(nil)
