// Command fixture-recorder records Solana blocks, transactions, accounts and
// slots from an RPC node into fixture files for the replay source.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"

	"github.com/marko911/geyser-kafka/internal/adapter/replay"
)

// maxAccountData caps recorded account data; larger accounts are recorded
// without data.
const maxAccountData = 10240

type Config struct {
	Endpoint    string
	OutputDir   string
	FixtureType string
	Slot        int64
	Count       int
	Accounts    []string
	Startup     bool
}

func main() {
	endpoint := flag.String("endpoint", "", "Solana RPC endpoint URL")
	outputDir := flag.String("output", "./fixtures", "Output directory for fixtures")
	fixtureType := flag.String("type", "block", "Fixture type: block, tx, account, slots")
	slot := flag.Int64("slot", -1, "First slot to fetch (-1 for latest-count)")
	count := flag.Int("count", 1, "Number of slots to fetch")
	accounts := flag.String("accounts", "", "Comma-separated account addresses for account fixtures")
	startup := flag.Bool("startup", false, "Mark recorded accounts as startup snapshot updates")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	level := parseLogLevel(*logLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *endpoint == "" {
		logger.Error("endpoint is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg := Config{
		Endpoint:    *endpoint,
		OutputDir:   *outputDir,
		FixtureType: *fixtureType,
		Slot:        *slot,
		Count:       *count,
		Startup:     *startup,
	}
	if *accounts != "" {
		cfg.Accounts = strings.Split(*accounts, ",")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		logger.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	logger.Info("starting fixture recorder",
		"type", cfg.FixtureType,
		"output", cfg.OutputDir,
	)

	if err := record(ctx, cfg, logger); err != nil {
		logger.Error("recording failed", "error", err)
		os.Exit(1)
	}

	logger.Info("fixture recording complete")
}

func record(ctx context.Context, cfg Config, logger *slog.Logger) error {
	client := rpc.New(cfg.Endpoint)

	version, err := client.GetVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to Solana RPC: %w", err)
	}
	logger.Info("connected to Solana RPC", "version", version.SolanaCore)

	switch cfg.FixtureType {
	case "block":
		return recordBlocks(ctx, client, cfg, logger)
	case "tx":
		return recordTransactions(ctx, client, cfg, logger)
	case "account":
		return recordAccounts(ctx, client, cfg, logger)
	case "slots":
		return recordSlots(ctx, client, cfg, logger)
	default:
		return fmt.Errorf("unsupported fixture type: %s (use: block, tx, account, slots)", cfg.FixtureType)
	}
}

// slotRange resolves the first slot to record.
func slotRange(ctx context.Context, client *rpc.Client, cfg Config) (uint64, error) {
	if cfg.Slot >= 0 {
		return uint64(cfg.Slot), nil
	}
	slot, err := client.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("failed to get current slot: %w", err)
	}
	return slot - uint64(cfg.Count) + 1, nil
}

func getBlock(ctx context.Context, client *rpc.Client, slot uint64) (*rpc.GetBlockResult, error) {
	maxSupportedVersion := uint64(0)
	rewards := true
	return client.GetBlockWithOpts(ctx, slot, &rpc.GetBlockOpts{
		Encoding:                       solana.EncodingBase64,
		TransactionDetails:             rpc.TransactionDetailsFull,
		Rewards:                        &rewards,
		MaxSupportedTransactionVersion: &maxSupportedVersion,
		Commitment:                     rpc.CommitmentFinalized,
	})
}

func recordBlocks(ctx context.Context, client *rpc.Client, cfg Config, logger *slog.Logger) error {
	startSlot, err := slotRange(ctx, client, cfg)
	if err != nil {
		return err
	}

	logger.Info("fetching Solana blocks", "start_slot", startSlot, "count", cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		targetSlot := startSlot + uint64(i)
		block, err := getBlock(ctx, client, targetSlot)
		if err != nil {
			logger.Warn("failed to fetch block", "slot", targetSlot, "error", err)
			continue
		}
		if block == nil {
			logger.Debug("slot skipped (no block)", "slot", targetSlot)
			continue
		}

		txSigs := make([]string, 0, len(block.Transactions))
		for _, tx := range block.Transactions {
			parsed, err := tx.GetTransaction()
			if err == nil && parsed != nil && len(parsed.Signatures) > 0 {
				txSigs = append(txSigs, parsed.Signatures[0].String())
			}
		}

		blockFixture := replay.BlockFixture{
			Slot:              targetSlot,
			Blockhash:         block.Blockhash.String(),
			PreviousBlockhash: block.PreviousBlockhash.String(),
			ParentSlot:        block.ParentSlot,
			Transactions:      txSigs,
		}
		if block.BlockTime != nil {
			blockFixture.BlockTime = int64(*block.BlockTime)
		}
		if block.BlockHeight != nil {
			blockFixture.BlockHeight = *block.BlockHeight
		}
		for _, r := range block.Rewards {
			blockFixture.Rewards = append(blockFixture.Rewards, replay.RewardFixture{
				Pubkey:      r.Pubkey.String(),
				Lamports:    r.Lamports,
				PostBalance: r.PostBalance,
				RewardType:  string(r.RewardType),
				Commission:  r.Commission,
			})
		}

		filename := filepath.Join(cfg.OutputDir, fmt.Sprintf("solana_%d_block.json", targetSlot))
		if err := saveFixture(filename, replay.TypeBlock, targetSlot, block.Blockhash.String(), blockFixture); err != nil {
			return err
		}

		logger.Info("recorded Solana block", "slot", targetSlot, "txs", len(txSigs), "file", filename)
	}

	return nil
}

func recordTransactions(ctx context.Context, client *rpc.Client, cfg Config, logger *slog.Logger) error {
	startSlot, err := slotRange(ctx, client, cfg)
	if err != nil {
		return err
	}

	logger.Info("fetching Solana transactions", "start_slot", startSlot, "count", cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		targetSlot := startSlot + uint64(i)
		block, err := getBlock(ctx, client, targetSlot)
		if err != nil {
			logger.Warn("failed to fetch block", "slot", targetSlot, "error", err)
			continue
		}
		if block == nil || len(block.Transactions) == 0 {
			continue
		}

		var txFixtures []replay.TransactionFixture
		for idx, txWithMeta := range block.Transactions {
			parsed, err := txWithMeta.GetTransaction()
			if err != nil || parsed == nil || len(parsed.Signatures) == 0 {
				continue
			}

			txFixture := transactionFixture(parsed, txWithMeta.Meta)
			txFixture.Slot = targetSlot
			txFixture.Index = uint64(idx)
			if block.BlockTime != nil {
				txFixture.BlockTime = int64(*block.BlockTime)
			}
			txFixtures = append(txFixtures, txFixture)
		}

		if len(txFixtures) == 0 {
			continue
		}

		filename := filepath.Join(cfg.OutputDir, fmt.Sprintf("solana_%d_txs.json", targetSlot))
		if err := saveFixture(filename, replay.TypeTransactions, targetSlot, block.Blockhash.String(), txFixtures); err != nil {
			return err
		}

		logger.Info("recorded Solana transactions", "slot", targetSlot, "count", len(txFixtures), "file", filename)
	}

	return nil
}

func transactionFixture(tx *solana.Transaction, meta *rpc.TransactionMeta) replay.TransactionFixture {
	msg := tx.Message

	sigs := make([]string, len(tx.Signatures))
	for i, s := range tx.Signatures {
		sigs[i] = s.String()
	}

	accounts := make([]string, len(msg.AccountKeys))
	isVote := false
	for i, acc := range msg.AccountKeys {
		accounts[i] = acc.String()
	}
	instructions := make([]replay.InstructionFixture, len(msg.Instructions))
	for i, inst := range msg.Instructions {
		ixAccounts := make([]int, len(inst.Accounts))
		for j, a := range inst.Accounts {
			ixAccounts[j] = int(a)
		}
		instructions[i] = replay.InstructionFixture{
			ProgramIDIndex: int(inst.ProgramIDIndex),
			Accounts:       ixAccounts,
			Data:           base58.Encode(inst.Data),
		}
		if int(inst.ProgramIDIndex) < len(msg.AccountKeys) && msg.AccountKeys[inst.ProgramIDIndex].Equals(solana.VoteProgramID) {
			isVote = true
		}
	}

	f := replay.TransactionFixture{
		Signature:       sigs[0],
		Signatures:      sigs,
		Version:         replay.TransactionVersionLegacy,
		IsVote:          isVote,
		Accounts:        accounts,
		RecentBlockhash: msg.RecentBlockhash.String(),
		Instructions:    instructions,
		Header: replay.HeaderFixture{
			NumRequiredSignatures:       msg.Header.NumRequiredSignatures,
			NumReadonlySignedAccounts:   msg.Header.NumReadonlySignedAccounts,
			NumReadonlyUnsignedAccounts: msg.Header.NumReadonlyUnsignedAccounts,
		},
	}

	if msg.IsVersioned() {
		f.Version = replay.TransactionVersion0
		for _, l := range msg.AddressTableLookups {
			f.AddressTableLookups = append(f.AddressTableLookups, replay.LookupFixture{
				AccountKey:      l.AccountKey.String(),
				WritableIndexes: toInts(l.WritableIndexes),
				ReadonlyIndexes: toInts(l.ReadonlyIndexes),
			})
		}
	}

	if meta != nil {
		f.Fee = meta.Fee
		if meta.Err != nil {
			f.Err = fmt.Sprintf("%v", meta.Err)
		}
		f.LogMessages = meta.LogMessages
		f.PreBalances = meta.PreBalances
		f.PostBalances = meta.PostBalances
		f.ComputeUnitsConsumed = meta.ComputeUnitsConsumed
		for _, k := range meta.LoadedAddresses.Writable {
			f.LoadedWritable = append(f.LoadedWritable, k.String())
		}
		for _, k := range meta.LoadedAddresses.ReadOnly {
			f.LoadedReadonly = append(f.LoadedReadonly, k.String())
		}
	}
	return f
}

func toInts(in []uint8) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

func recordAccounts(ctx context.Context, client *rpc.Client, cfg Config, logger *slog.Logger) error {
	if len(cfg.Accounts) == 0 {
		return fmt.Errorf("account addresses required for account recording (use -accounts flag)")
	}

	slot, err := client.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("failed to get current slot: %w", err)
	}

	var fixtures []replay.AccountFixture
	for i, addr := range cfg.Accounts {
		pubkey, err := solana.PublicKeyFromBase58(strings.TrimSpace(addr))
		if err != nil {
			return fmt.Errorf("invalid Solana public key %q: %w", addr, err)
		}

		logger.Info("fetching Solana account", "pubkey", pubkey.String())

		account, err := client.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentFinalized,
		})
		if err != nil {
			return fmt.Errorf("failed to fetch account %s: %w", pubkey, err)
		}
		if account == nil || account.Value == nil {
			logger.Warn("account not found", "pubkey", pubkey.String())
			continue
		}

		accData := account.Value
		accountFixture := replay.AccountFixture{
			Pubkey:       pubkey.String(),
			Owner:        accData.Owner.String(),
			Lamports:     accData.Lamports,
			Executable:   accData.Executable,
			WriteVersion: uint64(i),
			Slot:         slot,
			IsStartup:    cfg.Startup,
		}
		if accData.RentEpoch != nil {
			accountFixture.RentEpoch = accData.RentEpoch.Uint64()
		}
		if binaryData := accData.Data.GetBinary(); len(binaryData) <= maxAccountData {
			accountFixture.Data = base64.StdEncoding.EncodeToString(binaryData)
		}
		fixtures = append(fixtures, accountFixture)
	}

	if len(fixtures) == 0 {
		return fmt.Errorf("no accounts found")
	}

	filename := filepath.Join(cfg.OutputDir, fmt.Sprintf("solana_%d_accounts.json", slot))
	if err := saveFixture(filename, replay.TypeAccounts, slot, "", fixtures); err != nil {
		return err
	}

	logger.Info("recorded Solana accounts", "slot", slot, "count", len(fixtures), "file", filename)
	return nil
}

// recordSlots records the produced slots of a range as rooted updates with
// parent links.
func recordSlots(ctx context.Context, client *rpc.Client, cfg Config, logger *slog.Logger) error {
	startSlot, err := slotRange(ctx, client, cfg)
	if err != nil {
		return err
	}
	endSlot := startSlot + uint64(cfg.Count) - 1

	slots, err := client.GetBlocks(ctx, startSlot, &endSlot, rpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("failed to get blocks: %w", err)
	}

	fixtures := make([]replay.SlotFixture, 0, len(slots))
	var parent *uint64
	for _, s := range slots {
		fixtures = append(fixtures, replay.SlotFixture{
			Slot:   s,
			Parent: parent,
			Status: "rooted",
		})
		prev := s
		parent = &prev
	}

	filename := filepath.Join(cfg.OutputDir, fmt.Sprintf("solana_%d_slots.json", startSlot))
	if err := saveFixture(filename, replay.TypeSlots, startSlot, "", fixtures); err != nil {
		return err
	}

	logger.Info("recorded Solana slots", "start_slot", startSlot, "count", len(fixtures), "file", filename)
	return nil
}

func saveFixture(filename, typ string, slot uint64, blockHash string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", typ, err)
	}

	fixture := replay.Fixture{
		Chain:      replay.ChainSolana,
		Type:       typ,
		RecordedAt: time.Now().UTC(),
		Slot:       slot,
		BlockHash:  blockHash,
		Data:       data,
	}

	out, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fixture: %w", err)
	}

	if err := os.WriteFile(filename, out, 0644); err != nil {
		return fmt.Errorf("failed to write fixture: %w", err)
	}

	return nil
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
