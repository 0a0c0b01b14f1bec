package replay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/marko911/geyser-kafka/internal/geyser"
	"github.com/marko911/geyser-kafka/internal/processor"
)

type recordingPlugin struct {
	mu           sync.Mutex
	accounts     []uint64
	slots        []geyser.SlotStatus
	transactions []geyser.ReplicaTransactionInfo
	blocks       []*geyser.ReplicaBlockInfoV4
	endOfStartup int

	txErr error
}

func (r *recordingPlugin) Name() string                          { return "recording" }
func (r *recordingPlugin) OnLoad(context.Context, string) error  { return nil }
func (r *recordingPlugin) OnUnload()                             {}
func (r *recordingPlugin) AccountDataNotificationsEnabled() bool { return true }
func (r *recordingPlugin) TransactionNotificationsEnabled() bool { return true }

func (r *recordingPlugin) OnAccountUpdate(_ geyser.ReplicaAccountInfo, slot uint64, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, slot)
	return nil
}

func (r *recordingPlugin) OnSlotStatus(_ uint64, _ *uint64, status geyser.SlotStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = append(r.slots, status)
	return nil
}

func (r *recordingPlugin) OnTransaction(info geyser.ReplicaTransactionInfo, _ uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.txErr != nil {
		return r.txErr
	}
	r.transactions = append(r.transactions, info)
	return nil
}

func (r *recordingPlugin) OnBlock(info geyser.ReplicaBlockInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = append(r.blocks, info.(*geyser.ReplicaBlockInfoV4))
	return nil
}

func (r *recordingPlugin) OnEndOfStartup() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endOfStartup++
	return nil
}

func key(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	k[31] = b
	return k
}

func sig(b byte) solana.Signature {
	var s solana.Signature
	s[0] = b
	return s
}

func writeFixture(t *testing.T, dir, name, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	f := Fixture{Chain: ChainSolana, Type: typ, RecordedAt: time.Unix(1700000000, 0).UTC(), Data: raw}
	out, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), out, 0o600); err != nil {
		t.Fatal(err)
	}
}

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFixture(t, dir, "solana_1_accounts.json", TypeAccounts, []AccountFixture{
		{Pubkey: key(1).String(), Owner: key(2).String(), Lamports: 5, Data: "AQID", Slot: 10, IsStartup: true},
		{Pubkey: key(3).String(), Owner: key(2).String(), Lamports: 6, Slot: 11},
	})
	writeFixture(t, dir, "solana_2_slots.json", TypeSlots, []SlotFixture{
		{Slot: 11, Status: "processed"},
		{Slot: 10, Status: "rooted"},
	})
	writeFixture(t, dir, "solana_3_txs.json", TypeTransactions, []TransactionFixture{
		{
			Signature: sig(1).String(),
			Slot:      11,
			Header:    HeaderFixture{NumRequiredSignatures: 1},
			Accounts:  []string{key(1).String(), key(4).String()},
		},
		{
			Signature:      sig(2).String(),
			Slot:           11,
			Version:        TransactionVersion0,
			Header:         HeaderFixture{NumRequiredSignatures: 1},
			Accounts:       []string{key(1).String()},
			LoadedWritable: []string{key(5).String()},
		},
	})
	writeFixture(t, dir, "solana_4_block.json", TypeBlock, BlockFixture{
		Slot:              11,
		Blockhash:         key(9).String(),
		PreviousBlockhash: key(8).String(),
		ParentSlot:        10,
		Transactions:      []string{sig(1).String(), sig(2).String()},
	})
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a fixture"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "solana_5_broken.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileSourceStream(t *testing.T) {
	dir := writeFixtures(t)
	p := &recordingPlugin{}
	src := NewFileSource(FileSourceConfig{FixturesDir: dir, Workers: 3}, discard())

	if err := src.Stream(context.Background(), p); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if len(p.accounts) != 2 {
		t.Errorf("accounts = %d, want 2", len(p.accounts))
	}
	if len(p.slots) != 2 {
		t.Errorf("slots = %d, want 2", len(p.slots))
	}
	if len(p.transactions) != 2 {
		t.Errorf("transactions = %d, want 2", len(p.transactions))
	}
	if len(p.blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(p.blocks))
	}
	if got := p.blocks[0].ExecutedTransactionCount; got != 2 {
		t.Errorf("ExecutedTransactionCount = %d, want 2", got)
	}
	if p.endOfStartup != 1 {
		t.Errorf("endOfStartup = %d, want 1", p.endOfStartup)
	}
}

func TestFileSourceFatalError(t *testing.T) {
	dir := writeFixtures(t)
	p := &recordingPlugin{txErr: geyser.NewPluginError(geyser.ErrTransactionUpdate, processor.ErrUnsupportedVersion)}
	src := NewFileSource(FileSourceConfig{FixturesDir: dir}, discard())

	err := src.Stream(context.Background(), p)
	if !errors.Is(err, processor.ErrUnsupportedVersion) {
		t.Fatalf("Stream() error = %v, want ErrUnsupportedVersion", err)
	}
	if len(p.blocks) != 0 {
		t.Errorf("blocks = %d, want 0 after fatal error", len(p.blocks))
	}
}

func TestFileSourceNonFatalErrorContinues(t *testing.T) {
	dir := writeFixtures(t)
	p := &recordingPlugin{txErr: geyser.NewPluginError(geyser.ErrTransactionUpdate, errors.New("queue full"))}
	src := NewFileSource(FileSourceConfig{FixturesDir: dir}, discard())

	if err := src.Stream(context.Background(), p); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(p.blocks) != 1 {
		t.Errorf("blocks = %d, want 1", len(p.blocks))
	}
}

func TestFileSourceLoopCancelled(t *testing.T) {
	dir := writeFixtures(t)
	p := &recordingPlugin{}
	src := NewFileSource(FileSourceConfig{FixturesDir: dir, Loop: true}, discard())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := src.Stream(ctx, p); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stream() error = %v, want deadline exceeded", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.endOfStartup != 1 {
		t.Errorf("endOfStartup = %d, want 1", p.endOfStartup)
	}
}

func TestFileSourceEmptyDir(t *testing.T) {
	src := NewFileSource(FileSourceConfig{FixturesDir: t.TempDir()}, discard())
	if err := src.Stream(context.Background(), &recordingPlugin{}); err != nil {
		t.Errorf("Stream() error = %v", err)
	}
}

func TestTransactionFixtureToReplica(t *testing.T) {
	data := []byte{3, 100, 0, 0, 0, 0, 0, 0, 0}
	cu := uint64(1500)

	legacy := TransactionFixture{
		Signature:            sig(1).String(),
		Index:                4,
		Err:                  "InstructionError",
		Header:               HeaderFixture{NumRequiredSignatures: 1, NumReadonlyUnsignedAccounts: 1},
		Accounts:             []string{key(1).String(), processor.ComputeBudgetProgramID.String()},
		Instructions:         []InstructionFixture{{ProgramIDIndex: 1, Data: base58.Encode(data)}},
		ComputeUnitsConsumed: &cu,
	}
	info, err := legacy.ToReplica()
	if err != nil {
		t.Fatalf("ToReplica() error = %v", err)
	}
	v2, ok := info.(*geyser.ReplicaTransactionInfoV2)
	if !ok {
		t.Fatalf("legacy ToReplica() = %T, want *ReplicaTransactionInfoV2", info)
	}
	if v2.Index != 4 || v2.TransactionStatusMeta.Status == nil {
		t.Errorf("Index = %d, Status = %v", v2.Index, v2.TransactionStatusMeta.Status)
	}

	ev, err := processor.BuildTransactionEvent(info, 1)
	if err != nil {
		t.Fatalf("BuildTransactionEvent() error = %v", err)
	}
	if ev.ComputeUnitsPrice != 100 {
		t.Errorf("ComputeUnitsPrice = %d, want 100", ev.ComputeUnitsPrice)
	}
	if ev.IsSuccessful {
		t.Error("IsSuccessful = true, want false")
	}

	v0 := TransactionFixture{
		Signature:           sig(2).String(),
		Version:             TransactionVersion0,
		Header:              HeaderFixture{NumRequiredSignatures: 1},
		Accounts:            []string{key(1).String()},
		AddressTableLookups: []LookupFixture{{AccountKey: key(7).String(), WritableIndexes: []int{0}, ReadonlyIndexes: []int{1}}},
		LoadedWritable:      []string{key(5).String()},
		LoadedReadonly:      []string{key(6).String()},
	}
	info, err = v0.ToReplica()
	if err != nil {
		t.Fatalf("ToReplica() error = %v", err)
	}
	v3, ok := info.(*geyser.ReplicaTransactionInfoV3)
	if !ok {
		t.Fatalf("v0 ToReplica() = %T, want *ReplicaTransactionInfoV3", info)
	}
	msg := v3.Transaction.Message.(*geyser.V0Message)
	if len(msg.AddressTableLookups) != 1 || msg.AddressTableLookups[0].ReadonlyIndexes[0] != 1 {
		t.Errorf("AddressTableLookups = %+v", msg.AddressTableLookups)
	}
	if got := v3.TransactionStatusMeta.LoadedAddresses.Writable; len(got) != 1 || got[0] != key(5) {
		t.Errorf("LoadedAddresses.Writable = %v", got)
	}

	bad := TransactionFixture{Signature: sig(3).String(), Version: "1"}
	if _, err := bad.ToReplica(); err == nil {
		t.Error("ToReplica() with unknown version: want error")
	}
}

func TestAccountFixtureToReplica(t *testing.T) {
	acc := AccountFixture{
		Pubkey:       key(1).String(),
		Owner:        key(2).String(),
		Lamports:     7,
		Data:         "AQID",
		TxnSignature: sig(9).String(),
	}
	info, err := acc.ToReplica()
	if err != nil {
		t.Fatalf("ToReplica() error = %v", err)
	}
	if string(info.Data) != "\x01\x02\x03" {
		t.Errorf("Data = %v, want [1 2 3]", info.Data)
	}
	if info.Txn == nil || info.Txn.Signatures[0] != sig(9) {
		t.Errorf("Txn = %+v, want signature %s", info.Txn, sig(9))
	}

	acc.Owner = "not-base58!"
	if _, err := acc.ToReplica(); err == nil {
		t.Error("ToReplica() with bad owner: want error")
	}
}

func TestBlockFixtureToReplica(t *testing.T) {
	commission := uint8(5)
	partitions := uint64(3)
	b := BlockFixture{
		Slot:          11,
		ParentSlot:    10,
		BlockTime:     1700000000,
		NumPartitions: &partitions,
		Rewards: []RewardFixture{
			{Pubkey: key(1).String(), Lamports: 10, RewardType: "Voting", Commission: &commission},
			{Pubkey: key(2).String(), Lamports: -1, RewardType: "mystery"},
		},
	}
	info := b.ToReplica()
	if info.BlockTime == nil || *info.BlockTime != 1700000000 {
		t.Errorf("BlockTime = %v", info.BlockTime)
	}
	if info.BlockHeight != nil {
		t.Errorf("BlockHeight = %v, want nil", *info.BlockHeight)
	}
	if got := info.Rewards.Rewards[0].RewardType; got != geyser.RewardTypeVoting {
		t.Errorf("RewardType = %v, want voting", got)
	}
	if got := info.Rewards.Rewards[1].RewardType; got != geyser.RewardTypeNone {
		t.Errorf("RewardType = %v, want none", got)
	}
	if info.Rewards.NumPartitions == nil || *info.Rewards.NumPartitions != 3 {
		t.Errorf("NumPartitions = %v, want 3", info.Rewards.NumPartitions)
	}
}

func TestParseSlotStatus(t *testing.T) {
	for s := geyser.SlotProcessed; s <= geyser.SlotDead; s++ {
		got, err := ParseSlotStatus(s.String())
		if err != nil || got != s {
			t.Errorf("ParseSlotStatus(%q) = %v, %v; want %v", s.String(), got, err, s)
		}
	}
	if _, err := ParseSlotStatus("finalized"); err == nil {
		t.Error("ParseSlotStatus(finalized): want error")
	}
}
