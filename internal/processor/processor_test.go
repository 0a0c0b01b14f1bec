package processor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/marko911/geyser-kafka/internal/geyser"
	protov1 "github.com/marko911/geyser-kafka/pkg/proto/v1"
)

func key(b byte) solana.PublicKey {
	var pk solana.PublicKey
	pk[0] = b
	pk[31] = b
	return pk
}

func u64(v uint64) *uint64 { return &v }

func legacyTx(keys []solana.PublicKey, header geyser.MessageHeader, ixs ...geyser.CompiledInstruction) *geyser.ReplicaTransactionInfoV2 {
	var sig solana.Signature
	sig[0] = 7
	return &geyser.ReplicaTransactionInfoV2{
		Signature: sig,
		Transaction: &geyser.SanitizedTransaction{
			Message: &geyser.LegacyMessage{
				Header:       header,
				AccountKeys:  keys,
				Instructions: ixs,
			},
			Signatures: []solana.Signature{sig},
		},
		TransactionStatusMeta: &geyser.TransactionStatusMeta{Fee: 5000},
		Index:                 3,
	}
}

func TestComputeUnitsPrice(t *testing.T) {
	keys := []solana.PublicKey{key(1), ComputeBudgetProgramID}
	header := geyser.MessageHeader{NumRequiredSignatures: 1}

	tests := []struct {
		name string
		ixs  []geyser.CompiledInstruction
		want uint64
	}{
		{
			name: "set price",
			ixs:  []geyser.CompiledInstruction{{ProgramIDIndex: 1, Data: []byte{3, 100, 0, 0, 0, 0, 0, 0, 0}}},
			want: 100,
		},
		{
			name: "trailing bytes ignored",
			ixs:  []geyser.CompiledInstruction{{ProgramIDIndex: 1, Data: []byte{3, 1, 2, 0, 0, 0, 0, 0, 0, 9, 9}}},
			want: 0x0201,
		},
		{
			name: "no compute budget instruction",
			ixs:  []geyser.CompiledInstruction{{ProgramIDIndex: 0, Data: []byte{3, 100, 0, 0, 0, 0, 0, 0, 0}}},
			want: 0,
		},
		{
			name: "set limit is not a price",
			ixs:  []geyser.CompiledInstruction{{ProgramIDIndex: 1, Data: []byte{2, 0x40, 0x0d, 0x03, 0}}},
			want: 0,
		},
		{
			name: "short data",
			ixs:  []geyser.CompiledInstruction{{ProgramIDIndex: 1, Data: []byte{3, 100, 0, 0}}},
			want: 0,
		},
		{
			name: "first match wins",
			ixs: []geyser.CompiledInstruction{
				{ProgramIDIndex: 1, Data: []byte{2, 1, 0, 0, 0}},
				{ProgramIDIndex: 1, Data: []byte{3, 7, 0, 0, 0, 0, 0, 0, 0}},
				{ProgramIDIndex: 1, Data: []byte{3, 8, 0, 0, 0, 0, 0, 0, 0}},
			},
			want: 7,
		},
		{
			name: "out of range program index",
			ixs:  []geyser.CompiledInstruction{{ProgramIDIndex: 9, Data: []byte{3, 100, 0, 0, 0, 0, 0, 0, 0}}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := BuildTransactionEvent(legacyTx(keys, header, tt.ixs...), 10)
			if err != nil {
				t.Fatalf("BuildTransactionEvent() error = %v", err)
			}
			if ev.ComputeUnitsPrice != tt.want {
				t.Errorf("ComputeUnitsPrice = %d, want %d", ev.ComputeUnitsPrice, tt.want)
			}
		})
	}
}

func TestWritableAccountCacheLegacy(t *testing.T) {
	keys := []solana.PublicKey{key(1), key(2), key(3), key(4), key(5)}
	header := geyser.MessageHeader{
		NumRequiredSignatures:       2,
		NumReadonlySignedAccounts:   1,
		NumReadonlyUnsignedAccounts: 1,
	}

	ev, err := BuildTransactionEvent(legacyTx(keys, header), 1)
	if err != nil {
		t.Fatalf("BuildTransactionEvent() error = %v", err)
	}

	want := []bool{true, true, false, true, true}
	if !reflect.DeepEqual(ev.IsWritableAccountCache, want) {
		t.Errorf("IsWritableAccountCache = %v, want %v", ev.IsWritableAccountCache, want)
	}
}

func TestWritableAccountCacheCoversLastIndex(t *testing.T) {
	for n := 1; n <= 8; n++ {
		keys := make([]solana.PublicKey, n)
		for i := range keys {
			keys[i] = key(byte(i + 1))
		}
		ev, err := BuildTransactionEvent(legacyTx(keys, geyser.MessageHeader{NumRequiredSignatures: 1}), 1)
		if err != nil {
			t.Fatalf("BuildTransactionEvent() error = %v", err)
		}
		if len(ev.IsWritableAccountCache) != n {
			t.Errorf("len(IsWritableAccountCache) = %d, want %d", len(ev.IsWritableAccountCache), n)
		}
	}
}

func TestV0AccountKeysAndWritability(t *testing.T) {
	static := []solana.PublicKey{key(1), key(2)}
	loaded := geyser.LoadedAddresses{
		Writable: []solana.PublicKey{key(10)},
		Readonly: []solana.PublicKey{key(20), key(21)},
	}
	info := &geyser.ReplicaTransactionInfoV3{
		IsVote: false,
		Transaction: &geyser.VersionedTransaction{
			Message: &geyser.V0Message{
				Header:      geyser.MessageHeader{NumRequiredSignatures: 1},
				AccountKeys: static,
			},
		},
		TransactionStatusMeta: &geyser.TransactionStatusMeta{LoadedAddresses: loaded},
	}

	route, err := RouteTransaction(info)
	if err != nil {
		t.Fatalf("RouteTransaction() error = %v", err)
	}
	wantKeys := []solana.PublicKey{key(1), key(2), key(10), key(20), key(21)}
	if !reflect.DeepEqual(route.AccountKeys, wantKeys) {
		t.Errorf("AccountKeys = %v, want %v", route.AccountKeys, wantKeys)
	}

	ev, err := BuildTransactionEvent(info, 1)
	if err != nil {
		t.Fatalf("BuildTransactionEvent() error = %v", err)
	}
	want := []bool{true, true, true, false, false}
	if !reflect.DeepEqual(ev.IsWritableAccountCache, want) {
		t.Errorf("IsWritableAccountCache = %v, want %v", ev.IsWritableAccountCache, want)
	}
	if ev.Transaction.Message.V0Loaded == nil {
		t.Fatal("V0Loaded = nil, want v0 payload")
	}
	if got := len(ev.Transaction.Message.V0Loaded.LoadedAddresses.Readonly); got != 2 {
		t.Errorf("len(LoadedAddresses.Readonly) = %d, want 2", got)
	}
}

func TestV0HostCachePreferred(t *testing.T) {
	cache := []bool{false, true, false}
	info := &geyser.ReplicaTransactionInfoV2{
		Transaction: &geyser.SanitizedTransaction{
			Message: &geyser.LoadedMessage{
				Message: geyser.V0Message{
					Header:      geyser.MessageHeader{NumRequiredSignatures: 1},
					AccountKeys: []solana.PublicKey{key(1), key(2)},
				},
				LoadedAddresses:        geyser.LoadedAddresses{Readonly: []solana.PublicKey{key(3)}},
				IsWritableAccountCache: cache,
			},
		},
	}

	ev, err := BuildTransactionEvent(info, 1)
	if err != nil {
		t.Fatalf("BuildTransactionEvent() error = %v", err)
	}
	if !reflect.DeepEqual(ev.IsWritableAccountCache, cache) {
		t.Errorf("IsWritableAccountCache = %v, want %v", ev.IsWritableAccountCache, cache)
	}
}

func TestTransactionStatus(t *testing.T) {
	ok := legacyTx([]solana.PublicKey{key(1)}, geyser.MessageHeader{NumRequiredSignatures: 1})
	ok.TransactionStatusMeta.ComputeUnitsConsumed = u64(1400)

	ev, err := BuildTransactionEvent(ok, 1)
	if err != nil {
		t.Fatalf("BuildTransactionEvent() error = %v", err)
	}
	if !ev.IsSuccessful || ev.ErrorDetails != nil || ev.ErrorLogs != nil {
		t.Errorf("ok transaction: IsSuccessful=%v ErrorDetails=%v ErrorLogs=%v", ev.IsSuccessful, ev.ErrorDetails, ev.ErrorLogs)
	}
	if ev.ComputeUnitsConsumed != 1400 {
		t.Errorf("ComputeUnitsConsumed = %d, want 1400", ev.ComputeUnitsConsumed)
	}
	if ev.Index != 3 || ev.Slot != 1 {
		t.Errorf("Index, Slot = %d, %d, want 3, 1", ev.Index, ev.Slot)
	}

	failed := legacyTx([]solana.PublicKey{key(1)}, geyser.MessageHeader{NumRequiredSignatures: 1})
	failed.TransactionStatusMeta.Status = errors.New("InstructionError(0, Custom(1))")

	ev, err = BuildTransactionEvent(failed, 1)
	if err != nil {
		t.Fatalf("BuildTransactionEvent() error = %v", err)
	}
	want := []string{"InstructionError(0, Custom(1))"}
	if ev.IsSuccessful {
		t.Error("IsSuccessful = true, want false")
	}
	if !reflect.DeepEqual(ev.ErrorDetails, want) || !reflect.DeepEqual(ev.ErrorLogs, want) {
		t.Errorf("ErrorDetails = %v, ErrorLogs = %v, want %v", ev.ErrorDetails, ev.ErrorLogs, want)
	}
	if ev.ComputeUnitsConsumed != 0 {
		t.Errorf("ComputeUnitsConsumed = %d, want 0", ev.ComputeUnitsConsumed)
	}
	if !ev.TransactionStatusMeta.IsStatusErr || ev.TransactionStatusMeta.ErrorInfo != want[0] {
		t.Errorf("meta status = %v %q", ev.TransactionStatusMeta.IsStatusErr, ev.TransactionStatusMeta.ErrorInfo)
	}
}

func TestSlotStatusEvent(t *testing.T) {
	tests := []struct {
		status    geyser.SlotStatus
		want      protov1.SlotStatus
		confirmed bool
		count     uint32
	}{
		{geyser.SlotProcessed, protov1.SlotStatus_SLOT_STATUS_PROCESSED, false, 0},
		{geyser.SlotRooted, protov1.SlotStatus_SLOT_STATUS_ROOTED, true, 2},
		{geyser.SlotConfirmed, protov1.SlotStatus_SLOT_STATUS_CONFIRMED, true, 1},
		{geyser.SlotFirstShredReceived, protov1.SlotStatus_SLOT_STATUS_FIRST_SHRED_RECEIVED, false, 0},
		{geyser.SlotCompleted, protov1.SlotStatus_SLOT_STATUS_COMPLETED, false, 1},
		{geyser.SlotCreatedBank, protov1.SlotStatus_SLOT_STATUS_CREATED_BANK, false, 0},
		{geyser.SlotDead, protov1.SlotStatus_SLOT_STATUS_DEAD, false, 0},
	}

	seen := make(map[string]bool)
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			ev := BuildSlotStatusEvent(42, u64(41), tt.status)
			if ev.Status != tt.want {
				t.Errorf("Status = %v, want %v", ev.Status, tt.want)
			}
			if ev.IsConfirmed != tt.confirmed {
				t.Errorf("IsConfirmed = %v, want %v", ev.IsConfirmed, tt.confirmed)
			}
			if ev.ConfirmationCount != tt.count {
				t.Errorf("ConfirmationCount = %d, want %d", ev.ConfirmationCount, tt.count)
			}
			if ev.StatusDescription == "" || seen[ev.StatusDescription] {
				t.Errorf("StatusDescription %q is empty or shared", ev.StatusDescription)
			}
			seen[ev.StatusDescription] = true
			if ev.Parent == nil || *ev.Parent != 41 {
				t.Errorf("Parent = %v, want 41", ev.Parent)
			}
		})
	}
}

func TestSlotStatusRootedScenario(t *testing.T) {
	ev := BuildSlotStatusEvent(100, nil, geyser.SlotRooted)
	if !ev.IsConfirmed || ev.ConfirmationCount != 2 || ev.Parent != nil {
		t.Errorf("rooted event = %+v", ev)
	}
}

func TestAccountEvent(t *testing.T) {
	var sig solana.Signature
	sig[0] = 9
	owner := key(1)
	pubkey := key(2)

	tests := []struct {
		name    string
		info    geyser.ReplicaAccountInfo
		slot    uint64
		wantAge uint64
		wantSig []byte
	}{
		{
			name:    "v2 with signature",
			info:    &geyser.ReplicaAccountInfoV2{Pubkey: pubkey[:], Owner: owner[:], RentEpoch: 10, TxnSignature: &sig},
			slot:    15,
			wantAge: 5,
			wantSig: sig[:],
		},
		{
			name:    "v2 rent epoch ahead of slot",
			info:    &geyser.ReplicaAccountInfoV2{Pubkey: pubkey[:], Owner: owner[:], RentEpoch: 18446744073709551615},
			slot:    15,
			wantAge: 0,
		},
		{
			name:    "v3 with transaction",
			info:    &geyser.ReplicaAccountInfoV3{Pubkey: pubkey[:], Owner: owner[:], Txn: &geyser.SanitizedTransaction{Signatures: []solana.Signature{sig}}},
			slot:    3,
			wantAge: 3,
			wantSig: sig[:],
		},
		{
			name:    "v3 without transaction",
			info:    &geyser.ReplicaAccountInfoV3{Pubkey: pubkey[:], Owner: owner[:]},
			slot:    3,
			wantAge: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := BuildAccountEvent(tt.info, tt.slot, true)
			if err != nil {
				t.Fatalf("BuildAccountEvent() error = %v", err)
			}
			if ev.AccountAge != tt.wantAge {
				t.Errorf("AccountAge = %d, want %d", ev.AccountAge, tt.wantAge)
			}
			if !reflect.DeepEqual(ev.TxnSignature, tt.wantSig) {
				t.Errorf("TxnSignature = %x, want %x", ev.TxnSignature, tt.wantSig)
			}
			if !ev.IsStartup || ev.Slot != tt.slot {
				t.Errorf("IsStartup, Slot = %v, %d", ev.IsStartup, ev.Slot)
			}
		})
	}
}

func TestBlockEvent(t *testing.T) {
	commission := uint8(7)
	rewards := []geyser.Reward{{Pubkey: "v", Lamports: -5, RewardType: geyser.RewardTypeVoting, Commission: &commission}}

	ev, err := BuildBlockEvent(&geyser.ReplicaBlockInfoV4{
		Slot:       9,
		Blockhash:  "4sGjMW1sUnHzSxGspuhpqLDx6wiyjNtZAMdL4VZHirAn",
		ParentSlot: 8,
		Rewards:    geyser.RewardsAndNumPartitions{Rewards: rewards, NumPartitions: u64(4)},
		EntryCount: 12,
	})
	if err != nil {
		t.Fatalf("BuildBlockEvent() error = %v", err)
	}
	if ev.NumPartitions == nil || *ev.NumPartitions != 4 {
		t.Errorf("NumPartitions = %v, want 4", ev.NumPartitions)
	}
	if ev.EntryCount != 12 || ev.ParentSlot != 8 {
		t.Errorf("EntryCount, ParentSlot = %d, %d", ev.EntryCount, ev.ParentSlot)
	}
	if len(ev.Rewards) != 1 || ev.Rewards[0].Commission != "7" || ev.Rewards[0].RewardType != protov1.RewardType_REWARD_TYPE_VOTING {
		t.Errorf("Rewards = %+v", ev.Rewards)
	}

	ev, err = BuildBlockEvent(&geyser.ReplicaBlockInfoV3{Slot: 9, EntryCount: 1})
	if err != nil {
		t.Fatalf("BuildBlockEvent(v3) error = %v", err)
	}
	if ev.NumPartitions != nil {
		t.Errorf("NumPartitions = %v, want nil", ev.NumPartitions)
	}
}

func TestUnsupportedVersions(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"account v1", func() error {
			_, err := BuildAccountEvent(&geyser.ReplicaAccountInfoV1{}, 1, false)
			return err
		}},
		{"route account v1", func() error {
			_, err := RouteAccount(&geyser.ReplicaAccountInfoV1{})
			return err
		}},
		{"transaction v1", func() error {
			_, err := BuildTransactionEvent(&geyser.ReplicaTransactionInfoV1{}, 1)
			return err
		}},
		{"route transaction v1", func() error {
			_, err := RouteTransaction(&geyser.ReplicaTransactionInfoV1{})
			return err
		}},
		{"block v1", func() error {
			_, err := BuildBlockEvent(&geyser.ReplicaBlockInfoV1{})
			return err
		}},
		{"block v2", func() error {
			_, err := BuildBlockEvent(&geyser.ReplicaBlockInfoV2{})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, ErrUnsupportedVersion) {
				t.Fatalf("error = %v, want ErrUnsupportedVersion", err)
			}
			var uv *UnsupportedVersionError
			if !errors.As(err, &uv) || uv.Variant == "" {
				t.Errorf("error = %#v, want *UnsupportedVersionError with variant", err)
			}
		})
	}
}

func TestBuiltEventEncodes(t *testing.T) {
	info := legacyTx([]solana.PublicKey{key(1), ComputeBudgetProgramID}, geyser.MessageHeader{NumRequiredSignatures: 1},
		geyser.CompiledInstruction{ProgramIDIndex: 1, Accounts: []uint8{0}, Data: []byte{3, 100, 0, 0, 0, 0, 0, 0, 0}})

	ev, err := BuildTransactionEvent(info, 77)
	if err != nil {
		t.Fatalf("BuildTransactionEvent() error = %v", err)
	}

	var decoded protov1.TransactionEvent
	if err := decoded.Unmarshal(ev.Marshal()); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.ComputeUnitsPrice != 100 || decoded.Slot != 77 {
		t.Errorf("decoded price, slot = %d, %d", decoded.ComputeUnitsPrice, decoded.Slot)
	}
	if got := len(decoded.Transaction.Message.Legacy.AccountKeys); got != 2 {
		t.Errorf("len(AccountKeys) = %d, want 2", got)
	}
}
