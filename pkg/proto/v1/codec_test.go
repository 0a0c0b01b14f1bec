package protov1

import (
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func u64(v uint64) *uint64   { return &v }
func i64(v int64) *int64     { return &v }
func u32(v uint32) *uint32   { return &v }
func f64(v float64) *float64 { return &v }

func key(fill byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill + byte(i)
	}
	return b
}

func sampleEvents() map[string]Event {
	return map[string]Event{
		"account": &UpdateAccountEvent{
			Slot:         300,
			Pubkey:       key(1, 32),
			Lamports:     1_000_000,
			Owner:        key(40, 32),
			Executable:   true,
			RentEpoch:    18446744073709551615,
			Data:         []byte{0xde, 0xad, 0xbe, 0xef},
			WriteVersion: 77,
			TxnSignature: key(9, 64),
			AccountAge:   12,
			IsStartup:    true,
		},
		"slot": &SlotStatusEvent{
			Slot:              501,
			Parent:            u64(0),
			Status:            SlotStatus_SLOT_STATUS_ROOTED,
			IsConfirmed:       true,
			ConfirmationCount: 2,
			StatusDescription: "The highest slot that has been fully confirmed and rooted.",
		},
		"transaction": &TransactionEvent{
			Signature: key(5, 64),
			IsVote:    false,
			Transaction: &SanitizedTransaction{
				MessageHash:             key(7, 32),
				IsSimpleVoteTransaction: false,
				Message: &SanitizedMessage{
					V0Loaded: &LoadedMessageV0{
						Message: &V0Message{
							Header:          &MessageHeader{NumRequiredSignatures: 1, NumReadonlyUnsignedAccounts: 1},
							AccountKeys:     [][]byte{key(1, 32), key(2, 32)},
							RecentBlockHash: key(3, 32),
							Instructions: []*CompiledInstruction{
								{ProgramIdIndex: 1, Accounts: []uint32{0, 2, 3}, Data: []byte{3, 100, 0, 0, 0, 0, 0, 0, 0}},
							},
							AddressTableLookups: []*MessageAddressTableLookup{
								{AccountKey: key(4, 32), WritableIndexes: []byte{1}, ReadonlyIndexes: []byte{2}},
							},
						},
						LoadedAddresses: &LoadedAddresses{
							Writable: [][]byte{key(10, 32)},
							Readonly: [][]byte{key(11, 32)},
						},
					},
				},
				Signatures: [][]byte{key(5, 64)},
			},
			TransactionStatusMeta: &TransactionStatusMeta{
				IsStatusErr:  true,
				ErrorInfo:    "InstructionError(0, Custom(1))",
				Fee:          5000,
				PreBalances:  []uint64{10, 0, 3},
				PostBalances: []uint64{5, 0, 3},
				InnerInstructions: []*InnerInstructions{
					{Index: 0, Instructions: []*InnerInstruction{
						{Instruction: &CompiledInstruction{ProgramIdIndex: 2, Data: []byte{1}}, StackHeight: u32(0)},
					}},
				},
				LogMessages: []string{"Program log: hi", "Program failed"},
				PreTokenBalances: []*TransactionTokenBalance{
					{AccountIndex: 2, Mint: "mint", Owner: "owner", ProgramId: "prog",
						UiTokenAmount: &UiTokenAmount{UiAmount: f64(1.5), Decimals: 6, Amount: "1500000", UiAmountString: "1.5"}},
				},
				Rewards: []*Reward{{Pubkey: "r", Lamports: -4, PostBalance: 9, RewardType: RewardType_REWARD_TYPE_RENT, Commission: "5"}},
			},
			Slot:                   42,
			Index:                  3,
			IsSuccessful:           false,
			ErrorDetails:           []string{"InstructionError(0, Custom(1))"},
			ErrorLogs:              []string{"InstructionError(0, Custom(1))"},
			ComputeUnitsConsumed:   1234,
			ComputeUnitsPrice:      100,
			IsWritableAccountCache: []bool{true, false, true, false},
		},
		"block": &BlockEvent{
			Slot:                     9,
			Blockhash:                "4sGjMW1sUnHzSxGspuhpqLDx6wiyjNtZAMdL4VZHirAn",
			Rewards:                  []*Reward{{Pubkey: "v", Lamports: 10, RewardType: RewardType_REWARD_TYPE_VOTING}},
			BlockTime:                i64(-1),
			BlockHeight:              u64(8),
			ParentSlot:               8,
			ParentBlockhash:          "11111111111111111111111111111111",
			ExecutedTransactionCount: 4,
			EntryCount:               64,
			NumPartitions:            u64(2),
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for name, ev := range sampleEvents() {
		t.Run(name, func(t *testing.T) {
			decoded := reflect.New(reflect.TypeOf(ev).Elem()).Interface().(Event)
			if err := decoded.Unmarshal(ev.Marshal()); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !reflect.DeepEqual(decoded, ev) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, ev)
			}
		})
	}
}

func TestMessageWrapperRoundTrip(t *testing.T) {
	for name, ev := range sampleEvents() {
		t.Run(name, func(t *testing.T) {
			wrapped := &MessageWrapper{EventMessage: ev}

			var got MessageWrapper
			if err := got.Unmarshal(wrapped.Marshal()); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if reflect.TypeOf(got.EventMessage) != reflect.TypeOf(ev) {
				t.Fatalf("wrapped type = %T, want %T", got.EventMessage, ev)
			}
			if !reflect.DeepEqual(got.EventMessage, ev) {
				t.Errorf("wrapped event mismatch:\n got %+v\nwant %+v", got.EventMessage, ev)
			}
		})
	}
}

func TestMessageWrapperFieldNumbers(t *testing.T) {
	tests := []struct {
		ev   Event
		want protowire.Number
	}{
		{&UpdateAccountEvent{Slot: 1}, 1},
		{&SlotStatusEvent{Slot: 1}, 2},
		{&TransactionEvent{Slot: 1}, 3},
		{&BlockEvent{Slot: 1}, 4},
	}

	for _, tt := range tests {
		b := (&MessageWrapper{EventMessage: tt.ev}).Marshal()
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			t.Fatalf("ConsumeTag() = %d", n)
		}
		if num != tt.want || typ != protowire.BytesType {
			t.Errorf("%T wrapped as field %d type %d, want field %d bytes", tt.ev, num, typ, tt.want)
		}
	}
}

func TestEmptyWrapper(t *testing.T) {
	var w MessageWrapper
	err := w.Unmarshal(nil)
	if !errors.Is(err, ErrEmptyWrapper) {
		t.Errorf("Unmarshal(nil) error = %v, want %v", err, ErrEmptyWrapper)
	}
}

func TestUnknownFieldsSkipped(t *testing.T) {
	ev := &SlotStatusEvent{Slot: 7, Status: SlotStatus_SLOT_STATUS_CONFIRMED, IsConfirmed: true, ConfirmationCount: 1}
	b := ev.Marshal()
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "added by a newer writer")
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 12345)
	b = protowire.AppendTag(b, 101, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 1)

	var got SlotStatusEvent
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(&got, ev) {
		t.Errorf("got %+v, want %+v", got, ev)
	}
}

func TestUnpackedRepeatedAccepted(t *testing.T) {
	var b []byte
	for _, v := range []bool{true, false, true} {
		b = protowire.AppendTag(b, 12, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(v))
	}

	var got TransactionEvent
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := []bool{true, false, true}
	if !reflect.DeepEqual(got.IsWritableAccountCache, want) {
		t.Errorf("IsWritableAccountCache = %v, want %v", got.IsWritableAccountCache, want)
	}
}

func TestTruncatedInput(t *testing.T) {
	b := (&UpdateAccountEvent{Pubkey: key(1, 32)}).Marshal()

	var got UpdateAccountEvent
	if err := got.Unmarshal(b[:len(b)-4]); err == nil {
		t.Error("expected error for truncated input, got nil")
	}
}

func TestZeroValuesOmitted(t *testing.T) {
	if b := (&UpdateAccountEvent{}).Marshal(); len(b) != 0 {
		t.Errorf("empty account encoded to %d bytes, want 0", len(b))
	}
	if b := (&SlotStatusEvent{Parent: u64(0)}).Marshal(); len(b) == 0 {
		t.Error("set optional parent was not encoded")
	}
}

func TestSlotStatusString(t *testing.T) {
	if got := SlotStatus_SLOT_STATUS_DEAD.String(); got != "SLOT_STATUS_DEAD" {
		t.Errorf("String() = %q, want SLOT_STATUS_DEAD", got)
	}
	if got := SlotStatus(42).String(); got != "SLOT_STATUS_UNKNOWN" {
		t.Errorf("String() = %q, want SLOT_STATUS_UNKNOWN", got)
	}
}
