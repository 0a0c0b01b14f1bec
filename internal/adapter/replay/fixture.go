package replay

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/marko911/geyser-kafka/internal/geyser"
)

// ChainSolana is the only chain fixtures are recorded for.
const ChainSolana = "solana"

// Fixture types.
const (
	TypeBlock        = "block"
	TypeTransactions = "transactions"
	TypeAccounts     = "accounts"
	TypeSlots        = "slots"
)

// TransactionVersionLegacy and TransactionVersion0 are the recorded
// message versions.
const (
	TransactionVersionLegacy = "legacy"
	TransactionVersion0      = "0"
)

// Fixture is the envelope written by fixture-recorder.
type Fixture struct {
	Chain      string          `json:"chain"`
	Type       string          `json:"type"`
	RecordedAt time.Time       `json:"recorded_at"`
	Slot       uint64          `json:"slot,omitempty"`
	BlockHash  string          `json:"block_hash,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// BlockFixture is a recorded block's metadata.
type BlockFixture struct {
	Slot              uint64          `json:"slot"`
	Blockhash         string          `json:"blockhash"`
	PreviousBlockhash string          `json:"previous_blockhash"`
	ParentSlot        uint64          `json:"parent_slot"`
	BlockTime         int64           `json:"block_time,omitempty"`
	BlockHeight       uint64          `json:"block_height,omitempty"`
	Transactions      []string        `json:"transactions"`
	Rewards           []RewardFixture `json:"rewards,omitempty"`
	NumPartitions     *uint64         `json:"num_partitions,omitempty"`
	EntryCount        uint64          `json:"entry_count,omitempty"`
}

type RewardFixture struct {
	Pubkey      string `json:"pubkey"`
	Lamports    int64  `json:"lamports"`
	PostBalance uint64 `json:"post_balance"`
	RewardType  string `json:"reward_type,omitempty"`
	Commission  *uint8 `json:"commission,omitempty"`
}

// TransactionFixture is a recorded transaction with its status meta.
// Account and lookup indexes are ints so the JSON stays readable.
type TransactionFixture struct {
	Signature            string               `json:"signature"`
	Signatures           []string             `json:"signatures,omitempty"`
	Slot                 uint64               `json:"slot"`
	Index                uint64               `json:"index"`
	BlockTime            int64                `json:"block_time,omitempty"`
	Version              string               `json:"version,omitempty"`
	IsVote               bool                 `json:"is_vote,omitempty"`
	Err                  string               `json:"err,omitempty"`
	Fee                  uint64               `json:"fee"`
	Header               HeaderFixture        `json:"header"`
	Accounts             []string             `json:"accounts"`
	RecentBlockhash      string               `json:"recent_blockhash,omitempty"`
	Instructions         []InstructionFixture `json:"instructions,omitempty"`
	AddressTableLookups  []LookupFixture      `json:"address_table_lookups,omitempty"`
	LoadedWritable       []string             `json:"loaded_writable,omitempty"`
	LoadedReadonly       []string             `json:"loaded_readonly,omitempty"`
	LogMessages          []string             `json:"log_messages,omitempty"`
	PreBalances          []uint64             `json:"pre_balances,omitempty"`
	PostBalances         []uint64             `json:"post_balances,omitempty"`
	ComputeUnitsConsumed *uint64              `json:"compute_units_consumed,omitempty"`
}

type HeaderFixture struct {
	NumRequiredSignatures       uint8 `json:"num_required_signatures"`
	NumReadonlySignedAccounts   uint8 `json:"num_readonly_signed_accounts"`
	NumReadonlyUnsignedAccounts uint8 `json:"num_readonly_unsigned_accounts"`
}

// InstructionFixture holds base58 instruction data.
type InstructionFixture struct {
	ProgramIDIndex int    `json:"program_id_index"`
	Accounts       []int  `json:"accounts,omitempty"`
	Data           string `json:"data"`
}

type LookupFixture struct {
	AccountKey      string `json:"account_key"`
	WritableIndexes []int  `json:"writable_indexes,omitempty"`
	ReadonlyIndexes []int  `json:"readonly_indexes,omitempty"`
}

// AccountFixture holds base64 account data.
type AccountFixture struct {
	Pubkey       string `json:"pubkey"`
	Owner        string `json:"owner"`
	Lamports     uint64 `json:"lamports"`
	Executable   bool   `json:"executable"`
	RentEpoch    uint64 `json:"rent_epoch"`
	Data         string `json:"data,omitempty"`
	WriteVersion uint64 `json:"write_version"`
	Slot         uint64 `json:"slot"`
	IsStartup    bool   `json:"is_startup,omitempty"`
	TxnSignature string `json:"txn_signature,omitempty"`
}

// SlotFixture uses the slot status names of geyser.SlotStatus.String.
type SlotFixture struct {
	Slot   uint64  `json:"slot"`
	Parent *uint64 `json:"parent,omitempty"`
	Status string  `json:"status"`
}

// ToReplica converts the fixture into a V4 block notification.
func (b BlockFixture) ToReplica() *geyser.ReplicaBlockInfoV4 {
	rewards := make([]geyser.Reward, 0, len(b.Rewards))
	for _, r := range b.Rewards {
		rewards = append(rewards, geyser.Reward{
			Pubkey:      r.Pubkey,
			Lamports:    r.Lamports,
			PostBalance: r.PostBalance,
			RewardType:  parseRewardType(r.RewardType),
			Commission:  r.Commission,
		})
	}

	info := &geyser.ReplicaBlockInfoV4{
		ParentSlot:      b.ParentSlot,
		ParentBlockhash: b.PreviousBlockhash,
		Slot:            b.Slot,
		Blockhash:       b.Blockhash,
		Rewards: geyser.RewardsAndNumPartitions{
			Rewards:       rewards,
			NumPartitions: b.NumPartitions,
		},
		ExecutedTransactionCount: uint64(len(b.Transactions)),
		EntryCount:               b.EntryCount,
	}
	if b.BlockTime != 0 {
		t := b.BlockTime
		info.BlockTime = &t
	}
	if b.BlockHeight != 0 {
		h := b.BlockHeight
		info.BlockHeight = &h
	}
	return info
}

func parseRewardType(s string) geyser.RewardType {
	switch strings.ToLower(s) {
	case "fee":
		return geyser.RewardTypeFee
	case "rent":
		return geyser.RewardTypeRent
	case "staking":
		return geyser.RewardTypeStaking
	case "voting":
		return geyser.RewardTypeVoting
	default:
		return geyser.RewardTypeNone
	}
}

// ToReplica converts the fixture into a V2 notification for legacy
// transactions or a V3 notification for version 0 transactions.
func (t TransactionFixture) ToReplica() (geyser.ReplicaTransactionInfo, error) {
	sig, err := solana.SignatureFromBase58(t.Signature)
	if err != nil {
		return nil, fmt.Errorf("signature %q: %w", t.Signature, err)
	}
	sigs := []solana.Signature{sig}
	if len(t.Signatures) > 0 {
		if sigs, err = parseSignatures(t.Signatures); err != nil {
			return nil, err
		}
	}

	keys, err := parseKeys(t.Accounts)
	if err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	ixs, err := parseInstructions(t.Instructions)
	if err != nil {
		return nil, err
	}
	var blockhash solana.Hash
	if t.RecentBlockhash != "" {
		if blockhash, err = solana.HashFromBase58(t.RecentBlockhash); err != nil {
			return nil, fmt.Errorf("recent blockhash: %w", err)
		}
	}

	meta := &geyser.TransactionStatusMeta{
		Fee:                  t.Fee,
		PreBalances:          t.PreBalances,
		PostBalances:         t.PostBalances,
		LogMessages:          t.LogMessages,
		ComputeUnitsConsumed: t.ComputeUnitsConsumed,
	}
	if t.Err != "" {
		meta.Status = errors.New(t.Err)
	}

	header := geyser.MessageHeader{
		NumRequiredSignatures:       t.Header.NumRequiredSignatures,
		NumReadonlySignedAccounts:   t.Header.NumReadonlySignedAccounts,
		NumReadonlyUnsignedAccounts: t.Header.NumReadonlyUnsignedAccounts,
	}

	switch t.Version {
	case "", TransactionVersionLegacy:
		return &geyser.ReplicaTransactionInfoV2{
			Signature: sig,
			IsVote:    t.IsVote,
			Transaction: &geyser.SanitizedTransaction{
				IsSimpleVoteTransaction: t.IsVote,
				Message: &geyser.LegacyMessage{
					Header:          header,
					AccountKeys:     keys,
					RecentBlockhash: blockhash,
					Instructions:    ixs,
				},
				Signatures: sigs,
			},
			TransactionStatusMeta: meta,
			Index:                 t.Index,
		}, nil

	case TransactionVersion0:
		lookups, err := parseLookups(t.AddressTableLookups)
		if err != nil {
			return nil, err
		}
		if meta.LoadedAddresses.Writable, err = parseKeys(t.LoadedWritable); err != nil {
			return nil, fmt.Errorf("loaded writable: %w", err)
		}
		if meta.LoadedAddresses.Readonly, err = parseKeys(t.LoadedReadonly); err != nil {
			return nil, fmt.Errorf("loaded readonly: %w", err)
		}
		return &geyser.ReplicaTransactionInfoV3{
			Signature: sig,
			IsVote:    t.IsVote,
			Transaction: &geyser.VersionedTransaction{
				Signatures: sigs,
				Message: &geyser.V0Message{
					Header:              header,
					AccountKeys:         keys,
					RecentBlockhash:     blockhash,
					Instructions:        ixs,
					AddressTableLookups: lookups,
				},
			},
			TransactionStatusMeta: meta,
			Index:                 t.Index,
		}, nil

	default:
		return nil, fmt.Errorf("unknown transaction version %q", t.Version)
	}
}

// ToReplica converts the fixture into a V3 account notification.
func (a AccountFixture) ToReplica() (*geyser.ReplicaAccountInfoV3, error) {
	pubkey, err := solana.PublicKeyFromBase58(a.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("pubkey %q: %w", a.Pubkey, err)
	}
	owner, err := solana.PublicKeyFromBase58(a.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner %q: %w", a.Owner, err)
	}
	data, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}

	info := &geyser.ReplicaAccountInfoV3{
		Pubkey:       pubkey.Bytes(),
		Owner:        owner.Bytes(),
		Lamports:     a.Lamports,
		Executable:   a.Executable,
		RentEpoch:    a.RentEpoch,
		Data:         data,
		WriteVersion: a.WriteVersion,
	}
	if a.TxnSignature != "" {
		sig, err := solana.SignatureFromBase58(a.TxnSignature)
		if err != nil {
			return nil, fmt.Errorf("txn signature: %w", err)
		}
		info.Txn = &geyser.SanitizedTransaction{Signatures: []solana.Signature{sig}}
	}
	return info, nil
}

// ParseSlotStatus maps a status name back to a geyser.SlotStatus.
func ParseSlotStatus(s string) (geyser.SlotStatus, error) {
	for status := geyser.SlotProcessed; status <= geyser.SlotDead; status++ {
		if status.String() == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown slot status %q", s)
}

func parseKeys(addrs []string) ([]solana.PublicKey, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	keys := make([]solana.PublicKey, len(addrs))
	for i, addr := range addrs {
		k, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", addr, err)
		}
		keys[i] = k
	}
	return keys, nil
}

func parseSignatures(in []string) ([]solana.Signature, error) {
	sigs := make([]solana.Signature, len(in))
	for i, s := range in {
		sig, err := solana.SignatureFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("signature %q: %w", s, err)
		}
		sigs[i] = sig
	}
	return sigs, nil
}

func parseInstructions(in []InstructionFixture) ([]geyser.CompiledInstruction, error) {
	out := make([]geyser.CompiledInstruction, len(in))
	for i, ix := range in {
		data, err := base58.Decode(ix.Data)
		if err != nil {
			return nil, fmt.Errorf("instruction %d data: %w", i, err)
		}
		out[i] = geyser.CompiledInstruction{
			ProgramIDIndex: uint8(ix.ProgramIDIndex),
			Accounts:       toUint8(ix.Accounts),
			Data:           data,
		}
	}
	return out, nil
}

func parseLookups(in []LookupFixture) ([]geyser.MessageAddressTableLookup, error) {
	out := make([]geyser.MessageAddressTableLookup, len(in))
	for i, l := range in {
		k, err := solana.PublicKeyFromBase58(l.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("lookup table %q: %w", l.AccountKey, err)
		}
		out[i] = geyser.MessageAddressTableLookup{
			AccountKey:      k,
			WritableIndexes: toUint8(l.WritableIndexes),
			ReadonlyIndexes: toUint8(l.ReadonlyIndexes),
		}
	}
	return out, nil
}

func toUint8(in []int) []uint8 {
	if in == nil {
		return nil
	}
	out := make([]uint8, len(in))
	for i, v := range in {
		out[i] = uint8(v)
	}
	return out
}
