// Package geyser defines the boundary between a validator host and the
// plugin: the raw replica structures the host hands over on every callback
// and the Plugin interface the host drives.
//
// Every raw structure is borrowed for the duration of one callback and must
// not be retained afterwards.
package geyser

import (
	"github.com/gagliardetto/solana-go"
)

// SlotStatus is the host's view of a slot's lifecycle.
type SlotStatus int

const (
	SlotProcessed SlotStatus = iota
	SlotRooted
	SlotConfirmed
	SlotFirstShredReceived
	SlotCompleted
	SlotCreatedBank
	SlotDead
)

func (s SlotStatus) String() string {
	switch s {
	case SlotProcessed:
		return "processed"
	case SlotRooted:
		return "rooted"
	case SlotConfirmed:
		return "confirmed"
	case SlotFirstShredReceived:
		return "first_shred_received"
	case SlotCompleted:
		return "completed"
	case SlotCreatedBank:
		return "created_bank"
	case SlotDead:
		return "dead"
	default:
		return "unknown"
	}
}

// ReplicaAccountInfo is one of *ReplicaAccountInfoV1, *ReplicaAccountInfoV2
// or *ReplicaAccountInfoV3.
type ReplicaAccountInfo interface {
	isReplicaAccountInfo()
}

// ReplicaAccountInfoV1 is the obsolete account layout. Hosts still on it
// are not supported.
type ReplicaAccountInfoV1 struct {
	Pubkey       []byte
	Owner        []byte
	Lamports     uint64
	Executable   bool
	RentEpoch    uint64
	Data         []byte
	WriteVersion uint64
}

type ReplicaAccountInfoV2 struct {
	Pubkey       []byte
	Owner        []byte
	Lamports     uint64
	Executable   bool
	RentEpoch    uint64
	Data         []byte
	WriteVersion uint64
	TxnSignature *solana.Signature
}

type ReplicaAccountInfoV3 struct {
	Pubkey       []byte
	Owner        []byte
	Lamports     uint64
	Executable   bool
	RentEpoch    uint64
	Data         []byte
	WriteVersion uint64
	Txn          *SanitizedTransaction
}

func (*ReplicaAccountInfoV1) isReplicaAccountInfo() {}
func (*ReplicaAccountInfoV2) isReplicaAccountInfo() {}
func (*ReplicaAccountInfoV3) isReplicaAccountInfo() {}

// ReplicaTransactionInfo is one of *ReplicaTransactionInfoV1,
// *ReplicaTransactionInfoV2 or *ReplicaTransactionInfoV3.
type ReplicaTransactionInfo interface {
	isReplicaTransactionInfo()
}

// ReplicaTransactionInfoV1 lacks the block index and is not supported.
type ReplicaTransactionInfoV1 struct {
	Signature             solana.Signature
	IsVote                bool
	Transaction           *SanitizedTransaction
	TransactionStatusMeta *TransactionStatusMeta
}

type ReplicaTransactionInfoV2 struct {
	Signature             solana.Signature
	IsVote                bool
	Transaction           *SanitizedTransaction
	TransactionStatusMeta *TransactionStatusMeta
	Index                 uint64
}

// ReplicaTransactionInfoV3 carries the transaction before address lookup
// resolution. Loaded addresses come from TransactionStatusMeta.
type ReplicaTransactionInfoV3 struct {
	Signature             solana.Signature
	MessageHash           solana.Hash
	IsVote                bool
	Transaction           *VersionedTransaction
	TransactionStatusMeta *TransactionStatusMeta
	Index                 uint64
}

func (*ReplicaTransactionInfoV1) isReplicaTransactionInfo() {}
func (*ReplicaTransactionInfoV2) isReplicaTransactionInfo() {}
func (*ReplicaTransactionInfoV3) isReplicaTransactionInfo() {}

// ReplicaBlockInfo is one of *ReplicaBlockInfoV1 through *ReplicaBlockInfoV4.
type ReplicaBlockInfo interface {
	isReplicaBlockInfo()
}

// ReplicaBlockInfoV1 has no parent linkage and is not supported.
type ReplicaBlockInfoV1 struct {
	Slot        uint64
	Blockhash   string
	Rewards     []Reward
	BlockTime   *int64
	BlockHeight *uint64
}

// ReplicaBlockInfoV2 has no entry count and is not supported.
type ReplicaBlockInfoV2 struct {
	ParentSlot               uint64
	ParentBlockhash          string
	Slot                     uint64
	Blockhash                string
	Rewards                  []Reward
	BlockTime                *int64
	BlockHeight              *uint64
	ExecutedTransactionCount uint64
}

type ReplicaBlockInfoV3 struct {
	ParentSlot               uint64
	ParentBlockhash          string
	Slot                     uint64
	Blockhash                string
	Rewards                  []Reward
	BlockTime                *int64
	BlockHeight              *uint64
	ExecutedTransactionCount uint64
	EntryCount               uint64
}

type ReplicaBlockInfoV4 struct {
	ParentSlot               uint64
	ParentBlockhash          string
	Slot                     uint64
	Blockhash                string
	Rewards                  RewardsAndNumPartitions
	BlockTime                *int64
	BlockHeight              *uint64
	ExecutedTransactionCount uint64
	EntryCount               uint64
}

func (*ReplicaBlockInfoV1) isReplicaBlockInfo() {}
func (*ReplicaBlockInfoV2) isReplicaBlockInfo() {}
func (*ReplicaBlockInfoV3) isReplicaBlockInfo() {}
func (*ReplicaBlockInfoV4) isReplicaBlockInfo() {}

type RewardsAndNumPartitions struct {
	Rewards       []Reward
	NumPartitions *uint64
}

type RewardType int

const (
	RewardTypeNone RewardType = iota
	RewardTypeFee
	RewardTypeRent
	RewardTypeStaking
	RewardTypeVoting
)

type Reward struct {
	Pubkey      string
	Lamports    int64
	PostBalance uint64
	RewardType  RewardType
	Commission  *uint8
}

// SanitizedTransaction is a transaction whose address lookups have been
// resolved by the host.
type SanitizedTransaction struct {
	MessageHash             solana.Hash
	IsSimpleVoteTransaction bool
	Message                 SanitizedMessage
	Signatures              []solana.Signature
}

// SanitizedMessage is either *LegacyMessage or *LoadedMessage.
type SanitizedMessage interface {
	isSanitizedMessage()
}

// VersionedTransaction is a transaction as it appeared on the wire.
type VersionedTransaction struct {
	Signatures []solana.Signature
	Message    VersionedMessage
}

// VersionedMessage is either *LegacyMessage or *V0Message.
type VersionedMessage interface {
	isVersionedMessage()
}

type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

type LegacyMessage struct {
	Header          MessageHeader
	AccountKeys     []solana.PublicKey
	RecentBlockhash solana.Hash
	Instructions    []CompiledInstruction
}

type MessageAddressTableLookup struct {
	AccountKey      solana.PublicKey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

type V0Message struct {
	Header              MessageHeader
	AccountKeys         []solana.PublicKey
	RecentBlockhash     solana.Hash
	Instructions        []CompiledInstruction
	AddressTableLookups []MessageAddressTableLookup
}

type LoadedAddresses struct {
	Writable []solana.PublicKey
	Readonly []solana.PublicKey
}

// LoadedMessage is a v0 message together with the addresses its lookup
// tables resolved to. IsWritableAccountCache is filled by hosts that
// precompute writability; it may be nil.
type LoadedMessage struct {
	Message                V0Message
	LoadedAddresses        LoadedAddresses
	IsWritableAccountCache []bool
}

func (*LegacyMessage) isSanitizedMessage() {}
func (*LoadedMessage) isSanitizedMessage() {}
func (*LegacyMessage) isVersionedMessage() {}
func (*V0Message) isVersionedMessage()     {}

// TransactionStatusMeta is the execution result of a transaction. A nil
// Status means the transaction succeeded.
type TransactionStatusMeta struct {
	Status               error
	Fee                  uint64
	PreBalances          []uint64
	PostBalances         []uint64
	InnerInstructions    []InnerInstructions
	LogMessages          []string
	PreTokenBalances     []TransactionTokenBalance
	PostTokenBalances    []TransactionTokenBalance
	Rewards              []Reward
	LoadedAddresses      LoadedAddresses
	ComputeUnitsConsumed *uint64
}

type InnerInstructions struct {
	Index        uint8
	Instructions []InnerInstruction
}

type InnerInstruction struct {
	Instruction CompiledInstruction
	StackHeight *uint32
}

type TransactionTokenBalance struct {
	AccountIndex  uint64
	Mint          string
	UiTokenAmount UiTokenAmount
	Owner         string
	ProgramID     string
}

type UiTokenAmount struct {
	UiAmount       *float64
	Decimals       uint8
	Amount         string
	UiAmountString string
}
