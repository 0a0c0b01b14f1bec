package protov1

// SlotStatus mirrors the validator's slot lifecycle states.
type SlotStatus int32

const (
	SlotStatus_SLOT_STATUS_PROCESSED            SlotStatus = 0
	SlotStatus_SLOT_STATUS_ROOTED               SlotStatus = 1
	SlotStatus_SLOT_STATUS_CONFIRMED            SlotStatus = 2
	SlotStatus_SLOT_STATUS_FIRST_SHRED_RECEIVED SlotStatus = 3
	SlotStatus_SLOT_STATUS_COMPLETED            SlotStatus = 4
	SlotStatus_SLOT_STATUS_CREATED_BANK         SlotStatus = 5
	SlotStatus_SLOT_STATUS_DEAD                 SlotStatus = 6
)

var slotStatusNames = map[SlotStatus]string{
	SlotStatus_SLOT_STATUS_PROCESSED:            "SLOT_STATUS_PROCESSED",
	SlotStatus_SLOT_STATUS_ROOTED:               "SLOT_STATUS_ROOTED",
	SlotStatus_SLOT_STATUS_CONFIRMED:            "SLOT_STATUS_CONFIRMED",
	SlotStatus_SLOT_STATUS_FIRST_SHRED_RECEIVED: "SLOT_STATUS_FIRST_SHRED_RECEIVED",
	SlotStatus_SLOT_STATUS_COMPLETED:            "SLOT_STATUS_COMPLETED",
	SlotStatus_SLOT_STATUS_CREATED_BANK:         "SLOT_STATUS_CREATED_BANK",
	SlotStatus_SLOT_STATUS_DEAD:                 "SLOT_STATUS_DEAD",
}

func (s SlotStatus) String() string {
	if name, ok := slotStatusNames[s]; ok {
		return name
	}
	return "SLOT_STATUS_UNKNOWN"
}

type RewardType int32

const (
	RewardType_REWARD_TYPE_UNSPECIFIED RewardType = 0
	RewardType_REWARD_TYPE_FEE         RewardType = 1
	RewardType_REWARD_TYPE_RENT        RewardType = 2
	RewardType_REWARD_TYPE_STAKING     RewardType = 3
	RewardType_REWARD_TYPE_VOTING      RewardType = 4
)

// Event is implemented by every canonical record that can be published
// on its own or inside a MessageWrapper.
type Event interface {
	Marshal() []byte
	Unmarshal(b []byte) error
	isEvent()
}

type UpdateAccountEvent struct {
	Slot         uint64
	Pubkey       []byte
	Lamports     uint64
	Owner        []byte
	Executable   bool
	RentEpoch    uint64
	Data         []byte
	WriteVersion uint64
	TxnSignature []byte
	AccountAge   uint64
	IsStartup    bool
}

type SlotStatusEvent struct {
	Slot              uint64
	Parent            *uint64
	Status            SlotStatus
	IsConfirmed       bool
	ConfirmationCount uint32
	StatusDescription string
}

type TransactionEvent struct {
	Signature              []byte
	IsVote                 bool
	Transaction            *SanitizedTransaction
	TransactionStatusMeta  *TransactionStatusMeta
	Slot                   uint64
	Index                  uint64
	IsSuccessful           bool
	ErrorDetails           []string
	ErrorLogs              []string
	ComputeUnitsConsumed   uint64
	ComputeUnitsPrice      uint64
	IsWritableAccountCache []bool
}

type BlockEvent struct {
	Slot                     uint64
	Blockhash                string
	Rewards                  []*Reward
	BlockTime                *int64
	BlockHeight              *uint64
	ParentSlot               uint64
	ParentBlockhash          string
	ExecutedTransactionCount uint64
	EntryCount               uint64
	NumPartitions            *uint64
}

// MessageWrapper carries exactly one Event; the field number of the
// populated member identifies the event kind on the wire.
type MessageWrapper struct {
	EventMessage Event
}

type SanitizedTransaction struct {
	MessageHash             []byte
	IsSimpleVoteTransaction bool
	Message                 *SanitizedMessage
	Signatures              [][]byte
}

// SanitizedMessage holds either Legacy or V0Loaded, never both.
type SanitizedMessage struct {
	Legacy   *LegacyMessage
	V0Loaded *LoadedMessageV0
}

type LegacyMessage struct {
	Header          *MessageHeader
	AccountKeys     [][]byte
	RecentBlockHash []byte
	Instructions    []*CompiledInstruction
}

type V0Message struct {
	Header              *MessageHeader
	AccountKeys         [][]byte
	RecentBlockHash     []byte
	Instructions        []*CompiledInstruction
	AddressTableLookups []*MessageAddressTableLookup
}

type LoadedMessageV0 struct {
	Message         *V0Message
	LoadedAddresses *LoadedAddresses
}

type MessageHeader struct {
	NumRequiredSignatures       uint32
	NumReadonlySignedAccounts   uint32
	NumReadonlyUnsignedAccounts uint32
}

type CompiledInstruction struct {
	ProgramIdIndex uint32
	Accounts       []uint32
	Data           []byte
}

type MessageAddressTableLookup struct {
	AccountKey      []byte
	WritableIndexes []byte
	ReadonlyIndexes []byte
}

type LoadedAddresses struct {
	Writable [][]byte
	Readonly [][]byte
}

type TransactionStatusMeta struct {
	IsStatusErr       bool
	ErrorInfo         string
	Fee               uint64
	PreBalances       []uint64
	PostBalances      []uint64
	InnerInstructions []*InnerInstructions
	LogMessages       []string
	PreTokenBalances  []*TransactionTokenBalance
	PostTokenBalances []*TransactionTokenBalance
	Rewards           []*Reward
}

type InnerInstructions struct {
	Index        uint32
	Instructions []*InnerInstruction
}

type InnerInstruction struct {
	Instruction *CompiledInstruction
	StackHeight *uint32
}

type TransactionTokenBalance struct {
	AccountIndex  uint32
	Mint          string
	UiTokenAmount *UiTokenAmount
	Owner         string
	ProgramId     string
}

type UiTokenAmount struct {
	UiAmount       *float64
	Decimals       uint32
	Amount         string
	UiAmountString string
}

type Reward struct {
	Pubkey      string
	Lamports    int64
	PostBalance uint64
	RewardType  RewardType
	Commission  string
}

func (*UpdateAccountEvent) isEvent() {}
func (*SlotStatusEvent) isEvent()    {}
func (*TransactionEvent) isEvent()   {}
func (*BlockEvent) isEvent()         {}
