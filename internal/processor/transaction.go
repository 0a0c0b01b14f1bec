package processor

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/marko911/geyser-kafka/internal/geyser"
	protov1 "github.com/marko911/geyser-kafka/pkg/proto/v1"
)

// ComputeBudgetProgramID is the native program that carries compute unit
// limit and price instructions.
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

const setComputeUnitPrice = 3

// BuildTransactionEvent converts a transaction notification into its
// canonical record.
func BuildTransactionEvent(info geyser.ReplicaTransactionInfo, slot uint64) (*protov1.TransactionEvent, error) {
	v, err := viewTransaction(info)
	if err != nil {
		return nil, err
	}

	keys := v.accountKeys()
	ev := &protov1.TransactionEvent{
		Signature:              v.signature[:],
		IsVote:                 v.isVote,
		Transaction:            buildSanitizedTransaction(v),
		TransactionStatusMeta:  buildStatusMeta(v.meta),
		Slot:                   slot,
		Index:                  v.index,
		IsSuccessful:           !v.failed(),
		ComputeUnitsPrice:      computeUnitsPrice(v.instructions(), keys),
		IsWritableAccountCache: writableAccountCache(v, len(keys)),
	}
	if v.failed() {
		msg := v.meta.Status.Error()
		ev.ErrorDetails = []string{msg}
		ev.ErrorLogs = []string{msg}
	}
	if v.meta != nil && v.meta.ComputeUnitsConsumed != nil {
		ev.ComputeUnitsConsumed = *v.meta.ComputeUnitsConsumed
	}
	return ev, nil
}

// computeUnitsPrice returns the price set by the first SetComputeUnitPrice
// instruction, or 0 when there is none.
func computeUnitsPrice(ixs []geyser.CompiledInstruction, keys []solana.PublicKey) uint64 {
	for _, ix := range ixs {
		idx := int(ix.ProgramIDIndex)
		if idx >= len(keys) || keys[idx] != ComputeBudgetProgramID {
			continue
		}
		if len(ix.Data) >= 9 && ix.Data[0] == setComputeUnitPrice {
			return binary.LittleEndian.Uint64(ix.Data[1:9])
		}
	}
	return 0
}

// writableAccountCache reports writability for every index in the full key
// list.
func writableAccountCache(v *txView, n int) []bool {
	if n == 0 {
		return nil
	}
	if v.v0 != nil && len(v.hostCache) == n {
		return v.hostCache
	}

	h := v.header()
	signed := int(h.NumRequiredSignatures)
	readonlySigned := int(h.NumReadonlySignedAccounts)
	static := len(v.staticKeys())

	cache := make([]bool, n)
	for i := 0; i < n; i++ {
		switch {
		case i < signed:
			cache[i] = true
		case i < signed+readonlySigned:
			cache[i] = false
		case i < static || v.v0 == nil:
			cache[i] = true
		default:
			cache[i] = i < static+len(v.loaded.Writable)
		}
	}
	return cache
}

func buildSanitizedTransaction(v *txView) *protov1.SanitizedTransaction {
	if v.legacy == nil && v.v0 == nil && len(v.signatures) == 0 {
		return nil
	}
	tx := &protov1.SanitizedTransaction{
		MessageHash:             v.messageHash[:],
		IsSimpleVoteTransaction: v.isSimpleVote,
		Signatures:              signaturesToBytes(v.signatures),
	}
	switch {
	case v.legacy != nil:
		tx.Message = &protov1.SanitizedMessage{Legacy: &protov1.LegacyMessage{
			Header:          buildHeader(v.legacy.Header),
			AccountKeys:     keysToBytes(v.legacy.AccountKeys),
			RecentBlockHash: v.legacy.RecentBlockhash[:],
			Instructions:    buildInstructions(v.legacy.Instructions),
		}}
	case v.v0 != nil:
		tx.Message = &protov1.SanitizedMessage{V0Loaded: &protov1.LoadedMessageV0{
			Message: &protov1.V0Message{
				Header:              buildHeader(v.v0.Header),
				AccountKeys:         keysToBytes(v.v0.AccountKeys),
				RecentBlockHash:     v.v0.RecentBlockhash[:],
				Instructions:        buildInstructions(v.v0.Instructions),
				AddressTableLookups: buildLookups(v.v0.AddressTableLookups),
			},
			LoadedAddresses: &protov1.LoadedAddresses{
				Writable: keysToBytes(v.loaded.Writable),
				Readonly: keysToBytes(v.loaded.Readonly),
			},
		}}
	}
	return tx
}

func buildHeader(h geyser.MessageHeader) *protov1.MessageHeader {
	return &protov1.MessageHeader{
		NumRequiredSignatures:       uint32(h.NumRequiredSignatures),
		NumReadonlySignedAccounts:   uint32(h.NumReadonlySignedAccounts),
		NumReadonlyUnsignedAccounts: uint32(h.NumReadonlyUnsignedAccounts),
	}
}

func buildInstruction(ix geyser.CompiledInstruction) *protov1.CompiledInstruction {
	accounts := make([]uint32, len(ix.Accounts))
	for i, a := range ix.Accounts {
		accounts[i] = uint32(a)
	}
	return &protov1.CompiledInstruction{
		ProgramIdIndex: uint32(ix.ProgramIDIndex),
		Accounts:       accounts,
		Data:           ix.Data,
	}
}

func buildInstructions(ixs []geyser.CompiledInstruction) []*protov1.CompiledInstruction {
	if len(ixs) == 0 {
		return nil
	}
	out := make([]*protov1.CompiledInstruction, len(ixs))
	for i := range ixs {
		out[i] = buildInstruction(ixs[i])
	}
	return out
}

func buildLookups(lookups []geyser.MessageAddressTableLookup) []*protov1.MessageAddressTableLookup {
	if len(lookups) == 0 {
		return nil
	}
	out := make([]*protov1.MessageAddressTableLookup, len(lookups))
	for i := range lookups {
		out[i] = &protov1.MessageAddressTableLookup{
			AccountKey:      lookups[i].AccountKey[:],
			WritableIndexes: lookups[i].WritableIndexes,
			ReadonlyIndexes: lookups[i].ReadonlyIndexes,
		}
	}
	return out
}

func buildStatusMeta(m *geyser.TransactionStatusMeta) *protov1.TransactionStatusMeta {
	if m == nil {
		return nil
	}
	meta := &protov1.TransactionStatusMeta{
		IsStatusErr:       m.Status != nil,
		Fee:               m.Fee,
		PreBalances:       m.PreBalances,
		PostBalances:      m.PostBalances,
		LogMessages:       m.LogMessages,
		PreTokenBalances:  buildTokenBalances(m.PreTokenBalances),
		PostTokenBalances: buildTokenBalances(m.PostTokenBalances),
		Rewards:           buildRewards(m.Rewards),
	}
	if m.Status != nil {
		meta.ErrorInfo = m.Status.Error()
	}
	for _, inner := range m.InnerInstructions {
		ii := &protov1.InnerInstructions{Index: uint32(inner.Index)}
		for _, ix := range inner.Instructions {
			ii.Instructions = append(ii.Instructions, &protov1.InnerInstruction{
				Instruction: buildInstruction(ix.Instruction),
				StackHeight: ix.StackHeight,
			})
		}
		meta.InnerInstructions = append(meta.InnerInstructions, ii)
	}
	return meta
}

func buildTokenBalances(balances []geyser.TransactionTokenBalance) []*protov1.TransactionTokenBalance {
	if len(balances) == 0 {
		return nil
	}
	out := make([]*protov1.TransactionTokenBalance, len(balances))
	for i, b := range balances {
		out[i] = &protov1.TransactionTokenBalance{
			AccountIndex: uint32(b.AccountIndex),
			Mint:         b.Mint,
			UiTokenAmount: &protov1.UiTokenAmount{
				UiAmount:       b.UiTokenAmount.UiAmount,
				Decimals:       uint32(b.UiTokenAmount.Decimals),
				Amount:         b.UiTokenAmount.Amount,
				UiAmountString: b.UiTokenAmount.UiAmountString,
			},
			Owner:     b.Owner,
			ProgramId: b.ProgramID,
		}
	}
	return out
}

func keysToBytes(keys []solana.PublicKey) [][]byte {
	if len(keys) == 0 {
		return nil
	}
	out := make([][]byte, len(keys))
	for i := range keys {
		out[i] = keys[i][:]
	}
	return out
}

func signaturesToBytes(sigs []solana.Signature) [][]byte {
	if len(sigs) == 0 {
		return nil
	}
	out := make([][]byte, len(sigs))
	for i := range sigs {
		out[i] = sigs[i][:]
	}
	return out
}
