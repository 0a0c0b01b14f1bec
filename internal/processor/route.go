package processor

import (
	"github.com/gagliardetto/solana-go"

	"github.com/marko911/geyser-kafka/internal/geyser"
)

// AccountRoute holds the fields channels filter account updates on.
type AccountRoute struct {
	Pubkey []byte
	Owner  []byte
}

// RouteAccount extracts the filter fields of an account update without
// building the record.
func RouteAccount(info geyser.ReplicaAccountInfo) (AccountRoute, error) {
	switch a := info.(type) {
	case *geyser.ReplicaAccountInfoV2:
		return AccountRoute{Pubkey: a.Pubkey, Owner: a.Owner}, nil
	case *geyser.ReplicaAccountInfoV3:
		return AccountRoute{Pubkey: a.Pubkey, Owner: a.Owner}, nil
	default:
		return AccountRoute{}, unsupported("account", info)
	}
}

// TransactionRoute holds the fields channels filter transactions on.
// AccountKeys lists static keys followed by loaded writable and loaded
// readonly keys.
type TransactionRoute struct {
	IsVote      bool
	IsFailed    bool
	AccountKeys []solana.PublicKey
}

// RouteTransaction extracts the filter fields of a transaction without
// building the record.
func RouteTransaction(info geyser.ReplicaTransactionInfo) (TransactionRoute, error) {
	v, err := viewTransaction(info)
	if err != nil {
		return TransactionRoute{}, err
	}
	return TransactionRoute{
		IsVote:      v.isVote,
		IsFailed:    v.failed(),
		AccountKeys: v.accountKeys(),
	}, nil
}

// txView flattens the supported transaction variants into one shape.
type txView struct {
	signature    solana.Signature
	messageHash  solana.Hash
	isVote       bool
	isSimpleVote bool
	index        uint64
	signatures   []solana.Signature
	meta         *geyser.TransactionStatusMeta

	// Exactly one of legacy and v0 is set unless the host sent no message.
	legacy    *geyser.LegacyMessage
	v0        *geyser.V0Message
	loaded    geyser.LoadedAddresses
	hostCache []bool
}

func viewTransaction(info geyser.ReplicaTransactionInfo) (*txView, error) {
	switch t := info.(type) {
	case *geyser.ReplicaTransactionInfoV2:
		v := &txView{
			signature: t.Signature,
			isVote:    t.IsVote,
			index:     t.Index,
			meta:      t.TransactionStatusMeta,
		}
		if tx := t.Transaction; tx != nil {
			v.messageHash = tx.MessageHash
			v.isSimpleVote = tx.IsSimpleVoteTransaction
			v.signatures = tx.Signatures
			switch m := tx.Message.(type) {
			case *geyser.LegacyMessage:
				v.legacy = m
			case *geyser.LoadedMessage:
				v.v0 = &m.Message
				v.loaded = m.LoadedAddresses
				v.hostCache = m.IsWritableAccountCache
			}
		}
		return v, nil

	case *geyser.ReplicaTransactionInfoV3:
		v := &txView{
			signature:    t.Signature,
			messageHash:  t.MessageHash,
			isVote:       t.IsVote,
			isSimpleVote: t.IsVote,
			index:        t.Index,
			meta:         t.TransactionStatusMeta,
		}
		if tx := t.Transaction; tx != nil {
			v.signatures = tx.Signatures
			switch m := tx.Message.(type) {
			case *geyser.LegacyMessage:
				v.legacy = m
			case *geyser.V0Message:
				v.v0 = m
				if v.meta != nil {
					v.loaded = v.meta.LoadedAddresses
				}
			}
		}
		return v, nil

	default:
		return nil, unsupported("transaction", info)
	}
}

func (v *txView) failed() bool {
	return v.meta != nil && v.meta.Status != nil
}

func (v *txView) header() geyser.MessageHeader {
	switch {
	case v.legacy != nil:
		return v.legacy.Header
	case v.v0 != nil:
		return v.v0.Header
	}
	return geyser.MessageHeader{}
}

func (v *txView) staticKeys() []solana.PublicKey {
	switch {
	case v.legacy != nil:
		return v.legacy.AccountKeys
	case v.v0 != nil:
		return v.v0.AccountKeys
	}
	return nil
}

// accountKeys returns the full key list instruction indexes refer to.
func (v *txView) accountKeys() []solana.PublicKey {
	static := v.staticKeys()
	if v.v0 == nil || len(v.loaded.Writable)+len(v.loaded.Readonly) == 0 {
		return static
	}
	keys := make([]solana.PublicKey, 0, len(static)+len(v.loaded.Writable)+len(v.loaded.Readonly))
	keys = append(keys, static...)
	keys = append(keys, v.loaded.Writable...)
	keys = append(keys, v.loaded.Readonly...)
	return keys
}

func (v *txView) instructions() []geyser.CompiledInstruction {
	switch {
	case v.legacy != nil:
		return v.legacy.Instructions
	case v.v0 != nil:
		return v.v0.Instructions
	}
	return nil
}
