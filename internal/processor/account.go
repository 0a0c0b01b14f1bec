package processor

import (
	"github.com/marko911/geyser-kafka/internal/geyser"
	protov1 "github.com/marko911/geyser-kafka/pkg/proto/v1"
)

// BuildAccountEvent converts an account update into its canonical record.
func BuildAccountEvent(info geyser.ReplicaAccountInfo, slot uint64, isStartup bool) (*protov1.UpdateAccountEvent, error) {
	switch a := info.(type) {
	case *geyser.ReplicaAccountInfoV2:
		ev := &protov1.UpdateAccountEvent{
			Slot:         slot,
			Pubkey:       a.Pubkey,
			Lamports:     a.Lamports,
			Owner:        a.Owner,
			Executable:   a.Executable,
			RentEpoch:    a.RentEpoch,
			Data:         a.Data,
			WriteVersion: a.WriteVersion,
			AccountAge:   accountAge(slot, a.RentEpoch),
			IsStartup:    isStartup,
		}
		if a.TxnSignature != nil {
			ev.TxnSignature = a.TxnSignature[:]
		}
		return ev, nil

	case *geyser.ReplicaAccountInfoV3:
		ev := &protov1.UpdateAccountEvent{
			Slot:         slot,
			Pubkey:       a.Pubkey,
			Lamports:     a.Lamports,
			Owner:        a.Owner,
			Executable:   a.Executable,
			RentEpoch:    a.RentEpoch,
			Data:         a.Data,
			WriteVersion: a.WriteVersion,
			AccountAge:   accountAge(slot, a.RentEpoch),
			IsStartup:    isStartup,
		}
		if a.Txn != nil && len(a.Txn.Signatures) > 0 {
			ev.TxnSignature = a.Txn.Signatures[0][:]
		}
		return ev, nil

	default:
		return nil, unsupported("account", info)
	}
}

// accountAge is slot minus rent epoch, saturating at zero.
func accountAge(slot, rentEpoch uint64) uint64 {
	if slot <= rentEpoch {
		return 0
	}
	return slot - rentEpoch
}
