package processor

import (
	"strconv"

	"github.com/marko911/geyser-kafka/internal/geyser"
	protov1 "github.com/marko911/geyser-kafka/pkg/proto/v1"
)

// BuildBlockEvent converts block metadata into its canonical record. Only
// variants that carry the entry count are supported.
func BuildBlockEvent(info geyser.ReplicaBlockInfo) (*protov1.BlockEvent, error) {
	switch b := info.(type) {
	case *geyser.ReplicaBlockInfoV3:
		return &protov1.BlockEvent{
			Slot:                     b.Slot,
			Blockhash:                b.Blockhash,
			Rewards:                  buildRewards(b.Rewards),
			BlockTime:                b.BlockTime,
			BlockHeight:              b.BlockHeight,
			ParentSlot:               b.ParentSlot,
			ParentBlockhash:          b.ParentBlockhash,
			ExecutedTransactionCount: b.ExecutedTransactionCount,
			EntryCount:               b.EntryCount,
		}, nil
	case *geyser.ReplicaBlockInfoV4:
		return &protov1.BlockEvent{
			Slot:                     b.Slot,
			Blockhash:                b.Blockhash,
			Rewards:                  buildRewards(b.Rewards.Rewards),
			BlockTime:                b.BlockTime,
			BlockHeight:              b.BlockHeight,
			ParentSlot:               b.ParentSlot,
			ParentBlockhash:          b.ParentBlockhash,
			ExecutedTransactionCount: b.ExecutedTransactionCount,
			EntryCount:               b.EntryCount,
			NumPartitions:            b.Rewards.NumPartitions,
		}, nil
	default:
		return nil, unsupported("block", info)
	}
}

func buildRewards(rewards []geyser.Reward) []*protov1.Reward {
	if len(rewards) == 0 {
		return nil
	}
	out := make([]*protov1.Reward, len(rewards))
	for i, r := range rewards {
		out[i] = &protov1.Reward{
			Pubkey:      r.Pubkey,
			Lamports:    r.Lamports,
			PostBalance: r.PostBalance,
			RewardType:  protov1.RewardType(r.RewardType),
		}
		if r.Commission != nil {
			out[i].Commission = strconv.Itoa(int(*r.Commission))
		}
	}
	return out
}
