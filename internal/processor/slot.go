package processor

import (
	"github.com/marko911/geyser-kafka/internal/geyser"
	protov1 "github.com/marko911/geyser-kafka/pkg/proto/v1"
)

var slotStatuses = map[geyser.SlotStatus]struct {
	status      protov1.SlotStatus
	description string
}{
	geyser.SlotProcessed: {
		protov1.SlotStatus_SLOT_STATUS_PROCESSED,
		"The highest slot of the heaviest fork processed by the node.",
	},
	geyser.SlotRooted: {
		protov1.SlotStatus_SLOT_STATUS_ROOTED,
		"The highest slot having reached max vote lockout.",
	},
	geyser.SlotConfirmed: {
		protov1.SlotStatus_SLOT_STATUS_CONFIRMED,
		"The highest slot that has been voted on by a supermajority of the cluster.",
	},
	geyser.SlotFirstShredReceived: {
		protov1.SlotStatus_SLOT_STATUS_FIRST_SHRED_RECEIVED,
		"The first shred of the slot has been received.",
	},
	geyser.SlotCompleted: {
		protov1.SlotStatus_SLOT_STATUS_COMPLETED,
		"All shreds of the slot have been received.",
	},
	geyser.SlotCreatedBank: {
		protov1.SlotStatus_SLOT_STATUS_CREATED_BANK,
		"A bank for the slot has been created.",
	},
	geyser.SlotDead: {
		protov1.SlotStatus_SLOT_STATUS_DEAD,
		"The slot has been marked dead and will not be replayed.",
	},
}

// BuildSlotStatusEvent converts a slot status transition into its canonical
// record.
func BuildSlotStatusEvent(slot uint64, parent *uint64, status geyser.SlotStatus) *protov1.SlotStatusEvent {
	ev := &protov1.SlotStatusEvent{
		Slot:              slot,
		Parent:            parent,
		IsConfirmed:       status == geyser.SlotConfirmed || status == geyser.SlotRooted,
		ConfirmationCount: confirmationCount(status),
	}
	if s, ok := slotStatuses[status]; ok {
		ev.Status = s.status
		ev.StatusDescription = s.description
	} else {
		ev.Status = protov1.SlotStatus(status)
		ev.StatusDescription = "Unknown slot status."
	}
	return ev
}

func confirmationCount(status geyser.SlotStatus) uint32 {
	switch status {
	case geyser.SlotRooted:
		return 2
	case geyser.SlotConfirmed, geyser.SlotCompleted:
		return 1
	default:
		return 0
	}
}
