package protov1

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

func (e *UpdateAccountEvent) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, e.Slot)
	b = appendBytesField(b, 2, e.Pubkey)
	b = appendVarintField(b, 3, e.Lamports)
	b = appendBytesField(b, 4, e.Owner)
	b = appendBoolField(b, 5, e.Executable)
	b = appendVarintField(b, 6, e.RentEpoch)
	b = appendBytesField(b, 7, e.Data)
	b = appendVarintField(b, 8, e.WriteVersion)
	b = appendBytesField(b, 9, e.TxnSignature)
	b = appendVarintField(b, 10, e.AccountAge)
	b = appendBoolField(b, 11, e.IsStartup)
	return b
}

func (e *UpdateAccountEvent) Unmarshal(b []byte) error {
	*e = UpdateAccountEvent{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readUint64(typ, b, &e.Slot), nil
		case 2:
			return readBytes(typ, b, &e.Pubkey), nil
		case 3:
			return readUint64(typ, b, &e.Lamports), nil
		case 4:
			return readBytes(typ, b, &e.Owner), nil
		case 5:
			return readBool(typ, b, &e.Executable), nil
		case 6:
			return readUint64(typ, b, &e.RentEpoch), nil
		case 7:
			return readBytes(typ, b, &e.Data), nil
		case 8:
			return readUint64(typ, b, &e.WriteVersion), nil
		case 9:
			return readBytes(typ, b, &e.TxnSignature), nil
		case 10:
			return readUint64(typ, b, &e.AccountAge), nil
		case 11:
			return readBool(typ, b, &e.IsStartup), nil
		}
		return 0, nil
	})
}

func (e *SlotStatusEvent) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, e.Slot)
	b = appendOptionalUint64(b, 2, e.Parent)
	b = appendVarintField(b, 3, uint64(e.Status))
	b = appendBoolField(b, 4, e.IsConfirmed)
	b = appendVarintField(b, 5, uint64(e.ConfirmationCount))
	b = appendStringField(b, 6, e.StatusDescription)
	return b
}

func (e *SlotStatusEvent) Unmarshal(b []byte) error {
	*e = SlotStatusEvent{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readUint64(typ, b, &e.Slot), nil
		case 2:
			return readOptionalUint64(typ, b, &e.Parent), nil
		case 3:
			var v uint32
			n := readUint32(typ, b, &v)
			e.Status = SlotStatus(v)
			return n, nil
		case 4:
			return readBool(typ, b, &e.IsConfirmed), nil
		case 5:
			return readUint32(typ, b, &e.ConfirmationCount), nil
		case 6:
			return readString(typ, b, &e.StatusDescription), nil
		}
		return 0, nil
	})
}

func (e *TransactionEvent) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, e.Signature)
	b = appendBoolField(b, 2, e.IsVote)
	if e.Transaction != nil {
		b = appendMessageField(b, 3, e.Transaction.Marshal())
	}
	if e.TransactionStatusMeta != nil {
		b = appendMessageField(b, 4, e.TransactionStatusMeta.Marshal())
	}
	b = appendVarintField(b, 5, e.Slot)
	b = appendVarintField(b, 6, e.Index)
	b = appendBoolField(b, 7, e.IsSuccessful)
	b = appendRepeatedString(b, 8, e.ErrorDetails)
	b = appendRepeatedString(b, 9, e.ErrorLogs)
	b = appendVarintField(b, 10, e.ComputeUnitsConsumed)
	b = appendVarintField(b, 11, e.ComputeUnitsPrice)
	b = appendPackedBool(b, 12, e.IsWritableAccountCache)
	return b
}

func (e *TransactionEvent) Unmarshal(b []byte) error {
	*e = TransactionEvent{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readBytes(typ, b, &e.Signature), nil
		case 2:
			return readBool(typ, b, &e.IsVote), nil
		case 3:
			e.Transaction = &SanitizedTransaction{}
			return readMessage(typ, b, e.Transaction)
		case 4:
			e.TransactionStatusMeta = &TransactionStatusMeta{}
			return readMessage(typ, b, e.TransactionStatusMeta)
		case 5:
			return readUint64(typ, b, &e.Slot), nil
		case 6:
			return readUint64(typ, b, &e.Index), nil
		case 7:
			return readBool(typ, b, &e.IsSuccessful), nil
		case 8:
			return readRepeatedString(typ, b, &e.ErrorDetails), nil
		case 9:
			return readRepeatedString(typ, b, &e.ErrorLogs), nil
		case 10:
			return readUint64(typ, b, &e.ComputeUnitsConsumed), nil
		case 11:
			return readUint64(typ, b, &e.ComputeUnitsPrice), nil
		case 12:
			return readRepeatedBool(typ, b, &e.IsWritableAccountCache), nil
		}
		return 0, nil
	})
}

func (e *BlockEvent) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, e.Slot)
	b = appendStringField(b, 2, e.Blockhash)
	for _, r := range e.Rewards {
		b = appendMessageField(b, 3, r.Marshal())
	}
	b = appendOptionalInt64(b, 4, e.BlockTime)
	b = appendOptionalUint64(b, 5, e.BlockHeight)
	b = appendVarintField(b, 6, e.ParentSlot)
	b = appendStringField(b, 7, e.ParentBlockhash)
	b = appendVarintField(b, 8, e.ExecutedTransactionCount)
	b = appendVarintField(b, 9, e.EntryCount)
	b = appendOptionalUint64(b, 10, e.NumPartitions)
	return b
}

func (e *BlockEvent) Unmarshal(b []byte) error {
	*e = BlockEvent{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readUint64(typ, b, &e.Slot), nil
		case 2:
			return readString(typ, b, &e.Blockhash), nil
		case 3:
			r := &Reward{}
			n, err := readMessage(typ, b, r)
			if n > 0 {
				e.Rewards = append(e.Rewards, r)
			}
			return n, err
		case 4:
			return readOptionalInt64(typ, b, &e.BlockTime), nil
		case 5:
			return readOptionalUint64(typ, b, &e.BlockHeight), nil
		case 6:
			return readUint64(typ, b, &e.ParentSlot), nil
		case 7:
			return readString(typ, b, &e.ParentBlockhash), nil
		case 8:
			return readUint64(typ, b, &e.ExecutedTransactionCount), nil
		case 9:
			return readUint64(typ, b, &e.EntryCount), nil
		case 10:
			return readOptionalUint64(typ, b, &e.NumPartitions), nil
		}
		return 0, nil
	})
}

// Marshal encodes the wrapper. A wrapper without an event encodes to an
// empty message.
func (w *MessageWrapper) Marshal() []byte {
	switch ev := w.EventMessage.(type) {
	case *UpdateAccountEvent:
		return appendMessageField(nil, 1, ev.Marshal())
	case *SlotStatusEvent:
		return appendMessageField(nil, 2, ev.Marshal())
	case *TransactionEvent:
		return appendMessageField(nil, 3, ev.Marshal())
	case *BlockEvent:
		return appendMessageField(nil, 4, ev.Marshal())
	}
	return nil
}

func (w *MessageWrapper) Unmarshal(b []byte) error {
	*w = MessageWrapper{}
	err := decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var ev Event
		switch num {
		case 1:
			ev = &UpdateAccountEvent{}
		case 2:
			ev = &SlotStatusEvent{}
		case 3:
			ev = &TransactionEvent{}
		case 4:
			ev = &BlockEvent{}
		default:
			return 0, nil
		}
		n, err := readMessage(typ, b, ev)
		if n > 0 && err == nil {
			w.EventMessage = ev
		}
		return n, err
	})
	if err != nil {
		return fmt.Errorf("decode message wrapper: %w", err)
	}
	if w.EventMessage == nil {
		return ErrEmptyWrapper
	}
	return nil
}

func (t *SanitizedTransaction) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, t.MessageHash)
	b = appendBoolField(b, 2, t.IsSimpleVoteTransaction)
	if t.Message != nil {
		b = appendMessageField(b, 3, t.Message.Marshal())
	}
	b = appendRepeatedBytes(b, 4, t.Signatures)
	return b
}

func (t *SanitizedTransaction) Unmarshal(b []byte) error {
	*t = SanitizedTransaction{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readBytes(typ, b, &t.MessageHash), nil
		case 2:
			return readBool(typ, b, &t.IsSimpleVoteTransaction), nil
		case 3:
			t.Message = &SanitizedMessage{}
			return readMessage(typ, b, t.Message)
		case 4:
			return readRepeatedBytes(typ, b, &t.Signatures), nil
		}
		return 0, nil
	})
}

func (m *SanitizedMessage) Marshal() []byte {
	switch {
	case m.Legacy != nil:
		return appendMessageField(nil, 1, m.Legacy.Marshal())
	case m.V0Loaded != nil:
		return appendMessageField(nil, 2, m.V0Loaded.Marshal())
	}
	return nil
}

func (m *SanitizedMessage) Unmarshal(b []byte) error {
	*m = SanitizedMessage{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			legacy := &LegacyMessage{}
			n, err := readMessage(typ, b, legacy)
			if n > 0 {
				m.Legacy, m.V0Loaded = legacy, nil
			}
			return n, err
		case 2:
			loaded := &LoadedMessageV0{}
			n, err := readMessage(typ, b, loaded)
			if n > 0 {
				m.Legacy, m.V0Loaded = nil, loaded
			}
			return n, err
		}
		return 0, nil
	})
}

func (m *LegacyMessage) Marshal() []byte {
	var b []byte
	if m.Header != nil {
		b = appendMessageField(b, 1, m.Header.Marshal())
	}
	b = appendRepeatedBytes(b, 2, m.AccountKeys)
	b = appendBytesField(b, 3, m.RecentBlockHash)
	for _, ix := range m.Instructions {
		b = appendMessageField(b, 4, ix.Marshal())
	}
	return b
}

func (m *LegacyMessage) Unmarshal(b []byte) error {
	*m = LegacyMessage{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			m.Header = &MessageHeader{}
			return readMessage(typ, b, m.Header)
		case 2:
			return readRepeatedBytes(typ, b, &m.AccountKeys), nil
		case 3:
			return readBytes(typ, b, &m.RecentBlockHash), nil
		case 4:
			ix := &CompiledInstruction{}
			n, err := readMessage(typ, b, ix)
			if n > 0 {
				m.Instructions = append(m.Instructions, ix)
			}
			return n, err
		}
		return 0, nil
	})
}

func (m *V0Message) Marshal() []byte {
	var b []byte
	if m.Header != nil {
		b = appendMessageField(b, 1, m.Header.Marshal())
	}
	b = appendRepeatedBytes(b, 2, m.AccountKeys)
	b = appendBytesField(b, 3, m.RecentBlockHash)
	for _, ix := range m.Instructions {
		b = appendMessageField(b, 4, ix.Marshal())
	}
	for _, l := range m.AddressTableLookups {
		b = appendMessageField(b, 5, l.Marshal())
	}
	return b
}

func (m *V0Message) Unmarshal(b []byte) error {
	*m = V0Message{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			m.Header = &MessageHeader{}
			return readMessage(typ, b, m.Header)
		case 2:
			return readRepeatedBytes(typ, b, &m.AccountKeys), nil
		case 3:
			return readBytes(typ, b, &m.RecentBlockHash), nil
		case 4:
			ix := &CompiledInstruction{}
			n, err := readMessage(typ, b, ix)
			if n > 0 {
				m.Instructions = append(m.Instructions, ix)
			}
			return n, err
		case 5:
			l := &MessageAddressTableLookup{}
			n, err := readMessage(typ, b, l)
			if n > 0 {
				m.AddressTableLookups = append(m.AddressTableLookups, l)
			}
			return n, err
		}
		return 0, nil
	})
}

func (m *LoadedMessageV0) Marshal() []byte {
	var b []byte
	if m.Message != nil {
		b = appendMessageField(b, 1, m.Message.Marshal())
	}
	if m.LoadedAddresses != nil {
		b = appendMessageField(b, 2, m.LoadedAddresses.Marshal())
	}
	return b
}

func (m *LoadedMessageV0) Unmarshal(b []byte) error {
	*m = LoadedMessageV0{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			m.Message = &V0Message{}
			return readMessage(typ, b, m.Message)
		case 2:
			m.LoadedAddresses = &LoadedAddresses{}
			return readMessage(typ, b, m.LoadedAddresses)
		}
		return 0, nil
	})
}

func (h *MessageHeader) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(h.NumRequiredSignatures))
	b = appendVarintField(b, 2, uint64(h.NumReadonlySignedAccounts))
	b = appendVarintField(b, 3, uint64(h.NumReadonlyUnsignedAccounts))
	return b
}

func (h *MessageHeader) Unmarshal(b []byte) error {
	*h = MessageHeader{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readUint32(typ, b, &h.NumRequiredSignatures), nil
		case 2:
			return readUint32(typ, b, &h.NumReadonlySignedAccounts), nil
		case 3:
			return readUint32(typ, b, &h.NumReadonlyUnsignedAccounts), nil
		}
		return 0, nil
	})
}

func (ix *CompiledInstruction) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(ix.ProgramIdIndex))
	b = appendPackedUint32(b, 2, ix.Accounts)
	b = appendBytesField(b, 3, ix.Data)
	return b
}

func (ix *CompiledInstruction) Unmarshal(b []byte) error {
	*ix = CompiledInstruction{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readUint32(typ, b, &ix.ProgramIdIndex), nil
		case 2:
			return readRepeatedUint32(typ, b, &ix.Accounts), nil
		case 3:
			return readBytes(typ, b, &ix.Data), nil
		}
		return 0, nil
	})
}

func (l *MessageAddressTableLookup) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, l.AccountKey)
	b = appendBytesField(b, 2, l.WritableIndexes)
	b = appendBytesField(b, 3, l.ReadonlyIndexes)
	return b
}

func (l *MessageAddressTableLookup) Unmarshal(b []byte) error {
	*l = MessageAddressTableLookup{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readBytes(typ, b, &l.AccountKey), nil
		case 2:
			return readBytes(typ, b, &l.WritableIndexes), nil
		case 3:
			return readBytes(typ, b, &l.ReadonlyIndexes), nil
		}
		return 0, nil
	})
}

func (a *LoadedAddresses) Marshal() []byte {
	var b []byte
	b = appendRepeatedBytes(b, 1, a.Writable)
	b = appendRepeatedBytes(b, 2, a.Readonly)
	return b
}

func (a *LoadedAddresses) Unmarshal(b []byte) error {
	*a = LoadedAddresses{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readRepeatedBytes(typ, b, &a.Writable), nil
		case 2:
			return readRepeatedBytes(typ, b, &a.Readonly), nil
		}
		return 0, nil
	})
}

func (m *TransactionStatusMeta) Marshal() []byte {
	var b []byte
	b = appendBoolField(b, 1, m.IsStatusErr)
	b = appendStringField(b, 2, m.ErrorInfo)
	b = appendVarintField(b, 3, m.Fee)
	b = appendPackedUint64(b, 4, m.PreBalances)
	b = appendPackedUint64(b, 5, m.PostBalances)
	for _, inner := range m.InnerInstructions {
		b = appendMessageField(b, 6, inner.Marshal())
	}
	b = appendRepeatedString(b, 7, m.LogMessages)
	for _, tb := range m.PreTokenBalances {
		b = appendMessageField(b, 8, tb.Marshal())
	}
	for _, tb := range m.PostTokenBalances {
		b = appendMessageField(b, 9, tb.Marshal())
	}
	for _, r := range m.Rewards {
		b = appendMessageField(b, 10, r.Marshal())
	}
	return b
}

func (m *TransactionStatusMeta) Unmarshal(b []byte) error {
	*m = TransactionStatusMeta{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readBool(typ, b, &m.IsStatusErr), nil
		case 2:
			return readString(typ, b, &m.ErrorInfo), nil
		case 3:
			return readUint64(typ, b, &m.Fee), nil
		case 4:
			return readRepeatedUint64(typ, b, &m.PreBalances), nil
		case 5:
			return readRepeatedUint64(typ, b, &m.PostBalances), nil
		case 6:
			inner := &InnerInstructions{}
			n, err := readMessage(typ, b, inner)
			if n > 0 {
				m.InnerInstructions = append(m.InnerInstructions, inner)
			}
			return n, err
		case 7:
			return readRepeatedString(typ, b, &m.LogMessages), nil
		case 8, 9:
			tb := &TransactionTokenBalance{}
			n, err := readMessage(typ, b, tb)
			if n > 0 {
				if num == 8 {
					m.PreTokenBalances = append(m.PreTokenBalances, tb)
				} else {
					m.PostTokenBalances = append(m.PostTokenBalances, tb)
				}
			}
			return n, err
		case 10:
			r := &Reward{}
			n, err := readMessage(typ, b, r)
			if n > 0 {
				m.Rewards = append(m.Rewards, r)
			}
			return n, err
		}
		return 0, nil
	})
}

func (in *InnerInstructions) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(in.Index))
	for _, ix := range in.Instructions {
		b = appendMessageField(b, 2, ix.Marshal())
	}
	return b
}

func (in *InnerInstructions) Unmarshal(b []byte) error {
	*in = InnerInstructions{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readUint32(typ, b, &in.Index), nil
		case 2:
			ix := &InnerInstruction{}
			n, err := readMessage(typ, b, ix)
			if n > 0 {
				in.Instructions = append(in.Instructions, ix)
			}
			return n, err
		}
		return 0, nil
	})
}

func (ix *InnerInstruction) Marshal() []byte {
	var b []byte
	if ix.Instruction != nil {
		b = appendMessageField(b, 1, ix.Instruction.Marshal())
	}
	b = appendOptionalUint32(b, 2, ix.StackHeight)
	return b
}

func (ix *InnerInstruction) Unmarshal(b []byte) error {
	*ix = InnerInstruction{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			ix.Instruction = &CompiledInstruction{}
			return readMessage(typ, b, ix.Instruction)
		case 2:
			return readOptionalUint32(typ, b, &ix.StackHeight), nil
		}
		return 0, nil
	})
}

func (tb *TransactionTokenBalance) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(tb.AccountIndex))
	b = appendStringField(b, 2, tb.Mint)
	if tb.UiTokenAmount != nil {
		b = appendMessageField(b, 3, tb.UiTokenAmount.Marshal())
	}
	b = appendStringField(b, 4, tb.Owner)
	b = appendStringField(b, 5, tb.ProgramId)
	return b
}

func (tb *TransactionTokenBalance) Unmarshal(b []byte) error {
	*tb = TransactionTokenBalance{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readUint32(typ, b, &tb.AccountIndex), nil
		case 2:
			return readString(typ, b, &tb.Mint), nil
		case 3:
			tb.UiTokenAmount = &UiTokenAmount{}
			return readMessage(typ, b, tb.UiTokenAmount)
		case 4:
			return readString(typ, b, &tb.Owner), nil
		case 5:
			return readString(typ, b, &tb.ProgramId), nil
		}
		return 0, nil
	})
}

func (u *UiTokenAmount) Marshal() []byte {
	var b []byte
	b = appendOptionalDouble(b, 1, u.UiAmount)
	b = appendVarintField(b, 2, uint64(u.Decimals))
	b = appendStringField(b, 3, u.Amount)
	b = appendStringField(b, 4, u.UiAmountString)
	return b
}

func (u *UiTokenAmount) Unmarshal(b []byte) error {
	*u = UiTokenAmount{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readOptionalDouble(typ, b, &u.UiAmount), nil
		case 2:
			return readUint32(typ, b, &u.Decimals), nil
		case 3:
			return readString(typ, b, &u.Amount), nil
		case 4:
			return readString(typ, b, &u.UiAmountString), nil
		}
		return 0, nil
	})
}

func (r *Reward) Marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, r.Pubkey)
	b = appendVarintField(b, 2, uint64(r.Lamports))
	b = appendVarintField(b, 3, r.PostBalance)
	b = appendVarintField(b, 4, uint64(r.RewardType))
	b = appendStringField(b, 5, r.Commission)
	return b
}

func (r *Reward) Unmarshal(b []byte) error {
	*r = Reward{}
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &r.Pubkey), nil
		case 2:
			return readInt64(typ, b, &r.Lamports), nil
		case 3:
			return readUint64(typ, b, &r.PostBalance), nil
		case 4:
			var v uint32
			n := readUint32(typ, b, &v)
			r.RewardType = RewardType(v)
			return n, nil
		case 5:
			return readString(typ, b, &r.Commission), nil
		}
		return 0, nil
	})
}
