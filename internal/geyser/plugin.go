package geyser

import (
	"context"
	"errors"
	"fmt"
)

// Plugin is driven by the host. Callbacks may be invoked concurrently from
// several host threads with no ordering between event kinds, and must
// return promptly.
type Plugin interface {
	Name() string

	// OnLoad reads the configuration file and prepares the plugin. It is
	// called once before any other callback.
	OnLoad(ctx context.Context, configFile string) error

	// OnUnload releases every resource. Pending records are flushed
	// within the configured shutdown timeout.
	OnUnload()

	OnAccountUpdate(info ReplicaAccountInfo, slot uint64, isStartup bool) error
	OnSlotStatus(slot uint64, parent *uint64, status SlotStatus) error
	OnTransaction(info ReplicaTransactionInfo, slot uint64) error
	OnBlock(info ReplicaBlockInfo) error
	OnEndOfStartup() error

	AccountDataNotificationsEnabled() bool
	TransactionNotificationsEnabled() bool
}

// ErrorKind classifies a PluginError by the callback that produced it.
type ErrorKind int

const (
	ErrConfigFileOpen ErrorKind = iota
	ErrConfigFileRead
	ErrAccountsUpdate
	ErrSlotStatusUpdate
	ErrTransactionUpdate
	ErrBlockUpdate
	ErrCustom
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConfigFileOpen:
		return "config file open"
	case ErrConfigFileRead:
		return "config file read"
	case ErrAccountsUpdate:
		return "accounts update"
	case ErrSlotStatusUpdate:
		return "slot status update"
	case ErrTransactionUpdate:
		return "transaction update"
	case ErrBlockUpdate:
		return "block update"
	default:
		return "custom"
	}
}

// PluginError is what every Plugin method returns on failure.
type PluginError struct {
	Kind ErrorKind
	Err  error
}

func NewPluginError(kind ErrorKind, err error) *PluginError {
	return &PluginError{Kind: kind, Err: err}
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first PluginError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PluginError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
