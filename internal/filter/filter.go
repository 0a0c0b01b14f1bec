// Package filter decides, per fan-out channel, which notifications are
// published. Matchers and channels are immutable after construction and safe
// for concurrent use.
package filter

import (
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/marko911/geyser-kafka/internal/config"
)

type keySet map[solana.PublicKey]struct{}

func (s keySet) contains(b []byte) bool {
	_, ok := s[solana.PublicKeyFromBytes(b)]
	return ok
}

// Matcher holds the address sets of one channel.
//
// Candidates that are not exactly 32 bytes long are always wanted: a
// malformed key never causes an event to be dropped.
type Matcher struct {
	programIgnores keySet
	programFilters keySet
	accountFilters keySet
}

// NewMatcher parses base58 addresses into a Matcher. Entries that do not
// parse are logged and skipped.
func NewMatcher(programIgnores, programFilters, accountFilters []string, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		programIgnores: parseKeys("program_ignores", programIgnores, logger),
		programFilters: parseKeys("program_filters", programFilters, logger),
		accountFilters: parseKeys("account_filters", accountFilters, logger),
	}
}

func parseKeys(field string, addrs []string, logger *slog.Logger) keySet {
	set := make(keySet, len(addrs))
	for _, addr := range addrs {
		pk, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			logger.Warn("skipping invalid filter address",
				"field", field,
				"address", addr,
				"error", err,
			)
			continue
		}
		set[pk] = struct{}{}
	}
	return set
}

// WantsProgram reports whether a program or owner id passes the ignore and
// allow lists. An empty allow list accepts every id that is not ignored.
func (m *Matcher) WantsProgram(candidate []byte) bool {
	if len(candidate) != solana.PublicKeyLength {
		return true
	}
	if m.programIgnores.contains(candidate) {
		return false
	}
	if len(m.programFilters) == 0 {
		return true
	}
	return m.programFilters.contains(candidate)
}

// WantsAccount reports whether an account key is on the account allow
// list. An empty list accepts no account.
func (m *Matcher) WantsAccount(candidate []byte) bool {
	if len(candidate) != solana.PublicKeyLength {
		return true
	}
	return m.accountFilters.contains(candidate)
}

// Channel is one configured fan-out destination.
type Channel struct {
	matcher *Matcher

	accountTopic     string
	slotStatusTopic  string
	transactionTopic string

	includeVote        bool
	includeFailed      bool
	publishAllAccounts bool
	wrapMessages       bool
}

// NewChannel builds a channel from its configuration entry.
func NewChannel(cfg config.FilterConfig, logger *slog.Logger) *Channel {
	return &Channel{
		matcher:            NewMatcher(cfg.ProgramIgnores, cfg.ProgramFilters, cfg.AccountFilters, logger),
		accountTopic:       cfg.UpdateAccountTopic,
		slotStatusTopic:    cfg.SlotStatusTopic,
		transactionTopic:   cfg.TransactionTopic,
		includeVote:        cfg.IncludeVotes(),
		includeFailed:      cfg.IncludeFailed(),
		publishAllAccounts: cfg.PublishAllAccounts,
		wrapMessages:       cfg.WrapMessages,
	}
}

// NewChannels builds one channel per configuration entry.
func NewChannels(cfgs []config.FilterConfig, logger *slog.Logger) []*Channel {
	channels := make([]*Channel, 0, len(cfgs))
	for _, cfg := range cfgs {
		channels = append(channels, NewChannel(cfg, logger))
	}
	return channels
}

func (c *Channel) Matcher() *Matcher        { return c.matcher }
func (c *Channel) AccountTopic() string     { return c.accountTopic }
func (c *Channel) SlotStatusTopic() string  { return c.slotStatusTopic }
func (c *Channel) TransactionTopic() string { return c.transactionTopic }
func (c *Channel) WrapMessages() bool       { return c.wrapMessages }
func (c *Channel) WantsVoteTx() bool        { return c.includeVote }
func (c *Channel) WantsFailedTx() bool      { return c.includeFailed }

// AcceptAccount decides on an account update. Startup snapshot updates are
// only published when the channel asks for all accounts.
func (c *Channel) AcceptAccount(owner, pubkey []byte, isStartup bool) bool {
	if isStartup && !c.publishAllAccounts {
		return false
	}
	if c.accountTopic == "" {
		return false
	}
	return c.matcher.WantsProgram(owner) || c.matcher.WantsAccount(pubkey)
}

// AcceptTransaction decides on a transaction given its vote and failure
// flags and every account key it references, static keys first.
func (c *Channel) AcceptTransaction(isVote, isFailed bool, keys []solana.PublicKey) bool {
	if c.transactionTopic == "" {
		return false
	}
	if isVote && !c.includeVote {
		return false
	}
	if isFailed && !c.includeFailed {
		return false
	}
	for i := range keys {
		if c.matcher.WantsProgram(keys[i][:]) || c.matcher.WantsAccount(keys[i][:]) {
			return true
		}
	}
	return false
}

// AcceptSlotStatus reports whether slot updates go to this channel.
func (c *Channel) AcceptSlotStatus() bool {
	return c.slotStatusTopic != ""
}
