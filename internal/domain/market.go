// Package domain defines the core records of the parimutuel settlement
// engine — markets, positions, trusted agents, settlement events — and the
// storage, cache, and dispatch interfaces the engine operates through.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketID is a sequential market identifier assigned at creation.
type MarketID uint64

// OptionIndex is the canonical identifier of an option within a market:
// its position in the options slice.
type OptionIndex uint8

// Height is a block height (monotonic sequence counter) used for deadlines.
type Height uint64

// Bounds on the number of options a market may carry.
const (
	MinOptions = 2
	MaxOptions = 10
)

// MarketState is the lifecycle state of a market.
type MarketState string

const (
	// MarketStateOpen accepts bets until the deadline.
	MarketStateOpen MarketState = "open"
	// MarketStateResolutionRequested means the oracle has been asked for an
	// outcome and the engine is waiting for its callback.
	MarketStateResolutionRequested MarketState = "resolution_requested"
	// MarketStateResolved is terminal; the winning option is committed and
	// claims are open.
	MarketStateResolved MarketState = "resolved"
)

// Market is one parimutuel prediction market.
type Market struct {
	ID                 MarketID     `json:"id"`
	Question           string       `json:"question"`
	Options            []string     `json:"options"`
	ResolutionCriteria string       `json:"resolution_criteria"`
	ResolutionSource   string       `json:"resolution_source"`
	Creator            AccountID    `json:"creator"`
	Deadline           Height       `json:"deadline"`
	Pools              []uint64     `json:"pools"`
	TotalPool          uint64       `json:"total_pool"`
	State              MarketState  `json:"state"`
	WinningOption      *OptionIndex `json:"winning_option,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// NewMarket builds an Open market with zeroed pools. Options must already
// have been validated with ValidateOptions.
func NewMarket(id MarketID, question string, options []string, criteria, source string, creator AccountID, deadline Height, now time.Time) Market {
	return Market{
		ID:                 id,
		Question:           question,
		Options:            append([]string(nil), options...),
		ResolutionCriteria: criteria,
		ResolutionSource:   source,
		Creator:            creator,
		Deadline:           deadline,
		Pools:              make([]uint64, len(options)),
		State:              MarketStateOpen,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// ValidateOptions checks the option list against the market bounds and
// rejects duplicate labels.
func ValidateOptions(options []string) error {
	if len(options) < MinOptions || len(options) > MaxOptions {
		return ErrInvalidOptions
	}
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		if opt == "" {
			return ErrInvalidOptions
		}
		if _, dup := seen[opt]; dup {
			return ErrInvalidOptions
		}
		seen[opt] = struct{}{}
	}
	return nil
}

// HasOption reports whether idx addresses one of the market's options.
func (m *Market) HasOption(idx OptionIndex) bool {
	return int(idx) < len(m.Options)
}

// AddStake credits amount to the given option pool and the total pool,
// keeping the total-equals-sum invariant without re-summation.
func (m *Market) AddStake(idx OptionIndex, amount uint64) error {
	if !m.HasOption(idx) {
		return ErrInvalidOption
	}
	m.Pools[idx] += amount
	m.TotalPool += amount
	return nil
}

// IsBinary reports whether the market is a two-option (Yes/No style) market.
func (m *Market) IsBinary() bool {
	return len(m.Options) == 2
}

// Odds is the implied probability of one option, derived from pool shares.
type Odds struct {
	Option   string          `json:"option"`
	Fraction decimal.Decimal `json:"fraction"`
}

// ImpliedOdds returns pool[i]/total_pool per option. The second return is
// false when no bets have been placed yet; callers must not invent equal
// odds in that case.
func (m *Market) ImpliedOdds() ([]Odds, bool) {
	if m.TotalPool == 0 {
		return nil, false
	}
	total := decimal.NewFromUint64(m.TotalPool)
	odds := make([]Odds, len(m.Options))
	for i, label := range m.Options {
		odds[i] = Odds{
			Option:   label,
			Fraction: decimal.NewFromUint64(m.Pools[i]).Div(total),
		}
	}
	return odds, true
}
