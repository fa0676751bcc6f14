package domain

import "time"

// Position is one participant's stake distribution within one market,
// keyed by (market, account).
type Position struct {
	MarketID  MarketID  `json:"market_id"`
	Account   AccountID `json:"account"`
	Stakes    []uint64  `json:"stakes"`
	Claimed   bool      `json:"claimed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPosition creates an empty position sized for a market with numOptions
// options.
func NewPosition(marketID MarketID, account AccountID, numOptions int) Position {
	return Position{
		MarketID: marketID,
		Account:  account,
		Stakes:   make([]uint64, numOptions),
	}
}

// Stake returns the stake on one option; zero when the position predates
// that option slot.
func (p *Position) Stake(idx OptionIndex) uint64 {
	if int(idx) >= len(p.Stakes) {
		return 0
	}
	return p.Stakes[idx]
}

// AddStake increases the stake on one option, growing the slice if the
// position was stored with fewer slots.
func (p *Position) AddStake(idx OptionIndex, amount uint64) {
	for len(p.Stakes) <= int(idx) {
		p.Stakes = append(p.Stakes, 0)
	}
	p.Stakes[idx] += amount
}

// TotalStake is the participant's stake summed across all options.
func (p *Position) TotalStake() uint64 {
	var total uint64
	for _, s := range p.Stakes {
		total += s
	}
	return total
}

// IsEmpty reports whether the participant has any stake at all.
func (p *Position) IsEmpty() bool {
	return p.TotalStake() == 0
}
