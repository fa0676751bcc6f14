// Package memory implements domain.Store entirely in process memory. It is
// the development backend and the test double for the PostgreSQL store:
// transactions stage their writes against a snapshot and swap it in on
// commit, so a failed call observably never happened.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

type posKey struct {
	market  domain.MarketID
	account domain.AccountID
}

type state struct {
	agents       domain.TrustedAgents
	nextMarketID domain.MarketID
	markets      map[domain.MarketID]domain.Market
	positions    map[posKey]domain.Position
	balances     map[domain.AccountID]uint64
	events       []domain.Event
}

func (s *state) snapshot() *state {
	clone := &state{
		agents:       s.agents,
		nextMarketID: s.nextMarketID,
		markets:      make(map[domain.MarketID]domain.Market, len(s.markets)),
		positions:    make(map[posKey]domain.Position, len(s.positions)),
		balances:     make(map[domain.AccountID]uint64, len(s.balances)),
		events:       s.events[:len(s.events):len(s.events)],
	}
	for id, m := range s.markets {
		clone.markets[id] = m
	}
	for k, p := range s.positions {
		clone.positions[k] = p
	}
	for a, b := range s.balances {
		clone.balances[a] = b
	}
	return clone
}

// Store is an in-memory domain.Store. Safe for concurrent use; calls are
// serialized, matching the one-atomic-step-at-a-time execution model.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		st: &state{
			markets:   make(map[domain.MarketID]domain.Market),
			positions: make(map[posKey]domain.Position),
			balances:  make(map[domain.AccountID]uint64),
		},
	}
}

// WithinTx runs fn against a staged snapshot and commits it only when fn
// returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.snapshot()
	if err := fn(ctx, &memTx{st: staged}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

// ListMarkets returns markets filtered by state (empty = all), ordered by
// ascending market id.
func (s *Store) ListMarkets(ctx context.Context, st domain.MarketState, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var markets []domain.Market
	for _, m := range s.st.markets {
		if st != "" && m.State != st {
			continue
		}
		markets = append(markets, cloneMarket(m))
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })
	return paginate(markets, opts), nil
}

// ListEvents returns settlement events, newest first.
func (s *Store) ListEvents(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []domain.Event
	for i := len(s.st.events) - 1; i >= 0; i-- {
		e := s.st.events[i]
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		events = append(events, e)
	}
	return paginate(events, opts), nil
}

// EventsByMarket returns a market's events in append order.
func (s *Store) EventsByMarket(ctx context.Context, id domain.MarketID) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []domain.Event
	for _, e := range s.st.events {
		if e.MarketID == id {
			events = append(events, e)
		}
	}
	return events, nil
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// ------------------------------------------------------------------------
// Transaction
// ------------------------------------------------------------------------

type memTx struct {
	st *state
}

func (t *memTx) TrustedAgents(ctx context.Context) (domain.TrustedAgents, error) {
	return t.st.agents, nil
}

func (t *memTx) SetTrustedAgents(ctx context.Context, agents domain.TrustedAgents) error {
	t.st.agents = agents
	return nil
}

func (t *memTx) NextMarketID(ctx context.Context) (domain.MarketID, error) {
	id := t.st.nextMarketID
	t.st.nextMarketID++
	return id, nil
}

func (t *memTx) GetMarket(ctx context.Context, id domain.MarketID) (domain.Market, error) {
	m, ok := t.st.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return cloneMarket(m), nil
}

func (t *memTx) PutMarket(ctx context.Context, m domain.Market) error {
	t.st.markets[m.ID] = cloneMarket(m)
	return nil
}

func (t *memTx) GetPosition(ctx context.Context, id domain.MarketID, account domain.AccountID) (domain.Position, error) {
	p, ok := t.st.positions[posKey{id, account}]
	if !ok {
		return domain.Position{MarketID: id, Account: account}, nil
	}
	return clonePosition(p), nil
}

func (t *memTx) PutPosition(ctx context.Context, p domain.Position) error {
	t.st.positions[posKey{p.MarketID, p.Account}] = clonePosition(p)
	return nil
}

func (t *memTx) Balance(ctx context.Context, account domain.AccountID) (uint64, error) {
	return t.st.balances[account], nil
}

func (t *memTx) Debit(ctx context.Context, account domain.AccountID, amount uint64) error {
	if t.st.balances[account] < amount {
		return domain.ErrInsufficientFunds
	}
	t.st.balances[account] -= amount
	return nil
}

func (t *memTx) Credit(ctx context.Context, account domain.AccountID, amount uint64) error {
	t.st.balances[account] += amount
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, e domain.Event) error {
	t.st.events = append(t.st.events, e)
	return nil
}

func cloneMarket(m domain.Market) domain.Market {
	m.Options = append([]string(nil), m.Options...)
	m.Pools = append([]uint64(nil), m.Pools...)
	if m.WinningOption != nil {
		w := *m.WinningOption
		m.WinningOption = &w
	}
	return m
}

func clonePosition(p domain.Position) domain.Position {
	p.Stakes = append([]uint64(nil), p.Stakes...)
	return p
}
