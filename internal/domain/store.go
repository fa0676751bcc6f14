package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Tx is one atomic view of engine state. Every mutation a settlement
// operation performs — market rows, position rows, balances, the event
// log — goes through a single Tx, so either all of it commits or none of
// it does.
type Tx interface {
	// Trusted-agent configuration.
	TrustedAgents(ctx context.Context) (TrustedAgents, error)
	SetTrustedAgents(ctx context.Context, agents TrustedAgents) error

	// Market registry.
	NextMarketID(ctx context.Context) (MarketID, error)
	GetMarket(ctx context.Context, id MarketID) (Market, error)
	PutMarket(ctx context.Context, m Market) error

	// Positions. GetPosition returns an empty position (no error) when the
	// participant has never bet on the market.
	GetPosition(ctx context.Context, id MarketID, account AccountID) (Position, error)
	PutPosition(ctx context.Context, p Position) error

	// Value transfer. Debit returns ErrInsufficientFunds when the account
	// cannot cover the amount.
	Balance(ctx context.Context, account AccountID) (uint64, error)
	Debit(ctx context.Context, account AccountID, amount uint64) error
	Credit(ctx context.Context, account AccountID, amount uint64) error

	// Settlement record.
	AppendEvent(ctx context.Context, e Event) error
}

// Store persists engine state. WithinTx runs fn atomically: if fn returns
// an error the transaction is rolled back and the error is returned
// unchanged, leaving state exactly as before the call.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Read-only queries outside any settlement transaction.
	ListMarkets(ctx context.Context, state MarketState, opts ListOpts) ([]Market, error)
	ListEvents(ctx context.Context, opts ListOpts) ([]Event, error)
	EventsByMarket(ctx context.Context, id MarketID) ([]Event, error)
}
