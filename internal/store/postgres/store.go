package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

// Store implements domain.Store on a pgx connection pool. Every WithinTx
// call runs inside a single database transaction, so a failing operation
// leaves no partial writes behind.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithinTx runs fn inside a database transaction, committing on nil and
// rolling back on error.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	if err := fn(ctx, &sqlTx{tx: pgtx}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// ListMarkets returns markets ordered by id, optionally filtered by state.
func (s *Store) ListMarkets(ctx context.Context, state domain.MarketState, opts domain.ListOpts) ([]domain.Market, error) {
	query := selectMarket + ` WHERE ($1 = '' OR state = $1) ORDER BY id`
	args := []any{string(state)}
	query, args = applyListOpts(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// ListEvents returns settlement events, newest first.
func (s *Store) ListEvents(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	query := selectEvent + ` WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		AND ($2::timestamptz IS NULL OR created_at <= $2) ORDER BY seq DESC`
	args := []any{opts.Since, opts.Until}
	query, args = applyListOpts(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// EventsByMarket returns a market's events in append order.
func (s *Store) EventsByMarket(ctx context.Context, id domain.MarketID) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, selectEvent+` WHERE market_id = $1 ORDER BY seq`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("postgres: events by market: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func applyListOpts(query string, args []any, opts domain.ListOpts) (string, []any) {
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

// sqlTx adapts a pgx transaction to domain.Tx.
type sqlTx struct {
	tx pgx.Tx
}

func (t *sqlTx) TrustedAgents(ctx context.Context) (domain.TrustedAgents, error) {
	var creator, resolver *string
	err := t.tx.QueryRow(ctx,
		`SELECT market_creator, resolver_oracle FROM engine_config WHERE id`,
	).Scan(&creator, &resolver)
	if err != nil {
		return domain.TrustedAgents{}, fmt.Errorf("postgres: trusted agents: %w", err)
	}

	var agents domain.TrustedAgents
	if creator != nil {
		id := domain.AccountID(*creator)
		agents.MarketCreator = &id
	}
	if resolver != nil {
		id := domain.AccountID(*resolver)
		agents.ResolverOracle = &id
	}
	return agents, nil
}

func (t *sqlTx) SetTrustedAgents(ctx context.Context, agents domain.TrustedAgents) error {
	var creator, resolver *string
	if agents.MarketCreator != nil {
		s := string(*agents.MarketCreator)
		creator = &s
	}
	if agents.ResolverOracle != nil {
		s := string(*agents.ResolverOracle)
		resolver = &s
	}
	_, err := t.tx.Exec(ctx,
		`UPDATE engine_config SET market_creator = $1, resolver_oracle = $2, updated_at = NOW() WHERE id`,
		creator, resolver,
	)
	if err != nil {
		return fmt.Errorf("postgres: set trusted agents: %w", err)
	}
	return nil
}

func (t *sqlTx) NextMarketID(ctx context.Context) (domain.MarketID, error) {
	var next int64
	err := t.tx.QueryRow(ctx,
		`UPDATE engine_config SET next_market_id = next_market_id + 1, updated_at = NOW()
		 WHERE id RETURNING next_market_id - 1`,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("postgres: next market id: %w", err)
	}
	return domain.MarketID(next), nil
}

const selectMarket = `SELECT id, question, options, resolution_criteria, resolution_source,
	creator, deadline, pools, total_pool, state, winning_option, created_at, updated_at
	FROM markets`

func (t *sqlTx) GetMarket(ctx context.Context, id domain.MarketID) (domain.Market, error) {
	m, err := scanMarket(t.tx.QueryRow(ctx, selectMarket+` WHERE id = $1`, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

func (t *sqlTx) PutMarket(ctx context.Context, m domain.Market) error {
	var winning *int16
	if m.WinningOption != nil {
		w := int16(*m.WinningOption)
		winning = &w
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO markets (
			id, question, options, resolution_criteria, resolution_source,
			creator, deadline, pools, total_pool, state, winning_option,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (id) DO UPDATE SET
			pools          = EXCLUDED.pools,
			total_pool     = EXCLUDED.total_pool,
			state          = EXCLUDED.state,
			winning_option = EXCLUDED.winning_option,
			updated_at     = NOW()`,
		int64(m.ID), m.Question, m.Options, m.ResolutionCriteria, m.ResolutionSource,
		string(m.Creator), int64(m.Deadline), toInt64s(m.Pools), int64(m.TotalPool),
		string(m.State), winning, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put market %d: %w", m.ID, err)
	}
	return nil
}

func (t *sqlTx) GetPosition(ctx context.Context, id domain.MarketID, account domain.AccountID) (domain.Position, error) {
	var stakes []int64
	p := domain.Position{MarketID: id, Account: account}
	err := t.tx.QueryRow(ctx,
		`SELECT stakes, claimed, updated_at FROM positions WHERE market_id = $1 AND account = $2`,
		int64(id), string(account),
	).Scan(&stakes, &p.Claimed, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: get position %d/%s: %w", id, account, err)
	}
	p.Stakes = toUint64s(stakes)
	return p, nil
}

func (t *sqlTx) PutPosition(ctx context.Context, p domain.Position) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO positions (market_id, account, stakes, claimed, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (market_id, account) DO UPDATE SET
			stakes     = EXCLUDED.stakes,
			claimed    = EXCLUDED.claimed,
			updated_at = NOW()`,
		int64(p.MarketID), string(p.Account), toInt64s(p.Stakes), p.Claimed,
	)
	if err != nil {
		return fmt.Errorf("postgres: put position %d/%s: %w", p.MarketID, p.Account, err)
	}
	return nil
}

func (t *sqlTx) Balance(ctx context.Context, account domain.AccountID) (uint64, error) {
	var balance int64
	err := t.tx.QueryRow(ctx,
		`SELECT balance FROM balances WHERE account = $1`, string(account),
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: balance %s: %w", account, err)
	}
	return uint64(balance), nil
}

func (t *sqlTx) Debit(ctx context.Context, account domain.AccountID, amount uint64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE balances SET balance = balance - $2, updated_at = NOW()
		 WHERE account = $1 AND balance >= $2`,
		string(account), int64(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", account, err)
	}
	// An absent row is a zero balance.
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (t *sqlTx) Credit(ctx context.Context, account domain.AccountID, amount uint64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO balances (account, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account) DO UPDATE SET
			balance    = balances.balance + EXCLUDED.balance,
			updated_at = NOW()`,
		string(account), int64(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", account, err)
	}
	return nil
}

func (t *sqlTx) AppendEvent(ctx context.Context, e domain.Event) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO settlement_events (id, type, market_id, account, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, string(e.Type), int64(e.MarketID), string(e.Account), e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append event %s: %w", e.ID, err)
	}
	return nil
}

const selectEvent = `SELECT id, type, market_id, account, detail, created_at FROM settlement_events`

func collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var typ, account string
		var marketID int64
		if err := rows.Scan(&e.ID, &typ, &marketID, &account, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		e.Type = domain.EventType(typ)
		e.MarketID = domain.MarketID(marketID)
		e.Account = domain.AccountID(account)
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var id, deadline, totalPool int64
	var creator, state string
	var pools []int64
	var winning *int16

	err := row.Scan(
		&id, &m.Question, &m.Options, &m.ResolutionCriteria, &m.ResolutionSource,
		&creator, &deadline, &pools, &totalPool, &state, &winning,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.ID = domain.MarketID(id)
	m.Creator = domain.AccountID(creator)
	m.Deadline = domain.Height(deadline)
	m.Pools = toUint64s(pools)
	m.TotalPool = uint64(totalPool)
	m.State = domain.MarketState(state)
	if winning != nil {
		w := domain.OptionIndex(*winning)
		m.WinningOption = &w
	}
	return m, nil
}

func toInt64s(in []uint64) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func toUint64s(in []int64) []uint64 {
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}
