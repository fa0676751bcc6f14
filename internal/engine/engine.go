// Package engine implements the parimutuel settlement state machine:
// market creation, bet ingestion, the asynchronous oracle resolution
// handshake, and proportional payout of the pooled stakes.
//
// Every state-changing operation runs inside a single store transaction.
// A failed call rolls back and leaves state exactly as if it had never
// been attempted.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

// dispatchTimeout bounds the background webhook delivery to the resolver.
const dispatchTimeout = 30 * time.Second

// Engine is the settlement engine. It owns no state of its own; all state
// lives behind the domain.Store and is mutated transactionally.
type Engine struct {
	admin    domain.AccountID
	store    domain.Store
	clock    domain.Clock
	resolver domain.ResolverDispatcher
	cache    domain.MarketCache // optional
	bus      domain.SignalBus   // optional
	logger   *slog.Logger
}

// New creates an Engine. Cache, bus, and resolver may be nil; without a
// resolver, resolution requests are recorded but never delivered.
func New(
	admin domain.AccountID,
	store domain.Store,
	clock domain.Clock,
	resolver domain.ResolverDispatcher,
	cache domain.MarketCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		admin:    admin,
		store:    store,
		clock:    clock,
		resolver: resolver,
		cache:    cache,
		bus:      bus,
		logger:   logger.With(slog.String("component", "engine")),
	}
}

// CreateMarketParams carries the immutable parameters of a new market.
type CreateMarketParams struct {
	Question           string
	Options            []string
	ResolutionCriteria string
	ResolutionSource   string
	Deadline           domain.Height
}

// ------------------------------------------------------------------------
// Admin operations
// ------------------------------------------------------------------------

// SetMarketCreator configures the identity allowed to create markets.
// Admin only; re-setting the same value is a permitted no-op overwrite.
func (e *Engine) SetMarketCreator(ctx context.Context, caller, agent domain.AccountID) error {
	return e.setAgent(ctx, caller, agent, "market_creator")
}

// SetResolverOracle configures the identity allowed to deliver resolution
// callbacks. Admin only.
func (e *Engine) SetResolverOracle(ctx context.Context, caller, agent domain.AccountID) error {
	return e.setAgent(ctx, caller, agent, "resolver_oracle")
}

func (e *Engine) setAgent(ctx context.Context, caller, agent domain.AccountID, role string) error {
	if !caller.Equal(e.admin) {
		return domain.ErrUnauthorized
	}

	var ev domain.Event
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		agents, err := tx.TrustedAgents(ctx)
		if err != nil {
			return fmt.Errorf("engine: load trusted agents: %w", err)
		}
		switch role {
		case "market_creator":
			agents.MarketCreator = &agent
		case "resolver_oracle":
			agents.ResolverOracle = &agent
		}
		if err := tx.SetTrustedAgents(ctx, agents); err != nil {
			return fmt.Errorf("engine: set trusted agents: %w", err)
		}

		ev = newEvent(domain.EventAgentConfigured, 0, caller, map[string]any{
			"role":  role,
			"agent": string(agent),
		})
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return err
	}

	e.publish(ctx, ev)
	return nil
}

// Deposit credits funds to an account. This is the inbound half of the
// hosting environment's value-transfer primitive; only the admin may mint
// test balances through it.
func (e *Engine) Deposit(ctx context.Context, caller, account domain.AccountID, amount uint64) error {
	if !caller.Equal(e.admin) {
		return domain.ErrUnauthorized
	}
	if amount == 0 {
		return domain.ErrInvalidAmount
	}

	var ev domain.Event
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Credit(ctx, account, amount); err != nil {
			return fmt.Errorf("engine: credit %s: %w", account, err)
		}
		ev = newEvent(domain.EventDeposit, 0, account, map[string]any{
			"amount": amount,
		})
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return err
	}

	e.publish(ctx, ev)
	return nil
}

// Config returns the current trusted-agent configuration.
func (e *Engine) Config(ctx context.Context) (domain.TrustedAgents, error) {
	var agents domain.TrustedAgents
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		agents, err = tx.TrustedAgents(ctx)
		return err
	})
	if err != nil {
		return domain.TrustedAgents{}, fmt.Errorf("engine: load trusted agents: %w", err)
	}
	return agents, nil
}

// ------------------------------------------------------------------------
// Market lifecycle
// ------------------------------------------------------------------------

// CreateMarket allocates a new Open market. Only the configured market
// creator agent may call it; the deadline must be strictly in the future.
func (e *Engine) CreateMarket(ctx context.Context, caller domain.AccountID, params CreateMarketParams) (domain.Market, error) {
	if err := domain.ValidateOptions(params.Options); err != nil {
		return domain.Market{}, err
	}
	if params.Deadline <= e.clock.Height() {
		return domain.Market{}, domain.ErrInvalidDeadline
	}

	var (
		market domain.Market
		ev     domain.Event
	)
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		agents, err := tx.TrustedAgents(ctx)
		if err != nil {
			return fmt.Errorf("engine: load trusted agents: %w", err)
		}
		if agents.MarketCreator == nil {
			return domain.ErrCreatorNotConfigured
		}
		if !caller.Equal(*agents.MarketCreator) {
			return domain.ErrUnauthorized
		}

		id, err := tx.NextMarketID(ctx)
		if err != nil {
			return fmt.Errorf("engine: allocate market id: %w", err)
		}

		market = domain.NewMarket(
			id,
			params.Question,
			params.Options,
			params.ResolutionCriteria,
			params.ResolutionSource,
			caller,
			params.Deadline,
			time.Now().UTC(),
		)
		if err := tx.PutMarket(ctx, market); err != nil {
			return fmt.Errorf("engine: store market %d: %w", id, err)
		}

		ev = newEvent(domain.EventMarketCreated, id, caller, map[string]any{
			"question": params.Question,
			"options":  params.Options,
			"deadline": params.Deadline,
		})
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return domain.Market{}, err
	}

	e.cacheSet(ctx, market)
	e.publish(ctx, ev)

	e.logger.InfoContext(ctx, "market created",
		slog.Uint64("market_id", uint64(market.ID)),
		slog.Int("options", len(market.Options)),
		slog.Uint64("deadline", uint64(market.Deadline)),
	)
	return market, nil
}

// PlaceBet debits the caller and credits the chosen option pool in one
// atomic step. Rejected once the deadline is reached or the market has
// left the Open state.
func (e *Engine) PlaceBet(ctx context.Context, caller domain.AccountID, id domain.MarketID, option domain.OptionIndex, amount uint64) error {
	if amount == 0 {
		return domain.ErrInvalidAmount
	}

	var ev domain.Event
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		market, err := tx.GetMarket(ctx, id)
		if err != nil {
			return err
		}
		if market.State != domain.MarketStateOpen {
			return domain.ErrInvalidState
		}
		if e.clock.Height() >= market.Deadline {
			return domain.ErrDeadlinePassed
		}
		if !market.HasOption(option) {
			return domain.ErrInvalidOption
		}

		if err := tx.Debit(ctx, caller, amount); err != nil {
			return err
		}

		if err := market.AddStake(option, amount); err != nil {
			return err
		}
		if err := tx.PutMarket(ctx, market); err != nil {
			return fmt.Errorf("engine: store market %d: %w", id, err)
		}

		pos, err := tx.GetPosition(ctx, id, caller)
		if err != nil {
			return fmt.Errorf("engine: load position: %w", err)
		}
		if len(pos.Stakes) == 0 {
			pos = domain.NewPosition(id, caller, len(market.Options))
		}
		pos.AddStake(option, amount)
		pos.UpdatedAt = time.Now().UTC()
		if err := tx.PutPosition(ctx, pos); err != nil {
			return fmt.Errorf("engine: store position: %w", err)
		}

		ev = newEvent(domain.EventBetPlaced, id, caller, map[string]any{
			"option": option,
			"amount": amount,
		})
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return err
	}

	e.cacheInvalidate(ctx, id)
	e.publish(ctx, ev)
	return nil
}

// RequestResolution transitions an Open market past its deadline to
// ResolutionRequested and fires the resolution request at the configured
// resolver oracle. Any caller may trigger it; the outbound call is
// dispatched only after the transition has committed and never blocks the
// caller. If the resolver is not configured the market stays Open and the
// request can be retried later.
func (e *Engine) RequestResolution(ctx context.Context, caller domain.AccountID, id domain.MarketID) (domain.ResolutionRequest, error) {
	var (
		req domain.ResolutionRequest
		ev  domain.Event
	)
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		market, err := tx.GetMarket(ctx, id)
		if err != nil {
			return err
		}
		if market.State != domain.MarketStateOpen {
			return domain.ErrInvalidState
		}
		if e.clock.Height() < market.Deadline {
			return domain.ErrDeadlineNotReached
		}

		agents, err := tx.TrustedAgents(ctx)
		if err != nil {
			return fmt.Errorf("engine: load trusted agents: %w", err)
		}
		if agents.ResolverOracle == nil {
			return domain.ErrResolverNotConfigured
		}

		market.State = domain.MarketStateResolutionRequested
		market.UpdatedAt = time.Now().UTC()
		if err := tx.PutMarket(ctx, market); err != nil {
			return fmt.Errorf("engine: store market %d: %w", id, err)
		}

		req = domain.ResolutionRequest{
			RequestID:          uuid.NewString(),
			MarketID:           id,
			Question:           market.Question,
			Options:            market.Options,
			ResolutionCriteria: market.ResolutionCriteria,
			ResolutionSource:   market.ResolutionSource,
			Target:             *agents.ResolverOracle,
		}

		ev = newEvent(domain.EventResolutionRequested, id, caller, map[string]any{
			"request_id": req.RequestID,
		})
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return domain.ResolutionRequest{}, err
	}

	// Fire-and-forget: the engine has no reply channel open. The answer, if
	// it ever comes, arrives as an independent ResolveCallback call.
	if e.resolver == nil {
		e.logger.Warn("no resolver dispatcher configured, skipping webhook delivery",
			slog.Uint64("market_id", uint64(id)),
			slog.String("request_id", req.RequestID),
		)
		e.cacheInvalidate(ctx, id)
		e.publish(ctx, ev)
		return req, nil
	}
	go func() {
		dctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := e.resolver.Dispatch(dctx, req); err != nil {
			e.logger.Warn("resolver dispatch failed",
				slog.Uint64("market_id", uint64(id)),
				slog.String("request_id", req.RequestID),
				slog.String("error", err.Error()),
			)
		}
	}()

	e.cacheInvalidate(ctx, id)
	e.publish(ctx, ev)

	e.logger.InfoContext(ctx, "resolution requested",
		slog.Uint64("market_id", uint64(id)),
		slog.String("request_id", req.RequestID),
	)
	return req, nil
}

// ResolveCallback is the inbound half of the oracle handshake: it commits
// the winning option and moves the market to its terminal Resolved state.
// Only the configured resolver oracle may call it, and at most one
// callback is ever accepted per market.
func (e *Engine) ResolveCallback(ctx context.Context, caller domain.AccountID, id domain.MarketID, winning domain.OptionIndex) error {
	var ev domain.Event
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		agents, err := tx.TrustedAgents(ctx)
		if err != nil {
			return fmt.Errorf("engine: load trusted agents: %w", err)
		}
		if agents.ResolverOracle == nil {
			return domain.ErrResolverNotConfigured
		}
		if !caller.Equal(*agents.ResolverOracle) {
			return domain.ErrUnauthorized
		}

		market, err := tx.GetMarket(ctx, id)
		if err != nil {
			return err
		}
		if market.State != domain.MarketStateResolutionRequested {
			return domain.ErrInvalidState
		}
		if !market.HasOption(winning) {
			return domain.ErrInvalidOption
		}

		w := winning
		market.WinningOption = &w
		market.State = domain.MarketStateResolved
		market.UpdatedAt = time.Now().UTC()
		if err := tx.PutMarket(ctx, market); err != nil {
			return fmt.Errorf("engine: store market %d: %w", id, err)
		}

		ev = newEvent(domain.EventMarketResolved, id, caller, map[string]any{
			"winning_option": winning,
			"option_label":   market.Options[winning],
		})
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return err
	}

	e.cacheInvalidate(ctx, id)
	e.publish(ctx, ev)

	e.logger.InfoContext(ctx, "market resolved",
		slog.Uint64("market_id", uint64(id)),
		slog.Uint64("winning_option", uint64(winning)),
	)
	return nil
}

// ClaimWinnings pays out the caller's share of the pool for a resolved
// market: stake * total_pool / winning_pool, truncated. The claim and the
// claimed-flag update commit together, so a second claim always fails with
// ErrNothingToClaim.
func (e *Engine) ClaimWinnings(ctx context.Context, caller domain.AccountID, id domain.MarketID) (uint64, error) {
	var (
		amount uint64
		ev     domain.Event
	)
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		market, err := tx.GetMarket(ctx, id)
		if err != nil {
			return err
		}
		if market.State != domain.MarketStateResolved || market.WinningOption == nil {
			return domain.ErrInvalidState
		}
		winning := *market.WinningOption

		pos, err := tx.GetPosition(ctx, id, caller)
		if err != nil {
			return fmt.Errorf("engine: load position: %w", err)
		}
		if pos.Claimed || pos.Stake(winning) == 0 {
			return domain.ErrNothingToClaim
		}

		amount = payout(pos.Stake(winning), market.TotalPool, market.Pools[winning])

		if err := tx.Credit(ctx, caller, amount); err != nil {
			return fmt.Errorf("engine: credit payout: %w", err)
		}

		pos.Claimed = true
		pos.UpdatedAt = time.Now().UTC()
		if err := tx.PutPosition(ctx, pos); err != nil {
			return fmt.Errorf("engine: store position: %w", err)
		}

		ev = newEvent(domain.EventWinningsClaimed, id, caller, map[string]any{
			"payout": amount,
		})
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return 0, err
	}

	e.publish(ctx, ev)

	e.logger.InfoContext(ctx, "winnings claimed",
		slog.Uint64("market_id", uint64(id)),
		slog.String("account", string(caller)),
		slog.Uint64("payout", amount),
	)
	return amount, nil
}

// ------------------------------------------------------------------------
// Reads
// ------------------------------------------------------------------------

// GetMarket returns a market snapshot, consulting the cache first.
func (e *Engine) GetMarket(ctx context.Context, id domain.MarketID) (domain.Market, error) {
	if e.cache != nil {
		if m, err := e.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	var market domain.Market
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		market, err = tx.GetMarket(ctx, id)
		return err
	})
	if err != nil {
		return domain.Market{}, err
	}

	e.cacheSet(ctx, market)
	return market, nil
}

// GetPosition returns the caller's position snapshot for a market. The
// market must exist; a participant without bets gets an empty position.
func (e *Engine) GetPosition(ctx context.Context, id domain.MarketID, account domain.AccountID) (domain.Position, error) {
	var pos domain.Position
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		market, err := tx.GetMarket(ctx, id)
		if err != nil {
			return err
		}
		pos, err = tx.GetPosition(ctx, id, account)
		if err != nil {
			return fmt.Errorf("engine: load position: %w", err)
		}
		if len(pos.Stakes) == 0 {
			pos = domain.NewPosition(id, account, len(market.Options))
		}
		return nil
	})
	if err != nil {
		return domain.Position{}, err
	}
	return pos, nil
}

// GetImpliedOdds returns per-option pool fractions. The boolean is false
// when no bets have been placed yet.
func (e *Engine) GetImpliedOdds(ctx context.Context, id domain.MarketID) ([]domain.Odds, bool, error) {
	market, err := e.GetMarket(ctx, id)
	if err != nil {
		return nil, false, err
	}
	odds, ok := market.ImpliedOdds()
	return odds, ok, nil
}

// GetBalance returns an account's spendable balance.
func (e *Engine) GetBalance(ctx context.Context, account domain.AccountID) (uint64, error) {
	var balance uint64
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		balance, err = tx.Balance(ctx, account)
		return err
	})
	return balance, err
}

// ListMarkets returns markets filtered by state (empty state = all).
func (e *Engine) ListMarkets(ctx context.Context, state domain.MarketState, opts domain.ListOpts) ([]domain.Market, error) {
	return e.store.ListMarkets(ctx, state, opts)
}

// ListEvents returns the settlement event log.
func (e *Engine) ListEvents(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	return e.store.ListEvents(ctx, opts)
}

// MarketEvents returns a single market's events in append order.
func (e *Engine) MarketEvents(ctx context.Context, id domain.MarketID) ([]domain.Event, error) {
	return e.store.EventsByMarket(ctx, id)
}

// ------------------------------------------------------------------------
// Internal helpers
// ------------------------------------------------------------------------

func newEvent(t domain.EventType, id domain.MarketID, account domain.AccountID, detail map[string]any) domain.Event {
	return domain.Event{
		ID:        uuid.NewString(),
		Type:      t,
		MarketID:  id,
		Account:   account,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
}

// publish sends a committed event to the signal bus. Bus failures are
// logged and swallowed; the state change has already committed.
func (e *Engine) publish(ctx context.Context, ev domain.Event) {
	if e.bus == nil || ev.ID == "" {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		e.logger.WarnContext(ctx, "marshal event failed", slog.String("error", err.Error()))
		return
	}
	if err := e.bus.Publish(ctx, domain.SettlementChannel, payload); err != nil {
		e.logger.WarnContext(ctx, "publish event failed",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
	if err := e.bus.StreamAppend(ctx, domain.SettlementStream, payload); err != nil {
		e.logger.WarnContext(ctx, "stream append failed",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) cacheSet(ctx context.Context, m domain.Market) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, m); err != nil {
		e.logger.WarnContext(ctx, "cache set failed",
			slog.Uint64("market_id", uint64(m.ID)),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) cacheInvalidate(ctx context.Context, id domain.MarketID) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, id); err != nil {
		e.logger.WarnContext(ctx, "cache invalidate failed",
			slog.Uint64("market_id", uint64(id)),
			slog.String("error", err.Error()),
		)
	}
}
