package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
	"github.com/Theseuschain/the-prediction-market/internal/engine"
)

// MarketService defines the engine methods the market handler requires. It
// is declared locally so the handler package does not depend on the
// concrete engine type.
type MarketService interface {
	CreateMarket(ctx context.Context, caller domain.AccountID, params engine.CreateMarketParams) (domain.Market, error)
	GetMarket(ctx context.Context, id domain.MarketID) (domain.Market, error)
	ListMarkets(ctx context.Context, state domain.MarketState, opts domain.ListOpts) ([]domain.Market, error)
	GetImpliedOdds(ctx context.Context, id domain.MarketID) ([]domain.Odds, bool, error)
	GetPosition(ctx context.Context, id domain.MarketID, account domain.AccountID) (domain.Position, error)
}

// MarketHandler serves market lifecycle and read endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// createMarketRequest is the body for market creation.
type createMarketRequest struct {
	Question           string        `json:"question"`
	Options            []string      `json:"options"`
	ResolutionCriteria string        `json:"resolution_criteria"`
	ResolutionSource   string        `json:"resolution_source"`
	Deadline           domain.Height `json:"deadline"`
}

// CreateMarket registers a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req createMarketRequest
	if !decodeBody(w, r, &req) {
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), caller, engine.CreateMarketParams{
		Question:           req.Question,
		Options:            req.Options,
		ResolutionCriteria: req.ResolutionCriteria,
		ResolutionSource:   req.ResolutionSource,
		Deadline:           req.Deadline,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to create market")
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

// listMarketsResponse wraps the list endpoint output with pagination echo.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets, optionally filtered by state.
// GET /api/markets?state=open&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	state := domain.MarketState(r.URL.Query().Get("state"))

	markets, err := h.markets.ListMarkets(r.Context(), state, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list markets")
		return
	}
	if markets == nil {
		markets = []domain.Market{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by id.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}
	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to get market")
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// oddsResponse carries the implied odds per option. HasBets is false when
// the market has no stake yet, in which case Odds is empty rather than a
// fabricated uniform distribution.
type oddsResponse struct {
	MarketID domain.MarketID `json:"market_id"`
	HasBets  bool            `json:"has_bets"`
	Odds     []domain.Odds   `json:"odds,omitempty"`
}

// GetImpliedOdds returns the pool-share odds of a market.
// GET /api/markets/{id}/odds
func (h *MarketHandler) GetImpliedOdds(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}
	odds, hasBets, err := h.markets.GetImpliedOdds(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to get implied odds")
		return
	}
	writeJSON(w, http.StatusOK, oddsResponse{
		MarketID: id,
		HasBets:  hasBets,
		Odds:     odds,
	})
}

// GetPosition returns an account's position in a market.
// GET /api/markets/{id}/position?account=0x...
func (h *MarketHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}
	account, err := domain.ParseAccountID(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed account address")
		return
	}

	position, err := h.markets.GetPosition(r.Context(), id, account)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to get position")
		return
	}
	writeJSON(w, http.StatusOK, position)
}
