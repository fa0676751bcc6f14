package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

// BetService defines the engine methods the bet handler requires.
type BetService interface {
	PlaceBet(ctx context.Context, caller domain.AccountID, id domain.MarketID, option domain.OptionIndex, amount uint64) error
	GetPosition(ctx context.Context, id domain.MarketID, account domain.AccountID) (domain.Position, error)
}

// BetHandler serves the bet placement endpoint.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		logger: logger,
	}
}

// placeBetRequest is the body for bet placement.
type placeBetRequest struct {
	Option domain.OptionIndex `json:"option"`
	Amount uint64             `json:"amount"`
}

// PlaceBet stakes the caller's funds on one option of an open market and
// returns the caller's updated position.
// POST /api/markets/{id}/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}
	var req placeBetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.bets.PlaceBet(r.Context(), caller, id, req.Option, req.Amount); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to place bet")
		return
	}

	position, err := h.bets.GetPosition(r.Context(), id, caller)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load position")
		return
	}
	writeJSON(w, http.StatusCreated, position)
}
