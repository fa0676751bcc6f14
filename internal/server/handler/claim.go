package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

// ClaimService defines the engine methods the claim handler requires.
type ClaimService interface {
	ClaimWinnings(ctx context.Context, caller domain.AccountID, id domain.MarketID) (uint64, error)
	GetBalance(ctx context.Context, account domain.AccountID) (uint64, error)
}

// ClaimHandler serves the winnings claim endpoint.
type ClaimHandler struct {
	claims ClaimService
	logger *slog.Logger
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(claims ClaimService, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{
		claims: claims,
		logger: logger,
	}
}

// claimResponse reports the paid amount and the caller's resulting balance.
type claimResponse struct {
	MarketID domain.MarketID `json:"market_id"`
	Amount   uint64          `json:"amount"`
	Balance  uint64          `json:"balance"`
}

// ClaimWinnings pays out the caller's share of a resolved market's pool.
// POST /api/markets/{id}/claims
func (h *ClaimHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}

	amount, err := h.claims.ClaimWinnings(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to claim winnings")
		return
	}

	balance, err := h.claims.GetBalance(r.Context(), caller)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load balance")
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{
		MarketID: id,
		Amount:   amount,
		Balance:  balance,
	})
}
