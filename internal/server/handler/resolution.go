package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

// ResolutionService defines the engine methods the resolution handler
// requires.
type ResolutionService interface {
	RequestResolution(ctx context.Context, caller domain.AccountID, id domain.MarketID) (domain.ResolutionRequest, error)
	ResolveCallback(ctx context.Context, caller domain.AccountID, id domain.MarketID, winning domain.OptionIndex) error
}

// ResolutionHandler serves the two halves of the oracle handshake: the
// resolution request and the authorized callback.
type ResolutionHandler struct {
	resolutions ResolutionService
	logger      *slog.Logger
}

// NewResolutionHandler creates a ResolutionHandler.
func NewResolutionHandler(resolutions ResolutionService, logger *slog.Logger) *ResolutionHandler {
	return &ResolutionHandler{
		resolutions: resolutions,
		logger:      logger,
	}
}

// RequestResolution transitions a past-deadline market into the
// resolution_requested state and dispatches a webhook to the resolver.
// POST /api/markets/{id}/resolution-requests
func (h *ResolutionHandler) RequestResolution(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}

	req, err := h.resolutions.RequestResolution(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to request resolution")
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

// resolveCallbackRequest is the body the resolver oracle posts back.
type resolveCallbackRequest struct {
	MarketID      domain.MarketID    `json:"market_id"`
	RequestID     string             `json:"request_id"`
	WinningOption domain.OptionIndex `json:"winning_option"`
}

// ResolveCallback accepts the resolver oracle's verdict and settles the
// market.
// POST /api/resolution-callback
func (h *ResolutionHandler) ResolveCallback(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req resolveCallbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.resolutions.ResolveCallback(r.Context(), caller, req.MarketID, req.WinningOption); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to resolve market")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": req.MarketID,
		"resolved":  true,
	})
}
