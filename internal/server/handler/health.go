package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

// Clock is the height source the health endpoint reports from.
type Clock interface {
	Height() domain.Height
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	clock  Clock
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(clock Clock, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		clock:  clock,
		logger: logger,
	}
}

// HealthCheck responds with a simple JSON status and the current block
// height.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"height":    h.clock.Height(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
