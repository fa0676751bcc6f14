package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

// EventService defines the engine methods the event handler requires.
type EventService interface {
	ListEvents(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error)
	MarketEvents(ctx context.Context, id domain.MarketID) ([]domain.Event, error)
}

// EventHandler serves the settlement event log.
type EventHandler struct {
	events EventService
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger,
	}
}

// ListEvents returns settlement events, newest first.
// GET /api/events?limit=50&offset=0&since=RFC3339&until=RFC3339
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	q := r.URL.Query()
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed since timestamp")
			return
		}
		opts.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed until timestamp")
			return
		}
		opts.Until = &t
	}

	events, err := h.events.ListEvents(r.Context(), opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list events")
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// MarketEvents returns a single market's events in append order.
// GET /api/markets/{id}/events
func (h *EventHandler) MarketEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(w, r)
	if !ok {
		return
	}
	events, err := h.events.MarketEvents(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list market events")
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
