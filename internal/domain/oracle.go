package domain

import "context"

// ResolutionRequest is the payload sent to the resolver oracle agent when
// resolution is requested. RequestID correlates the later callback with
// this request in the event log; the callback itself is authorized by
// caller identity and market state, not by the id.
type ResolutionRequest struct {
	RequestID          string    `json:"request_id"`
	MarketID           MarketID  `json:"market_id"`
	Question           string    `json:"question"`
	Options            []string  `json:"options"`
	ResolutionCriteria string    `json:"resolution_criteria"`
	ResolutionSource   string    `json:"resolution_source"`
	Target             AccountID `json:"target_agent"`
}

// ResolverDispatcher delivers resolution requests to the oracle. Dispatch
// is fire-and-forget from the engine's perspective: it runs after the
// state transition has committed, never blocks the calling request, and a
// delivery failure is an operational problem for the oracle's retry
// policy, not a settlement error.
type ResolverDispatcher interface {
	Dispatch(ctx context.Context, req ResolutionRequest) error
}
