package domain

import "time"

// EventType names one kind of settlement event.
type EventType string

const (
	EventMarketCreated       EventType = "market_created"
	EventBetPlaced           EventType = "bet_placed"
	EventResolutionRequested EventType = "resolution_requested"
	EventMarketResolved      EventType = "market_resolved"
	EventWinningsClaimed     EventType = "winnings_claimed"
	EventAgentConfigured     EventType = "agent_configured"
	EventDeposit             EventType = "deposit"
)

// SettlementChannel is the bus channel carrying all settlement events.
const SettlementChannel = "ch:settlement"

// SettlementStream is the durable stream name for settlement events.
const SettlementStream = "settlement_events"

// Event is one entry of the append-only settlement record. Events are
// written in the same transaction as the state change they describe.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	MarketID  MarketID       `json:"market_id"`
	Account   AccountID      `json:"account,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
