// Package events provides in-process publish/subscribe for domain events.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	TradeCompleted   EventType = "TRADE_COMPLETED"
	PortfolioChanged EventType = "PORTFOLIO_CHANGED"
	PriceUpdated     EventType = "PRICE_UPDATED"
	BackupCompleted  EventType = "BACKUP_COMPLETED"
	ErrorOccurred    EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// UserID returns the owning user for user-scoped events, or "".
func (e *Event) UserID() string {
	if owned, ok := e.Data.(OwnedEventData); ok {
		return owned.OwnerID()
	}
	return ""
}
