package events

import (
	"github.com/aristath/tradeledger/internal/domain"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// OwnedEventData is event data that only concerns one user.
type OwnedEventData interface {
	EventData
	OwnerID() string
}

// TradeCompletedData is published once per committed trade.
type TradeCompletedData struct {
	Confirmation domain.TradeConfirmation `json:"confirmation"`
	Portfolio    *domain.PortfolioView    `json:"portfolio,omitempty"`
}

// EventType returns the event type for TradeCompletedData
func (d *TradeCompletedData) EventType() EventType {
	return TradeCompleted
}

// OwnerID returns the trading user
func (d *TradeCompletedData) OwnerID() string {
	return d.Confirmation.UserID
}

// PortfolioChangedData contains data for PortfolioChanged events
type PortfolioChangedData struct {
	UserID      string `json:"user_id"`
	PortfolioID string `json:"portfolio_id"`
	Symbol      string `json:"symbol"`
	Change      string `json:"change"` // created, updated, deleted
}

// EventType returns the event type for PortfolioChangedData
func (d *PortfolioChangedData) EventType() EventType {
	return PortfolioChanged
}

// OwnerID returns the portfolio owner
func (d *PortfolioChangedData) OwnerID() string {
	return d.UserID
}

// PriceUpdatedData contains data for PriceUpdated events
type PriceUpdatedData struct {
	Stock         domain.Stock `json:"stock"`
	PreviousPrice string       `json:"previous_price"`
}

// EventType returns the event type for PriceUpdatedData
func (d *PriceUpdatedData) EventType() EventType {
	return PriceUpdated
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
