package core

import "time"

type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventGoalUpdated        EventType = "goal.balance_updated"
	EventSavingsUpdated     EventType = "savings.updated"
)

// Event notifies other systems that ledger state changed. It carries ids
// only; consumers read the record from storage.
type Event struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"userId,omitempty"`
	EntityID   string    `json:"entityId"`
	Amount     Money     `json:"amount"`
	Count      int       `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
