package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the kind of change an Event reports.
type EventType string

const (
	EventTypeCreated EventType = "created"
	EventTypeUpdated EventType = "updated"
	EventTypeDeleted EventType = "deleted"
	EventTypeChanged EventType = "changed"
)

// EntityType represents the engine entity an Event is about.
type EntityType string

const (
	EntityTypeTransaction   EntityType = "transaction"
	EntityTypeAllocation    EntityType = "allocation"
	EntityTypeAccount       EntityType = "account"
	EntityTypeReconciliation EntityType = "reconciliation"
	EntityTypeMonthlyState  EntityType = "monthly_state"
)

// Event is the message broadcast to every connected client whenever a
// mutating engine operation commits (spec §2 ambient stack: "each ledger
// mutation publishes a change notification the way the teacher's websocket
// layer already does").
type Event struct {
	Type      string      `json:"type"`
	Entity    EntityType  `json:"entity"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new event with the given type, entity, and payload.
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionCreated creates a transaction.created event.
func TransactionCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeTransaction, payload)
}

// TransactionUpdated creates a transaction.updated event (covers edit via
// SCD-2 versioning, spec §4.3).
func TransactionUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeTransaction, payload)
}

// TransactionDeleted creates a transaction.deleted event.
func TransactionDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeTransaction, payload)
}

// AllocationCreated creates an allocation.created event.
func AllocationCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeAllocation, payload)
}

// AllocationUpdated creates an allocation.updated event.
func AllocationUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeAllocation, payload)
}

// AllocationDeleted creates an allocation.deleted event.
func AllocationDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeAllocation, payload)
}

// AccountBalanceChanged creates an account.changed event (current_balance_minor
// moved, spec §4.9).
func AccountBalanceChanged(payload interface{}) Event {
	return NewEvent(EventTypeChanged, EntityTypeAccount, payload)
}

// ReconciliationCommitted creates a reconciliation.created event.
func ReconciliationCommitted(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeReconciliation, payload)
}
