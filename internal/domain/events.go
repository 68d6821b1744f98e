package domain

import "time"

// Event types
const (
	EventTypeAdhesionMember      = "adhesion.member"
	EventTypeAdhesionExpired     = "adhesion.expired"
	EventTypeLoanDisbursed       = "loan.disbursed"
	EventTypeLoanSettled         = "loan.settled"
	EventTypeRetraitConfirmed    = "retrait.confirmed"
	EventTypeRetraitExpired      = "retrait.expired"
	EventTypeTransactionTerminal = "transaction.terminal"
)

// Aggregate types
const (
	AggregateTypeAdhesion    = "adhesion"
	AggregateTypeLoan        = "loan"
	AggregateTypeRetrait     = "retrait"
	AggregateTypeTransaction = "transaction"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// NewOutboxEvent builds an unpublished event.
func NewOutboxEvent(id, aggregateType, aggregateID, eventType string, payload map[string]any, at time.Time) *OutboxEvent {
	return &OutboxEvent{
		ID:            id,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     at,
	}
}
