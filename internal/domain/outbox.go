package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated     = "order.created"
	EventPaymentCompleted = "payment.completed"
)

type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
