package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventRecordCreated   = "catalog.record.created"
	EventRecordPublished = "catalog.record.published"
)

type OutboxEvent struct {
	ID          uuid.UUID    `json:"id"`
	AggregateID uuid.UUID    `json:"aggregate_id"`
	EventType   string       `json:"event_type"`
	Payload     []byte       `json:"payload"`
	Status      OutboxStatus `json:"status"` // pending, processing, processed, failed
	CreatedAt   time.Time    `json:"created_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
	RetryCount  int          `json:"retry_count"`
}
