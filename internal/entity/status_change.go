package entity

import (
	"time"

	"github.com/google/uuid"
)

// StatusChange is a guarded update of a record's scheduling state. It only
// applies while the stored status is one of From and, when DueBy is set,
// while publish_at <= DueBy. All scheduling columns are overwritten with the
// given values, so nil clears them.
type StatusChange struct {
	From  []Status
	DueBy *time.Time

	To            Status
	ScheduledDate *string
	ScheduledTime *string
	PublishAt     *time.Time
	PublishedAt   *time.Time
}

// Apply copies the target state onto r.
func (c StatusChange) Apply(r *CatalogRecord) {
	r.Status = c.To
	r.ScheduledDate = c.ScheduledDate
	r.ScheduledTime = c.ScheduledTime
	r.PublishAt = c.PublishAt
	r.PublishedAt = c.PublishedAt
}

// Allows reports whether the change may be applied to a record currently in s.
func (c StatusChange) Allows(s Status) bool {
	for _, from := range c.From {
		if from == s {
			return true
		}
	}

	return false
}

// DueRecord is the projection read by a publish sweep.
type DueRecord struct {
	ID         uuid.UUID
	ExternalID string
	PublishAt  time.Time
}
