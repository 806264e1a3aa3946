package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
)

const (
	ScheduleDateLayout = "2006-01-02"
	ScheduleTimeLayout = "15:04"
	_defaultClock      = "00:00"
)

// Schedule is the normalized form of the scheduledDate/scheduledTime pair.
type Schedule struct {
	Date      string
	Time      string
	PublishAt time.Time
}

// ParseSchedule combines a date and an optional wall clock time into a
// publish instant in loc. Both empty means "not scheduled" and yields nil.
func ParseSchedule(date, clock string, loc *time.Location) (*Schedule, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	if date == "" && clock == "" {
		return nil, nil
	}
	if date == "" {
		return nil, fmt.Errorf("%w: scheduledTime given without scheduledDate", errs.ErrValidation)
	}
	if clock == "" {
		clock = _defaultClock
	}
	if loc == nil {
		loc = time.UTC
	}

	if _, err := time.Parse(ScheduleDateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: scheduledDate %q must be YYYY-MM-DD", errs.ErrValidation, date)
	}
	if _, err := time.Parse(ScheduleTimeLayout, clock); err != nil {
		return nil, fmt.Errorf("%w: scheduledTime %q must be HH:MM", errs.ErrValidation, clock)
	}

	at, err := time.ParseInLocation(ScheduleDateLayout+" "+ScheduleTimeLayout, date+" "+clock, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	return &Schedule{
		Date:      date,
		Time:      clock,
		PublishAt: at,
	}, nil
}

// ToScheduled builds the draft -> scheduled change for s.
func (s *Schedule) ToScheduled() StatusChange {
	publishAt := s.PublishAt
	date := s.Date
	clock := s.Time

	return StatusChange{
		From:          []Status{Draft},
		To:            Scheduled,
		ScheduledDate: &date,
		ScheduledTime: &clock,
		PublishAt:     &publishAt,
	}
}
