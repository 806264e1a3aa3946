package dto

import "time"

// ScheduleRequest carries the external scheduling fields of a record.
type ScheduleRequest struct {
	ScheduledDate string `json:"scheduledDate"`
	ScheduledTime string `json:"scheduledTime"`
}

// ScheduleCommand arrives on the commands topic.
type ScheduleCommand struct {
	Command       string `json:"command"` // schedule, publish, cancel
	ExternalID    string `json:"external_id"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
	ScheduledTime string `json:"scheduled_time,omitempty"`
}

// SweepResult aggregates one publish sweep.
type SweepResult struct {
	Attempted int           `json:"attempted"`
	Published int           `json:"published"`
	Skipped   int           `json:"skipped"` // already promoted or rescheduled concurrently
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}
