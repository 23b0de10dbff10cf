package models

import "time"

// ScheduleStatus is the lifecycle state of a scheduling link.
type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusExpired   ScheduleStatus = "expired"
)

// ScheduleLink marks a Thema, Aufgabe or Todo as occupying a calendar slot.
// The referenced block may be deleted later without the link being eagerly
// invalidated; the expiry cleanup pass tags stale links as expired rather
// than removing them, and only an explicit unschedule drops the link.
type ScheduleLink struct {
	BlockID     string         `json:"blockId"`
	Date        string         `json:"date"`
	BlockTitle  string         `json:"blockTitle"`
	ScheduledAt time.Time      `json:"scheduledAt"`
	Status      ScheduleStatus `json:"status"`
}

// Todo is a standalone task that can be scheduled into a block without
// belonging to the topic hierarchy.
type Todo struct {
	ID               string        `json:"id"`
	Text             string        `json:"text"`
	Completed        bool          `json:"completed"`
	ScheduledInBlock *ScheduleLink `json:"scheduledInBlock,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}
