package entity

import "time"

// CalendarEvent is a calendar allocation created for an approved request.
// Rows are written by the create_calendar_event auto-action and removed by
// remove_calendar_event when an approved request is cancelled.
type CalendarEvent struct {
	ID        int64     `json:"id"`
	RequestID int64     `json:"request_id"`
	UserID    int64     `json:"user_id"`
	EventDate time.Time `json:"event_date"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Calendar event kind constants
const (
	CalendarKindFreeDay   = "free_day"
	CalendarKindSickLeave = "sick_leave"
)
