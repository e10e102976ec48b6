package entity

import "time"

// WorkflowNotification is the side-effect record written by the
// create_notification and notify_assignees auto-actions. Delivery channels
// beyond the intranet inbox are owned by the notification subsystem.
type WorkflowNotification struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	EntityID   int64      `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	Kind       string     `json:"kind"`
	Message    string     `json:"message"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
