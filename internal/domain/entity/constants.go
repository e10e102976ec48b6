package entity

// EntityType identifies which kind of entity a workflow definition drives
type EntityType string

const (
	EntityTypeRequest EntityType = "REQUEST"
	EntityTypeTask    EntityType = "TASK"
)

// IsValid returns true if the entity type is one of the defined kinds
func (t EntityType) IsValid() bool {
	return t == EntityTypeRequest || t == EntityTypeTask
}

// String returns the string representation of the entity type
func (t EntityType) String() string {
	return string(t)
}

// Request type constants, mapped to workflow definition codes at creation
const (
	RequestTypeFreeDay   = "FREE_DAY"
	RequestTypeSickLeave = "SICK_LEAVE"
)

// Task type constants
const (
	TaskTypeGeneric = "GENERIC"
	TaskTypeVoting  = "VOTING"
)

// WorkflowCodeForRequestType maps a domain request type to its workflow code
func WorkflowCodeForRequestType(requestType string) (string, bool) {
	switch requestType {
	case RequestTypeFreeDay:
		return "request_free_day", true
	case RequestTypeSickLeave:
		return "request_sick_leave", true
	default:
		return "", false
	}
}

// WorkflowCodeForTaskType maps a domain task type to its workflow code
func WorkflowCodeForTaskType(taskType string) (string, bool) {
	switch taskType {
	case TaskTypeGeneric:
		return "task_generic", true
	case TaskTypeVoting:
		return "task_voting", true
	default:
		return "", false
	}
}

// Document status constants for RequestDocument
const (
	DocumentStatusPending  = "pending"
	DocumentStatusValid    = "valid"
	DocumentStatusRejected = "rejected"
)

// Notification kind constants for WorkflowNotification
const (
	NotificationKindStateChanged  = "state_changed"
	NotificationKindTaskAssigned  = "task_assigned"
	NotificationKindTaskCompleted = "task_completed"
	NotificationKindTaskOverdue   = "task_overdue"
)
