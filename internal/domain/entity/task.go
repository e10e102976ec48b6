package entity

import "time"

// Task represents a staff task driven through a workflow. Voting tasks carry
// VotingOptions (JSON array) and a voting deadline.
type Task struct {
	ID             int64      `json:"id"`
	Reference      string     `json:"reference"`
	Type           string     `json:"type"`
	WorkflowID     *int64     `json:"workflow_id,omitempty"`
	CurrentStateID *int64     `json:"current_state_id,omitempty"`
	Status         string     `json:"status"`
	CreatorID      int64      `json:"creator_id"`
	Context        string     `json:"context"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	VotingOptions  string     `json:"voting_options,omitempty"`
	VotingEndsAt   *time.Time `json:"voting_ends_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Populated when the task is loaded with its assignments
	Assignments []*TaskAssignment `json:"assignments,omitempty"`
}

// HasWorkflow returns true if the task is driven by a workflow definition
func (t *Task) HasWorkflow() bool {
	return t.WorkflowID != nil && t.CurrentStateID != nil
}

// IsVoting returns true for voting-type tasks
func (t *Task) IsVoting() bool {
	return t.Type == TaskTypeVoting
}

// TaskAssignment is one assignee of a task with its own completion timestamp
type TaskAssignment struct {
	ID          int64      `json:"id"`
	TaskID      int64      `json:"task_id"`
	AssigneeID  int64      `json:"assignee_id"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
