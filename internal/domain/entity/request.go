package entity

import "time"

// Request represents a staff request (free day, sick leave) driven through a
// workflow. WorkflowID and CurrentStateID are nullable: legacy rows created
// before workflows were introduced carry neither, and callers must fall back
// to the legacy Status column for them.
//
// CurrentStateID is mutated exclusively through the workflow engine's
// transition operation; Status mirrors the state code and is written inside
// the same transaction so both columns always agree.
type Request struct {
	ID             int64      `json:"id"`
	Reference      string     `json:"reference"`
	Type           string     `json:"type"`
	WorkflowID     *int64     `json:"workflow_id,omitempty"`
	CurrentStateID *int64     `json:"current_state_id,omitempty"`
	Status         string     `json:"status"`
	RequesterID    int64      `json:"requester_id"`
	AdminID        *int64     `json:"admin_id,omitempty"`
	Context        string     `json:"context"`
	RequestedDate  time.Time  `json:"requested_date"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasWorkflow returns true if the request is driven by a workflow definition
func (r *Request) HasWorkflow() bool {
	return r.WorkflowID != nil && r.CurrentStateID != nil
}

// RequestDocument is the metadata row for a document attached to a request.
// File contents live in the storage subsystem, out of scope here; the
// check_documents validator only inspects these rows.
type RequestDocument struct {
	ID         int64     `json:"id"`
	RequestID  int64     `json:"request_id"`
	FileName   string    `json:"file_name"`
	Status     string    `json:"status"`
	UploadedAt time.Time `json:"uploaded_at"`
}
