package port

import (
	"context"
	"time"

	"github.com/mgallego/colegio-intranet/internal/domain/entity"
)

// DefinitionRepository defines persistence operations for workflow
// definitions and their state/transition graphs.
type DefinitionRepository interface {
	// Create persists a new definition (without graph)
	Create(ctx context.Context, def *entity.WorkflowDefinition) error

	// GetByID retrieves a definition with its states and transitions,
	// regardless of is_active (historical entities keep their definition)
	GetByID(ctx context.Context, id int64) (*entity.WorkflowDefinition, error)

	// GetByCode retrieves an active definition with its states and transitions
	GetByCode(ctx context.Context, code string) (*entity.WorkflowDefinition, error)

	// List retrieves all definitions without their graphs
	List(ctx context.Context) ([]*entity.WorkflowDefinition, error)

	// AddState appends a state to a definition
	AddState(ctx context.Context, state *entity.WorkflowState) error

	// DeleteState removes a state row
	DeleteState(ctx context.Context, stateID int64) error

	// AddTransition appends a transition edge to a definition
	AddTransition(ctx context.Context, transition *entity.WorkflowTransition) error

	// DeleteTransition removes a transition edge
	DeleteTransition(ctx context.Context, transitionID int64) error

	// BumpVersion increments a definition's version after a structural edit
	BumpVersion(ctx context.Context, workflowID int64) error
}

// WorkflowRef is the workflow-relevant slice of a driven entity
type WorkflowRef struct {
	EntityID       int64
	OwnerID        int64
	WorkflowID     *int64
	CurrentStateID *int64
}

// EntityStore is the engine's view of a workflow-driven entity kind.
// Both RequestRepository and TaskRepository implement it.
type EntityStore interface {
	// GetWorkflowRef loads an entity's workflow reference; nil if the entity
	// does not exist
	GetWorkflowRef(ctx context.Context, id int64) (*WorkflowRef, error)

	// UpdateCurrentState moves the entity to a new state, guarded by the
	// state observed at read time. statusCode mirrors the new state's code
	// into the legacy status column. Returns a Conflict workflow error when
	// the guard does not match (concurrent transition won).
	UpdateCurrentState(ctx context.Context, id, fromStateID, toStateID int64, statusCode string) error

	// CountInState returns how many entities currently sit in a state
	CountInState(ctx context.Context, stateID int64) (int64, error)
}

// RequestRepository defines persistence operations for Request
type RequestRepository interface {
	EntityStore

	Create(ctx context.Context, request *entity.Request) error
	GetByID(ctx context.Context, id int64) (*entity.Request, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Request, error)
	ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]*entity.Request, error)
	Delete(ctx context.Context, id int64) error
}

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	EntityStore

	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id int64) (*entity.Task, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Task, error)
	SetCompletedAt(ctx context.Context, id int64, completedAt time.Time) error

	CreateAssignment(ctx context.Context, assignment *entity.TaskAssignment) error
	GetAssignments(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error)
	CompleteAssignment(ctx context.Context, taskID, assigneeID int64) error

	// ListOverdue returns open tasks whose due date passed before the given
	// time and that have not been reminded yet
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]*entity.Task, error)

	// MarkReminderSent stamps a task as reminded so it is notified only once
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
}

// HistoryRepository defines persistence operations for the append-only
// state history. Rows are never updated or individually deleted; the only
// delete path is the hard cancellation of a pending request.
type HistoryRepository interface {
	Create(ctx context.Context, record *entity.StateHistory) error
	GetByEntity(ctx context.Context, entityID int64, entityType entity.EntityType, limit, offset int) ([]*entity.StateHistory, error)
	DeleteByEntity(ctx context.Context, entityID int64, entityType entity.EntityType) error
}

// NotificationRepository defines persistence operations for WorkflowNotification
type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.WorkflowNotification) error
	GetByUser(ctx context.Context, userID int64, limit, offset int) ([]*entity.WorkflowNotification, error)
	MarkRead(ctx context.Context, id int64) error
	DeleteByEntity(ctx context.Context, entityID int64, entityType entity.EntityType) error
}

// CalendarRepository defines persistence operations for CalendarEvent
type CalendarRepository interface {
	Create(ctx context.Context, event *entity.CalendarEvent) error
	GetByRequestID(ctx context.Context, requestID int64) ([]*entity.CalendarEvent, error)
	DeleteByRequestID(ctx context.Context, requestID int64) (int64, error)
}

// DocumentRepository defines persistence operations for RequestDocument
// metadata rows. File contents live in the storage subsystem, out of scope.
type DocumentRepository interface {
	Create(ctx context.Context, document *entity.RequestDocument) error
	GetByRequestID(ctx context.Context, requestID int64) ([]*entity.RequestDocument, error)
	CountValidByRequestID(ctx context.Context, requestID int64) (int64, error)
	DeleteByRequestID(ctx context.Context, requestID int64) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
