package workflow

import (
	"context"

	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/domain/role"
)

// AvailableTransition is a transition leaving the entity's current state,
// annotated with its target state for display.
type AvailableTransition struct {
	Transition *entity.WorkflowTransition `json:"transition"`
	ToState    *entity.WorkflowState      `json:"to_state"`
}

// ExecuteInput carries everything needed to attempt a transition
type ExecuteInput struct {
	EntityID   int64
	EntityType entity.EntityType
	ToState    string
	ActorID    int64
	ActorRole  role.Role
	Comment    string
	Metadata   map[string]interface{}
}

// ExecuteResult is the outcome of a successful transition
type ExecuteResult struct {
	PreviousState *entity.WorkflowState `json:"previous_state"`
	NewState      *entity.WorkflowState `json:"new_state"`
}

// Engine orchestrates transition execution and history/availability queries
// for any workflow-driven entity. The engine is stateless: the machine's
// current state is the entity's persisted current_state_id.
type Engine interface {
	// GetAvailableTransitions returns the transitions leaving the entity's
	// current state whose allowed roles contain actorRole, along with the
	// current state itself
	GetAvailableTransitions(ctx context.Context, entityID int64, entityType entity.EntityType, actorRole role.Role) ([]*AvailableTransition, *entity.WorkflowState, error)

	// ExecuteTransition attempts a transition to the state named by
	// input.ToState. The state update and history insert commit atomically;
	// configured auto-actions run after commit and never fail the transition.
	ExecuteTransition(ctx context.Context, input *ExecuteInput) (*ExecuteResult, error)

	// GetStateHistory returns the entity's audit trail, oldest first
	GetStateHistory(ctx context.Context, entityID int64, entityType entity.EntityType, limit, offset int) ([]*entity.StateHistory, error)

	// RecordInitialState appends the history row for an entity entering its
	// workflow's initial state at creation (from-state is null)
	RecordInitialState(ctx context.Context, entityID int64, entityType entity.EntityType, stateID, actorID int64) error
}
