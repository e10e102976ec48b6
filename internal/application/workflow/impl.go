package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/domain/role"
	domainwf "github.com/mgallego/colegio-intranet/internal/domain/workflow"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	definitions port.DefinitionRepository
	stores      map[entity.EntityType]port.EntityStore
	history     port.HistoryRepository
	validators  *ValidatorRegistry
	actions     *ActionDispatcher
	txManager   port.TransactionManager
	logger      *zap.Logger
}

// NewEngine creates a workflow engine over the given entity stores
func NewEngine(
	definitions port.DefinitionRepository,
	requests port.EntityStore,
	tasks port.EntityStore,
	history port.HistoryRepository,
	validators *ValidatorRegistry,
	actions *ActionDispatcher,
	txManager port.TransactionManager,
	logger *zap.Logger,
) Engine {
	return &engineImpl{
		definitions: definitions,
		stores: map[entity.EntityType]port.EntityStore{
			entity.EntityTypeRequest: requests,
			entity.EntityTypeTask:    tasks,
		},
		history:    history,
		validators: validators,
		actions:    actions,
		txManager:  txManager,
		logger:     logger,
	}
}

// entityContext is the resolved workflow position of an entity
type entityContext struct {
	ref     *port.WorkflowRef
	graph   *domainwf.Graph
	current *entity.WorkflowState
}

// resolve loads an entity's workflow reference, its definition graph and its
// current state
func (e *engineImpl) resolve(ctx context.Context, entityID int64, entityType entity.EntityType) (*entityContext, error) {
	store, ok := e.stores[entityType]
	if !ok {
		return nil, domainwf.NewError(domainwf.KindNotFound, "unknown entity type %s", entityType)
	}

	ref, err := store.GetWorkflowRef(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %d: %w", entityType, entityID, err)
	}
	if ref == nil {
		return nil, domainwf.NewError(domainwf.KindNotFound, "%s %d not found", strings.ToLower(entityType.String()), entityID)
	}
	if ref.WorkflowID == nil || ref.CurrentStateID == nil {
		// Legacy entity created before workflows existed
		return nil, domainwf.NewError(domainwf.KindInvalidState, "%s %d has no workflow", strings.ToLower(entityType.String()), entityID)
	}

	def, err := e.definitions.GetByID(ctx, *ref.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %d: %w", *ref.WorkflowID, err)
	}
	if def == nil {
		return nil, domainwf.NewError(domainwf.KindNotFound, "workflow %d not found", *ref.WorkflowID)
	}

	graph := domainwf.NewGraph(def)
	current, ok := graph.StateByID(*ref.CurrentStateID)
	if !ok {
		return nil, domainwf.NewError(domainwf.KindInvalidState,
			"%s %d references state %d outside its workflow", strings.ToLower(entityType.String()), entityID, *ref.CurrentStateID)
	}

	return &entityContext{ref: ref, graph: graph, current: current}, nil
}

// GetAvailableTransitions implements Engine
func (e *engineImpl) GetAvailableTransitions(ctx context.Context, entityID int64, entityType entity.EntityType, actorRole role.Role) ([]*AvailableTransition, *entity.WorkflowState, error) {
	ec, err := e.resolve(ctx, entityID, entityType)
	if err != nil {
		return nil, nil, err
	}

	available := make([]*AvailableTransition, 0)
	for _, transition := range ec.graph.OutgoingFrom(ec.current.ID) {
		if !transition.Allows(actorRole) {
			continue
		}
		toState, ok := ec.graph.StateByID(transition.ToStateID)
		if !ok {
			continue
		}
		available = append(available, &AvailableTransition{
			Transition: transition,
			ToState:    toState,
		})
	}

	return available, ec.current, nil
}

// ExecuteTransition implements Engine.
//
// Order of checks: legality of the edge, role, comment, required fields,
// validator. Only then does the atomic unit run: guarded state update plus
// history insert, both or neither. Auto-actions fire after commit and are
// best-effort by contract.
func (e *engineImpl) ExecuteTransition(ctx context.Context, input *ExecuteInput) (*ExecuteResult, error) {
	ec, err := e.resolve(ctx, input.EntityID, input.EntityType)
	if err != nil {
		return nil, err
	}

	toState, ok := ec.graph.StateByCode(input.ToState)
	if !ok {
		return nil, domainwf.NewError(domainwf.KindUnknownState,
			"state %s does not exist in workflow %s", input.ToState, ec.graph.Definition().Code)
	}

	transition, ok := ec.graph.Edge(ec.current.ID, toState.ID)
	if !ok {
		return nil, domainwf.NewError(domainwf.KindTransitionNotAllowed,
			"no transition from %s to %s", ec.current.Code, toState.Code)
	}

	if !transition.Allows(input.ActorRole) {
		return nil, domainwf.NewError(domainwf.KindForbidden,
			"role %s may not execute %s -> %s", input.ActorRole, ec.current.Code, toState.Code)
	}

	if transition.RequiresComment && strings.TrimSpace(input.Comment) == "" {
		return nil, domainwf.NewError(domainwf.KindCommentRequired,
			"transition %s -> %s requires a comment", ec.current.Code, toState.Code)
	}

	for _, field := range transition.RequiresFields {
		if value, present := input.Metadata[field]; !present || value == nil {
			return nil, domainwf.NewError(domainwf.KindMissingField,
				"required field %q is missing", field)
		}
	}

	if transition.ValidatorCode != "" {
		validator, ok := e.validators.Get(transition.ValidatorCode)
		if !ok {
			// Fail closed: an unregistered validator never silently passes
			return nil, domainwf.NewError(domainwf.KindValidatorNotFound,
				"validator %s is not registered", transition.ValidatorCode)
		}
		if err := validator.Validate(ctx, &ValidationInput{
			EntityID:   input.EntityID,
			EntityType: input.EntityType,
			Metadata:   input.Metadata,
		}); err != nil {
			return nil, err
		}
	}

	metadata, err := encodeMetadata(input.Metadata)
	if err != nil {
		return nil, err
	}

	store := e.stores[input.EntityType]
	fromStateID := ec.current.ID

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := store.UpdateCurrentState(txCtx, input.EntityID, fromStateID, toState.ID, toState.Code); err != nil {
			return err
		}

		record := &entity.StateHistory{
			EntityID:    input.EntityID,
			EntityType:  input.EntityType,
			FromStateID: &fromStateID,
			ToStateID:   toState.ID,
			ActorID:     input.ActorID,
			Comment:     input.Comment,
			Metadata:    metadata,
		}
		return e.history.Create(txCtx, record)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Transition executed",
		zap.String("entity_type", input.EntityType.String()),
		zap.Int64("entity_id", input.EntityID),
		zap.String("from", ec.current.Code),
		zap.String("to", toState.Code),
		zap.Int64("actor_id", input.ActorID),
		zap.String("actor_role", input.ActorRole.String()))

	// The transition is durable; anything from here on is best-effort
	if len(transition.AutoActions) > 0 {
		e.actions.Dispatch(ctx, transition.AutoActions, &ActionInput{
			EntityID:   input.EntityID,
			EntityType: input.EntityType,
			OwnerID:    ec.ref.OwnerID,
			ActorID:    input.ActorID,
			FromState:  ec.current,
			ToState:    toState,
			Metadata:   input.Metadata,
		})
	}

	return &ExecuteResult{
		PreviousState: ec.current,
		NewState:      toState,
	}, nil
}

// GetStateHistory implements Engine
func (e *engineImpl) GetStateHistory(ctx context.Context, entityID int64, entityType entity.EntityType, limit, offset int) ([]*entity.StateHistory, error) {
	store, ok := e.stores[entityType]
	if !ok {
		return nil, domainwf.NewError(domainwf.KindNotFound, "unknown entity type %s", entityType)
	}

	ref, err := store.GetWorkflowRef(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, domainwf.NewError(domainwf.KindNotFound, "%s %d not found", strings.ToLower(entityType.String()), entityID)
	}

	return e.history.GetByEntity(ctx, entityID, entityType, limit, offset)
}

// RecordInitialState implements Engine
func (e *engineImpl) RecordInitialState(ctx context.Context, entityID int64, entityType entity.EntityType, stateID, actorID int64) error {
	return e.history.Create(ctx, &entity.StateHistory{
		EntityID:   entityID,
		EntityType: entityType,
		ToStateID:  stateID,
		ActorID:    actorID,
	})
}

func encodeMetadata(metadata map[string]interface{}) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode transition metadata: %w", err)
	}
	return string(data), nil
}
