package service

import (
	"context"
	"fmt"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/application/workflow"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/domain/role"
	domainwf "github.com/mgallego/colegio-intranet/internal/domain/workflow"
	"github.com/mgallego/colegio-intranet/pkg/utils"
)

// CreateWorkflowInput carries the fields of a new workflow definition
type CreateWorkflowInput struct {
	Code        string
	Name        string
	Description string
	EntityType  entity.EntityType
}

// AddStateInput carries the fields of a new workflow state
type AddStateInput struct {
	WorkflowID int64
	Code       string
	Name       string
	Color      string
	Order      int
	IsInitial  bool
	IsFinal    bool
	IsTerminal bool
}

// AddTransitionInput carries the fields of a new workflow transition.
// From and To are state codes within the workflow.
type AddTransitionInput struct {
	WorkflowID      int64
	From            string
	To              string
	AllowedRoles    []role.Role
	RequiresComment bool
	RequiresFields  []string
	AutoActions     []string
	ValidatorCode   string
}

// WorkflowAdminService is the authoring surface for workflow definitions.
// Every structural edit is validated against the graph invariants before it
// is persisted, and bumps the definition version in the same transaction.
// Validator and action keys are checked against the registered sets so a
// definition can never reference code that does not exist.
type WorkflowAdminService interface {
	CreateWorkflow(ctx context.Context, input *CreateWorkflowInput) (*entity.WorkflowDefinition, error)
	GetWorkflow(ctx context.Context, id int64) (*entity.WorkflowDefinition, error)
	ListWorkflows(ctx context.Context) ([]*entity.WorkflowDefinition, error)
	AddState(ctx context.Context, input *AddStateInput) (*entity.WorkflowState, error)
	DeleteState(ctx context.Context, workflowID, stateID int64) error
	AddTransition(ctx context.Context, input *AddTransitionInput) (*entity.WorkflowTransition, error)
	DeleteTransition(ctx context.Context, workflowID, transitionID int64) error
}

type workflowAdminServiceImpl struct {
	definitions port.DefinitionRepository
	stores      map[entity.EntityType]port.EntityStore
	validators  *workflow.ValidatorRegistry
	actions     *workflow.ActionDispatcher
	txManager   port.TransactionManager
	logger      Logger
}

// NewWorkflowAdminService creates a new WorkflowAdminService
func NewWorkflowAdminService(
	definitions port.DefinitionRepository,
	requests port.EntityStore,
	tasks port.EntityStore,
	validators *workflow.ValidatorRegistry,
	actions *workflow.ActionDispatcher,
	txManager port.TransactionManager,
	logger Logger,
) WorkflowAdminService {
	return &workflowAdminServiceImpl{
		definitions: definitions,
		stores: map[entity.EntityType]port.EntityStore{
			entity.EntityTypeRequest: requests,
			entity.EntityTypeTask:    tasks,
		},
		validators: validators,
		actions:    actions,
		txManager:  txManager,
		logger:     logger,
	}
}

// CreateWorkflow persists an empty active definition at version 1
func (s *workflowAdminServiceImpl) CreateWorkflow(ctx context.Context, input *CreateWorkflowInput) (*entity.WorkflowDefinition, error) {
	if err := utils.ValidateCode(input.Code); err != nil {
		return nil, domainwf.NewError(domainwf.KindInvalidDefinition, "%v", err)
	}
	if input.EntityType != entity.EntityTypeRequest && input.EntityType != entity.EntityTypeTask {
		return nil, domainwf.NewError(domainwf.KindInvalidDefinition,
			"unknown entity type %s", input.EntityType)
	}

	existing, err := s.definitions.GetByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domainwf.NewError(domainwf.KindConflict,
			"workflow code %s already exists", input.Code)
	}

	def := &entity.WorkflowDefinition{
		Code:        input.Code,
		Name:        utils.SanitizeString(input.Name),
		Description: utils.SanitizeString(input.Description),
		EntityType:  input.EntityType,
		Version:     1,
		IsActive:    true,
	}
	if err := s.definitions.Create(ctx, def); err != nil {
		s.logger.Error("Failed to create workflow", "error", err, "code", input.Code)
		return nil, err
	}

	s.logger.Info("Workflow created", "id", def.ID, "code", def.Code, "entity_type", def.EntityType)
	return def, nil
}

// GetWorkflow loads a definition with its full graph
func (s *workflowAdminServiceImpl) GetWorkflow(ctx context.Context, id int64) (*entity.WorkflowDefinition, error) {
	def, err := s.definitions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, domainwf.NewError(domainwf.KindNotFound, "workflow %d not found", id)
	}
	return def, nil
}

// ListWorkflows returns all definitions without their graphs
func (s *workflowAdminServiceImpl) ListWorkflows(ctx context.Context) ([]*entity.WorkflowDefinition, error) {
	return s.definitions.List(ctx)
}

// AddState appends a state to a definition. A second initial state and a
// terminal-but-not-final state are rejected before anything is written.
func (s *workflowAdminServiceImpl) AddState(ctx context.Context, input *AddStateInput) (*entity.WorkflowState, error) {
	if err := utils.ValidateCode(input.Code); err != nil {
		return nil, domainwf.NewError(domainwf.KindInvalidDefinition, "%v", err)
	}
	if err := utils.ValidateHexColor(input.Color); err != nil {
		return nil, domainwf.NewError(domainwf.KindInvalidDefinition, "%v", err)
	}
	if input.IsTerminal && !input.IsFinal {
		return nil, domainwf.NewError(domainwf.KindInvalidDefinition,
			"state %s is terminal but not final", input.Code)
	}

	def, err := s.GetWorkflow(ctx, input.WorkflowID)
	if err != nil {
		return nil, err
	}
	for _, existing := range def.States {
		if existing.Code == input.Code {
			return nil, domainwf.NewError(domainwf.KindConflict,
				"state code %s already exists in workflow %s", input.Code, def.Code)
		}
		if input.IsInitial && existing.IsInitial {
			return nil, domainwf.NewError(domainwf.KindInvalidDefinition,
				"workflow %s already has initial state %s", def.Code, existing.Code)
		}
	}

	state := &entity.WorkflowState{
		WorkflowID: input.WorkflowID,
		Code:       input.Code,
		Name:       utils.SanitizeString(input.Name),
		Color:      input.Color,
		Order:      input.Order,
		IsInitial:  input.IsInitial,
		IsFinal:    input.IsFinal,
		IsTerminal: input.IsTerminal,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.definitions.AddState(txCtx, state); err != nil {
			return fmt.Errorf("add state: %w", err)
		}
		return s.definitions.BumpVersion(txCtx, input.WorkflowID)
	})
	if err != nil {
		s.logger.Error("Failed to add state", "error", err, "workflow_id", input.WorkflowID, "code", input.Code)
		return nil, err
	}

	s.logger.Info("State added", "workflow_id", input.WorkflowID, "state_id", state.ID, "code", state.Code)
	return state, nil
}

// DeleteState removes a state that no transition touches and no entity
// currently sits in
func (s *workflowAdminServiceImpl) DeleteState(ctx context.Context, workflowID, stateID int64) error {
	def, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}

	var state *entity.WorkflowState
	for _, candidate := range def.States {
		if candidate.ID == stateID {
			state = candidate
			break
		}
	}
	if state == nil {
		return domainwf.NewError(domainwf.KindNotFound,
			"state %d not found in workflow %s", stateID, def.Code)
	}

	for _, t := range def.Transitions {
		if t.FromStateID == stateID || t.ToStateID == stateID {
			return domainwf.NewError(domainwf.KindConflict,
				"state %s is referenced by a transition, delete the transition first", state.Code)
		}
	}

	store, ok := s.stores[def.EntityType]
	if !ok {
		return domainwf.NewError(domainwf.KindInvalidDefinition,
			"no store for entity type %s", def.EntityType)
	}
	occupied, err := store.CountInState(ctx, stateID)
	if err != nil {
		return err
	}
	if occupied > 0 {
		return domainwf.NewError(domainwf.KindConflict,
			"%d entities currently in state %s", occupied, state.Code)
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.definitions.DeleteState(txCtx, stateID); err != nil {
			return fmt.Errorf("delete state: %w", err)
		}
		return s.definitions.BumpVersion(txCtx, workflowID)
	})
	if err != nil {
		s.logger.Error("Failed to delete state", "error", err, "workflow_id", workflowID, "state_id", stateID)
		return err
	}

	s.logger.Info("State deleted", "workflow_id", workflowID, "state_id", stateID, "code", state.Code)
	return nil
}

// AddTransition appends an edge between two existing states. The from-state
// must not be terminal, the edge must not duplicate an existing one, every
// allowed role must be valid, and any validator or action key must already
// be registered in the engine.
func (s *workflowAdminServiceImpl) AddTransition(ctx context.Context, input *AddTransitionInput) (*entity.WorkflowTransition, error) {
	def, err := s.GetWorkflow(ctx, input.WorkflowID)
	if err != nil {
		return nil, err
	}

	graph := domainwf.NewGraph(def)
	from, ok := graph.StateByCode(input.From)
	if !ok {
		return nil, domainwf.NewError(domainwf.KindNotFound,
			"state %s not found in workflow %s", input.From, def.Code)
	}
	to, ok := graph.StateByCode(input.To)
	if !ok {
		return nil, domainwf.NewError(domainwf.KindNotFound,
			"state %s not found in workflow %s", input.To, def.Code)
	}

	if from.IsTerminal {
		return nil, domainwf.NewError(domainwf.KindInvalidDefinition,
			"state %s is terminal, it cannot have outgoing transitions", from.Code)
	}
	if _, exists := graph.Edge(from.ID, to.ID); exists {
		return nil, domainwf.NewError(domainwf.KindConflict,
			"transition %s -> %s already exists", from.Code, to.Code)
	}

	if len(input.AllowedRoles) == 0 {
		return nil, domainwf.NewError(domainwf.KindInvalidDefinition,
			"transition %s -> %s needs at least one allowed role", from.Code, to.Code)
	}
	for _, r := range input.AllowedRoles {
		if !r.IsValid() {
			return nil, domainwf.NewError(domainwf.KindInvalidDefinition, "unknown role %s", r)
		}
	}

	if input.ValidatorCode != "" && !s.validators.Known(input.ValidatorCode) {
		return nil, domainwf.NewError(domainwf.KindValidatorNotFound,
			"validator %s is not registered", input.ValidatorCode)
	}
	for _, key := range input.AutoActions {
		if !s.actions.Known(key) {
			return nil, domainwf.NewError(domainwf.KindActionNotFound,
				"action %s is not registered", key)
		}
	}

	transition := &entity.WorkflowTransition{
		WorkflowID:      input.WorkflowID,
		FromStateID:     from.ID,
		ToStateID:       to.ID,
		AllowedRoles:    input.AllowedRoles,
		RequiresComment: input.RequiresComment,
		RequiresFields:  input.RequiresFields,
		AutoActions:     input.AutoActions,
		ValidatorCode:   input.ValidatorCode,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.definitions.AddTransition(txCtx, transition); err != nil {
			return fmt.Errorf("add transition: %w", err)
		}
		return s.definitions.BumpVersion(txCtx, input.WorkflowID)
	})
	if err != nil {
		s.logger.Error("Failed to add transition", "error", err,
			"workflow_id", input.WorkflowID, "from", from.Code, "to", to.Code)
		return nil, err
	}

	s.logger.Info("Transition added",
		"workflow_id", input.WorkflowID, "transition_id", transition.ID,
		"from", from.Code, "to", to.Code)
	return transition, nil
}

// DeleteTransition removes an edge
func (s *workflowAdminServiceImpl) DeleteTransition(ctx context.Context, workflowID, transitionID int64) error {
	def, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}

	found := false
	for _, t := range def.Transitions {
		if t.ID == transitionID {
			found = true
			break
		}
	}
	if !found {
		return domainwf.NewError(domainwf.KindNotFound,
			"transition %d not found in workflow %s", transitionID, def.Code)
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.definitions.DeleteTransition(txCtx, transitionID); err != nil {
			return fmt.Errorf("delete transition: %w", err)
		}
		return s.definitions.BumpVersion(txCtx, workflowID)
	})
	if err != nil {
		s.logger.Error("Failed to delete transition", "error", err,
			"workflow_id", workflowID, "transition_id", transitionID)
		return err
	}

	s.logger.Info("Transition deleted", "workflow_id", workflowID, "transition_id", transitionID)
	return nil
}
