package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/infrastructure/persistence/sqlite"
)

// DefinitionRepository implements port.DefinitionRepository
type DefinitionRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sqlite.DB, logger *zap.Logger) port.DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new workflow definition without its graph
func (r *DefinitionRepository) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	query := `
		INSERT INTO workflow_definitions (code, name, description, entity_type, version, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		def.Code,
		def.Name,
		def.Description,
		def.EntityType,
		def.Version,
		def.IsActive,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow definition", zap.Error(err), zap.String("code", def.Code))
		return fmt.Errorf("failed to create workflow definition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	def.ID = id
	return nil
}

// GetByID retrieves a definition with its states and transitions.
// Inactive definitions are returned too: entities created under an older
// definition keep resolving against it.
func (r *DefinitionRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowDefinition, error) {
	query := `
		SELECT id, code, name, description, entity_type, version, is_active, created_at, updated_at
		FROM workflow_definitions
		WHERE id = ?
	`
	return r.queryOne(ctx, query, id)
}

// GetByCode retrieves an active definition with its states and transitions
func (r *DefinitionRepository) GetByCode(ctx context.Context, code string) (*entity.WorkflowDefinition, error) {
	query := `
		SELECT id, code, name, description, entity_type, version, is_active, created_at, updated_at
		FROM workflow_definitions
		WHERE code = ? AND is_active = 1
	`
	return r.queryOne(ctx, query, code)
}

func (r *DefinitionRepository) queryOne(ctx context.Context, query string, arg interface{}) (*entity.WorkflowDefinition, error) {
	var def entity.WorkflowDefinition
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, arg).Scan(
		&def.ID,
		&def.Code,
		&def.Name,
		&def.Description,
		&def.EntityType,
		&def.Version,
		&def.IsActive,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow definition: %w", err)
	}

	if err := r.loadGraph(ctx, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *DefinitionRepository) loadGraph(ctx context.Context, def *entity.WorkflowDefinition) error {
	states, err := r.loadStates(ctx, def.ID)
	if err != nil {
		return err
	}
	transitions, err := r.loadTransitions(ctx, def.ID)
	if err != nil {
		return err
	}
	def.States = states
	def.Transitions = transitions
	return nil
}

func (r *DefinitionRepository) loadStates(ctx context.Context, workflowID int64) ([]*entity.WorkflowState, error) {
	query := `
		SELECT id, workflow_id, code, name, color, sort_order, is_initial, is_final, is_terminal
		FROM workflow_states
		WHERE workflow_id = ?
		ORDER BY sort_order ASC, id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow states: %w", err)
	}
	defer rows.Close()

	var states []*entity.WorkflowState
	for rows.Next() {
		var state entity.WorkflowState
		if err := rows.Scan(
			&state.ID,
			&state.WorkflowID,
			&state.Code,
			&state.Name,
			&state.Color,
			&state.Order,
			&state.IsInitial,
			&state.IsFinal,
			&state.IsTerminal,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow state: %w", err)
		}
		states = append(states, &state)
	}

	return states, rows.Err()
}

func (r *DefinitionRepository) loadTransitions(ctx context.Context, workflowID int64) ([]*entity.WorkflowTransition, error) {
	query := `
		SELECT id, workflow_id, from_state_id, to_state_id, allowed_roles,
			requires_comment, requires_fields, auto_actions, validator_code
		FROM workflow_transitions
		WHERE workflow_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*entity.WorkflowTransition
	for rows.Next() {
		var transition entity.WorkflowTransition
		var allowedRoles, requiresFields, autoActions string
		var validatorCode sql.NullString

		if err := rows.Scan(
			&transition.ID,
			&transition.WorkflowID,
			&transition.FromStateID,
			&transition.ToStateID,
			&allowedRoles,
			&transition.RequiresComment,
			&requiresFields,
			&autoActions,
			&validatorCode,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow transition: %w", err)
		}

		if transition.AllowedRoles, err = entity.DecodeRoles(allowedRoles); err != nil {
			return nil, err
		}
		if transition.RequiresFields, err = entity.DecodeStringList(requiresFields); err != nil {
			return nil, err
		}
		if transition.AutoActions, err = entity.DecodeStringList(autoActions); err != nil {
			return nil, err
		}
		if validatorCode.Valid {
			transition.ValidatorCode = validatorCode.String
		}

		transitions = append(transitions, &transition)
	}

	return transitions, rows.Err()
}

// List retrieves all definitions without their graphs
func (r *DefinitionRepository) List(ctx context.Context) ([]*entity.WorkflowDefinition, error) {
	query := `
		SELECT id, code, name, description, entity_type, version, is_active, created_at, updated_at
		FROM workflow_definitions
		ORDER BY code ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow definitions: %w", err)
	}
	defer rows.Close()

	var defs []*entity.WorkflowDefinition
	for rows.Next() {
		var def entity.WorkflowDefinition
		if err := rows.Scan(
			&def.ID,
			&def.Code,
			&def.Name,
			&def.Description,
			&def.EntityType,
			&def.Version,
			&def.IsActive,
			&def.CreatedAt,
			&def.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}
		defs = append(defs, &def)
	}

	return defs, rows.Err()
}

// AddState appends a state to a definition
func (r *DefinitionRepository) AddState(ctx context.Context, state *entity.WorkflowState) error {
	query := `
		INSERT INTO workflow_states (workflow_id, code, name, color, sort_order, is_initial, is_final, is_terminal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		state.WorkflowID,
		state.Code,
		state.Name,
		state.Color,
		state.Order,
		state.IsInitial,
		state.IsFinal,
		state.IsTerminal,
	)
	if err != nil {
		r.logger.Error("Failed to add workflow state", zap.Error(err),
			zap.Int64("workflow_id", state.WorkflowID), zap.String("code", state.Code))
		return fmt.Errorf("failed to add workflow state: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	state.ID = id
	return nil
}

// DeleteState removes a state row
func (r *DefinitionRepository) DeleteState(ctx context.Context, stateID int64) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`DELETE FROM workflow_states WHERE id = ?`, stateID)
	if err != nil {
		r.logger.Error("Failed to delete workflow state", zap.Error(err), zap.Int64("state_id", stateID))
		return fmt.Errorf("failed to delete workflow state: %w", err)
	}
	return nil
}

// AddTransition appends a transition edge to a definition
func (r *DefinitionRepository) AddTransition(ctx context.Context, transition *entity.WorkflowTransition) error {
	allowedRoles, err := entity.EncodeRoles(transition.AllowedRoles)
	if err != nil {
		return err
	}
	requiresFields, err := entity.EncodeStringList(transition.RequiresFields)
	if err != nil {
		return err
	}
	autoActions, err := entity.EncodeStringList(transition.AutoActions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_transitions (
			workflow_id, from_state_id, to_state_id, allowed_roles,
			requires_comment, requires_fields, auto_actions, validator_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var validatorCode interface{}
	if transition.ValidatorCode != "" {
		validatorCode = transition.ValidatorCode
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		transition.WorkflowID,
		transition.FromStateID,
		transition.ToStateID,
		allowedRoles,
		transition.RequiresComment,
		requiresFields,
		autoActions,
		validatorCode,
	)
	if err != nil {
		r.logger.Error("Failed to add workflow transition", zap.Error(err),
			zap.Int64("workflow_id", transition.WorkflowID))
		return fmt.Errorf("failed to add workflow transition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	transition.ID = id
	return nil
}

// DeleteTransition removes a transition edge
func (r *DefinitionRepository) DeleteTransition(ctx context.Context, transitionID int64) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`DELETE FROM workflow_transitions WHERE id = ?`, transitionID)
	if err != nil {
		r.logger.Error("Failed to delete workflow transition", zap.Error(err),
			zap.Int64("transition_id", transitionID))
		return fmt.Errorf("failed to delete workflow transition: %w", err)
	}
	return nil
}

// BumpVersion increments a definition's version after a structural edit
func (r *DefinitionRepository) BumpVersion(ctx context.Context, workflowID int64) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE workflow_definitions SET version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		workflowID)
	if err != nil {
		r.logger.Error("Failed to bump workflow version", zap.Error(err), zap.Int64("workflow_id", workflowID))
		return fmt.Errorf("failed to bump workflow version: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.DefinitionRepository = (*DefinitionRepository)(nil)
