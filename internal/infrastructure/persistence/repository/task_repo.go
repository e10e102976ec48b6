package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/domain/workflow"
	"github.com/mgallego/colegio-intranet/internal/infrastructure/persistence/sqlite"
)

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sqlite.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `
	id, reference, type, workflow_id, current_state_id, status, creator_id,
	context, due_date, completed_at, voting_options, voting_ends_at, created_at, updated_at
`

// Create persists a new task
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `
		INSERT INTO tasks (
			reference, type, workflow_id, current_state_id, status, creator_id,
			context, due_date, voting_options, voting_ends_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		task.Reference,
		task.Type,
		task.WorkflowID,
		task.CurrentStateID,
		task.Status,
		task.CreatorID,
		task.Context,
		task.DueDate,
		task.VotingOptions,
		task.VotingEndsAt,
	)
	if err != nil {
		r.logger.Error("Failed to create task", zap.Error(err), zap.String("reference", task.Reference))
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	task.ID = id
	return nil
}

// GetByID retrieves a task with its assignments; nil when it does not exist
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT` + taskColumns + `FROM tasks WHERE id = ?`

	task, err := r.scanTask(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	assignments, err := r.GetAssignments(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Assignments = assignments
	return task, nil
}

// List retrieves tasks with pagination, newest first
func (r *TaskRepository) List(ctx context.Context, limit, offset int) ([]*entity.Task, error) {
	query := `SELECT` + taskColumns + `FROM tasks ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// SetCompletedAt stamps the task's completion timestamp
func (r *TaskRepository) SetCompletedAt(ctx context.Context, id int64, completedAt time.Time) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE tasks SET completed_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		completedAt, id)
	if err != nil {
		r.logger.Error("Failed to set task completion", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to set task completion: %w", err)
	}
	return nil
}

// CreateAssignment persists one assignee of a task
func (r *TaskRepository) CreateAssignment(ctx context.Context, assignment *entity.TaskAssignment) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`INSERT INTO task_assignments (task_id, assignee_id) VALUES (?, ?)`,
		assignment.TaskID, assignment.AssigneeID)
	if err != nil {
		r.logger.Error("Failed to create assignment", zap.Error(err),
			zap.Int64("task_id", assignment.TaskID), zap.Int64("assignee_id", assignment.AssigneeID))
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	assignment.ID = id
	return nil
}

// GetAssignments retrieves a task's assignees
func (r *TaskRepository) GetAssignments(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error) {
	query := `
		SELECT id, task_id, assignee_id, completed_at, created_at
		FROM task_assignments
		WHERE task_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*entity.TaskAssignment
	for rows.Next() {
		var assignment entity.TaskAssignment
		var completedAt sql.NullTime
		if err := rows.Scan(
			&assignment.ID,
			&assignment.TaskID,
			&assignment.AssigneeID,
			&completedAt,
			&assignment.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if completedAt.Valid {
			assignment.CompletedAt = &completedAt.Time
		}
		assignments = append(assignments, &assignment)
	}

	return assignments, rows.Err()
}

// CompleteAssignment stamps one assignee's completion timestamp
func (r *TaskRepository) CompleteAssignment(ctx context.Context, taskID, assigneeID int64) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE task_assignments SET completed_at = CURRENT_TIMESTAMP WHERE task_id = ? AND assignee_id = ? AND completed_at IS NULL`,
		taskID, assigneeID)
	if err != nil {
		r.logger.Error("Failed to complete assignment", zap.Error(err),
			zap.Int64("task_id", taskID), zap.Int64("assignee_id", assigneeID))
		return fmt.Errorf("failed to complete assignment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no open assignment for task %d and assignee %d", taskID, assigneeID)
	}
	return nil
}

// ListOverdue returns open tasks whose due date passed before the given time
// and that have not been reminded yet, oldest due date first
func (r *TaskRepository) ListOverdue(ctx context.Context, before time.Time, limit int) ([]*entity.Task, error) {
	query := `SELECT` + taskColumns + `
		FROM tasks
		WHERE due_date IS NOT NULL
		  AND due_date <= ?
		  AND completed_at IS NULL
		  AND reminder_sent_at IS NULL
		ORDER BY due_date ASC
		LIMIT ?
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// MarkReminderSent stamps a task as reminded
func (r *TaskRepository) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE tasks SET reminder_sent_at = ? WHERE id = ?`, at, id)
	if err != nil {
		r.logger.Error("Failed to mark task reminder", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to mark task reminder: %w", err)
	}
	return nil
}

// GetWorkflowRef loads the workflow-relevant slice of a task
func (r *TaskRepository) GetWorkflowRef(ctx context.Context, id int64) (*port.WorkflowRef, error) {
	query := `SELECT id, creator_id, workflow_id, current_state_id FROM tasks WHERE id = ?`

	var ref port.WorkflowRef
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&ref.EntityID,
		&ref.OwnerID,
		&ref.WorkflowID,
		&ref.CurrentStateID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task workflow ref: %w", err)
	}
	return &ref, nil
}

// UpdateCurrentState moves the task to a new state, guarded by the state
// observed at read time. Zero affected rows means a concurrent transition
// committed first.
func (r *TaskRepository) UpdateCurrentState(ctx context.Context, id, fromStateID, toStateID int64, statusCode string) error {
	query := `
		UPDATE tasks
		SET current_state_id = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND current_state_id = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, toStateID, statusCode, id, fromStateID)
	if err != nil {
		r.logger.Error("Failed to update task state", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to update task state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return workflow.NewError(workflow.KindConflict,
			"task %d was moved by a concurrent transition", id)
	}
	return nil
}

// CountInState returns how many tasks currently sit in a state
func (r *TaskRepository) CountInState(ctx context.Context, stateID int64) (int64, error) {
	var count int64
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE current_state_id = ?`, stateID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks in state: %w", err)
	}
	return count, nil
}

func (r *TaskRepository) scanTask(row rowScanner) (*entity.Task, error) {
	var task entity.Task
	var dueDate, completedAt, votingEndsAt sql.NullTime
	var votingOptions sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Reference,
		&task.Type,
		&task.WorkflowID,
		&task.CurrentStateID,
		&task.Status,
		&task.CreatorID,
		&task.Context,
		&dueDate,
		&completedAt,
		&votingOptions,
		&votingEndsAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	if votingOptions.Valid {
		task.VotingOptions = votingOptions.String
	}
	if votingEndsAt.Valid {
		task.VotingEndsAt = &votingEndsAt.Time
	}
	return &task, nil
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)
