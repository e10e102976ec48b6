package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/domain/workflow"
	"github.com/mgallego/colegio-intranet/internal/infrastructure/persistence/sqlite"
)

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sqlite.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `
	id, reference, type, workflow_id, current_state_id, status, requester_id,
	admin_id, context, requested_date, start_date, end_date, created_at, updated_at
`

// Create persists a new request
func (r *RequestRepository) Create(ctx context.Context, request *entity.Request) error {
	query := `
		INSERT INTO requests (
			reference, type, workflow_id, current_state_id, status, requester_id,
			admin_id, context, requested_date, start_date, end_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		request.Reference,
		request.Type,
		request.WorkflowID,
		request.CurrentStateID,
		request.Status,
		request.RequesterID,
		request.AdminID,
		request.Context,
		request.RequestedDate,
		request.StartDate,
		request.EndDate,
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.Error(err), zap.String("reference", request.Reference))
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	request.ID = id
	return nil
}

// GetByID retrieves a request by ID; nil when it does not exist
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	query := `SELECT` + requestColumns + `FROM requests WHERE id = ?`

	request, err := r.scanRequest(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return request, nil
}

// List retrieves requests with pagination, newest first
func (r *RequestRepository) List(ctx context.Context, limit, offset int) ([]*entity.Request, error) {
	query := `SELECT` + requestColumns + `FROM requests ORDER BY created_at DESC LIMIT ? OFFSET ?`
	return r.queryMany(ctx, query, limit, offset)
}

// ListByRequester retrieves one user's requests with pagination, newest first
func (r *RequestRepository) ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]*entity.Request, error) {
	query := `SELECT` + requestColumns + `FROM requests WHERE requester_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	return r.queryMany(ctx, query, requesterID, limit, offset)
}

// Delete removes a request row. Only the hard cancellation of a pending
// request reaches this.
func (r *RequestRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete request", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to delete request: %w", err)
	}
	return nil
}

// GetWorkflowRef loads the workflow-relevant slice of a request
func (r *RequestRepository) GetWorkflowRef(ctx context.Context, id int64) (*port.WorkflowRef, error) {
	query := `SELECT id, requester_id, workflow_id, current_state_id FROM requests WHERE id = ?`

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
		return nil, fmt.Errorf("failed to get request workflow ref: %w", err)
	}
	return &ref, nil
}

// UpdateCurrentState moves the request to a new state, guarded by the state
// observed at read time. Zero affected rows means a concurrent transition
// committed first.
func (r *RequestRepository) UpdateCurrentState(ctx context.Context, id, fromStateID, toStateID int64, statusCode string) error {
	query := `
		UPDATE requests
		SET current_state_id = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND current_state_id = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, toStateID, statusCode, id, fromStateID)
	if err != nil {
		r.logger.Error("Failed to update request state", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to update request state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return workflow.NewError(workflow.KindConflict,
			"request %d was moved by a concurrent transition", id)
	}
	return nil
}

// CountInState returns how many requests currently sit in a state
func (r *RequestRepository) CountInState(ctx context.Context, stateID int64) (int64, error) {
	var count int64
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE current_state_id = ?`, stateID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count requests in state: %w", err)
	}
	return count, nil
}

func (r *RequestRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*entity.Request, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.Request
	for rows.Next() {
		request, err := r.scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, request)
	}

	return requests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *RequestRepository) scanRequest(row rowScanner) (*entity.Request, error) {
	var request entity.Request
	var startDate, endDate sql.NullTime

	err := row.Scan(
		&request.ID,
		&request.Reference,
		&request.Type,
		&request.WorkflowID,
		&request.CurrentStateID,
		&request.Status,
		&request.RequesterID,
		&request.AdminID,
		&request.Context,
		&request.RequestedDate,
		&startDate,
		&endDate,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startDate.Valid {
		request.StartDate = &startDate.Time
	}
	if endDate.Valid {
		request.EndDate = &endDate.Time
	}
	return &request, nil
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
