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

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlite.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history row. The table has no update path.
func (r *HistoryRepository) Create(ctx context.Context, record *entity.StateHistory) error {
	query := `
		INSERT INTO state_history (entity_id, entity_type, from_state_id, to_state_id, actor_id, comment, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		record.EntityID,
		record.EntityType,
		record.FromStateID,
		record.ToStateID,
		record.ActorID,
		record.Comment,
		record.Metadata,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err),
			zap.Int64("entity_id", record.EntityID), zap.String("entity_type", record.EntityType.String()))
		return fmt.Errorf("failed to create history record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByEntity retrieves an entity's audit trail, oldest first
func (r *HistoryRepository) GetByEntity(ctx context.Context, entityID int64, entityType entity.EntityType, limit, offset int) ([]*entity.StateHistory, error) {
	query := `
		SELECT id, entity_id, entity_type, from_state_id, to_state_id, actor_id, comment, metadata, created_at
		FROM state_history
		WHERE entity_id = ? AND entity_type = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, entityID, entityType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.StateHistory
	for rows.Next() {
		var record entity.StateHistory
		var comment, metadata sql.NullString
		if err := rows.Scan(
			&record.ID,
			&record.EntityID,
			&record.EntityType,
			&record.FromStateID,
			&record.ToStateID,
			&record.ActorID,
			&comment,
			&metadata,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		if comment.Valid {
			record.Comment = comment.String
		}
		if metadata.Valid {
			record.Metadata = metadata.String
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// DeleteByEntity removes an entity's whole trail. Only the hard cancellation
// of a pending request reaches this.
func (r *HistoryRepository) DeleteByEntity(ctx context.Context, entityID int64, entityType entity.EntityType) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`DELETE FROM state_history WHERE entity_id = ? AND entity_type = ?`,
		entityID, entityType)
	if err != nil {
		r.logger.Error("Failed to delete history", zap.Error(err),
			zap.Int64("entity_id", entityID), zap.String("entity_type", entityType.String()))
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
