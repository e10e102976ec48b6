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

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sqlite.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new notification
func (r *NotificationRepository) Create(ctx context.Context, notification *entity.WorkflowNotification) error {
	query := `
		INSERT INTO workflow_notifications (user_id, entity_id, entity_type, kind, message)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		notification.UserID,
		notification.EntityID,
		notification.EntityType,
		notification.Kind,
		notification.Message,
	)
	if err != nil {
		r.logger.Error("Failed to create notification", zap.Error(err), zap.Int64("user_id", notification.UserID))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	notification.ID = id
	return nil
}

// GetByUser retrieves a user's notifications, newest first
func (r *NotificationRepository) GetByUser(ctx context.Context, userID int64, limit, offset int) ([]*entity.WorkflowNotification, error) {
	query := `
		SELECT id, user_id, entity_id, entity_type, kind, message, read_at, created_at
		FROM workflow_notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.WorkflowNotification
	for rows.Next() {
		var notification entity.WorkflowNotification
		var readAt sql.NullTime
		if err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.EntityID,
			&notification.EntityType,
			&notification.Kind,
			&notification.Message,
			&readAt,
			&notification.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if readAt.Valid {
			notification.ReadAt = &readAt.Time
		}
		notifications = append(notifications, &notification)
	}

	return notifications, rows.Err()
}

// MarkRead stamps a notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE workflow_notifications SET read_at = CURRENT_TIMESTAMP WHERE id = ? AND read_at IS NULL`, id)
	if err != nil {
		r.logger.Error("Failed to mark notification read", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// DeleteByEntity removes the notifications of one entity. Only the hard
// cancellation of a pending request reaches this.
func (r *NotificationRepository) DeleteByEntity(ctx context.Context, entityID int64, entityType entity.EntityType) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`DELETE FROM workflow_notifications WHERE entity_id = ? AND entity_type = ?`,
		entityID, entityType)
	if err != nil {
		r.logger.Error("Failed to delete notifications", zap.Error(err),
			zap.Int64("entity_id", entityID), zap.String("entity_type", entityType.String()))
		return fmt.Errorf("failed to delete notifications: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
