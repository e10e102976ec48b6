package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/infrastructure/persistence/sqlite"
)

// CalendarRepository implements port.CalendarRepository
type CalendarRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCalendarRepository creates a new calendar repository
func NewCalendarRepository(db *sqlite.DB, logger *zap.Logger) port.CalendarRepository {
	return &CalendarRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a calendar event
func (r *CalendarRepository) Create(ctx context.Context, event *entity.CalendarEvent) error {
	query := `
		INSERT INTO calendar_events (request_id, user_id, event_date, kind)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		event.RequestID,
		event.UserID,
		event.EventDate,
		event.Kind,
	)
	if err != nil {
		r.logger.Error("Failed to create calendar event", zap.Error(err), zap.Int64("request_id", event.RequestID))
		return fmt.Errorf("failed to create calendar event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	event.ID = id
	return nil
}

// GetByRequestID retrieves the events allocated for one request
func (r *CalendarRepository) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.CalendarEvent, error) {
	query := `
		SELECT id, request_id, user_id, event_date, kind, created_at
		FROM calendar_events
		WHERE request_id = ?
		ORDER BY event_date ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar events: %w", err)
	}
	defer rows.Close()

	var events []*entity.CalendarEvent
	for rows.Next() {
		var event entity.CalendarEvent
		if err := rows.Scan(
			&event.ID,
			&event.RequestID,
			&event.UserID,
			&event.EventDate,
			&event.Kind,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}

// DeleteByRequestID removes the events of one request, returning how many
// rows were removed
func (r *CalendarRepository) DeleteByRequestID(ctx context.Context, requestID int64) (int64, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`DELETE FROM calendar_events WHERE request_id = ?`, requestID)
	if err != nil {
		r.logger.Error("Failed to delete calendar events", zap.Error(err), zap.Int64("request_id", requestID))
		return 0, fmt.Errorf("failed to delete calendar events: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

// Verify interface compliance
var _ port.CalendarRepository = (*CalendarRepository)(nil)
