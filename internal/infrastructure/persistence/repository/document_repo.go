package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/infrastructure/persistence/sqlite"
)

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sqlite.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a document metadata row
func (r *DocumentRepository) Create(ctx context.Context, document *entity.RequestDocument) error {
	query := `
		INSERT INTO request_documents (request_id, file_name, status)
		VALUES (?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		document.RequestID,
		document.FileName,
		document.Status,
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.Error(err), zap.Int64("request_id", document.RequestID))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	document.ID = id
	return nil
}

// GetByRequestID retrieves the documents attached to one request
func (r *DocumentRepository) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.RequestDocument, error) {
	query := `
		SELECT id, request_id, file_name, status, uploaded_at
		FROM request_documents
		WHERE request_id = ?
		ORDER BY uploaded_at ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer rows.Close()

	var documents []*entity.RequestDocument
	for rows.Next() {
		var document entity.RequestDocument
		if err := rows.Scan(
			&document.ID,
			&document.RequestID,
			&document.FileName,
			&document.Status,
			&document.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		documents = append(documents, &document)
	}

	return documents, rows.Err()
}

// CountValidByRequestID counts documents already marked valid, the quantity
// the check_documents validator inspects
func (r *DocumentRepository) CountValidByRequestID(ctx context.Context, requestID int64) (int64, error) {
	var count int64
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM request_documents WHERE request_id = ? AND status = ?`,
		requestID, entity.DocumentStatusValid).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count valid documents: %w", err)
	}
	return count, nil
}

// DeleteByRequestID removes the documents of one request
func (r *DocumentRepository) DeleteByRequestID(ctx context.Context, requestID int64) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`DELETE FROM request_documents WHERE request_id = ?`, requestID)
	if err != nil {
		r.logger.Error("Failed to delete documents", zap.Error(err), zap.Int64("request_id", requestID))
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
