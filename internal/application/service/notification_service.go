package service

import (
	"context"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
)

// NotificationService exposes a user's intranet inbox
type NotificationService interface {
	List(ctx context.Context, actor Actor, limit, offset int) ([]*entity.WorkflowNotification, error)
	MarkRead(ctx context.Context, actor Actor, id int64) error
}

type notificationServiceImpl struct {
	notifications port.NotificationRepository
	logger        Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifications port.NotificationRepository, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifications: notifications,
		logger:        logger,
	}
}

// List returns the actor's notifications, newest first
func (s *notificationServiceImpl) List(ctx context.Context, actor Actor, limit, offset int) ([]*entity.WorkflowNotification, error) {
	return s.notifications.GetByUser(ctx, actor.ID, limit, offset)
}

// MarkRead stamps one of the actor's notifications as read
func (s *notificationServiceImpl) MarkRead(ctx context.Context, actor Actor, id int64) error {
	if err := s.notifications.MarkRead(ctx, id); err != nil {
		s.logger.Error("Failed to mark notification read", "error", err, "id", id, "user_id", actor.ID)
		return err
	}
	return nil
}
