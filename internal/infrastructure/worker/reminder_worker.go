package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
)

// ReminderWorkerConfig holds configuration for the reminder worker
type ReminderWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultReminderWorkerConfig returns default configuration
func DefaultReminderWorkerConfig() ReminderWorkerConfig {
	return ReminderWorkerConfig{
		PollInterval: time.Minute,
		BatchSize:    20,
	}
}

// ReminderWorker notifies assignees of tasks whose due date has passed.
// Each task is reminded once; the stamp lives on the task row so restarts
// do not re-notify.
type ReminderWorker struct {
	config ReminderWorkerConfig

	tasks         port.TaskRepository
	notifications port.NotificationRepository
	logger        *zap.Logger
	now           func() time.Time

	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isRunning      bool
	processedCount int
	failedCount    int
	lastError      error
}

// NewReminderWorker creates a new reminder worker
func NewReminderWorker(
	config ReminderWorkerConfig,
	tasks port.TaskRepository,
	notifications port.NotificationRepository,
	logger *zap.Logger,
) *ReminderWorker {
	return &ReminderWorker{
		config:        config,
		tasks:         tasks,
		notifications: notifications,
		logger:        logger,
		now:           time.Now,
	}
}

// Start begins the worker polling loop
func (w *ReminderWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("reminder worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("ReminderWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop()

	return nil
}

// Stop gracefully terminates the worker
func (w *ReminderWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}

	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	w.logger.Info("ReminderWorker stopped",
		zap.Int("processed_count", w.processedCount),
		zap.Int("failed_count", w.failedCount))

	return nil
}

// Name returns the worker name for identification
func (w *ReminderWorker) Name() string {
	return "ReminderWorker"
}

func (w *ReminderWorker) pollLoop() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			if err := w.processOverdueTasks(); err != nil {
				w.mu.Lock()
				w.lastError = err
				w.mu.Unlock()
				w.logger.Error("Failed to process overdue tasks", zap.Error(err))
			}
		}
	}
}

// processOverdueTasks reminds one batch of overdue tasks
func (w *ReminderWorker) processOverdueTasks() error {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	tasks, err := w.tasks.ListOverdue(ctx, w.now(), w.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list overdue tasks: %w", err)
	}

	if len(tasks) == 0 {
		return nil
	}

	w.logger.Debug("Processing overdue tasks", zap.Int("count", len(tasks)))

	for _, task := range tasks {
		if err := w.remindTask(ctx, task); err != nil {
			w.logger.Warn("Failed to remind task",
				zap.Int64("task_id", task.ID),
				zap.String("reference", task.Reference),
				zap.Error(err))

			w.mu.Lock()
			w.failedCount++
			w.mu.Unlock()
			continue
		}

		w.mu.Lock()
		w.processedCount++
		w.mu.Unlock()
	}

	return nil
}

// remindTask notifies every assignee with an open assignment, then stamps
// the task so it is not picked up again
func (w *ReminderWorker) remindTask(ctx context.Context, task *entity.Task) error {
	assignments, err := w.tasks.GetAssignments(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("failed to get assignments: %w", err)
	}

	message := fmt.Sprintf("La tarea %s ha vencido y sigue pendiente", task.Reference)
	for _, assignment := range assignments {
		if assignment.CompletedAt != nil {
			continue
		}

		notification := &entity.WorkflowNotification{
			UserID:     assignment.AssigneeID,
			EntityID:   task.ID,
			EntityType: entity.EntityTypeTask,
			Kind:       entity.NotificationKindTaskOverdue,
			Message:    message,
		}
		if err := w.notifications.Create(ctx, notification); err != nil {
			return fmt.Errorf("failed to create overdue notification: %w", err)
		}
	}

	if err := w.tasks.MarkReminderSent(ctx, task.ID, w.now()); err != nil {
		return err
	}

	w.logger.Info("Overdue task reminded",
		zap.Int64("task_id", task.ID),
		zap.String("reference", task.Reference))

	return nil
}
