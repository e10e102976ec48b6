package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
)

// Action keys referenced by transition definitions. Like validator codes,
// the set is closed and enforced at authoring time.
const (
	ActionCreateNotification  = "create_notification"
	ActionCreateCalendarEvent = "create_calendar_event"
	ActionRemoveCalendarEvent = "remove_calendar_event"
	ActionNotifyAssignees     = "notify_assignees"
)

// ActionInput carries the committed transition an action reacts to
type ActionInput struct {
	EntityID   int64
	EntityType entity.EntityType
	OwnerID    int64
	ActorID    int64
	FromState  *entity.WorkflowState
	ToState    *entity.WorkflowState
	Metadata   map[string]interface{}
}

// Action is a named post-commit side effect. Actions run after the
// transition is durable; their errors are logged, never propagated.
type Action interface {
	Execute(ctx context.Context, input *ActionInput) error
}

// ActionDispatcher routes action keys to registered implementations.
// Dispatch runs actions sequentially with independent failure isolation:
// a panicking or failing action does not prevent the next one from running
// and never affects the already-committed transition.
type ActionDispatcher struct {
	actions map[string]Action
	logger  *zap.Logger
}

// NewActionDispatcher creates an empty action dispatcher
func NewActionDispatcher(logger *zap.Logger) *ActionDispatcher {
	return &ActionDispatcher{
		actions: make(map[string]Action),
		logger:  logger,
	}
}

// Register binds an action implementation to a key
func (d *ActionDispatcher) Register(key string, action Action) {
	d.actions[key] = action
	d.logger.Info("Auto-action registered", zap.String("action", key))
}

// Known returns true if the key is registered
func (d *ActionDispatcher) Known(key string) bool {
	_, ok := d.actions[key]
	return ok
}

// Dispatch executes the given action keys in declared order
func (d *ActionDispatcher) Dispatch(ctx context.Context, keys []string, input *ActionInput) {
	for _, key := range keys {
		action, ok := d.actions[key]
		if !ok {
			// Configuration error; authoring-time checks should prevent it
			d.logger.Error("Auto-action not registered",
				zap.String("action", key),
				zap.Int64("entity_id", input.EntityID),
				zap.String("entity_type", input.EntityType.String()))
			continue
		}

		if err := d.safeExecute(ctx, key, action, input); err != nil {
			d.logger.Error("Auto-action failed",
				zap.String("action", key),
				zap.Int64("entity_id", input.EntityID),
				zap.String("entity_type", input.EntityType.String()),
				zap.Error(err))
		}
	}
}

// safeExecute runs one action, converting panics into errors
func (d *ActionDispatcher) safeExecute(ctx context.Context, key string, action Action, input *ActionInput) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("action %s panicked: %v", key, p)
		}
	}()
	return action.Execute(ctx, input)
}

// NotificationAction implements create_notification: the entity's owner is
// told about the state change through the intranet inbox.
type NotificationAction struct {
	notifications port.NotificationRepository
}

// NewNotificationAction creates the create_notification action
func NewNotificationAction(notifications port.NotificationRepository) *NotificationAction {
	return &NotificationAction{notifications: notifications}
}

// Execute implements Action
func (a *NotificationAction) Execute(ctx context.Context, input *ActionInput) error {
	return a.notifications.Create(ctx, &entity.WorkflowNotification{
		UserID:     input.OwnerID,
		EntityID:   input.EntityID,
		EntityType: input.EntityType,
		Kind:       entity.NotificationKindStateChanged,
		Message:    fmt.Sprintf("Tu %s ha pasado a estado \"%s\"", entityLabel(input.EntityType), input.ToState.Name),
	})
}

// CalendarEventAction implements create_calendar_event: an approved request
// allocates one calendar event per requested day.
type CalendarEventAction struct {
	requests port.RequestRepository
	calendar port.CalendarRepository
}

// NewCalendarEventAction creates the create_calendar_event action
func NewCalendarEventAction(requests port.RequestRepository, calendar port.CalendarRepository) *CalendarEventAction {
	return &CalendarEventAction{requests: requests, calendar: calendar}
}

// Execute implements Action
func (a *CalendarEventAction) Execute(ctx context.Context, input *ActionInput) error {
	if input.EntityType != entity.EntityTypeRequest {
		return fmt.Errorf("create_calendar_event only applies to requests")
	}

	request, err := a.requests.GetByID(ctx, input.EntityID)
	if err != nil {
		return err
	}
	if request == nil {
		return fmt.Errorf("request %d not found", input.EntityID)
	}

	kind := entity.CalendarKindFreeDay
	if request.Type == entity.RequestTypeSickLeave {
		kind = entity.CalendarKindSickLeave
	}

	// One event per day of the requested range; single-day requests carry
	// only requested_date
	start, end := request.RequestedDate, request.RequestedDate
	if request.StartDate != nil && request.EndDate != nil {
		start, end = *request.StartDate, *request.EndDate
	}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		event := &entity.CalendarEvent{
			RequestID: request.ID,
			UserID:    request.RequesterID,
			EventDate: day,
			Kind:      kind,
		}
		if err := a.calendar.Create(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// RemoveCalendarEventAction implements remove_calendar_event: cancelling an
// approved request undoes its calendar allocation.
type RemoveCalendarEventAction struct {
	calendar port.CalendarRepository
}

// NewRemoveCalendarEventAction creates the remove_calendar_event action
func NewRemoveCalendarEventAction(calendar port.CalendarRepository) *RemoveCalendarEventAction {
	return &RemoveCalendarEventAction{calendar: calendar}
}

// Execute implements Action
func (a *RemoveCalendarEventAction) Execute(ctx context.Context, input *ActionInput) error {
	if input.EntityType != entity.EntityTypeRequest {
		return fmt.Errorf("remove_calendar_event only applies to requests")
	}
	_, err := a.calendar.DeleteByRequestID(ctx, input.EntityID)
	return err
}

// NotifyAssigneesAction implements notify_assignees: every assignee of a
// task is told the task changed state.
type NotifyAssigneesAction struct {
	tasks         port.TaskRepository
	notifications port.NotificationRepository
}

// NewNotifyAssigneesAction creates the notify_assignees action
func NewNotifyAssigneesAction(tasks port.TaskRepository, notifications port.NotificationRepository) *NotifyAssigneesAction {
	return &NotifyAssigneesAction{tasks: tasks, notifications: notifications}
}

// Execute implements Action
func (a *NotifyAssigneesAction) Execute(ctx context.Context, input *ActionInput) error {
	if input.EntityType != entity.EntityTypeTask {
		return fmt.Errorf("notify_assignees only applies to tasks")
	}

	assignments, err := a.tasks.GetAssignments(ctx, input.EntityID)
	if err != nil {
		return err
	}
	for _, assignment := range assignments {
		notification := &entity.WorkflowNotification{
			UserID:     assignment.AssigneeID,
			EntityID:   input.EntityID,
			EntityType: input.EntityType,
			Kind:       entity.NotificationKindTaskCompleted,
			Message:    fmt.Sprintf("La tarea ha pasado a estado \"%s\"", input.ToState.Name),
		}
		if err := a.notifications.Create(ctx, notification); err != nil {
			return err
		}
	}
	return nil
}

func entityLabel(t entity.EntityType) string {
	if t == entity.EntityTypeTask {
		return "tarea"
	}
	return "solicitud"
}
