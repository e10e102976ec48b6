package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mgallego/colegio-intranet/internal/domain/entity"
)

type mockNotificationRepo struct {
	created []*entity.WorkflowNotification
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.WorkflowNotification) error {
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) GetByUser(ctx context.Context, userID int64, limit, offset int) ([]*entity.WorkflowNotification, error) {
	return nil, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id int64) error { return nil }

func (m *mockNotificationRepo) DeleteByEntity(ctx context.Context, entityID int64, entityType entity.EntityType) error {
	return nil
}

type mockCalendarRepo struct {
	events  []*entity.CalendarEvent
	deleted []int64
}

func (m *mockCalendarRepo) Create(ctx context.Context, event *entity.CalendarEvent) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockCalendarRepo) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.CalendarEvent, error) {
	var out []*entity.CalendarEvent
	for _, e := range m.events {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockCalendarRepo) DeleteByRequestID(ctx context.Context, requestID int64) (int64, error) {
	m.deleted = append(m.deleted, requestID)
	var remaining []*entity.CalendarEvent
	var removed int64
	for _, e := range m.events {
		if e.RequestID == requestID {
			removed++
			continue
		}
		remaining = append(remaining, e)
	}
	m.events = remaining
	return removed, nil
}

type mockRequestRepo struct {
	mockEntityStore
	requests map[int64]*entity.Request
}

func (m *mockRequestRepo) Create(ctx context.Context, request *entity.Request) error { return nil }

func (m *mockRequestRepo) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	return m.requests[id], nil
}

func (m *mockRequestRepo) List(ctx context.Context, limit, offset int) ([]*entity.Request, error) {
	return nil, nil
}

func (m *mockRequestRepo) ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]*entity.Request, error) {
	return nil, nil
}

func (m *mockRequestRepo) Delete(ctx context.Context, id int64) error { return nil }

func approvedState() *entity.WorkflowState {
	return &entity.WorkflowState{ID: 2, Code: "approved", Name: "Aprobada"}
}

func TestNotificationAction(t *testing.T) {
	notifications := &mockNotificationRepo{}
	action := NewNotificationAction(notifications)

	err := action.Execute(context.Background(), &ActionInput{
		EntityID:   100,
		EntityType: entity.EntityTypeRequest,
		OwnerID:    5,
		ToState:    approvedState(),
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if len(notifications.created) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifications.created))
	}
	n := notifications.created[0]
	if n.UserID != 5 {
		t.Errorf("notification UserID = %d, want 5", n.UserID)
	}
	if n.Kind != entity.NotificationKindStateChanged {
		t.Errorf("notification Kind = %s, want %s", n.Kind, entity.NotificationKindStateChanged)
	}
}

func TestCalendarEventAction_SingleDay(t *testing.T) {
	day := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	requests := &mockRequestRepo{requests: map[int64]*entity.Request{
		100: {ID: 100, Type: entity.RequestTypeFreeDay, RequesterID: 5, RequestedDate: day},
	}}
	calendar := &mockCalendarRepo{}
	action := NewCalendarEventAction(requests, calendar)

	err := action.Execute(context.Background(), &ActionInput{
		EntityID:   100,
		EntityType: entity.EntityTypeRequest,
		ToState:    approvedState(),
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if len(calendar.events) != 1 {
		t.Fatalf("events = %d, want 1", len(calendar.events))
	}
	if !calendar.events[0].EventDate.Equal(day) {
		t.Errorf("event date = %v, want %v", calendar.events[0].EventDate, day)
	}
	if calendar.events[0].Kind != entity.CalendarKindFreeDay {
		t.Errorf("event kind = %s, want %s", calendar.events[0].Kind, entity.CalendarKindFreeDay)
	}
}

func TestCalendarEventAction_DateRange(t *testing.T) {
	start := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	requests := &mockRequestRepo{requests: map[int64]*entity.Request{
		100: {ID: 100, Type: entity.RequestTypeSickLeave, RequesterID: 5,
			RequestedDate: start, StartDate: &start, EndDate: &end},
	}}
	calendar := &mockCalendarRepo{}
	action := NewCalendarEventAction(requests, calendar)

	err := action.Execute(context.Background(), &ActionInput{
		EntityID:   100,
		EntityType: entity.EntityTypeRequest,
		ToState:    approvedState(),
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if len(calendar.events) != 5 {
		t.Errorf("events = %d, want 5", len(calendar.events))
	}
	for _, e := range calendar.events {
		if e.Kind != entity.CalendarKindSickLeave {
			t.Errorf("event kind = %s, want %s", e.Kind, entity.CalendarKindSickLeave)
		}
	}
}

func TestRemoveCalendarEventAction(t *testing.T) {
	calendar := &mockCalendarRepo{events: []*entity.CalendarEvent{
		{ID: 1, RequestID: 100},
		{ID: 2, RequestID: 100},
		{ID: 3, RequestID: 200},
	}}
	action := NewRemoveCalendarEventAction(calendar)

	err := action.Execute(context.Background(), &ActionInput{
		EntityID:   100,
		EntityType: entity.EntityTypeRequest,
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if len(calendar.events) != 1 {
		t.Errorf("remaining events = %d, want 1", len(calendar.events))
	}
	if calendar.events[0].RequestID != 200 {
		t.Errorf("remaining event RequestID = %d, want 200", calendar.events[0].RequestID)
	}
}

func TestNotifyAssigneesAction(t *testing.T) {
	tasks := &mockTaskRepo{
		tasks: map[int64]*entity.Task{1: {ID: 1}},
		assignments: map[int64][]*entity.TaskAssignment{
			1: {
				{TaskID: 1, AssigneeID: 10},
				{TaskID: 1, AssigneeID: 11},
			},
		},
	}
	notifications := &mockNotificationRepo{}
	action := NewNotifyAssigneesAction(tasks, notifications)

	err := action.Execute(context.Background(), &ActionInput{
		EntityID:   1,
		EntityType: entity.EntityTypeTask,
		ToState:    &entity.WorkflowState{Code: "done", Name: "Completada"},
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if len(notifications.created) != 2 {
		t.Fatalf("notifications = %d, want 2", len(notifications.created))
	}
	if notifications.created[0].UserID != 10 || notifications.created[1].UserID != 11 {
		t.Error("notifications should target both assignees")
	}
}

func TestActionDispatcher_UnknownKeyIsSkipped(t *testing.T) {
	dispatcher := NewActionDispatcher(zap.NewNop())
	known := &recordingAction{}
	dispatcher.Register(ActionCreateNotification, known)

	dispatcher.Dispatch(context.Background(),
		[]string{"no_such_action", ActionCreateNotification},
		&ActionInput{EntityID: 1, EntityType: entity.EntityTypeRequest})

	if len(known.calls) != 1 {
		t.Errorf("known action calls = %d, want 1", len(known.calls))
	}
}

func TestActionDispatcher_FailingActionDoesNotStopChain(t *testing.T) {
	dispatcher := NewActionDispatcher(zap.NewNop())
	failing := &recordingAction{err: errors.New("smtp down")}
	second := &recordingAction{}
	dispatcher.Register(ActionCreateNotification, failing)
	dispatcher.Register(ActionRemoveCalendarEvent, second)

	dispatcher.Dispatch(context.Background(),
		[]string{ActionCreateNotification, ActionRemoveCalendarEvent},
		&ActionInput{EntityID: 1, EntityType: entity.EntityTypeRequest})

	if len(second.calls) != 1 {
		t.Errorf("second action calls = %d, want 1", len(second.calls))
	}
}
