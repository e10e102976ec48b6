package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/application/workflow"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/domain/role"
	domainwf "github.com/mgallego/colegio-intranet/internal/domain/workflow"
)

// CreateTaskInput carries the fields needed to open a task
type CreateTaskInput struct {
	Type          string
	CreatorID     int64
	Context       map[string]interface{}
	DueDate       *time.Time
	AssigneeIDs   []int64
	VotingOptions []string
	VotingEndsAt  *time.Time
}

// TaskService manages staff tasks and their workflow progression
type TaskService interface {
	Create(ctx context.Context, actor Actor, input *CreateTaskInput) (*entity.Task, error)
	Get(ctx context.Context, actor Actor, id int64) (*entity.Task, error)
	List(ctx context.Context, actor Actor, limit, offset int) ([]*entity.Task, error)
	GetTransitions(ctx context.Context, actor Actor, id int64) ([]*workflow.AvailableTransition, *entity.WorkflowState, error)
	Transition(ctx context.Context, actor Actor, id int64, toState, comment string, metadata map[string]interface{}) (*workflow.ExecuteResult, error)
	GetHistory(ctx context.Context, actor Actor, id int64, limit, offset int) ([]*entity.StateHistory, error)
	CompleteAssignment(ctx context.Context, actor Actor, id int64) error
}

type taskServiceImpl struct {
	tasks         port.TaskRepository
	definitions   port.DefinitionRepository
	notifications port.NotificationRepository
	engine        workflow.Engine
	txManager     port.TransactionManager
	logger        Logger
}

// NewTaskService creates a new TaskService
func NewTaskService(
	tasks port.TaskRepository,
	definitions port.DefinitionRepository,
	notifications port.NotificationRepository,
	engine workflow.Engine,
	txManager port.TransactionManager,
	logger Logger,
) TaskService {
	return &taskServiceImpl{
		tasks:         tasks,
		definitions:   definitions,
		notifications: notifications,
		engine:        engine,
		txManager:     txManager,
		logger:        logger,
	}
}

// Create opens a task in its workflow's initial state and assigns it
func (s *taskServiceImpl) Create(ctx context.Context, actor Actor, input *CreateTaskInput) (*entity.Task, error) {
	if !role.CanCreateRequests(actor.Role) {
		return nil, domainwf.NewError(domainwf.KindForbidden, "role %s may not create tasks", actor.Role)
	}

	code, ok := entity.WorkflowCodeForTaskType(input.Type)
	if !ok {
		return nil, fmt.Errorf("unknown task type %q", input.Type)
	}
	if input.Type == entity.TaskTypeVoting && len(input.VotingOptions) < 2 {
		return nil, fmt.Errorf("voting task needs at least two options")
	}

	def, err := s.definitions.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", code, err)
	}
	if def == nil {
		return nil, domainwf.NewError(domainwf.KindNotFound, "no active workflow %s", code)
	}

	graph := domainwf.NewGraph(def)
	initial, err := graph.InitialState()
	if err != nil {
		return nil, err
	}

	contextJSON, err := marshalContext(input.Context)
	if err != nil {
		return nil, err
	}
	votingOptions, err := marshalVotingOptions(input.VotingOptions)
	if err != nil {
		return nil, err
	}

	task := &entity.Task{
		Reference:      uuid.NewString(),
		Type:           input.Type,
		WorkflowID:     &def.ID,
		CurrentStateID: &initial.ID,
		Status:         initial.Code,
		CreatorID:      input.CreatorID,
		Context:        contextJSON,
		DueDate:        input.DueDate,
		VotingOptions:  votingOptions,
		VotingEndsAt:   input.VotingEndsAt,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.tasks.Create(txCtx, task); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		for _, assigneeID := range input.AssigneeIDs {
			assignment := &entity.TaskAssignment{TaskID: task.ID, AssigneeID: assigneeID}
			if err := s.tasks.CreateAssignment(txCtx, assignment); err != nil {
				return fmt.Errorf("create assignment: %w", err)
			}
			task.Assignments = append(task.Assignments, assignment)
		}
		return s.engine.RecordInitialState(txCtx, task.ID, entity.EntityTypeTask, initial.ID, actor.ID)
	})
	if err != nil {
		s.logger.Error("Failed to create task", "error", err, "type", input.Type)
		return nil, err
	}

	// Assignment notifications are informational; failures do not undo creation
	for _, assigneeID := range input.AssigneeIDs {
		notification := &entity.WorkflowNotification{
			UserID:     assigneeID,
			EntityID:   task.ID,
			EntityType: entity.EntityTypeTask,
			Kind:       entity.NotificationKindTaskAssigned,
			Message:    "Se te ha asignado una nueva tarea",
		}
		if err := s.notifications.Create(ctx, notification); err != nil {
			s.logger.Error("Failed to notify assignee", "error", err, "task_id", task.ID, "assignee_id", assigneeID)
		}
	}

	s.logger.Info("Task created",
		"id", task.ID, "reference", task.Reference,
		"type", task.Type, "assignees", len(input.AssigneeIDs))
	return task, nil
}

// Get retrieves a task with its assignments
func (s *taskServiceImpl) Get(ctx context.Context, actor Actor, id int64) (*entity.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gateParticipant(actor, task); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns tasks with pagination
func (s *taskServiceImpl) List(ctx context.Context, actor Actor, limit, offset int) ([]*entity.Task, error) {
	return s.tasks.List(ctx, limit, offset)
}

// GetTransitions lists the transitions the actor may execute
func (s *taskServiceImpl) GetTransitions(ctx context.Context, actor Actor, id int64) ([]*workflow.AvailableTransition, *entity.WorkflowState, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.gateParticipant(actor, task); err != nil {
		return nil, nil, err
	}
	return s.engine.GetAvailableTransitions(ctx, id, entity.EntityTypeTask, actor.Role)
}

// Transition executes a workflow transition on the task. When the task
// reaches a final state its completion timestamp is stamped.
func (s *taskServiceImpl) Transition(ctx context.Context, actor Actor, id int64, toState, comment string, metadata map[string]interface{}) (*workflow.ExecuteResult, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gateParticipant(actor, task); err != nil {
		return nil, err
	}

	result, err := s.engine.ExecuteTransition(ctx, &workflow.ExecuteInput{
		EntityID:   id,
		EntityType: entity.EntityTypeTask,
		ToState:    toState,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Comment:    comment,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}

	if result.NewState.IsFinal && task.CompletedAt == nil {
		if err := s.tasks.SetCompletedAt(ctx, id, time.Now()); err != nil {
			s.logger.Error("Failed to stamp task completion", "error", err, "id", id)
		}
	}

	return result, nil
}

// GetHistory returns the task's audit trail, oldest first
func (s *taskServiceImpl) GetHistory(ctx context.Context, actor Actor, id int64, limit, offset int) ([]*entity.StateHistory, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gateParticipant(actor, task); err != nil {
		return nil, err
	}
	return s.engine.GetStateHistory(ctx, id, entity.EntityTypeTask, limit, offset)
}

// CompleteAssignment marks the actor's own assignment as done (their vote,
// for voting tasks)
func (s *taskServiceImpl) CompleteAssignment(ctx context.Context, actor Actor, id int64) error {
	task, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	assigned := false
	for _, a := range task.Assignments {
		if a.AssigneeID == actor.ID {
			assigned = true
			if a.CompletedAt != nil {
				return fmt.Errorf("assignment already completed")
			}
		}
	}
	if !assigned {
		return domainwf.NewError(domainwf.KindForbidden, "actor %d is not assigned to task %d", actor.ID, id)
	}

	if err := s.tasks.CompleteAssignment(ctx, id, actor.ID); err != nil {
		s.logger.Error("Failed to complete assignment", "error", err, "task_id", id, "assignee_id", actor.ID)
		return err
	}
	s.logger.Info("Assignment completed", "task_id", id, "assignee_id", actor.ID)
	return nil
}

func (s *taskServiceImpl) load(ctx context.Context, id int64) (*entity.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domainwf.NewError(domainwf.KindNotFound, "task %d not found", id)
	}
	if task.Assignments == nil {
		assignments, err := s.tasks.GetAssignments(ctx, id)
		if err != nil {
			return nil, err
		}
		task.Assignments = assignments
	}
	return task, nil
}

func (s *taskServiceImpl) gateParticipant(actor Actor, task *entity.Task) error {
	if task.CreatorID == actor.ID || role.CanManageRequests(actor.Role) {
		return nil
	}
	for _, a := range task.Assignments {
		if a.AssigneeID == actor.ID {
			return nil
		}
	}
	return domainwf.NewError(domainwf.KindForbidden, "actor %d is not a participant of task %d", actor.ID, task.ID)
}

func marshalVotingOptions(options []string) (string, error) {
	if len(options) == 0 {
		return "", nil
	}
	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("encode voting options: %w", err)
	}
	return string(data), nil
}
