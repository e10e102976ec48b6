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

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Actor is the authenticated user attempting an operation
type Actor struct {
	ID   int64
	Role role.Role
}

// CreateRequestInput carries the fields needed to open a request
type CreateRequestInput struct {
	Type          string
	RequesterID   int64
	Context       map[string]interface{}
	RequestedDate time.Time
	StartDate     *time.Time
	EndDate       *time.Time
}

// CancelResult reports how a cancellation was applied: pending requests are
// physically deleted, approved requests transition to cancelled_by_user.
type CancelResult struct {
	Deleted    bool
	Transition *workflow.ExecuteResult
}

// RequestService manages staff requests and their workflow progression.
// All state changes go through the workflow engine; the service never writes
// current_state_id itself.
type RequestService interface {
	Create(ctx context.Context, actor Actor, input *CreateRequestInput) (*entity.Request, error)
	Get(ctx context.Context, actor Actor, id int64) (*entity.Request, error)
	List(ctx context.Context, actor Actor, limit, offset int) ([]*entity.Request, error)
	Cancel(ctx context.Context, actor Actor, id int64) (*CancelResult, error)
	GetTransitions(ctx context.Context, actor Actor, id int64) ([]*workflow.AvailableTransition, *entity.WorkflowState, error)
	Transition(ctx context.Context, actor Actor, id int64, toState, comment string, metadata map[string]interface{}) (*workflow.ExecuteResult, error)
	GetHistory(ctx context.Context, actor Actor, id int64, limit, offset int) ([]*entity.StateHistory, error)
	AttachDocument(ctx context.Context, actor Actor, id int64, fileName string) (*entity.RequestDocument, error)
}

type requestServiceImpl struct {
	requests      port.RequestRepository
	definitions   port.DefinitionRepository
	documents     port.DocumentRepository
	notifications port.NotificationRepository
	history       port.HistoryRepository
	engine        workflow.Engine
	txManager     port.TransactionManager
	logger        Logger
}

// NewRequestService creates a new RequestService
func NewRequestService(
	requests port.RequestRepository,
	definitions port.DefinitionRepository,
	documents port.DocumentRepository,
	notifications port.NotificationRepository,
	history port.HistoryRepository,
	engine workflow.Engine,
	txManager port.TransactionManager,
	logger Logger,
) RequestService {
	return &requestServiceImpl{
		requests:      requests,
		definitions:   definitions,
		documents:     documents,
		notifications: notifications,
		history:       history,
		engine:        engine,
		txManager:     txManager,
		logger:        logger,
	}
}

// Create opens a request in its workflow's initial state
func (s *requestServiceImpl) Create(ctx context.Context, actor Actor, input *CreateRequestInput) (*entity.Request, error) {
	if !role.CanCreateRequests(actor.Role) {
		return nil, domainwf.NewError(domainwf.KindForbidden, "role %s may not create requests", actor.Role)
	}

	code, ok := entity.WorkflowCodeForRequestType(input.Type)
	if !ok {
		return nil, fmt.Errorf("unknown request type %q", input.Type)
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

	request := &entity.Request{
		Reference:      uuid.NewString(),
		Type:           input.Type,
		WorkflowID:     &def.ID,
		CurrentStateID: &initial.ID,
		Status:         initial.Code,
		RequesterID:    input.RequesterID,
		Context:        contextJSON,
		RequestedDate:  input.RequestedDate,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requests.Create(txCtx, request); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		return s.engine.RecordInitialState(txCtx, request.ID, entity.EntityTypeRequest, initial.ID, actor.ID)
	})
	if err != nil {
		s.logger.Error("Failed to create request", "error", err, "type", input.Type)
		return nil, err
	}

	s.logger.Info("Request created",
		"id", request.ID, "reference", request.Reference,
		"type", request.Type, "workflow", code, "state", initial.Code)
	return request, nil
}

// Get retrieves a request, gated to its owner or an administrator
func (s *requestServiceImpl) Get(ctx context.Context, actor Actor, id int64) (*entity.Request, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gateOwnerOrAdmin(actor, request); err != nil {
		return nil, err
	}
	return request, nil
}

// List returns the actor's own requests, or every request for administrators
func (s *requestServiceImpl) List(ctx context.Context, actor Actor, limit, offset int) ([]*entity.Request, error) {
	if role.CanManageRequests(actor.Role) {
		return s.requests.List(ctx, limit, offset)
	}
	return s.requests.ListByRequester(ctx, actor.ID, limit, offset)
}

// Cancel applies the cancellation special case. A pending request with no
// committed side effects is physically deleted together with its history,
// notifications and documents. An approved request transitions to
// cancelled_by_user, which undoes its calendar allocation via auto-action.
func (s *requestServiceImpl) Cancel(ctx context.Context, actor Actor, id int64) (*CancelResult, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gateOwnerOrAdmin(actor, request); err != nil {
		return nil, err
	}

	switch request.Status {
	case "pending", "pending_validation":
		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.history.DeleteByEntity(txCtx, id, entity.EntityTypeRequest); err != nil {
				return fmt.Errorf("delete history: %w", err)
			}
			if err := s.notifications.DeleteByEntity(txCtx, id, entity.EntityTypeRequest); err != nil {
				return fmt.Errorf("delete notifications: %w", err)
			}
			if err := s.documents.DeleteByRequestID(txCtx, id); err != nil {
				return fmt.Errorf("delete documents: %w", err)
			}
			return s.requests.Delete(txCtx, id)
		})
		if err != nil {
			s.logger.Error("Failed to delete pending request", "error", err, "id", id)
			return nil, err
		}
		s.logger.Info("Pending request deleted", "id", id, "actor_id", actor.ID)
		return &CancelResult{Deleted: true}, nil

	case "approved":
		result, err := s.engine.ExecuteTransition(ctx, &workflow.ExecuteInput{
			EntityID:   id,
			EntityType: entity.EntityTypeRequest,
			ToState:    "cancelled_by_user",
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
		})
		if err != nil {
			return nil, err
		}
		return &CancelResult{Transition: result}, nil

	default:
		return nil, domainwf.NewError(domainwf.KindTransitionNotAllowed,
			"request in state %s cannot be cancelled", request.Status)
	}
}

// GetTransitions lists the transitions the actor may execute
func (s *requestServiceImpl) GetTransitions(ctx context.Context, actor Actor, id int64) ([]*workflow.AvailableTransition, *entity.WorkflowState, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.gateOwnerOrAdmin(actor, request); err != nil {
		return nil, nil, err
	}
	return s.engine.GetAvailableTransitions(ctx, id, entity.EntityTypeRequest, actor.Role)
}

// Transition executes a workflow transition on the request
func (s *requestServiceImpl) Transition(ctx context.Context, actor Actor, id int64, toState, comment string, metadata map[string]interface{}) (*workflow.ExecuteResult, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gateOwnerOrAdmin(actor, request); err != nil {
		return nil, err
	}

	return s.engine.ExecuteTransition(ctx, &workflow.ExecuteInput{
		EntityID:   id,
		EntityType: entity.EntityTypeRequest,
		ToState:    toState,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Comment:    comment,
		Metadata:   metadata,
	})
}

// GetHistory returns the request's audit trail, oldest first
func (s *requestServiceImpl) GetHistory(ctx context.Context, actor Actor, id int64, limit, offset int) ([]*entity.StateHistory, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gateOwnerOrAdmin(actor, request); err != nil {
		return nil, err
	}
	return s.engine.GetStateHistory(ctx, id, entity.EntityTypeRequest, limit, offset)
}

// AttachDocument records a document metadata row for the request. Upload and
// storage of the file itself happen in the storage subsystem.
func (s *requestServiceImpl) AttachDocument(ctx context.Context, actor Actor, id int64, fileName string) (*entity.RequestDocument, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gateOwnerOrAdmin(actor, request); err != nil {
		return nil, err
	}

	document := &entity.RequestDocument{
		RequestID: id,
		FileName:  fileName,
		Status:    entity.DocumentStatusPending,
	}
	if err := s.documents.Create(ctx, document); err != nil {
		s.logger.Error("Failed to attach document", "error", err, "request_id", id)
		return nil, err
	}
	return document, nil
}

func (s *requestServiceImpl) load(ctx context.Context, id int64) (*entity.Request, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, domainwf.NewError(domainwf.KindNotFound, "request %d not found", id)
	}
	return request, nil
}

func (s *requestServiceImpl) gateOwnerOrAdmin(actor Actor, request *entity.Request) error {
	if request.RequesterID == actor.ID || role.CanManageRequests(actor.Role) {
		return nil
	}
	return domainwf.NewError(domainwf.KindForbidden, "request %d does not belong to actor %d", request.ID, actor.ID)
}

func marshalContext(context map[string]interface{}) (string, error) {
	if len(context) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(context)
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}
	return string(data), nil
}
