package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/application/workflow"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/domain/role"
	domainwf "github.com/mgallego/colegio-intranet/internal/domain/workflow"
)

// Mock repositories

type mockRequestRepo struct {
	createFunc          func(ctx context.Context, request *entity.Request) error
	getByIDFunc         func(ctx context.Context, id int64) (*entity.Request, error)
	listFunc            func(ctx context.Context, limit, offset int) ([]*entity.Request, error)
	listByRequesterFunc func(ctx context.Context, requesterID int64, limit, offset int) ([]*entity.Request, error)
	deleteFunc          func(ctx context.Context, id int64) error
	countInStateFunc    func(ctx context.Context, stateID int64) (int64, error)
}

func (m *mockRequestRepo) Create(ctx context.Context, request *entity.Request) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, request)
	}
	request.ID = 1
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockRequestRepo) List(ctx context.Context, limit, offset int) ([]*entity.Request, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, limit, offset)
	}
	return []*entity.Request{}, nil
}

func (m *mockRequestRepo) ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]*entity.Request, error) {
	if m.listByRequesterFunc != nil {
		return m.listByRequesterFunc(ctx, requesterID, limit, offset)
	}
	return []*entity.Request{}, nil
}

func (m *mockRequestRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockRequestRepo) GetWorkflowRef(ctx context.Context, id int64) (*port.WorkflowRef, error) {
	return nil, nil
}

func (m *mockRequestRepo) UpdateCurrentState(ctx context.Context, id, fromStateID, toStateID int64, statusCode string) error {
	return nil
}

func (m *mockRequestRepo) CountInState(ctx context.Context, stateID int64) (int64, error) {
	if m.countInStateFunc != nil {
		return m.countInStateFunc(ctx, stateID)
	}
	return 0, nil
}

type mockDefinitionRepo struct {
	createFunc           func(ctx context.Context, def *entity.WorkflowDefinition) error
	getByIDFunc          func(ctx context.Context, id int64) (*entity.WorkflowDefinition, error)
	getByCodeFunc        func(ctx context.Context, code string) (*entity.WorkflowDefinition, error)
	listFunc             func(ctx context.Context) ([]*entity.WorkflowDefinition, error)
	addStateFunc         func(ctx context.Context, state *entity.WorkflowState) error
	deleteStateFunc      func(ctx context.Context, stateID int64) error
	addTransitionFunc    func(ctx context.Context, transition *entity.WorkflowTransition) error
	deleteTransitionFunc func(ctx context.Context, transitionID int64) error
	bumpVersionFunc      func(ctx context.Context, workflowID int64) error
}

func (m *mockDefinitionRepo) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, def)
	}
	def.ID = 1
	return nil
}

func (m *mockDefinitionRepo) GetByID(ctx context.Context, id int64) (*entity.WorkflowDefinition, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockDefinitionRepo) GetByCode(ctx context.Context, code string) (*entity.WorkflowDefinition, error) {
	if m.getByCodeFunc != nil {
		return m.getByCodeFunc(ctx, code)
	}
	return nil, nil
}

func (m *mockDefinitionRepo) List(ctx context.Context) ([]*entity.WorkflowDefinition, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*entity.WorkflowDefinition{}, nil
}

func (m *mockDefinitionRepo) AddState(ctx context.Context, state *entity.WorkflowState) error {
	if m.addStateFunc != nil {
		return m.addStateFunc(ctx, state)
	}
	state.ID = 100
	return nil
}

func (m *mockDefinitionRepo) DeleteState(ctx context.Context, stateID int64) error {
	if m.deleteStateFunc != nil {
		return m.deleteStateFunc(ctx, stateID)
	}
	return nil
}

func (m *mockDefinitionRepo) AddTransition(ctx context.Context, transition *entity.WorkflowTransition) error {
	if m.addTransitionFunc != nil {
		return m.addTransitionFunc(ctx, transition)
	}
	transition.ID = 200
	return nil
}

func (m *mockDefinitionRepo) DeleteTransition(ctx context.Context, transitionID int64) error {
	if m.deleteTransitionFunc != nil {
		return m.deleteTransitionFunc(ctx, transitionID)
	}
	return nil
}

func (m *mockDefinitionRepo) BumpVersion(ctx context.Context, workflowID int64) error {
	if m.bumpVersionFunc != nil {
		return m.bumpVersionFunc(ctx, workflowID)
	}
	return nil
}

type mockDocumentRepo struct {
	createFunc            func(ctx context.Context, document *entity.RequestDocument) error
	deleteByRequestIDFunc func(ctx context.Context, requestID int64) error
}

func (m *mockDocumentRepo) Create(ctx context.Context, document *entity.RequestDocument) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, document)
	}
	document.ID = 1
	return nil
}

func (m *mockDocumentRepo) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.RequestDocument, error) {
	return []*entity.RequestDocument{}, nil
}

func (m *mockDocumentRepo) CountValidByRequestID(ctx context.Context, requestID int64) (int64, error) {
	return 0, nil
}

func (m *mockDocumentRepo) DeleteByRequestID(ctx context.Context, requestID int64) error {
	if m.deleteByRequestIDFunc != nil {
		return m.deleteByRequestIDFunc(ctx, requestID)
	}
	return nil
}

type mockNotificationRepo struct {
	created            []*entity.WorkflowNotification
	createFunc         func(ctx context.Context, notification *entity.WorkflowNotification) error
	deleteByEntityFunc func(ctx context.Context, entityID int64, entityType entity.EntityType) error
}

func (m *mockNotificationRepo) Create(ctx context.Context, notification *entity.WorkflowNotification) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, notification)
	}
	m.created = append(m.created, notification)
	return nil
}

func (m *mockNotificationRepo) GetByUser(ctx context.Context, userID int64, limit, offset int) ([]*entity.WorkflowNotification, error) {
	return []*entity.WorkflowNotification{}, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id int64) error { return nil }

func (m *mockNotificationRepo) DeleteByEntity(ctx context.Context, entityID int64, entityType entity.EntityType) error {
	if m.deleteByEntityFunc != nil {
		return m.deleteByEntityFunc(ctx, entityID, entityType)
	}
	return nil
}

type mockHistoryRepo struct {
	deleteByEntityFunc func(ctx context.Context, entityID int64, entityType entity.EntityType) error
}

func (m *mockHistoryRepo) Create(ctx context.Context, record *entity.StateHistory) error {
	return nil
}

func (m *mockHistoryRepo) GetByEntity(ctx context.Context, entityID int64, entityType entity.EntityType, limit, offset int) ([]*entity.StateHistory, error) {
	return []*entity.StateHistory{}, nil
}

func (m *mockHistoryRepo) DeleteByEntity(ctx context.Context, entityID int64, entityType entity.EntityType) error {
	if m.deleteByEntityFunc != nil {
		return m.deleteByEntityFunc(ctx, entityID, entityType)
	}
	return nil
}

type mockEngine struct {
	executeFunc           func(ctx context.Context, input *workflow.ExecuteInput) (*workflow.ExecuteResult, error)
	availableFunc         func(ctx context.Context, entityID int64, entityType entity.EntityType, actorRole role.Role) ([]*workflow.AvailableTransition, *entity.WorkflowState, error)
	recordInitialFunc     func(ctx context.Context, entityID int64, entityType entity.EntityType, stateID, actorID int64) error
	recordedInitialStates []int64
	executedInputs        []*workflow.ExecuteInput
}

func (m *mockEngine) GetAvailableTransitions(ctx context.Context, entityID int64, entityType entity.EntityType, actorRole role.Role) ([]*workflow.AvailableTransition, *entity.WorkflowState, error) {
	if m.availableFunc != nil {
		return m.availableFunc(ctx, entityID, entityType, actorRole)
	}
	return []*workflow.AvailableTransition{}, &entity.WorkflowState{ID: 1, Code: "pending"}, nil
}

func (m *mockEngine) ExecuteTransition(ctx context.Context, input *workflow.ExecuteInput) (*workflow.ExecuteResult, error) {
	m.executedInputs = append(m.executedInputs, input)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, input)
	}
	return &workflow.ExecuteResult{
		PreviousState: &entity.WorkflowState{ID: 1, Code: "pending"},
		NewState:      &entity.WorkflowState{ID: 2, Code: "approved"},
	}, nil
}

func (m *mockEngine) GetStateHistory(ctx context.Context, entityID int64, entityType entity.EntityType, limit, offset int) ([]*entity.StateHistory, error) {
	return []*entity.StateHistory{}, nil
}

func (m *mockEngine) RecordInitialState(ctx context.Context, entityID int64, entityType entity.EntityType, stateID, actorID int64) error {
	m.recordedInitialStates = append(m.recordedInitialStates, stateID)
	if m.recordInitialFunc != nil {
		return m.recordInitialFunc(ctx, entityID, entityType, stateID, actorID)
	}
	return nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// Fixtures

func freeDayDefinition() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		ID:         1,
		Code:       "request_free_day",
		EntityType: entity.EntityTypeRequest,
		Version:    1,
		IsActive:   true,
		States: []*entity.WorkflowState{
			{ID: 1, WorkflowID: 1, Code: "pending", IsInitial: true},
			{ID: 2, WorkflowID: 1, Code: "approved", IsFinal: true},
			{ID: 3, WorkflowID: 1, Code: "rejected", IsFinal: true, IsTerminal: true},
			{ID: 4, WorkflowID: 1, Code: "cancelled_by_user", IsFinal: true, IsTerminal: true},
		},
		Transitions: []*entity.WorkflowTransition{
			{ID: 1, WorkflowID: 1, FromStateID: 1, ToStateID: 2,
				AllowedRoles: []role.Role{role.RoleAdmin, role.RoleRoot}, RequiresComment: true},
			{ID: 2, WorkflowID: 1, FromStateID: 1, ToStateID: 3,
				AllowedRoles: []role.Role{role.RoleAdmin, role.RoleRoot}, RequiresComment: true},
			{ID: 3, WorkflowID: 1, FromStateID: 2, ToStateID: 4,
				AllowedRoles: []role.Role{role.RoleProfesor, role.RoleSecretaria, role.RoleAdmin, role.RoleRoot}},
		},
	}
}

func newRequestService(
	requests *mockRequestRepo,
	definitions *mockDefinitionRepo,
	documents *mockDocumentRepo,
	notifications *mockNotificationRepo,
	history *mockHistoryRepo,
	engine *mockEngine,
) RequestService {
	return NewRequestService(requests, definitions, documents, notifications, history,
		engine, &mockTxManager{}, &mockLogger{})
}

func TestRequestService_Create(t *testing.T) {
	definitions := &mockDefinitionRepo{
		getByCodeFunc: func(ctx context.Context, code string) (*entity.WorkflowDefinition, error) {
			if code != "request_free_day" {
				t.Errorf("resolved workflow code = %s, want request_free_day", code)
			}
			return freeDayDefinition(), nil
		},
	}
	engine := &mockEngine{}
	svc := newRequestService(&mockRequestRepo{}, definitions, &mockDocumentRepo{},
		&mockNotificationRepo{}, &mockHistoryRepo{}, engine)

	request, err := svc.Create(context.Background(),
		Actor{ID: 5, Role: role.RoleProfesor},
		&CreateRequestInput{
			Type:          entity.RequestTypeFreeDay,
			RequesterID:   5,
			RequestedDate: time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
		})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if request.Status != "pending" {
		t.Errorf("request status = %s, want pending", request.Status)
	}
	if request.CurrentStateID == nil || *request.CurrentStateID != 1 {
		t.Errorf("request current state = %v, want 1", request.CurrentStateID)
	}
	if request.Reference == "" {
		t.Error("request reference should be generated")
	}
	if len(engine.recordedInitialStates) != 1 || engine.recordedInitialStates[0] != 1 {
		t.Errorf("recorded initial states = %v, want [1]", engine.recordedInitialStates)
	}
}

func TestRequestService_Create_GuestForbidden(t *testing.T) {
	svc := newRequestService(&mockRequestRepo{}, &mockDefinitionRepo{}, &mockDocumentRepo{},
		&mockNotificationRepo{}, &mockHistoryRepo{}, &mockEngine{})

	_, err := svc.Create(context.Background(),
		Actor{ID: 9, Role: role.RoleGuest},
		&CreateRequestInput{Type: entity.RequestTypeFreeDay, RequesterID: 9})
	if !domainwf.IsKind(err, domainwf.KindForbidden) {
		t.Errorf("Create(guest) = %v, want KindForbidden", err)
	}
}

func TestRequestService_Create_UnknownType(t *testing.T) {
	svc := newRequestService(&mockRequestRepo{}, &mockDefinitionRepo{}, &mockDocumentRepo{},
		&mockNotificationRepo{}, &mockHistoryRepo{}, &mockEngine{})

	_, err := svc.Create(context.Background(),
		Actor{ID: 5, Role: role.RoleProfesor},
		&CreateRequestInput{Type: "HOLIDAY", RequesterID: 5})
	if err == nil {
		t.Error("Create(unknown type) should fail")
	}
}

func TestRequestService_Get_OwnerAndAdmin(t *testing.T) {
	requests := &mockRequestRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Request, error) {
			return &entity.Request{ID: id, RequesterID: 5, Status: "pending"}, nil
		},
	}
	svc := newRequestService(requests, &mockDefinitionRepo{}, &mockDocumentRepo{},
		&mockNotificationRepo{}, &mockHistoryRepo{}, &mockEngine{})

	if _, err := svc.Get(context.Background(), Actor{ID: 5, Role: role.RoleProfesor}, 1); err != nil {
		t.Errorf("Get(owner) failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), Actor{ID: 99, Role: role.RoleAdmin}, 1); err != nil {
		t.Errorf("Get(admin) failed: %v", err)
	}
	_, err := svc.Get(context.Background(), Actor{ID: 7, Role: role.RoleProfesor}, 1)
	if !domainwf.IsKind(err, domainwf.KindForbidden) {
		t.Errorf("Get(other teacher) = %v, want KindForbidden", err)
	}
}

func TestRequestService_List_ScopedByRole(t *testing.T) {
	var listedAll, listedOwn bool
	requests := &mockRequestRepo{
		listFunc: func(ctx context.Context, limit, offset int) ([]*entity.Request, error) {
			listedAll = true
			return []*entity.Request{}, nil
		},
		listByRequesterFunc: func(ctx context.Context, requesterID int64, limit, offset int) ([]*entity.Request, error) {
			listedOwn = true
			if requesterID != 5 {
				t.Errorf("listByRequester requesterID = %d, want 5", requesterID)
			}
			return []*entity.Request{}, nil
		},
	}
	svc := newRequestService(requests, &mockDefinitionRepo{}, &mockDocumentRepo{},
		&mockNotificationRepo{}, &mockHistoryRepo{}, &mockEngine{})

	if _, err := svc.List(context.Background(), Actor{ID: 5, Role: role.RoleProfesor}, 50, 0); err != nil {
		t.Fatalf("List(teacher) failed: %v", err)
	}
	if !listedOwn || listedAll {
		t.Error("teacher listing should be scoped to own requests")
	}

	listedAll, listedOwn = false, false
	if _, err := svc.List(context.Background(), Actor{ID: 1, Role: role.RoleAdmin}, 50, 0); err != nil {
		t.Fatalf("List(admin) failed: %v", err)
	}
	if !listedAll || listedOwn {
		t.Error("admin listing should see all requests")
	}
}

func TestRequestService_Cancel_PendingIsHardDeleted(t *testing.T) {
	var deletedRequest, deletedHistory, deletedNotifications, deletedDocuments bool
	requests := &mockRequestRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Request, error) {
			return &entity.Request{ID: id, RequesterID: 5, Status: "pending"}, nil
		},
		deleteFunc: func(ctx context.Context, id int64) error {
			deletedRequest = true
			return nil
		},
	}
	history := &mockHistoryRepo{
		deleteByEntityFunc: func(ctx context.Context, entityID int64, entityType entity.EntityType) error {
			deletedHistory = true
			return nil
		},
	}
	notifications := &mockNotificationRepo{
		deleteByEntityFunc: func(ctx context.Context, entityID int64, entityType entity.EntityType) error {
			deletedNotifications = true
			return nil
		},
	}
	documents := &mockDocumentRepo{
		deleteByRequestIDFunc: func(ctx context.Context, requestID int64) error {
			deletedDocuments = true
			return nil
		},
	}
	engine := &mockEngine{}
	svc := newRequestService(requests, &mockDefinitionRepo{}, documents, notifications, history, engine)

	result, err := svc.Cancel(context.Background(), Actor{ID: 5, Role: role.RoleProfesor}, 1)
	if err != nil {
		t.Fatalf("Cancel() failed: %v", err)
	}

	if !result.Deleted {
		t.Error("pending cancellation should report Deleted")
	}
	if !deletedRequest || !deletedHistory || !deletedNotifications || !deletedDocuments {
		t.Error("hard delete should remove the request with its history, notifications and documents")
	}
	if len(engine.executedInputs) != 0 {
		t.Error("pending cancellation should not go through the engine")
	}
}

func TestRequestService_Cancel_ApprovedTransitions(t *testing.T) {
	requests := &mockRequestRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Request, error) {
			return &entity.Request{ID: id, RequesterID: 5, Status: "approved"}, nil
		},
	}
	engine := &mockEngine{}
	svc := newRequestService(requests, &mockDefinitionRepo{}, &mockDocumentRepo{},
		&mockNotificationRepo{}, &mockHistoryRepo{}, engine)

	result, err := svc.Cancel(context.Background(), Actor{ID: 5, Role: role.RoleProfesor}, 1)
	if err != nil {
		t.Fatalf("Cancel() failed: %v", err)
	}

	if result.Deleted {
		t.Error("approved cancellation should not delete the request")
	}
	if len(engine.executedInputs) != 1 {
		t.Fatalf("engine executions = %d, want 1", len(engine.executedInputs))
	}
	if engine.executedInputs[0].ToState != "cancelled_by_user" {
		t.Errorf("transition target = %s, want cancelled_by_user", engine.executedInputs[0].ToState)
	}
}

func TestRequestService_Cancel_RejectedNotAllowed(t *testing.T) {
	requests := &mockRequestRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Request, error) {
			return &entity.Request{ID: id, RequesterID: 5, Status: "rejected"}, nil
		},
	}
	svc := newRequestService(requests, &mockDefinitionRepo{}, &mockDocumentRepo{},
		&mockNotificationRepo{}, &mockHistoryRepo{}, &mockEngine{})

	_, err := svc.Cancel(context.Background(), Actor{ID: 5, Role: role.RoleProfesor}, 1)
	if !domainwf.IsKind(err, domainwf.KindTransitionNotAllowed) {
		t.Errorf("Cancel(rejected) = %v, want KindTransitionNotAllowed", err)
	}
}

func TestRequestService_Cancel_AtomicRollback(t *testing.T) {
	requests := &mockRequestRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Request, error) {
			return &entity.Request{ID: id, RequesterID: 5, Status: "pending"}, nil
		},
		deleteFunc: func(ctx context.Context, id int64) error {
			return errors.New("disk full")
		},
	}
	svc := newRequestService(requests, &mockDefinitionRepo{}, &mockDocumentRepo{},
		&mockNotificationRepo{}, &mockHistoryRepo{}, &mockEngine{})

	_, err := svc.Cancel(context.Background(), Actor{ID: 5, Role: role.RoleProfesor}, 1)
	if err == nil {
		t.Error("Cancel() should propagate the transaction failure")
	}
}

func TestRequestService_Transition_Delegates(t *testing.T) {
	requests := &mockRequestRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Request, error) {
			return &entity.Request{ID: id, RequesterID: 5, Status: "pending"}, nil
		},
	}
	engine := &mockEngine{}
	svc := newRequestService(requests, &mockDefinitionRepo{}, &mockDocumentRepo{},
		&mockNotificationRepo{}, &mockHistoryRepo{}, engine)

	_, err := svc.Transition(context.Background(),
		Actor{ID: 1, Role: role.RoleAdmin}, 1, "approved", "Disfruta del día", nil)
	if err != nil {
		t.Fatalf("Transition() failed: %v", err)
	}

	input := engine.executedInputs[0]
	if input.EntityID != 1 || input.EntityType != entity.EntityTypeRequest {
		t.Errorf("engine input entity = %d/%s, want 1/REQUEST", input.EntityID, input.EntityType)
	}
	if input.ActorID != 1 || input.ActorRole != role.RoleAdmin {
		t.Errorf("engine input actor = %d/%s", input.ActorID, input.ActorRole)
	}
	if input.Comment != "Disfruta del día" {
		t.Errorf("engine input comment = %q", input.Comment)
	}
}

func TestRequestService_Get_NotFound(t *testing.T) {
	svc := newRequestService(&mockRequestRepo{}, &mockDefinitionRepo{}, &mockDocumentRepo{},
		&mockNotificationRepo{}, &mockHistoryRepo{}, &mockEngine{})

	_, err := svc.Get(context.Background(), Actor{ID: 5, Role: role.RoleProfesor}, 42)
	if !domainwf.IsKind(err, domainwf.KindNotFound) {
		t.Errorf("Get(missing) = %v, want KindNotFound", err)
	}
}

func TestRequestService_AttachDocument(t *testing.T) {
	requests := &mockRequestRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.Request, error) {
			return &entity.Request{ID: id, RequesterID: 5, Status: "pending_validation"}, nil
		},
	}
	svc := newRequestService(requests, &mockDefinitionRepo{}, &mockDocumentRepo{},
		&mockNotificationRepo{}, &mockHistoryRepo{}, &mockEngine{})

	document, err := svc.AttachDocument(context.Background(),
		Actor{ID: 5, Role: role.RoleProfesor}, 1, "justificante.pdf")
	if err != nil {
		t.Fatalf("AttachDocument() failed: %v", err)
	}
	if document.Status != entity.DocumentStatusPending {
		t.Errorf("document status = %s, want pending", document.Status)
	}
	if document.RequestID != 1 {
		t.Errorf("document request = %d, want 1", document.RequestID)
	}
}
