package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mgallego/colegio-intranet/internal/application/service"
	appwf "github.com/mgallego/colegio-intranet/internal/application/workflow"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/domain/role"
	"github.com/mgallego/colegio-intranet/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	requestService      service.RequestService
	taskService         service.TaskService
	adminService        service.WorkflowAdminService
	notificationService service.NotificationService
	logger              Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	requestService service.RequestService,
	taskService service.TaskService,
	adminService service.WorkflowAdminService,
	notificationService service.NotificationService,
	logger Logger,
) *Handlers {
	return &Handlers{
		requestService:      requestService,
		taskService:         taskService,
		adminService:        adminService,
		notificationService: notificationService,
		logger:              logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateRequestBody is the JSON body for POST /api/requests
type CreateRequestBody struct {
	Type          string                 `json:"type" binding:"required"`
	RequestedDate time.Time              `json:"requested_date" binding:"required"`
	StartDate     *time.Time             `json:"start_date"`
	EndDate       *time.Time             `json:"end_date"`
	Context       map[string]interface{} `json:"context"`
}

// CreateTaskBody is the JSON body for POST /api/tasks
type CreateTaskBody struct {
	Type          string                 `json:"type" binding:"required"`
	Context       map[string]interface{} `json:"context"`
	DueDate       *time.Time             `json:"due_date"`
	AssigneeIDs   []int64                `json:"assignee_ids"`
	VotingOptions []string               `json:"voting_options"`
	VotingEndsAt  *time.Time             `json:"voting_ends_at"`
}

// TransitionBody is the JSON body for the transition endpoints
type TransitionBody struct {
	ToState  string                 `json:"to_state" binding:"required"`
	Comment  string                 `json:"comment"`
	Metadata map[string]interface{} `json:"metadata"`
}

// AttachDocumentBody is the JSON body for POST /api/requests/:id/documents
type AttachDocumentBody struct {
	FileName string `json:"file_name" binding:"required"`
}

// CreateWorkflowBody is the JSON body for POST /api/admin/workflows
type CreateWorkflowBody struct {
	Code        string `json:"code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	EntityType  string `json:"entity_type" binding:"required"`
}

// AddStateBody is the JSON body for POST /api/admin/workflows/:id/states
type AddStateBody struct {
	Code       string `json:"code" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Color      string `json:"color"`
	Order      int    `json:"order"`
	IsInitial  bool   `json:"is_initial"`
	IsFinal    bool   `json:"is_final"`
	IsTerminal bool   `json:"is_terminal"`
}

// AddTransitionBody is the JSON body for POST /api/admin/workflows/:id/transitions
type AddTransitionBody struct {
	From            string   `json:"from" binding:"required"`
	To              string   `json:"to" binding:"required"`
	AllowedRoles    []string `json:"allowed_roles" binding:"required"`
	RequiresComment bool     `json:"requires_comment"`
	RequiresFields  []string `json:"requires_fields"`
	AutoActions     []string `json:"auto_actions"`
	ValidatorCode   string   `json:"validator_code"`
}

// TransitionsResponse pairs the current state with the executable transitions
type TransitionsResponse struct {
	CurrentState *entity.WorkflowState       `json:"current_state"`
	Transitions  []*workflowTransitionOption `json:"transitions"`
}

type workflowTransitionOption struct {
	ToState         *entity.WorkflowState `json:"to_state"`
	RequiresComment bool                  `json:"requires_comment"`
	RequiresFields  []string              `json:"requires_fields,omitempty"`
}

// actorFromHeaders resolves the acting user from the trusted identity headers
func actorFromHeaders(c *gin.Context) (service.Actor, bool) {
	userID, err := strconv.ParseInt(c.GetHeader(headerUserID), 10, 64)
	if err != nil || userID <= 0 {
		return service.Actor{}, false
	}
	userRole := role.Role(c.GetHeader(headerUserRole))
	if !userRole.IsValid() {
		return service.Actor{}, false
	}
	return service.Actor{ID: userID, Role: userRole}, true
}

// mustActor returns the actor stored by actorMiddleware
func mustActor(c *gin.Context) service.Actor {
	actor, _ := c.Get(actorKey)
	return actor.(service.Actor)
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateRequest handles POST /api/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	actor := mustActor(c)
	request, err := h.requestService.Create(c.Request.Context(), actor, &service.CreateRequestInput{
		Type:          body.Type,
		RequesterID:   actor.ID,
		Context:       body.Context,
		RequestedDate: body.RequestedDate,
		StartDate:     body.StartDate,
		EndDate:       body.EndDate,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: request})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	limit, offset := pagination(c)
	requests, err := h.requestService.List(c.Request.Context(), mustActor(c), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: requests})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	request, err := h.requestService.Get(c.Request.Context(), mustActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: request})
}

// CancelRequest handles DELETE /api/requests/:id
func (h *Handlers) CancelRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.requestService.Cancel(c.Request.Context(), mustActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// GetRequestTransitions handles GET /api/requests/:id/transitions
func (h *Handlers) GetRequestTransitions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	available, current, err := h.requestService.GetTransitions(c.Request.Context(), mustActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toTransitionsResponse(available, current)})
}

// TransitionRequest handles POST /api/requests/:id/transition
func (h *Handlers) TransitionRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body TransitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.requestService.Transition(c.Request.Context(), mustActor(c),
		id, body.ToState, body.Comment, body.Metadata)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// GetRequestHistory handles GET /api/requests/:id/history
func (h *Handlers) GetRequestHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	limit, offset := pagination(c)
	records, err := h.requestService.GetHistory(c.Request.Context(), mustActor(c), id, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// AttachDocument handles POST /api/requests/:id/documents
func (h *Handlers) AttachDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body AttachDocumentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	document, err := h.requestService.AttachDocument(c.Request.Context(), mustActor(c), id, body.FileName)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: document})
}

// CreateTask handles POST /api/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	var body CreateTaskBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	actor := mustActor(c)
	task, err := h.taskService.Create(c.Request.Context(), actor, &service.CreateTaskInput{
		Type:          body.Type,
		CreatorID:     actor.ID,
		Context:       body.Context,
		DueDate:       body.DueDate,
		AssigneeIDs:   body.AssigneeIDs,
		VotingOptions: body.VotingOptions,
		VotingEndsAt:  body.VotingEndsAt,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: task})
}

// ListTasks handles GET /api/tasks
func (h *Handlers) ListTasks(c *gin.Context) {
	limit, offset := pagination(c)
	tasks, err := h.taskService.List(c.Request.Context(), mustActor(c), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tasks})
}

// GetTask handles GET /api/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), mustActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: task})
}

// GetTaskTransitions handles GET /api/tasks/:id/transitions
func (h *Handlers) GetTaskTransitions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	available, current, err := h.taskService.GetTransitions(c.Request.Context(), mustActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toTransitionsResponse(available, current)})
}

// TransitionTask handles POST /api/tasks/:id/transition
func (h *Handlers) TransitionTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body TransitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.taskService.Transition(c.Request.Context(), mustActor(c),
		id, body.ToState, body.Comment, body.Metadata)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// GetTaskHistory handles GET /api/tasks/:id/history
func (h *Handlers) GetTaskHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	limit, offset := pagination(c)
	records, err := h.taskService.GetHistory(c.Request.Context(), mustActor(c), id, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// CompleteAssignment handles POST /api/tasks/:id/complete-assignment
func (h *Handlers) CompleteAssignment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.taskService.CompleteAssignment(c.Request.Context(), mustActor(c), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	limit, offset := pagination(c)
	notifications, err := h.notificationService.List(c.Request.Context(), mustActor(c), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: notifications})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), mustActor(c), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// CreateWorkflow handles POST /api/admin/workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var body CreateWorkflowBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	def, err := h.adminService.CreateWorkflow(c.Request.Context(), &service.CreateWorkflowInput{
		Code:        body.Code,
		Name:        body.Name,
		Description: body.Description,
		EntityType:  entity.EntityType(body.EntityType),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: def})
}

// ListWorkflows handles GET /api/admin/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	defs, err := h.adminService.ListWorkflows(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: defs})
}

// GetWorkflow handles GET /api/admin/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	def, err := h.adminService.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: def})
}

// AddState handles POST /api/admin/workflows/:id/states
func (h *Handlers) AddState(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body AddStateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	state, err := h.adminService.AddState(c.Request.Context(), &service.AddStateInput{
		WorkflowID: id,
		Code:       body.Code,
		Name:       body.Name,
		Color:      body.Color,
		Order:      body.Order,
		IsInitial:  body.IsInitial,
		IsFinal:    body.IsFinal,
		IsTerminal: body.IsTerminal,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: state})
}

// DeleteState handles DELETE /api/admin/workflows/:id/states/:stateID
func (h *Handlers) DeleteState(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	stateID, ok := pathID(c, "stateID")
	if !ok {
		return
	}

	if err := h.adminService.DeleteState(c.Request.Context(), id, stateID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// AddTransition handles POST /api/admin/workflows/:id/transitions
func (h *Handlers) AddTransition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body AddTransitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	roles := make([]role.Role, 0, len(body.AllowedRoles))
	for _, r := range body.AllowedRoles {
		roles = append(roles, role.Role(r))
	}

	transition, err := h.adminService.AddTransition(c.Request.Context(), &service.AddTransitionInput{
		WorkflowID:      id,
		From:            body.From,
		To:              body.To,
		AllowedRoles:    roles,
		RequiresComment: body.RequiresComment,
		RequiresFields:  body.RequiresFields,
		AutoActions:     body.AutoActions,
		ValidatorCode:   body.ValidatorCode,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: transition})
}

// DeleteTransition handles DELETE /api/admin/workflows/:id/transitions/:transitionID
func (h *Handlers) DeleteTransition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	transitionID, ok := pathID(c, "transitionID")
	if !ok {
		return
	}

	if err := h.adminService.DeleteTransition(c.Request.Context(), id, transitionID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// Helpers

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "Identificador no válido",
		})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func toTransitionsResponse(available []*appwf.AvailableTransition, current *entity.WorkflowState) TransitionsResponse {
	options := make([]*workflowTransitionOption, 0, len(available))
	for _, a := range available {
		options = append(options, &workflowTransitionOption{
			ToState:         a.ToState,
			RequiresComment: a.Transition.RequiresComment,
			RequiresFields:  a.Transition.RequiresFields,
		})
	}
	return TransitionsResponse{CurrentState: current, Transitions: options}
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Error("Invalid request body", "error", err)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   "Datos de la petición no válidos",
	})
}

// respondError maps workflow error kinds to HTTP statuses and user-facing
// messages. Unclassified errors stay opaque.
func (h *Handlers) respondError(c *gin.Context, err error) {
	kind := workflow.KindOf(err)

	status := http.StatusBadRequest
	switch kind {
	case workflow.KindNotFound:
		status = http.StatusNotFound
	case workflow.KindForbidden:
		status = http.StatusForbidden
	case workflow.KindConflict:
		status = http.StatusConflict
	case workflow.KindValidatorNotFound, workflow.KindActionNotFound:
		status = http.StatusInternalServerError
	case "":
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, Response{
		Success: false,
		Error:   userMessage(kind, err),
	})
}

// userMessage renders the Spanish message shown in the intranet UI
func userMessage(kind workflow.Kind, err error) string {
	switch kind {
	case workflow.KindNotFound:
		return "No encontrado"
	case workflow.KindForbidden:
		return "No tienes permisos para realizar esta acción"
	case workflow.KindCommentRequired:
		return "Debes añadir un comentario"
	case workflow.KindMissingField:
		return "Faltan campos obligatorios para esta transición"
	case workflow.KindTransitionNotAllowed:
		return "Esta transición no está permitida desde el estado actual"
	case workflow.KindUnknownState:
		return "El estado indicado no existe en este flujo de trabajo"
	case workflow.KindInvalidState:
		return "El elemento no está gestionado por un flujo de trabajo"
	case workflow.KindConflict:
		return "El elemento ha sido modificado por otra operación, recarga e inténtalo de nuevo"
	case workflow.KindValidationFailed:
		// Validators write their own user-facing message
		var wfErr *workflow.Error
		if errors.As(err, &wfErr) && wfErr.Message != "" {
			return wfErr.Message
		}
		return "La validación de la transición ha fallado"
	case workflow.KindValidatorNotFound, workflow.KindActionNotFound:
		return "Error de configuración del flujo de trabajo"
	case workflow.KindInvalidDefinition:
		return "Definición de flujo de trabajo no válida: " + err.Error()
	default:
		return "No se pudo completar la operación"
	}
}
