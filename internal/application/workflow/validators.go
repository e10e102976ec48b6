package workflow

import (
	"context"
	"time"

	"github.com/mgallego/colegio-intranet/internal/application/port"
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	domainwf "github.com/mgallego/colegio-intranet/internal/domain/workflow"
)

// Validator codes referenced by transition definitions. The set is closed:
// seed data and the admin API only accept keys registered at startup.
const (
	ValidatorCheckDocuments    = "check_documents"
	ValidatorCheckVotingClosed = "check_voting_closed"
)

// ValidationInput carries the entity and transition metadata a validator
// can inspect before vetoing a transition.
type ValidationInput struct {
	EntityID   int64
	EntityType entity.EntityType
	Metadata   map[string]interface{}
}

// Validator is a named pre-commit guard. A non-nil return vetoes the
// transition; validation failures are reported as KindValidationFailed
// workflow errors whose message reaches the user.
type Validator interface {
	Validate(ctx context.Context, input *ValidationInput) error
}

// ValidatorRegistry maps validator codes to implementations. It is populated
// once at startup and read-only afterwards, so lookups need no locking.
type ValidatorRegistry struct {
	validators map[string]Validator
}

// NewValidatorRegistry creates an empty validator registry
func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{
		validators: make(map[string]Validator),
	}
}

// Register binds a validator implementation to a code
func (r *ValidatorRegistry) Register(code string, v Validator) {
	r.validators[code] = v
}

// Get looks up a validator by code
func (r *ValidatorRegistry) Get(code string) (Validator, bool) {
	v, ok := r.validators[code]
	return v, ok
}

// Known returns true if the code is registered
func (r *ValidatorRegistry) Known(code string) bool {
	_, ok := r.validators[code]
	return ok
}

// DocumentsValidator implements check_documents: a sick-leave request may
// only be validated once at least one attached document has been marked
// valid by administration.
type DocumentsValidator struct {
	documents port.DocumentRepository
}

// NewDocumentsValidator creates the check_documents validator
func NewDocumentsValidator(documents port.DocumentRepository) *DocumentsValidator {
	return &DocumentsValidator{documents: documents}
}

// Validate implements Validator
func (v *DocumentsValidator) Validate(ctx context.Context, input *ValidationInput) error {
	if input.EntityType != entity.EntityTypeRequest {
		return domainwf.NewError(domainwf.KindValidationFailed,
			"check_documents solo aplica a solicitudes")
	}

	count, err := v.documents.CountValidByRequestID(ctx, input.EntityID)
	if err != nil {
		return err
	}
	if count == 0 {
		return domainwf.NewError(domainwf.KindValidationFailed,
			"La solicitud no tiene ningún documento válido adjunto")
	}
	return nil
}

// VotingClosedValidator implements check_voting_closed: a voting task may
// only close once its deadline has passed or every assignee has voted.
type VotingClosedValidator struct {
	tasks port.TaskRepository
	now   func() time.Time
}

// NewVotingClosedValidator creates the check_voting_closed validator
func NewVotingClosedValidator(tasks port.TaskRepository) *VotingClosedValidator {
	return &VotingClosedValidator{
		tasks: tasks,
		now:   time.Now,
	}
}

// Validate implements Validator
func (v *VotingClosedValidator) Validate(ctx context.Context, input *ValidationInput) error {
	if input.EntityType != entity.EntityTypeTask {
		return domainwf.NewError(domainwf.KindValidationFailed,
			"check_voting_closed solo aplica a tareas")
	}

	task, err := v.tasks.GetByID(ctx, input.EntityID)
	if err != nil {
		return err
	}
	if task == nil {
		return domainwf.NewError(domainwf.KindNotFound, "task %d not found", input.EntityID)
	}

	if task.VotingEndsAt != nil && !v.now().Before(*task.VotingEndsAt) {
		return nil
	}

	assignments, err := v.tasks.GetAssignments(ctx, input.EntityID)
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		return domainwf.NewError(domainwf.KindValidationFailed,
			"La votación sigue abierta y no tiene participantes")
	}
	for _, a := range assignments {
		if a.CompletedAt == nil {
			return domainwf.NewError(domainwf.KindValidationFailed,
				"La votación sigue abierta: faltan votos por emitir")
		}
	}
	return nil
}
