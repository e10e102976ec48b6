package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure so callers can render a specific
// user-facing message. Kinds form a closed set.
type Kind string

const (
	// KindNotFound - entity or workflow definition does not exist
	KindNotFound Kind = "NOT_FOUND"

	// KindInvalidState - entity has no workflow/current state to transition from
	KindInvalidState Kind = "INVALID_STATE"

	// KindUnknownState - target state code does not exist in this definition
	KindUnknownState Kind = "UNKNOWN_STATE"

	// KindTransitionNotAllowed - no edge between current and target state
	KindTransitionNotAllowed Kind = "TRANSITION_NOT_ALLOWED"

	// KindForbidden - actor's role is not in the transition's allowed roles
	KindForbidden Kind = "FORBIDDEN"

	// KindCommentRequired - transition mandates a comment that was not supplied
	KindCommentRequired Kind = "COMMENT_REQUIRED"

	// KindMissingField - a required metadata field was absent
	KindMissingField Kind = "MISSING_FIELD"

	// KindValidationFailed - the registered validator rejected the transition
	KindValidationFailed Kind = "VALIDATION_FAILED"

	// KindValidatorNotFound - a transition references an unregistered validator
	KindValidatorNotFound Kind = "VALIDATOR_NOT_FOUND"

	// KindActionNotFound - a transition references an unregistered action
	KindActionNotFound Kind = "ACTION_NOT_FOUND"

	// KindConflict - concurrent modification detected
	KindConflict Kind = "CONFLICT"

	// KindInvalidDefinition - a structural invariant of a definition is violated
	KindInvalidDefinition Kind = "INVALID_DEFINITION"
)

// Error is a typed workflow failure. All engine failures are returned as
// *Error so the HTTP layer can map each kind to a distinct status and message.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError creates a typed workflow error
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the kind of a workflow error, or empty if err is not one
func KindOf(err error) Kind {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return ""
}

// IsKind returns true if err is a workflow error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
