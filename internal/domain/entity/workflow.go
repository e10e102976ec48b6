package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mgallego/colegio-intranet/internal/domain/role"
)

// WorkflowDefinition is the named, versioned graph of states and transitions
// governing one class of entity. Inactive definitions are excluded from
// new-entity creation; historical entities keep referencing them.
type WorkflowDefinition struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	EntityType  EntityType `json:"entity_type"`
	Version     int        `json:"version"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Populated when the definition is loaded with its graph
	States      []*WorkflowState      `json:"states,omitempty"`
	Transitions []*WorkflowTransition `json:"transitions,omitempty"`
}

// WorkflowState is a named node in a workflow graph.
// Initial, final and terminal are independent flags: exactly one state per
// definition is initial; terminal implies final and has no outgoing edges.
type WorkflowState struct {
	ID         int64  `json:"id"`
	WorkflowID int64  `json:"workflow_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	Order      int    `json:"order"`
	IsInitial  bool   `json:"is_initial"`
	IsFinal    bool   `json:"is_final"`
	IsTerminal bool   `json:"is_terminal"`
}

// WorkflowTransition is a directed, role-gated edge between two states of the
// same definition, optionally guarded by a validator and followed by
// auto-actions. At most one transition exists per (from, to) pair.
type WorkflowTransition struct {
	ID              int64       `json:"id"`
	WorkflowID      int64       `json:"workflow_id"`
	FromStateID     int64       `json:"from_state_id"`
	ToStateID       int64       `json:"to_state_id"`
	AllowedRoles    []role.Role `json:"allowed_roles"`
	RequiresComment bool        `json:"requires_comment"`
	RequiresFields  []string    `json:"requires_fields,omitempty"`
	AutoActions     []string    `json:"auto_actions,omitempty"`
	ValidatorCode   string      `json:"validator_code,omitempty"`
}

// Allows returns true if the transition's allowed roles contain the role
func (t *WorkflowTransition) Allows(r role.Role) bool {
	for _, allowed := range t.AllowedRoles {
		if allowed == r {
			return true
		}
	}
	return false
}

// EncodeRoles serializes a role list to the JSON-array TEXT column format
func EncodeRoles(roles []role.Role) (string, error) {
	if len(roles) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("failed to encode roles: %w", err)
	}
	return string(data), nil
}

// DecodeRoles parses the JSON-array TEXT column format into a role list
func DecodeRoles(raw string) ([]role.Role, error) {
	if raw == "" {
		return nil, nil
	}
	var roles []role.Role
	if err := json.Unmarshal([]byte(raw), &roles); err != nil {
		return nil, fmt.Errorf("failed to decode roles %q: %w", raw, err)
	}
	return roles, nil
}

// EncodeStringList serializes a string list to the JSON-array TEXT column format
func EncodeStringList(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode string list: %w", err)
	}
	return string(data), nil
}

// DecodeStringList parses the JSON-array TEXT column format into a string list
func DecodeStringList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode string list %q: %w", raw, err)
	}
	return values, nil
}
