package workflow

import (
	"testing"

	"github.com/mgallego/colegio-intranet/internal/domain/entity"
	"github.com/mgallego/colegio-intranet/internal/domain/role"
)

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
			{ID: 10, WorkflowID: 1, FromStateID: 1, ToStateID: 2, AllowedRoles: []role.Role{role.RoleAdmin, role.RoleRoot}, RequiresComment: true},
			{ID: 11, WorkflowID: 1, FromStateID: 1, ToStateID: 3, AllowedRoles: []role.Role{role.RoleAdmin, role.RoleRoot}, RequiresComment: true},
			{ID: 12, WorkflowID: 1, FromStateID: 2, ToStateID: 4, AllowedRoles: []role.Role{role.RoleProfesor, role.RoleAdmin, role.RoleRoot}},
		},
	}
}

func TestValidate_ValidDefinition(t *testing.T) {
	if err := Validate(freeDayDefinition()); err != nil {
		t.Errorf("Validate() failed for valid definition: %v", err)
	}
}

func TestValidate_NoInitialState(t *testing.T) {
	def := freeDayDefinition()
	def.States[0].IsInitial = false

	err := Validate(def)
	if !IsKind(err, KindInvalidDefinition) {
		t.Errorf("Validate() = %v, want KindInvalidDefinition", err)
	}
}

func TestValidate_TwoInitialStates(t *testing.T) {
	def := freeDayDefinition()
	def.States[1].IsInitial = true

	err := Validate(def)
	if !IsKind(err, KindInvalidDefinition) {
		t.Errorf("Validate() = %v, want KindInvalidDefinition", err)
	}
}

func TestValidate_TerminalNotFinal(t *testing.T) {
	def := freeDayDefinition()
	def.States[2].IsFinal = false

	err := Validate(def)
	if !IsKind(err, KindInvalidDefinition) {
		t.Errorf("Validate() = %v, want KindInvalidDefinition", err)
	}
}

func TestValidate_OutgoingFromTerminal(t *testing.T) {
	def := freeDayDefinition()
	def.Transitions = append(def.Transitions, &entity.WorkflowTransition{
		ID: 13, WorkflowID: 1, FromStateID: 3, ToStateID: 1,
		AllowedRoles: []role.Role{role.RoleAdmin},
	})

	err := Validate(def)
	if !IsKind(err, KindInvalidDefinition) {
		t.Errorf("Validate() = %v, want KindInvalidDefinition", err)
	}
}

func TestValidate_DuplicateEdge(t *testing.T) {
	def := freeDayDefinition()
	def.Transitions = append(def.Transitions, &entity.WorkflowTransition{
		ID: 14, WorkflowID: 1, FromStateID: 1, ToStateID: 2,
		AllowedRoles: []role.Role{role.RoleRoot},
	})

	err := Validate(def)
	if !IsKind(err, KindInvalidDefinition) {
		t.Errorf("Validate() = %v, want KindInvalidDefinition", err)
	}
}

func TestValidate_EdgeEndpointOutsideDefinition(t *testing.T) {
	def := freeDayDefinition()
	def.Transitions = append(def.Transitions, &entity.WorkflowTransition{
		ID: 15, WorkflowID: 1, FromStateID: 1, ToStateID: 99,
		AllowedRoles: []role.Role{role.RoleAdmin},
	})

	err := Validate(def)
	if !IsKind(err, KindInvalidDefinition) {
		t.Errorf("Validate() = %v, want KindInvalidDefinition", err)
	}
}

func TestValidate_EmptyAllowedRoles(t *testing.T) {
	def := freeDayDefinition()
	def.Transitions[0].AllowedRoles = nil

	err := Validate(def)
	if !IsKind(err, KindInvalidDefinition) {
		t.Errorf("Validate() = %v, want KindInvalidDefinition", err)
	}
}

func TestGraph_InitialState(t *testing.T) {
	g := NewGraph(freeDayDefinition())

	initial, err := g.InitialState()
	if err != nil {
		t.Fatalf("InitialState() failed: %v", err)
	}
	if initial.Code != "pending" {
		t.Errorf("InitialState().Code = %s, want pending", initial.Code)
	}
}

func TestGraph_InitialState_Missing(t *testing.T) {
	def := freeDayDefinition()
	def.States[0].IsInitial = false
	g := NewGraph(def)

	if _, err := g.InitialState(); !IsKind(err, KindInvalidDefinition) {
		t.Errorf("InitialState() = %v, want KindInvalidDefinition", err)
	}
}

func TestGraph_StateByCode(t *testing.T) {
	g := NewGraph(freeDayDefinition())

	s, ok := g.StateByCode("approved")
	if !ok {
		t.Fatal("StateByCode(approved) not found")
	}
	if s.ID != 2 {
		t.Errorf("StateByCode(approved).ID = %d, want 2", s.ID)
	}

	if _, ok := g.StateByCode("nonexistent"); ok {
		t.Error("StateByCode(nonexistent) should not be found")
	}
}

func TestGraph_Edge(t *testing.T) {
	g := NewGraph(freeDayDefinition())

	if _, ok := g.Edge(1, 2); !ok {
		t.Error("Edge(pending, approved) should exist")
	}
	// No edge approved -> rejected
	if _, ok := g.Edge(2, 3); ok {
		t.Error("Edge(approved, rejected) should not exist")
	}
}

func TestGraph_OutgoingFrom(t *testing.T) {
	g := NewGraph(freeDayDefinition())

	if got := len(g.OutgoingFrom(1)); got != 2 {
		t.Errorf("OutgoingFrom(pending) = %d transitions, want 2", got)
	}
	if got := len(g.OutgoingFrom(3)); got != 0 {
		t.Errorf("OutgoingFrom(rejected) = %d transitions, want 0", got)
	}
}

func TestTransition_Allows(t *testing.T) {
	tr := &entity.WorkflowTransition{
		AllowedRoles: []role.Role{role.RoleAdmin, role.RoleRoot},
	}

	if !tr.Allows(role.RoleAdmin) {
		t.Error("Allows(ADMIN) should be true")
	}
	if tr.Allows(role.RoleProfesor) {
		t.Error("Allows(PROFESOR) should be false")
	}
}

func TestError_Kind(t *testing.T) {
	err := NewError(KindCommentRequired, "transition %s requires a comment", "pending->approved")

	if !IsKind(err, KindCommentRequired) {
		t.Error("IsKind() should match the error's kind")
	}
	if IsKind(err, KindForbidden) {
		t.Error("IsKind() should not match a different kind")
	}
	if KindOf(err) != KindCommentRequired {
		t.Errorf("KindOf() = %s, want %s", KindOf(err), KindCommentRequired)
	}
}
