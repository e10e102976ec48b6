package workflow

import (
	"github.com/mgallego/colegio-intranet/internal/domain/entity"
)

type edgeKey struct {
	fromID int64
	toID   int64
}

// Graph is an indexed, read-only view over a loaded workflow definition.
// Edges are the only legal moves: there is no implicit any-state-to-any-state.
type Graph struct {
	def          *entity.WorkflowDefinition
	statesByID   map[int64]*entity.WorkflowState
	statesByCode map[string]*entity.WorkflowState
	edges        map[edgeKey]*entity.WorkflowTransition
	outgoing     map[int64][]*entity.WorkflowTransition
}

// NewGraph indexes a definition loaded with its states and transitions.
// The definition is assumed structurally valid (see Validate); duplicate
// edges are prevented at authoring time, so the last one would win here.
func NewGraph(def *entity.WorkflowDefinition) *Graph {
	g := &Graph{
		def:          def,
		statesByID:   make(map[int64]*entity.WorkflowState, len(def.States)),
		statesByCode: make(map[string]*entity.WorkflowState, len(def.States)),
		edges:        make(map[edgeKey]*entity.WorkflowTransition, len(def.Transitions)),
		outgoing:     make(map[int64][]*entity.WorkflowTransition),
	}

	for _, s := range def.States {
		g.statesByID[s.ID] = s
		g.statesByCode[s.Code] = s
	}
	for _, t := range def.Transitions {
		g.edges[edgeKey{t.FromStateID, t.ToStateID}] = t
		g.outgoing[t.FromStateID] = append(g.outgoing[t.FromStateID], t)
	}

	return g
}

// Definition returns the underlying workflow definition
func (g *Graph) Definition() *entity.WorkflowDefinition {
	return g.def
}

// InitialState returns the definition's single initial state
func (g *Graph) InitialState() (*entity.WorkflowState, error) {
	for _, s := range g.def.States {
		if s.IsInitial {
			return s, nil
		}
	}
	return nil, NewError(KindInvalidDefinition, "workflow %s has no initial state", g.def.Code)
}

// StateByID looks up a state by its row ID
func (g *Graph) StateByID(id int64) (*entity.WorkflowState, bool) {
	s, ok := g.statesByID[id]
	return s, ok
}

// StateByCode looks up a state by its code within the definition
func (g *Graph) StateByCode(code string) (*entity.WorkflowState, bool) {
	s, ok := g.statesByCode[code]
	return s, ok
}

// Edge returns the unique transition between two states, if one exists
func (g *Graph) Edge(fromStateID, toStateID int64) (*entity.WorkflowTransition, bool) {
	t, ok := g.edges[edgeKey{fromStateID, toStateID}]
	return t, ok
}

// OutgoingFrom returns all transitions leaving the given state
func (g *Graph) OutgoingFrom(stateID int64) []*entity.WorkflowTransition {
	return g.outgoing[stateID]
}

// Validate checks the structural invariants of the definition:
// exactly one initial state, terminal implies final, no outgoing edges from
// terminal states, unique (from, to) pairs, edge endpoints inside the
// definition, non-empty allowed roles on every transition.
func Validate(def *entity.WorkflowDefinition) error {
	initialCount := 0
	statesByID := make(map[int64]*entity.WorkflowState, len(def.States))

	for _, s := range def.States {
		statesByID[s.ID] = s
		if s.IsInitial {
			initialCount++
		}
		if s.IsTerminal && !s.IsFinal {
			return NewError(KindInvalidDefinition,
				"state %s is terminal but not final", s.Code)
		}
	}

	if initialCount != 1 {
		return NewError(KindInvalidDefinition,
			"workflow %s must have exactly one initial state, has %d", def.Code, initialCount)
	}

	seen := make(map[edgeKey]bool, len(def.Transitions))
	for _, t := range def.Transitions {
		from, ok := statesByID[t.FromStateID]
		if !ok {
			return NewError(KindInvalidDefinition,
				"transition %d references from-state %d outside workflow %s", t.ID, t.FromStateID, def.Code)
		}
		to, ok := statesByID[t.ToStateID]
		if !ok {
			return NewError(KindInvalidDefinition,
				"transition %d references to-state %d outside workflow %s", t.ID, t.ToStateID, def.Code)
		}
		if from.IsTerminal {
			return NewError(KindInvalidDefinition,
				"terminal state %s has an outgoing transition to %s", from.Code, to.Code)
		}

		key := edgeKey{t.FromStateID, t.ToStateID}
		if seen[key] {
			return NewError(KindInvalidDefinition,
				"duplicate transition %s -> %s", from.Code, to.Code)
		}
		seen[key] = true

		if len(t.AllowedRoles) == 0 {
			return NewError(KindInvalidDefinition,
				"transition %s -> %s has no allowed roles", from.Code, to.Code)
		}
	}

	return nil
}
