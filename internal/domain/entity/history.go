package entity

import "time"

// StateHistory is one row of the append-only audit trail, written per
// executed transition. Rows are immutable once written; ordering by CreatedAt
// ascending defines the canonical trail. FromStateID is null only for the
// record written when an entity enters its initial state.
type StateHistory struct {
	ID          int64      `json:"id"`
	EntityID    int64      `json:"entity_id"`
	EntityType  EntityType `json:"entity_type"`
	FromStateID *int64     `json:"from_state_id,omitempty"`
	ToStateID   int64      `json:"to_state_id"`
	ActorID     int64      `json:"actor_id"`
	Comment     string     `json:"comment,omitempty"`
	Metadata    string     `json:"metadata,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
