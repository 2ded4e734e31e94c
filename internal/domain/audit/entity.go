package audit

import "time"

// Action names recorded in the audit trail.
type Action string

const (
	ActionCreate       Action = "Creare"
	ActionUpdate       Action = "Modificare"
	ActionCalculate    Action = "Calculare"
	ActionFinalize     Action = "Finalizare"
	ActionStatusUpdate Action = "StatusUpdate"
	ActionBonus        Action = "Bonus"
	ActionDeduction    Action = "Deducere"
)

// FieldChange is a single before/after pair. Field names are restricted to
// the fields an entity explicitly exposes.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// Entry is one append-only audit record.
type Entry struct {
	ID         string        `json:"id"`
	EntityType string        `json:"entityType"`
	EntityID   string        `json:"entityId"`
	Action     Action        `json:"action"`
	Changes    []FieldChange `json:"changes"`
	ActorID    *string       `json:"actorId,omitempty"`
	Message    string        `json:"message"`
	CreatedAt  time.Time     `json:"createdAt"`
}
