package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Decision is the recorded outcome of a policy evaluation or operation.
type Decision string

const (
	DecisionGrant Decision = "grant"
	DecisionDeny  Decision = "deny"
)

// AuditEntry is append-only. It is never updated or deleted after creation;
// retention cleanup is the only sanctioned deletion path.
type AuditEntry struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    uuid.UUID       `json:"actor_id" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Decision   Decision        `json:"decision" db:"decision"`
	Details    string          `json:"details" db:"details"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// AuditFilter narrows an audit query. Zero values mean "no constraint".
type AuditFilter struct {
	Since      time.Time
	Until      time.Time
	Action     string
	EntityType string
	ActorID    uuid.UUID
	Limit      int
}

// AuditStats feeds the compliance dashboard.
type AuditStats struct {
	Total        int64          `json:"total"`
	Last24h      int64          `json:"last_24h"`
	ActionCounts map[string]int `json:"action_counts"`
	EntityCounts map[string]int `json:"entity_counts"`
	DenyCount    int64          `json:"deny_count"`
}
