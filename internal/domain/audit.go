package domain

import (
	"encoding/json"
	"time"
)

// AuditLog is one workflow transition, kept as the audit trail.
type AuditLog struct {
	ID           string
	ActorID      string
	ActorRole    Role
	Action       string // process.action, e.g. adhesion.validate
	ResourceType string
	ResourceID   string
	RequestID    string
	FromState    State
	ToState      State
	BeforeState  JSON
	AfterState   JSON
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditActionFor names an audit action.
func AuditActionFor(resourceType string, action Action) string {
	return resourceType + "." + string(action)
}

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	ActorID      string
	ResourceType string
	ResourceID   string
	Limit        int
	Offset       int
}
