package domain

import (
	"errors"
)

// Role represents the access level of whoever performs a workflow action.
type Role string

const (
	RoleClient     Role = "client"
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"

	// RoleSystem is used by reconciler callbacks only. It is never accepted from callers.
	RoleSystem Role = "system"
)

var callerRoles = map[Role]bool{
	RoleClient:     true,
	RoleAgent:      true,
	RoleSupervisor: true,
	RoleAdmin:      true,
}

// IsValid reports whether r can be presented by an authenticated caller.
func (r Role) IsValid() bool {
	return callerRoles[r]
}

// IsStaff reports whether r belongs to SFD personnel.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleSupervisor || r == RoleAdmin
}

// Actor identifies who performs an action.
type Actor struct {
	ID    string
	Role  Role
	OrgID string
}

// SystemActor is the actor used for transitions driven by payment outcomes.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// Authentication errors
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidRole  = errors.New("invalid actor role")
)
