package domain

import (
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"

	// BaselineRole is assigned to every record at creation.
	BaselineRole = RoleMember
)

// DefaultPermissions maps role names to their default capability sets.
// An explicit permissions argument on a grant overrides these.
var DefaultPermissions = map[string][]string{
	RoleAdmin:  {"read:all", "write:all", "delete:all", "manage:users", "manage:roles"},
	RoleMember: {"read:own", "write:own"},
}

// RoleGrant associates a principal with a role. At most one active
// grant exists per (principal, role) pair; re-granting updates it.
type RoleGrant struct {
	ID          int64
	Principal   string
	RoleName    string
	Permissions []string
	GrantedBy   string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

func (g RoleGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}
