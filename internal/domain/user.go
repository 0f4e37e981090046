package domain

import (
	"time"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User is the directory record behind a signing identity, without
// persistence concerns.
type User struct {
	ID                  int64
	SigningPublicKey    string
	Address             string
	PlatformAddress     *string
	ExternalPrincipal   *string
	Username            *string
	DisplayName         string
	AvatarURL           string
	Roles               []string
	Status              UserStatus
	LastAuthenticatedAt time.Time
	CreatedAt           time.Time
}

func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// WithRole returns the role set with role added, without duplicates.
func (u User) WithRole(role string) []string {
	if u.HasRole(role) {
		return u.Roles
	}
	return append(append([]string{}, u.Roles...), role)
}
