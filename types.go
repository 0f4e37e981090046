package scaffold

import (
	"time"
)

// Stable error codes returned in the response envelope.
const (
	CodeMissingFields           = "MISSING_FIELDS"
	CodeExpiredRequest          = "EXPIRED_REQUEST"
	CodeInvalidKey              = "INVALID_KEY"
	CodeAddressExists           = "ADDRESS_EXISTS"
	CodeKeyExists               = "KEY_EXISTS"
	CodeUsernameTaken           = "USERNAME_TAKEN"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeAdminNotFound           = "ADMIN_NOT_FOUND"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeInternalError           = "INTERNAL_ERROR"
)

// User is the wire representation of a user record.
type User struct {
	SigningPublicKey    string    `json:"signingPublicKey"`
	Address             string    `json:"address"`
	PlatformAddress     string    `json:"platformAddress,omitempty"`
	ExternalPrincipal   string    `json:"externalPrincipal,omitempty"`
	Username            string    `json:"username,omitempty"`
	DisplayName         string    `json:"displayName,omitempty"`
	AvatarURL           string    `json:"avatarUrl,omitempty"`
	Roles               []string  `json:"roles"`
	Status              string    `json:"status"`
	LastAuthenticatedAt time.Time `json:"lastAuthenticatedAt"`
	CreatedAt           time.Time `json:"createdAt"`
}

// RoleGrant is the wire representation of a role grant.
type RoleGrant struct {
	Principal   string     `json:"principal"`
	RoleName    string     `json:"roleName"`
	Permissions []string   `json:"permissions"`
	GrantedBy   string     `json:"grantedBy"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// AdminGrantRequest is the admin-to-target grant payload. It is not a
// signed envelope; the caller authenticates with a session token.
type AdminGrantRequest struct {
	AdminPrincipal  string     `json:"adminPrincipal"`
	TargetPrincipal string     `json:"targetPrincipal"`
	NewRole         string     `json:"newRole"`
	Permissions     []string   `json:"permissions,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

// AuthResponse is the response envelope of the auth endpoints.
type AuthResponse struct {
	Success           bool       `json:"success"`
	User              *User      `json:"user,omitempty"`
	IsNewUser         bool       `json:"isNewUser"`
	Token             string     `json:"token,omitempty"`
	Grant             *RoleGrant `json:"grant,omitempty"`
	NeedsRegistration bool       `json:"needsRegistration,omitempty"`
	Error             string     `json:"error,omitempty"`
	Code              string     `json:"code,omitempty"`
}

// Event is published on successful auth flow transitions.
type Event struct {
	Type      string    `json:"type"`
	Principal string    `json:"principal"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventRegistered    = "registered"
	EventAuthenticated = "authenticated"
	EventGranted       = "granted"
)

type ScaffoldEndpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

type WellKnownScaffold struct {
	Version   string                      `json:"version"`
	Domain    string                      `json:"domain"`
	ServerID  string                      `json:"serverId"`
	Endpoints map[string]ScaffoldEndpoint `json:"endpoints"`
}
