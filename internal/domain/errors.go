package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ConflictError represents a unique-index violation. Field names the
// violated field when known; the store cannot always tell which index
// rejected the write, so Field may be empty.
type ConflictError struct {
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return "duplicate key"
	}
	return fmt.Sprintf("duplicate %s", e.Field)
}

// Is enables errors.Is matching on ConflictError.
func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

// ErrConflict is the sentinel error for unique-index violations.
var ErrConflict = ConflictError{}

var (
	// ErrIdentityMismatch is returned when a signed request carries a
	// platform address that differs from the stored record's.
	ErrIdentityMismatch = fmt.Errorf("platform address does not match stored identity")

	// ErrNotRegistered is returned by auth-only deployments when the
	// signing key has no record.
	ErrNotRegistered = fmt.Errorf("user not registered")

	// ErrAdminNotFound is returned when a grantor claims admin but has
	// no directory record.
	ErrAdminNotFound = fmt.Errorf("admin record not found")

	// ErrInsufficientPermissions is returned when a non-admin attempts
	// a grant while an admin already exists.
	ErrInsufficientPermissions = fmt.Errorf("insufficient permissions")

	// ErrUnauthorizedGrant is returned for self-grant attempts of the
	// admin role after the bootstrap window has closed.
	ErrUnauthorizedGrant = fmt.Errorf("unauthorized grant")

	// ErrInactiveUser is returned when an inactive record attempts a
	// privileged operation.
	ErrInactiveUser = fmt.Errorf("user is inactive")
)
