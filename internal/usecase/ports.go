package usecase

import (
	"context"

	scaffold "github.com/metanet-platform/scaffold-app"
	"github.com/metanet-platform/scaffold-app/internal/domain"
)

// UserRepository defines directory lookup and mutation for user
// records. Create must surface unique-index violations as
// domain.ConflictError; no atomic check-then-create is assumed.
type UserRepository interface {
	GetBySigningKey(ctx context.Context, key string) (domain.User, error)
	GetByPlatformAddress(ctx context.Context, address string) (domain.User, error)
	GetByUsername(ctx context.Context, name string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, user domain.User) (domain.User, error)
	HasAnyAdmin(ctx context.Context) (bool, error)
}

// RoleRepository defines persistence for role grants.
type RoleRepository interface {
	Upsert(ctx context.Context, grant domain.RoleGrant) (domain.RoleGrant, error)
	ListByPrincipal(ctx context.Context, principal string) ([]domain.RoleGrant, error)
}

// AdminState tracks whether any admin exists, as an explicit
// process-wide flag: set exactly once, never reset, directory scan
// only on a miss.
type AdminState interface {
	// HasAdmin returns (value, known). known is false when the flag
	// has not been cached yet.
	HasAdmin(ctx context.Context) (bool, bool, error)
	MarkHasAdmin(ctx context.Context) error
}

// EventPublisher fans out auth flow events to realtime listeners.
type EventPublisher interface {
	Publish(ctx context.Context, event scaffold.Event) error
}
