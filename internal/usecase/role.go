package usecase

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	scaffold "github.com/metanet-platform/scaffold-app"
	"github.com/metanet-platform/scaffold-app/internal/domain"
	"github.com/metanet-platform/scaffold-app/policy"
)

const grantCapability = "manage:roles"

// RoleUsecase manages role grants, including the bootstrap rule that
// lets the first-ever admin self-assign.
type RoleUsecase struct {
	users  UserRepository
	roles  RoleRepository
	admin  AdminState
	events EventPublisher
}

func NewRoleUsecase(
	users UserRepository,
	roles RoleRepository,
	admin AdminState,
	events EventPublisher,
) *RoleUsecase {
	return &RoleUsecase{
		users:  users,
		roles:  roles,
		admin:  admin,
		events: events,
	}
}

// GrantInput describes a requested grant. Target is the signing key of
// the principal receiving the role.
type GrantInput struct {
	Target      string
	RoleName    string
	Permissions []string
	ExpiresAt   *time.Time
}

// Grant performs a role grant on behalf of grantorKey. While no admin
// exists anywhere, any registered caller may self-grant admin exactly
// once; afterwards only active admins may grant.
func (uc *RoleUsecase) Grant(ctx context.Context, grantorKey string, input GrantInput) (domain.RoleGrant, error) {
	ctx, span := tracer.Start(ctx, "Role.Usecase.Grant")
	defer span.End()

	hasAdmin, err := uc.hasAdmin(ctx)
	if err != nil {
		span.RecordError(pkgerrors.Wrap(err, "admin state check failed"))
		return domain.RoleGrant{}, err
	}

	bootstrap := !hasAdmin && input.RoleName == domain.RoleAdmin && grantorKey == input.Target

	if !bootstrap {
		if err := uc.authorizeGrantor(ctx, grantorKey, input); err != nil {
			return domain.RoleGrant{}, err
		}
	}

	target, err := uc.users.GetBySigningKey(ctx, input.Target)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RoleGrant{}, domain.NotFoundError{Resource: "target"}
		}
		span.RecordError(pkgerrors.Wrap(err, "target lookup failed"))
		return domain.RoleGrant{}, err
	}
	if bootstrap && !target.IsActive() {
		return domain.RoleGrant{}, domain.ErrInactiveUser
	}

	permissions := input.Permissions
	if len(permissions) == 0 {
		permissions = append([]string{}, domain.DefaultPermissions[input.RoleName]...)
	}

	grant, err := uc.roles.Upsert(ctx, domain.RoleGrant{
		Principal:   target.SigningPublicKey,
		RoleName:    input.RoleName,
		Permissions: permissions,
		GrantedBy:   grantorKey,
		ExpiresAt:   input.ExpiresAt,
	})
	if err != nil {
		span.RecordError(pkgerrors.Wrap(err, "grant upsert failed"))
		return domain.RoleGrant{}, err
	}

	target.Roles = target.WithRole(input.RoleName)
	if _, err := uc.users.Update(ctx, target); err != nil {
		span.RecordError(pkgerrors.Wrap(err, "role set update failed"))
		return domain.RoleGrant{}, err
	}

	if input.RoleName == domain.RoleAdmin {
		if err := uc.admin.MarkHasAdmin(ctx); err != nil {
			span.RecordError(pkgerrors.Wrap(err, "admin flag update failed"))
		}
	}

	uc.publishGrant(ctx, target.SigningPublicKey, input.RoleName)

	return grant, nil
}

// ListRoles returns the unexpired grants of a principal.
func (uc *RoleUsecase) ListRoles(ctx context.Context, principal string) ([]domain.RoleGrant, error) {
	grants, err := uc.roles.ListByPrincipal(ctx, principal)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	active := make([]domain.RoleGrant, 0, len(grants))
	for _, g := range grants {
		if !g.Expired(now) {
			active = append(active, g)
		}
	}
	return active, nil
}

// IsAuthorizedGrantor reports whether the principal may currently
// issue grants. Everyone qualifies while the bootstrap window is open.
func (uc *RoleUsecase) IsAuthorizedGrantor(ctx context.Context, principal string) (bool, error) {
	hasAdmin, err := uc.hasAdmin(ctx)
	if err != nil {
		return false, err
	}
	if !hasAdmin {
		return true, nil
	}

	user, err := uc.users.GetBySigningKey(ctx, principal)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsActive() && user.HasRole(domain.RoleAdmin), nil
}

// authorizeGrantor enforces the post-bootstrap rule: only active
// admins holding the manage:roles capability may grant.
func (uc *RoleUsecase) authorizeGrantor(ctx context.Context, grantorKey string, input GrantInput) error {
	grantor, err := uc.users.GetBySigningKey(ctx, grantorKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrAdminNotFound
		}
		return err
	}

	if !grantor.IsActive() {
		return domain.ErrInactiveUser
	}

	if !grantor.HasRole(domain.RoleAdmin) {
		// a closed bootstrap window turns a self-grant of admin into
		// an authentication failure, not a permission failure
		if input.RoleName == domain.RoleAdmin && grantorKey == input.Target {
			return domain.ErrUnauthorizedGrant
		}
		return domain.ErrInsufficientPermissions
	}

	held, err := uc.effectivePermissions(ctx, grantor)
	if err != nil {
		return err
	}
	if !policy.IsAllowed(held, grantCapability) {
		return domain.ErrInsufficientPermissions
	}

	return nil
}

// effectivePermissions is the union of the defaults for each held role
// and the explicit permissions on unexpired grants.
func (uc *RoleUsecase) effectivePermissions(ctx context.Context, user domain.User) ([]string, error) {
	var held []string
	for _, role := range user.Roles {
		held = append(held, domain.DefaultPermissions[role]...)
	}

	grants, err := uc.ListRoles(ctx, user.SigningPublicKey)
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		held = append(held, g.Permissions...)
	}
	return held, nil
}

// hasAdmin consults the process-wide flag first and falls back to a
// directory scan only on a miss. The flag is set once and never reset.
func (uc *RoleUsecase) hasAdmin(ctx context.Context) (bool, error) {
	value, known, err := uc.admin.HasAdmin(ctx)
	if err == nil && known {
		return value, nil
	}

	exists, err := uc.users.HasAnyAdmin(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		if err := uc.admin.MarkHasAdmin(ctx); err != nil {
			_, span := tracer.Start(ctx, "Role.Usecase.hasAdmin")
			span.RecordError(pkgerrors.Wrap(err, "admin flag update failed"))
			span.End()
		}
	}
	return exists, nil
}

func (uc *RoleUsecase) publishGrant(ctx context.Context, principal, roleName string) {
	err := uc.events.Publish(ctx, scaffold.Event{
		Type:      scaffold.EventGranted,
		Principal: principal,
		Detail:    roleName,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		_, span := tracer.Start(ctx, "Role.Usecase.publishGrant")
		span.RecordError(pkgerrors.Wrap(err, "event publish failed"))
		span.End()
	}
}
