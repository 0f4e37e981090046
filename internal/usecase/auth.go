package usecase

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	scaffold "github.com/metanet-platform/scaffold-app"
	"github.com/metanet-platform/scaffold-app/internal/domain"
)

var tracer = otel.Tracer("usecase")

// AuthUsecase is the reconciler deciding, per verified request,
// whether to authenticate an existing identity, register a new one,
// or reject.
type AuthUsecase struct {
	users  UserRepository
	events EventPublisher
	mode   domain.RegistrationMode
	lookup domain.LookupKey
}

func NewAuthUsecase(
	users UserRepository,
	events EventPublisher,
	mode domain.RegistrationMode,
	lookup domain.LookupKey,
) *AuthUsecase {
	return &AuthUsecase{
		users:  users,
		events: events,
		mode:   mode,
		lookup: lookup,
	}
}

// AuthOutcome is the terminal state of a successful reconciliation.
type AuthOutcome struct {
	User      domain.User
	IsNewUser bool
}

// lookupPrimary resolves the record behind a request using the single
// lookup key configured for this deployment. Fallback chaining between
// keys would invite identity confusion, so there is none.
func (uc *AuthUsecase) lookupPrimary(ctx context.Context, signingKey, platformAddress string) (domain.User, error) {
	if uc.lookup == domain.LookupByPlatformAddress && platformAddress != "" {
		return uc.users.GetByPlatformAddress(ctx, platformAddress)
	}
	return uc.users.GetBySigningKey(ctx, signingKey)
}

// Register handles the strict registration flow. Replaying the same
// envelope lands on the existing record instead of creating a second
// one.
func (uc *AuthUsecase) Register(ctx context.Context, req *scaffold.RegisterRequest) (AuthOutcome, error) {
	ctx, span := tracer.Start(ctx, "Auth.Usecase.Register")
	defer span.End()

	existing, err := uc.lookupPrimary(ctx, req.SigningPublicKey, req.PlatformAddress)
	if err == nil {
		return uc.authenticated(ctx, existing, req.SigningPublicKey, req.PlatformAddress, profileFields{
			username:          req.Username,
			displayName:       req.DisplayName,
			avatarURL:         req.AvatarURL,
			externalPrincipal: req.ExternalPrincipal,
		})
	}
	if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(pkgerrors.Wrap(err, "directory lookup failed"))
		return AuthOutcome{}, err
	}

	if err := uc.checkUniqueClaims(ctx, req.SigningPublicKey, req.PlatformAddress, req.Username); err != nil {
		return AuthOutcome{}, err
	}

	return uc.create(ctx, domain.User{
		SigningPublicKey:  req.SigningPublicKey,
		Address:           addrOf(req.SigningPublicKey),
		PlatformAddress:   optional(req.PlatformAddress),
		ExternalPrincipal: optional(req.ExternalPrincipal),
		Username:          optional(req.Username),
		DisplayName:       req.DisplayName,
		AvatarURL:         req.AvatarURL,
	}, req.PlatformAddress)
}

// Authenticate handles the strict auth-only flow: unseen keys are
// rejected, never auto-registered.
func (uc *AuthUsecase) Authenticate(ctx context.Context, req *scaffold.AuthenticateRequest) (AuthOutcome, error) {
	ctx, span := tracer.Start(ctx, "Auth.Usecase.Authenticate")
	defer span.End()

	existing, err := uc.lookupPrimary(ctx, req.SigningPublicKey, req.PlatformAddress)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AuthOutcome{}, domain.NotFoundError{Resource: "user"}
		}
		span.RecordError(pkgerrors.Wrap(err, "directory lookup failed"))
		return AuthOutcome{}, err
	}

	return uc.authenticated(ctx, existing, req.SigningPublicKey, req.PlatformAddress, profileFields{})
}

// AuthOrRegister is the combined flow; whether the NotFound branch
// registers or rejects is a deployment configuration, not a separate
// implementation.
func (uc *AuthUsecase) AuthOrRegister(ctx context.Context, req *scaffold.AuthOrRegisterRequest) (AuthOutcome, error) {
	ctx, span := tracer.Start(ctx, "Auth.Usecase.AuthOrRegister")
	defer span.End()

	existing, err := uc.users.GetBySigningKey(ctx, req.SigningPublicKey)
	if err == nil {
		return uc.authenticated(ctx, existing, req.SigningPublicKey, "", profileFields{
			username:          req.Username,
			displayName:       req.DisplayName,
			avatarURL:         req.AvatarURL,
			externalPrincipal: req.ExternalPrincipal,
		})
	}
	if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(pkgerrors.Wrap(err, "directory lookup failed"))
		return AuthOutcome{}, err
	}

	if uc.mode != domain.RegistrationOpen {
		return AuthOutcome{}, domain.NotFoundError{Resource: "user"}
	}

	if err := uc.checkUniqueClaims(ctx, req.SigningPublicKey, "", req.Username); err != nil {
		return AuthOutcome{}, err
	}

	return uc.create(ctx, domain.User{
		SigningPublicKey:  req.SigningPublicKey,
		Address:           addrOf(req.SigningPublicKey),
		ExternalPrincipal: optional(req.ExternalPrincipal),
		Username:          optional(req.Username),
		DisplayName:       req.DisplayName,
		AvatarURL:         req.AvatarURL,
	}, "")
}

// Lookup fetches a record by signing key for profile reads.
func (uc *AuthUsecase) Lookup(ctx context.Context, signingKey string) (domain.User, error) {
	user, err := uc.users.GetBySigningKey(ctx, signingKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.NotFoundError{Resource: "user"}
		}
		return domain.User{}, err
	}
	return user, nil
}

type profileFields struct {
	username          string
	displayName       string
	avatarURL         string
	externalPrincipal string
}

// authenticated is the Found terminal: reject cross-identity reuse in
// both directions, fold in changed profile fields, stamp the auth
// time.
func (uc *AuthUsecase) authenticated(ctx context.Context, user domain.User, claimedKey, platformAddress string, fields profileFields) (AuthOutcome, error) {
	ctx, span := tracer.Start(ctx, "Auth.Usecase.authenticated")
	defer span.End()

	// in address-lookup mode the record was found by address, so the
	// claimed key must still match the stored one
	if claimedKey != "" && user.SigningPublicKey != claimedKey {
		return AuthOutcome{}, domain.ErrIdentityMismatch
	}
	if platformAddress != "" && user.PlatformAddress != nil && *user.PlatformAddress != platformAddress {
		return AuthOutcome{}, domain.ErrIdentityMismatch
	}

	if fields.username != "" && (user.Username == nil || *user.Username != fields.username) {
		taken, err := uc.usernameTaken(ctx, fields.username, user.SigningPublicKey)
		if err != nil {
			return AuthOutcome{}, err
		}
		if taken {
			return AuthOutcome{}, domain.ConflictError{Field: "username"}
		}
		user.Username = optional(fields.username)
	}
	if fields.displayName != "" && fields.displayName != user.DisplayName {
		user.DisplayName = fields.displayName
	}
	if fields.avatarURL != "" && fields.avatarURL != user.AvatarURL {
		user.AvatarURL = fields.avatarURL
	}
	if fields.externalPrincipal != "" && (user.ExternalPrincipal == nil || *user.ExternalPrincipal != fields.externalPrincipal) {
		user.ExternalPrincipal = optional(fields.externalPrincipal)
	}

	user.LastAuthenticatedAt = time.Now().UTC()

	updated, err := uc.users.Update(ctx, user)
	if err != nil {
		span.RecordError(pkgerrors.Wrap(err, "directory update failed"))
		return AuthOutcome{}, err
	}

	uc.publish(ctx, scaffold.EventAuthenticated, updated.SigningPublicKey, "")

	return AuthOutcome{User: updated, IsNewUser: false}, nil
}

// create is the NotFound→Registered terminal. The check-then-create
// sequence is not atomic; a loser of the registration race gets a
// duplicate-key rejection from the store and is retried exactly once
// as a lookup, turning it into an authentication.
func (uc *AuthUsecase) create(ctx context.Context, user domain.User, platformAddress string) (AuthOutcome, error) {
	ctx, span := tracer.Start(ctx, "Auth.Usecase.create")
	defer span.End()

	user.Roles = []string{domain.BaselineRole}
	user.Status = domain.UserStatusActive
	user.LastAuthenticatedAt = time.Now().UTC()

	created, err := uc.users.Create(ctx, user)
	if err == nil {
		uc.publish(ctx, scaffold.EventRegistered, created.SigningPublicKey, "")
		return AuthOutcome{User: created, IsNewUser: true}, nil
	}

	if errors.Is(err, domain.ErrConflict) {
		existing, lookupErr := uc.lookupPrimary(ctx, user.SigningPublicKey, platformAddress)
		if lookupErr == nil {
			return uc.authenticated(ctx, existing, user.SigningPublicKey, platformAddress, profileFields{})
		}
		// the conflict came from another unique field, not our key
		return AuthOutcome{}, err
	}

	span.RecordError(pkgerrors.Wrap(err, "directory create failed"))
	return AuthOutcome{}, err
}

func (uc *AuthUsecase) checkUniqueClaims(ctx context.Context, signingKey, platformAddress, username string) error {
	if platformAddress != "" && uc.lookup != domain.LookupByPlatformAddress {
		_, err := uc.users.GetByPlatformAddress(ctx, platformAddress)
		if err == nil {
			return domain.ConflictError{Field: "platformAddress"}
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}

	if username != "" {
		taken, err := uc.usernameTaken(ctx, username, signingKey)
		if err != nil {
			return err
		}
		if taken {
			return domain.ConflictError{Field: "username"}
		}
	}

	return nil
}

func (uc *AuthUsecase) usernameTaken(ctx context.Context, username, selfKey string) (bool, error) {
	holder, err := uc.users.GetByUsername(ctx, username)
	if err == nil {
		return holder.SigningPublicKey != selfKey, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (uc *AuthUsecase) publish(ctx context.Context, eventType, principal, detail string) {
	err := uc.events.Publish(ctx, scaffold.Event{
		Type:      eventType,
		Principal: principal,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		// realtime fanout is best effort
		_, span := tracer.Start(ctx, "Auth.Usecase.publish")
		span.RecordError(pkgerrors.Wrap(err, "event publish failed"))
		span.End()
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// addrOf derives the identity address of a claimed key; an empty
// string is stored when the key is not decodable (verification has
// already vouched for it by then, so this only guards odd test input).
func addrOf(signingKey string) string {
	addr, err := scaffold.PubKeyToAddr(signingKey, scaffold.UserAddrPrefix)
	if err != nil {
		return ""
	}
	return addr
}
