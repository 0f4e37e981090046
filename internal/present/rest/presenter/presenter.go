package presenter

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	scaffold "github.com/metanet-platform/scaffold-app"
	"github.com/metanet-platform/scaffold-app/internal/domain"
)

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

// Authenticated renders the success envelope of the auth endpoints.
// Creating a record answers 201, authenticating an existing one 200.
func Authenticated(c echo.Context, user domain.User, isNewUser bool, token string) error {
	wire := UserToWire(user)
	status := http.StatusOK
	if isNewUser {
		status = http.StatusCreated
	}
	return c.JSON(status, scaffold.AuthResponse{
		Success:   true,
		User:      &wire,
		IsNewUser: isNewUser,
		Token:     token,
	})
}

// Granted renders the success envelope of the grant endpoints.
func Granted(c echo.Context, grant domain.RoleGrant) error {
	wire := GrantToWire(grant)
	return c.JSON(http.StatusOK, scaffold.AuthResponse{
		Success: true,
		Grant:   &wire,
	})
}

// Failure maps a flow error onto the response envelope. The mapping is
// the single source of truth for status codes and stable error codes.
func Failure(c echo.Context, err error) error {
	status, code := classify(err)

	resp := scaffold.AuthResponse{
		Success: false,
		Error:   err.Error(),
		Code:    code,
	}

	// an unknown signing key on an auth flow is an invitation to
	// register, not a dead end
	var nf domain.NotFoundError
	if errors.As(err, &nf) && nf.Resource == "user" {
		resp.NeedsRegistration = true
	}

	return c.JSON(status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, scaffold.ErrMissingFields):
		return http.StatusBadRequest, scaffold.CodeMissingFields
	// staleness is caught before the signature is checked, so it is a
	// malformed request, not an authentication failure
	case errors.Is(err, scaffold.ErrExpiredRequest):
		return http.StatusBadRequest, scaffold.CodeExpiredRequest
	case errors.Is(err, scaffold.ErrInvalidSignature):
		return http.StatusUnauthorized, scaffold.CodeInvalidKey
	case errors.Is(err, domain.ErrConflict):
		var conflict domain.ConflictError
		errors.As(err, &conflict)
		switch conflict.Field {
		case "platformAddress":
			return http.StatusConflict, scaffold.CodeAddressExists
		case "username":
			return http.StatusConflict, scaffold.CodeUsernameTaken
		default:
			return http.StatusConflict, scaffold.CodeKeyExists
		}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, scaffold.CodeUserNotFound
	case errors.Is(err, domain.ErrAdminNotFound):
		return http.StatusNotFound, scaffold.CodeAdminNotFound
	case errors.Is(err, domain.ErrInsufficientPermissions),
		errors.Is(err, domain.ErrInactiveUser):
		return http.StatusForbidden, scaffold.CodeInsufficientPermissions
	case errors.Is(err, domain.ErrUnauthorizedGrant),
		errors.Is(err, domain.ErrIdentityMismatch),
		errors.Is(err, domain.ErrNotRegistered):
		return http.StatusUnauthorized, scaffold.CodeUnauthorized
	default:
		return http.StatusInternalServerError, scaffold.CodeInternalError
	}
}

func UserToWire(user domain.User) scaffold.User {
	wire := scaffold.User{
		SigningPublicKey:    user.SigningPublicKey,
		Address:             user.Address,
		DisplayName:         user.DisplayName,
		AvatarURL:           user.AvatarURL,
		Roles:               user.Roles,
		Status:              string(user.Status),
		LastAuthenticatedAt: user.LastAuthenticatedAt,
		CreatedAt:           user.CreatedAt,
	}
	if user.PlatformAddress != nil {
		wire.PlatformAddress = *user.PlatformAddress
	}
	if user.ExternalPrincipal != nil {
		wire.ExternalPrincipal = *user.ExternalPrincipal
	}
	if user.Username != nil {
		wire.Username = *user.Username
	}
	return wire
}

func GrantToWire(grant domain.RoleGrant) scaffold.RoleGrant {
	return scaffold.RoleGrant{
		Principal:   grant.Principal,
		RoleName:    grant.RoleName,
		Permissions: grant.Permissions,
		GrantedBy:   grant.GrantedBy,
		ExpiresAt:   grant.ExpiresAt,
		CreatedAt:   grant.CreatedAt,
	}
}
