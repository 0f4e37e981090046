package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/metanet-platform/scaffold-app/internal/domain"
	"github.com/metanet-platform/scaffold-app/internal/service"
	"github.com/metanet-platform/scaffold-app/internal/usecase"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	session *service.SessionService
	auth    *usecase.AuthUsecase
}

func NewAuthMiddleware(
	session *service.SessionService,
	auth *usecase.AuthUsecase,
) *AuthMiddleware {
	return &AuthMiddleware{
		session: session,
		auth:    auth,
	}
}

// IdentifyRequester resolves a Bearer session token into requester
// context values. Anonymous requests pass through untouched; handlers
// that require identity check for the context keys themselves.
func (s *AuthMiddleware) IdentifyRequester(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyRequester")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			authType, token := split[0], split[1]
			if authType != "Bearer" {
				span.RecordError(fmt.Errorf("only Bearer is acceptable"))
				goto skipCheckAuthorization
			}

			principal, address, err := s.session.Authenticate(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "session token rejected"))
				goto skipCheckAuthorization
			}

			ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, principal)
			ctx = context.WithValue(ctx, domain.RequesterAddrCtxKey, address)
			span.SetAttributes(attribute.String("RequesterId", principal))

			if user, err := s.auth.Lookup(ctx, principal); err == nil {
				ctx = context.WithValue(ctx, domain.RequesterIsAdminCtxKey,
					user.IsActive() && user.HasRole(domain.RoleAdmin))
			}
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
