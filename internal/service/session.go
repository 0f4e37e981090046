package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/metanet-platform/scaffold-app/internal/config"
	"github.com/metanet-platform/scaffold-app/internal/domain"
	"github.com/metanet-platform/scaffold-app/jwt"
)

const sessionLifetime = 30 * time.Minute

// SessionService issues short-lived tokens after a signed request has
// been verified, so follow-up calls can use a Bearer header instead of
// re-signing every payload.
type SessionService struct {
	config config.Config
}

func NewSessionService(config config.Config) *SessionService {
	return &SessionService{config}
}

func (s *SessionService) Issue(ctx context.Context, user *domain.User) (string, error) {
	_, span := tracer.Start(ctx, "Session.Service.Issue")
	defer span.End()

	now := time.Now()
	token, err := jwt.Create(jwt.Claims{
		Issuer:         s.config.NodeInfo.ServerID,
		Subject:        "scaffold-session",
		Audience:       s.config.NodeInfo.FQDN,
		Principal:      user.SigningPublicKey,
		Address:        user.Address,
		IssuedAt:       strconv.FormatInt(now.Unix(), 10),
		ExpirationTime: strconv.FormatInt(now.Add(sessionLifetime).Unix(), 10),
		JWTID:          uuid.New().String(),
	}, s.config.NodeInfo.PrivateKey)
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to create session token"))
		return "", err
	}
	return token, nil
}

// Authenticate validates a session token and returns the signing key
// and address it was issued for.
func (s *SessionService) Authenticate(ctx context.Context, token string) (string, string, error) {
	_, span := tracer.Start(ctx, "Session.Service.Authenticate")
	defer span.End()

	_, claims, err := jwt.Validate(token)
	if err != nil {
		span.RecordError(errors.Wrap(err, "session token validation failed"))
		return "", "", err
	}
	if claims.Issuer != s.config.NodeInfo.ServerID {
		return "", "", errors.New("session token issued by another node")
	}
	if claims.Subject != "scaffold-session" {
		return "", "", errors.New("not a session token")
	}
	if claims.Audience != s.config.NodeInfo.FQDN {
		return "", "", errors.New("session token audience mismatch")
	}
	return claims.Principal, claims.Address, nil
}
