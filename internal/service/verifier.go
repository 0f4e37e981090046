package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	scaffold "github.com/metanet-platform/scaffold-app"
)

var tracer = otel.Tracer("service")

// VerifierService is the server-side counterpart of the request
// signer. Verification runs before any directory access.
type VerifierService struct{}

func NewVerifierService() *VerifierService {
	return &VerifierService{}
}

func (s *VerifierService) Verify(ctx context.Context, req scaffold.SignedRequest) error {
	_, span := tracer.Start(ctx, "Verifier.Service.Verify")
	defer span.End()

	if err := scaffold.VerifyRequest(req, time.Now()); err != nil {
		span.RecordError(errors.Wrap(err, "request verification failed"))
		return err
	}
	return nil
}
