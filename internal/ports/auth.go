package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
)

// TokenVerifier authenticates an inbound bearer token and extracts the
// organization/user identity carried in its claims. Implementations may
// verify the token's signature against an OIDC provider or, in mock mode,
// trust the token's claims outright.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (domainauth.Context, error)
}
