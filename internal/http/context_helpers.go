package httpx

import (
	"context"

	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
)

type contextKey string

const authContextKey contextKey = "meshgate.auth"

// WithAuth attaches the authenticated principal to the request context.
func WithAuth(ctx context.Context, auth domainauth.Context) context.Context {
	return context.WithValue(ctx, authContextKey, auth)
}

// AuthFrom returns the authenticated principal from the request context, or
// a zero Context when the request never passed the auth middleware.
func AuthFrom(ctx context.Context) domainauth.Context {
	auth, _ := ctx.Value(authContextKey).(domainauth.Context)
	return auth
}
