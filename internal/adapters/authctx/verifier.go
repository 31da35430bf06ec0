package authctx

// Package authctx extracts the gateway's auth.Context from an inbound bearer
// token. Unlike a login-flow IdP client, it never issues redirects or
// exchanges codes: the gateway is always handed a token that was minted
// elsewhere and only needs to confirm it's valid and pull out the
// organization/user identity.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
	apperrors "github.com/openmesh/meshgate/internal/errors"
)

// gatewayClaims is the superset of claim shapes this gateway accepts. Every
// custom claim is optional: org_id may be absent (the caller is then not
// org-scoped) and user_id is absent for service-account tokens.
type gatewayClaims struct {
	jwt.RegisteredClaims
	OrgID  string   `json:"org_id"`
	UserID string   `json:"user_id"`
	Groups []string `json:"groups"`
}

// OIDCVerifier verifies bearer tokens against a discovered OIDC provider's
// JWKS and extracts organization/user claims from the verified token.
type OIDCVerifier struct {
	verifier *gooidc.IDTokenVerifier
}

// OIDCVerifierConfig holds configuration for constructing an OIDCVerifier.
type OIDCVerifierConfig struct {
	ClientID     string
	DiscoveryURL string
	HTTPClient   *http.Client
}

// NewOIDCVerifier discovers the issuer's JWKS and prepares a verifier.
func NewOIDCVerifier(ctx context.Context, cfg OIDCVerifierConfig) (*OIDCVerifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := strings.TrimSuffix(cfg.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")

	discoverCtx := context.WithValue(ctx, gooidc.ClientContext, httpClient)
	op, err := gooidc.NewProvider(discoverCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &OIDCVerifier{
		verifier: op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// Verify validates the token's signature and expiry, then extracts the
// organization/user claims. A verified token without org_id is accepted and
// yields a Context with a nil OrgID; join/extend requests reject such a
// caller later with OrgRequired.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (domainauth.Context, error) {
	if rawToken == "" {
		return domainauth.Context{}, apperrors.AuthMissing("bearer token is required")
	}

	idTok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return domainauth.Context{}, apperrors.Wrap(err, apperrors.ErrCodeAuthInvalid, "verify bearer token")
	}

	var claims gatewayClaims
	if err := idTok.Claims(&claims); err != nil {
		return domainauth.Context{}, apperrors.Wrap(err, apperrors.ErrCodeAuthInvalid, "parse bearer token claims")
	}

	return claimsToContext(claims, rawToken)
}

// MockVerifier trusts the token's claims outright without checking a
// signature. Used when AUTH_MODE=mock for local development. Tokens that
// are not JWTs at all resolve to the configured fallback identity, so a
// plain `Authorization: Bearer dev` works against a local gateway.
type MockVerifier struct {
	fallback domainauth.Context
}

// NewMockVerifier constructs a MockVerifier with a fallback identity for
// non-JWT dev tokens. A zero fallback disables the shortcut.
func NewMockVerifier(fallback domainauth.Context) *MockVerifier {
	return &MockVerifier{fallback: fallback}
}

func (v *MockVerifier) Verify(_ context.Context, rawToken string) (domainauth.Context, error) {
	if rawToken == "" {
		return domainauth.Context{}, apperrors.AuthMissing("bearer token is required")
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	var claims gatewayClaims
	if _, _, err := parser.ParseUnverified(rawToken, &claims); err != nil {
		if v.fallback.Subject != "" {
			out := v.fallback
			out.RawToken = rawToken
			return out, nil
		}
		return domainauth.Context{}, apperrors.Wrap(err, apperrors.ErrCodeAuthInvalid, "parse mock bearer token")
	}

	return claimsToContext(claims, rawToken)
}

func claimsToContext(claims gatewayClaims, rawToken string) (domainauth.Context, error) {
	authCtx := domainauth.Context{
		Subject:  claims.Subject,
		RawToken: rawToken,
		Groups:   claims.Groups,
	}
	if claims.ExpiresAt != nil {
		authCtx.ExpiresAt = claims.ExpiresAt.Time
	}

	if claims.OrgID != "" {
		orgID, err := uuid.Parse(claims.OrgID)
		if err != nil {
			return domainauth.Context{}, apperrors.Wrap(err, apperrors.ErrCodeAuthInvalid, "parse org_id claim")
		}
		authCtx.OrgID = &orgID
	}

	if claims.UserID != "" {
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return domainauth.Context{}, apperrors.Wrap(err, apperrors.ErrCodeAuthInvalid, "parse user_id claim")
		}
		authCtx.UserID = &userID
	}

	return authCtx, nil
}
