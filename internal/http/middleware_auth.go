package httpx

import (
	"net/http"
	"strings"

	apperrors "github.com/openmesh/meshgate/internal/errors"
	"github.com/openmesh/meshgate/internal/ports"
)

// Auth returns a middleware that extracts and verifies the bearer token,
// attaching the resulting auth context for the dispatcher and the mesh
// orchestrator. Requests without a valid token never reach a backend.
func Auth(verifier ports.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				RenderError(w, r, apperrors.AuthMissing("authorization bearer token is required"))
				return
			}

			auth, err := verifier.Verify(r.Context(), token)
			if err != nil {
				RenderError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), auth)))
		})
	}
}

// RequireGroup returns a middleware gating access on a token group claim. An
// empty group disables the check.
func RequireGroup(group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if group == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !AuthFrom(r.Context()).InGroup(group) {
				RenderError(w, r, apperrors.AuthInvalid("token lacks the required group claim"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
