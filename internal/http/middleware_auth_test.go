package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
	apperrors "github.com/openmesh/meshgate/internal/errors"
)

// staticVerifier trusts every token except "invalid" and returns a canned
// identity, echoing the raw token through like the real verifiers do.
type staticVerifier struct {
	orgID  *uuid.UUID
	groups []string
}

func (v staticVerifier) Verify(_ context.Context, rawToken string) (domainauth.Context, error) {
	if rawToken == "invalid" {
		return domainauth.Context{}, apperrors.AuthInvalid("token rejected")
	}
	return domainauth.Context{
		Subject:  "tester",
		RawToken: rawToken,
		OrgID:    v.orgID,
		Groups:   v.groups,
	}, nil
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	h := Auth(staticVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "only the Bearer scheme is accepted")
}

func TestAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	h := Auth(staticVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareAttachesContext(t *testing.T) {
	orgID := uuid.New()
	var got domainauth.Context
	h := Auth(staticVerifier{orgID: &orgID})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = AuthFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", got.RawToken)
	assert.Equal(t, orgID, *got.OrgID)
}

func TestRequireGroup(t *testing.T) {
	orgID := uuid.New()
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	admin := Auth(staticVerifier{orgID: &orgID, groups: []string{"admins"}})(RequireGroup("admins")(handler))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/models", nil)
	req.Header.Set("Authorization", "Bearer tok")
	admin.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	nonAdmin := Auth(staticVerifier{orgID: &orgID})(RequireGroup("admins")(handler))
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/models", nil)
	req.Header.Set("Authorization", "Bearer tok")
	nonAdmin.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Empty group disables the gate.
	open := Auth(staticVerifier{orgID: &orgID})(RequireGroup("")(handler))
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/models", nil)
	req.Header.Set("Authorization", "Bearer tok")
	open.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
