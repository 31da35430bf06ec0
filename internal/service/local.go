package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/openmesh/meshgate/internal/adapters/swaggerclient"
	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
	apperrors "github.com/openmesh/meshgate/internal/errors"
)

// LocalRegistry holds the in-process handlers serving logic modules flagged
// is_local. From the dispatcher's and orchestrator's point of view a local
// module is called exactly like a remote one; the registry adapts the
// handler's output into the same Response shape the swagger client returns.
type LocalRegistry struct {
	mu       sync.RWMutex
	handlers map[string]http.Handler
}

// NewLocalRegistry constructs an empty LocalRegistry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{handlers: make(map[string]http.Handler)}
}

// Register installs the handler serving endpointName. Registration happens
// at gateway start, before traffic; later registrations replace earlier ones.
func (l *LocalRegistry) Register(endpointName string, h http.Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[endpointName] = h
}

// Serve executes op against the local handler registered for endpointName.
func (l *LocalRegistry) Serve(
	ctx context.Context,
	endpointName string,
	op swaggerclient.Operation,
	auth domainauth.Context,
) (swaggerclient.Response, error) {
	l.mu.RLock()
	h := l.handlers[endpointName]
	l.mu.RUnlock()
	if h == nil {
		return swaggerclient.Response{}, apperrors.RouteNotFoundf(
			"local logic module %q has no registered handler", endpointName)
	}

	req, err := localRequest(ctx, op, auth)
	if err != nil {
		return swaggerclient.Response{}, err
	}

	rec := &responseRecorder{header: make(http.Header), status: http.StatusOK}
	h.ServeHTTP(rec, req)
	return swaggerclient.Response{
		StatusCode: rec.status,
		Header:     rec.header,
		Content:    rec.body.Bytes(),
	}, nil
}

func localRequest(ctx context.Context, op swaggerclient.Operation, auth domainauth.Context) (*http.Request, error) {
	path := op.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if op.PK != "" {
		path = strings.TrimSuffix(path, "/") + "/" + url.PathEscape(op.PK) + "/"
	}

	var body *bytes.Reader
	if op.Data != nil && !strings.EqualFold(op.Method, http.MethodGet) {
		payload, err := json.Marshal(op.Data)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeBackendError, "serialize local request body")
		}
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(op.Method), path, body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackendError, "build local request")
	}
	if len(op.Query) > 0 {
		req.URL.RawQuery = op.Query.Encode()
	}
	req.Header.Set("Accept", "application/json")
	if op.Data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth.RawToken != "" {
		req.Header.Set("Authorization", "Bearer "+auth.RawToken)
	}
	if auth.OrgID != nil {
		req.Header.Set("X-Forwarded-Org", auth.OrgID.String())
	}
	return req, nil
}

// responseRecorder captures a local handler's response without a network
// round trip.
type responseRecorder struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) Write(p []byte) (int, error) {
	r.wroteHeader = true
	return r.body.Write(p)
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
}
