// Package swaggerclient constructs and executes backend HTTP calls from a
// cached OpenAPI document plus an operation descriptor. It is the only place
// the gateway talks to remote logic modules; the dispatcher and the mesh
// orchestrator both call through here.
package swaggerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"
)

// maxResponseBytes bounds a backend response body read.
const maxResponseBytes = 64 << 20

// Operation describes a single backend call to execute against a logic
// module: the spec path and method to resolve, an optional record PK to
// append to the URL, and an optional JSON body.
type Operation struct {
	Service string
	Model   string
	Path    string
	Method  string
	PK      string
	Data    map[string]any
	Query   url.Values
}

// Response is the backend's reply, passed through verbatim. 4xx/5xx are not
// errors at this layer; the caller decides whether to propagate or ignore.
type Response struct {
	StatusCode int
	Header     http.Header
	Content    []byte
}

// IsSuccess reports whether the backend answered with a 2xx status.
func (r Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Decode unmarshals the response body into RespData, accepting either a
// single JSON object or a list of objects. Paginated envelopes carrying a
// top-level "results" array are unwrapped, since several backend frameworks
// serve lists that way.
func (r Response) Decode() (model.RespData, error) {
	body := bytes.TrimSpace(r.Content)
	if len(body) == 0 {
		return model.RespData{}, nil
	}

	if body[0] == '[' {
		var list []map[string]any
		if err := json.Unmarshal(body, &list); err != nil {
			return model.RespData{}, fmt.Errorf("decode backend list response: %w", err)
		}
		return model.RespData{List: list, IsList: true}, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return model.RespData{}, fmt.Errorf("decode backend response: %w", err)
	}
	if results, ok := obj["results"].([]any); ok {
		list := make([]map[string]any, 0, len(results))
		for _, elem := range results {
			if m, ok := elem.(map[string]any); ok {
				list = append(list, m)
			}
		}
		return model.RespData{List: list, IsList: true}, nil
	}
	return model.RespData{Object: obj}, nil
}

// Options groups dependencies for constructing a Client.
type Options struct {
	HTTPClient *http.Client
	// Timeout bounds a single backend round trip. Zero means 30 seconds.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client executes spec-driven backend calls with the caller's bearer token
// injected unchanged.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// New constructs a Client.
func New(opts Options) *Client {
	c := &Client{
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Do resolves op against the module's cached spec, builds the target URL,
// and executes the call. 2xx/4xx/5xx all come back as a Response; transport
// failures map to BackendError (rendered 502) and deadline overruns to
// BackendTimeout (rendered 504).
func (c *Client) Do(
	ctx context.Context,
	target Target,
	op Operation,
	auth domainauth.Context,
) (Response, error) {
	if target.Doc != nil {
		lookupPath := op.Path
		if op.PK != "" {
			lookupPath = strings.TrimSuffix(op.Path, "/") + "/" + op.PK + "/"
		}
		if _, ok := target.Doc.Operation(lookupPath, op.Method); !ok {
			return Response{}, apperrors.RouteNotFoundf(
				"operation %s %s is not declared by %q", op.Method, lookupPath, target.Module.EndpointName)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(callCtx, target, op, auth)
	if err != nil {
		return Response{}, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, c.mapTransportError(err, op)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.WarnContext(ctx, "close backend response body", "error", cerr)
		}
	}()

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, c.mapTransportError(err, op)
	}

	c.logger.DebugContext(ctx, "backend call",
		"service", op.Service,
		"method", op.Method,
		"path", op.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return Response{StatusCode: resp.StatusCode, Header: resp.Header, Content: content}, nil
}

func (c *Client) buildRequest(
	ctx context.Context,
	target Target,
	op Operation,
	auth domainauth.Context,
) (*http.Request, error) {
	targetURL, err := buildURL(target, op)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackendError,
			fmt.Sprintf("build backend url for %q", target.Module.EndpointName))
	}

	var body io.Reader
	if op.Data != nil && !strings.EqualFold(op.Method, http.MethodGet) {
		payload, merr := json.Marshal(op.Data)
		if merr != nil {
			return nil, apperrors.Wrap(merr, apperrors.ErrCodeBackendError, "serialize backend request body")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(op.Method), targetURL, body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackendError, "build backend request")
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
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

// buildURL joins module endpoint + spec base path + operation path, then
// appends the record PK segment when present.
func buildURL(target Target, op Operation) (string, error) {
	base, err := url.Parse(target.Module.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse module endpoint %q: %w", target.Module.Endpoint, err)
	}

	p := op.Path
	if target.Doc != nil && target.Doc.BasePath != "" && !strings.HasPrefix(p, target.Doc.BasePath) {
		p = strings.TrimSuffix(target.Doc.BasePath, "/") + "/" + strings.TrimPrefix(p, "/")
	}
	joined := strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(p, "/")
	if op.PK != "" {
		joined = strings.TrimSuffix(joined, "/") + "/" + url.PathEscape(op.PK) + "/"
	}
	base.Path = joined

	if len(op.Query) > 0 {
		q := base.Query()
		for k, vals := range op.Query {
			for _, v := range vals {
				q.Add(k, v)
			}
		}
		base.RawQuery = q.Encode()
	}
	return base.String(), nil
}

func (c *Client) mapTransportError(err error, op Operation) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendTimeout,
			fmt.Sprintf("backend %q timed out on %s %s", op.Service, op.Method, op.Path))
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled,
			fmt.Sprintf("backend call to %q canceled", op.Service))
	}
	return apperrors.Wrap(err, apperrors.ErrCodeBackendError,
		fmt.Sprintf("backend %q unreachable on %s %s", op.Service, op.Method, op.Path))
}
