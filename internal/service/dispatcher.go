package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/openmesh/meshgate/internal/adapters/swaggerclient"
	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"
)

// meshFlags are the gateway's own query parameters; they drive the mesh
// orchestrator and are stripped before the request is forwarded to a
// backend.
var meshFlags = map[string]bool{
	"join":      true,
	"extend":    true,
	"aggregate": true,
}

// DispatchRequest is an inbound gateway request after auth extraction and
// body decoding.
type DispatchRequest struct {
	Method string
	// Path is the inbound path including the logic module segment, e.g.
	// "/products/product/u1/".
	Path  string
	Query url.Values
	// Body is the decoded JSON request body; nil when absent.
	Body map[string]any
	Auth domainauth.Context
}

// Mode extracts the mesh-mode flags from the query string.
func (r DispatchRequest) Mode() model.MeshMode {
	return model.MeshMode{
		Join:      r.Query.Has("join"),
		Extend:    r.Query.Has("extend"),
		Aggregate: r.Query.Has("aggregate"),
	}
}

// DispatchResult carries the primary backend's response together with the
// registry context the mesh orchestrator needs.
type DispatchResult struct {
	Module   model.LogicModule
	Model    model.LogicModuleModel
	SubPath  string
	PK       string
	Response swaggerclient.Response
	RespData model.RespData
}

// Dispatcher resolves an inbound request to a logic module, forwards it, and
// produces the resp_data value object the mesh orchestrator consumes. It is
// the sole producer of that object.
type Dispatcher struct {
	router *BackendRouter
	logger *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(router *BackendRouter, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{router: router, logger: logger}
}

// Dispatch routes req to its backend and executes the primary call. The
// first path segment names the logic module; the rest is the backend
// sub-path, with a trailing record PK split off when present.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	endpointName, subPath, ok := splitRoute(req.Path)
	if !ok {
		return DispatchResult{}, apperrors.RouteNotFound("request path names no logic module")
	}

	lm, err := d.router.Registry.FindLogicModule(ctx, endpointName)
	if err != nil {
		return DispatchResult{}, err
	}

	lmm, err := d.router.Registry.ResolveModelByPath(ctx, endpointName, subPath)
	if err != nil {
		// Paths that match no registered model still forward verbatim; only
		// the mesh orchestrator needs the model registration.
		d.logger.DebugContext(ctx, "no model registered for path",
			"logic_module", endpointName, "path", subPath)
	}

	op := swaggerclient.Operation{
		Model:  lmm.Model,
		Method: req.Method,
		Query:  forwardedQuery(req.Query),
		Data:   req.Body,
	}
	op.Path, op.PK = splitPK(subPath, lmm)

	resp, err := d.router.CallModule(ctx, lm, op, req.Auth)
	if err != nil {
		return DispatchResult{}, err
	}

	result := DispatchResult{
		Module:   lm,
		Model:    lmm,
		SubPath:  subPath,
		PK:       op.PK,
		Response: resp,
	}
	if resp.IsSuccess() && strings.Contains(resp.Header.Get("Content-Type"), "json") {
		respData, derr := resp.Decode()
		if derr != nil {
			d.logger.WarnContext(ctx, "primary response body is not decodable JSON",
				"logic_module", endpointName, "error", derr)
		} else {
			result.RespData = respData
		}
	}
	return result, nil
}

// splitRoute separates the logic module endpoint_name from the backend
// sub-path.
func splitRoute(path string) (endpointName, subPath string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return "", "", false
	}
	name, rest, found := strings.Cut(trimmed, "/")
	if !found {
		rest = ""
	}
	return name, "/" + rest, name != ""
}

// splitPK separates a trailing record PK from the sub-path, using the
// model's registered endpoint as the collection prefix. A sub-path that is
// exactly the collection endpoint has no PK.
func splitPK(subPath string, lmm model.LogicModuleModel) (string, string) {
	if lmm.Model == "" {
		return subPath, ""
	}
	ep := lmm.Endpoint
	if !strings.HasPrefix(ep, "/") {
		ep = "/" + ep
	}
	rest := strings.TrimPrefix(subPath, strings.TrimSuffix(ep, "/"))
	rest = strings.Trim(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		// No PK segment, or a deeper custom route forwarded as-is.
		return subPath, ""
	}
	return ep, rest
}

func forwardedQuery(q url.Values) url.Values {
	out := url.Values{}
	for k, vals := range q {
		if meshFlags[k] {
			continue
		}
		for _, v := range vals {
			out.Add(k, v)
		}
	}
	return out
}
