package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/openmesh/meshgate/internal/errors"
	"github.com/openmesh/meshgate/internal/service"
)

// maxBodyBytes bounds an inbound request body read.
const maxBodyBytes = 32 << 20

// GatewayHandler is the catch-all handler implementing the gateway surface:
// it dispatches the primary request to its logic module, runs the mesh
// orchestrator when a mode flag (or a DELETE) asks for it, and renders the
// merged response.
type GatewayHandler struct {
	Dispatcher   *service.Dispatcher
	Orchestrator *service.Orchestrator
	// RequestTimeout is the overall per-request budget. Zero means 60s.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timeout := h.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	auth := AuthFrom(r.Context())

	body, err := decodeBody(r)
	if err != nil {
		RenderError(w, r, err)
		return
	}

	req := service.DispatchRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Body:   body,
		Auth:   auth,
	}
	mode := req.Mode()

	if (mode.Join || mode.Extend) && !auth.HasOrg() {
		RenderError(w, r, apperrors.OrgRequired("join and extend require an organization-scoped token"))
		return
	}

	res, err := h.Dispatcher.Dispatch(ctx, req)
	if err != nil {
		RenderError(w, r, mapBudgetExceeded(ctx, err))
		return
	}

	// Primary-path backend errors forward verbatim, body and status alike.
	if !res.Response.IsSuccess() {
		passthrough(w, res.Response.StatusCode, res.Response.Header.Get("Content-Type"), res.Response.Content)
		return
	}

	if !mode.Any() && r.Method != http.MethodDelete {
		passthrough(w, res.Response.StatusCode, res.Response.Header.Get("Content-Type"), res.Response.Content)
		return
	}

	meshRes := h.Orchestrator.Process(ctx, service.MeshRequest{
		Method:        r.Method,
		Mode:          mode,
		Body:          body,
		Auth:          auth,
		Module:        res.Module,
		Model:         res.Model,
		RespData:      res.RespData,
		PrimaryPKHint: res.PK,
	})

	rendered := service.Render(res.RespData, meshRes)
	if rendered == nil {
		// Typically a 204 from a DELETE: nothing to merge, nothing to say.
		passthrough(w, res.Response.StatusCode, res.Response.Header.Get("Content-Type"), res.Response.Content)
		return
	}
	WriteJSON(w, res.Response.StatusCode, rendered)
}

func decodeBody(r *http.Request) (map[string]any, error) {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "read request body")
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "request body is not a JSON object")
	}
	return body, nil
}

func passthrough(w http.ResponseWriter, status int, contentType string, content []byte) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	_, _ = w.Write(content)
}

// mapBudgetExceeded turns an overall-budget overrun into the 504 the
// contract promises, instead of whatever transport error the deadline
// surfaced as.
func mapBudgetExceeded(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.BackendTimeout("request exceeded the overall gateway budget")
	}
	return err
}
