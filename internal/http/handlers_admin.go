package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/openmesh/meshgate/internal/core"
	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"
	"github.com/openmesh/meshgate/internal/service"
)

// SpecInvalidator drops a cached spec so the next request re-fetches it.
type SpecInvalidator interface {
	Invalidate(ctx context.Context, endpointName string)
}

// AdminHandlers is the management API over the service registry: the thin
// CRUD surface operators use to register logic modules, models, and
// relationships without a database console.
type AdminHandlers struct {
	Registry *service.RegistryService
	Joins    *service.JoinService
	Specs    SpecInvalidator
}

func registerAdminRoutes(mux *http.ServeMux, h *AdminHandlers, gate func(http.Handler) http.Handler) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, gate(fn))
	}
	route("GET /admin/logic-modules", h.listLogicModules)
	route("POST /admin/logic-modules", h.upsertLogicModule)
	route("GET /admin/models", h.listModels)
	route("POST /admin/models", h.upsertModel)
	route("GET /admin/relationships", h.listRelationships)
	route("POST /admin/relationships", h.upsertRelationship)
	route("GET /admin/join-records", h.listJoinRecords)
	route("POST /admin/spec-cache/invalidate", h.invalidateSpec)
}

// listJoinRecords inspects the join store: ?relationship_id=, ?organization=,
// ?pk= (matched on either side), ?limit=, ?offset=.
func (h *AdminHandlers) listJoinRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter core.JoinRecordFilter

	if v := q.Get("relationship_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			RenderError(w, r, apperrors.ValidationField("relationship_id", "relationship_id must be an integer"))
			return
		}
		filter.RelationshipID = &id
	}
	if v := q.Get("organization"); v != "" {
		orgID, err := uuid.Parse(v)
		if err != nil {
			RenderError(w, r, apperrors.ValidationField("organization", "organization must be a uuid"))
			return
		}
		filter.Organization = &orgID
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	out, err := h.Joins.List(r.Context(), filter, q.Get("pk"))
	if err != nil {
		RenderError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *AdminHandlers) listLogicModules(w http.ResponseWriter, r *http.Request) {
	out, err := h.Registry.ListLogicModules(r.Context())
	if err != nil {
		RenderError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *AdminHandlers) upsertLogicModule(w http.ResponseWriter, r *http.Request) {
	var in model.LogicModule
	if !DecodeJSON(w, r, &in) {
		return
	}
	out, err := h.Registry.UpsertLogicModule(r.Context(), in)
	if err != nil {
		RenderError(w, r, err)
		return
	}
	// A republished endpoint may serve a different spec.
	if h.Specs != nil {
		h.Specs.Invalidate(r.Context(), out.EndpointName)
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *AdminHandlers) listModels(w http.ResponseWriter, r *http.Request) {
	out, err := h.Registry.ListModels(r.Context())
	if err != nil {
		RenderError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *AdminHandlers) upsertModel(w http.ResponseWriter, r *http.Request) {
	var in model.LogicModuleModel
	if !DecodeJSON(w, r, &in) {
		return
	}
	out, err := h.Registry.UpsertModel(r.Context(), in)
	if err != nil {
		RenderError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *AdminHandlers) listRelationships(w http.ResponseWriter, r *http.Request) {
	out, err := h.Registry.ListRelationships(r.Context())
	if err != nil {
		RenderError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *AdminHandlers) upsertRelationship(w http.ResponseWriter, r *http.Request) {
	var in model.Relationship
	if !DecodeJSON(w, r, &in) {
		return
	}
	out, err := h.Registry.UpsertRelationship(r.Context(), in)
	if err != nil {
		RenderError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *AdminHandlers) invalidateSpec(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("logic_module")
	if name == "" {
		RenderError(w, r, apperrors.ValidationField("logic_module", "logic_module query parameter is required"))
		return
	}
	if h.Specs != nil {
		h.Specs.Invalidate(r.Context(), name)
	}
	WriteJSON(w, http.StatusOK, map[string]string{"invalidated": name})
}
