package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openmesh/meshgate/internal/adapters/speccache"
	"github.com/openmesh/meshgate/internal/adapters/swaggerclient"
	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
	"github.com/openmesh/meshgate/internal/domain/model"
	"github.com/openmesh/meshgate/internal/mocks"

	"github.com/openmesh/meshgate/internal/testutil"
)

const (
	teamRelKey = "product_product_team_relationship"
	toolRelKey = "product_product_tool_relationship"
	// reverseRelKey has product on the related side: the FK lives on the
	// team, so a product primary is a reverse lookup.
	reverseRelKey = "product_team_owner_relationship"
)

// backendSpec builds a minimal OAS2 document declaring collection and detail
// routes for one model endpoint.
func backendSpec(endpoint string) string {
	ep := strings.TrimSuffix(endpoint, "/")
	return fmt.Sprintf(`{
	  "swagger": "2.0",
	  "info": {"title": "svc", "version": "1.0.0"},
	  "paths": {
	    "%s/": {
	      "get": {"responses": {"200": {"description": "ok"}}},
	      "post": {"responses": {"201": {"description": "created"}}}
	    },
	    "%s/{id}/": {
	      "get": {"responses": {"200": {"description": "ok"}}},
	      "put": {"responses": {"200": {"description": "ok"}}},
	      "patch": {"responses": {"200": {"description": "ok"}}},
	      "delete": {"responses": {"204": {"description": "gone"}}}
	    }
	  }
	}`, ep, ep)
}

// relatedBackend is an httptest logic module serving one related model with
// canned create/read/update behavior.
type relatedBackend struct {
	srv     *httptest.Server
	pkField string
	posts   atomic.Int64
	patches atomic.Int64
	// fail switches every data route to a 500.
	fail atomic.Bool
	// lastCreate captures the most recent POST body.
	lastCreate atomic.Pointer[map[string]any]
}

func newRelatedBackend(t *testing.T, endpoint, pkField string) *relatedBackend {
	t.Helper()
	b := &relatedBackend{pkField: pkField}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /docs", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(backendSpec(endpoint)))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if b.fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"backend exploded"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			b.posts.Add(1)
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			b.lastCreate.Store(&body)
			body[pkField] = uuid.NewString()
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(body)
		case http.MethodPatch, http.MethodPut:
			b.patches.Add(1)
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			body[pkField] = pathPK(r.URL.Path)
			_ = json.NewEncoder(w).Encode(body)
		default: // GET detail
			_ = json.NewEncoder(w).Encode(map[string]any{
				pkField: pathPK(r.URL.Path),
				"name":  "related-object",
			})
		}
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func pathPK(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	return parts[len(parts)-1]
}

type harness struct {
	registry *RegistryService
	joins    *JoinService
	joinRepo *testutil.MemJoinRecordRepo
	orch     *Orchestrator
	router   *BackendRouter

	teams *relatedBackend
	tools *relatedBackend

	productModel model.LogicModuleModel
	teamRel      model.Relationship
	toolRel      model.Relationship
	reverseRel   model.Relationship

	org uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	h := &harness{
		teams: newRelatedBackend(t, "/product_team/", "product_team_uuid"),
		tools: newRelatedBackend(t, "/product_tool/", "product_tool_uuid"),
		org:   uuid.New(),
	}

	modules := testutil.NewMemLogicModuleRepo()
	models := testutil.NewMemLogicModuleModelRepo()
	rels := testutil.NewMemRelationshipRepo()
	h.joinRepo = testutil.NewMemJoinRecordRepo()

	h.registry = NewRegistryService(RegistryServiceOptions{Modules: modules, Models: models, Rels: rels})
	h.joins = NewJoinService(h.joinRepo)

	_, err := h.registry.UpsertLogicModule(ctx, model.LogicModule{
		EndpointName: "products", Endpoint: "http://products.invalid", DocsEndpoint: "http://products.invalid/docs",
	})
	require.NoError(t, err)
	_, err = h.registry.UpsertLogicModule(ctx, model.LogicModule{
		EndpointName: "teams", Endpoint: h.teams.srv.URL, DocsEndpoint: h.teams.srv.URL + "/docs",
	})
	require.NoError(t, err)
	_, err = h.registry.UpsertLogicModule(ctx, model.LogicModule{
		EndpointName: "tools", Endpoint: h.tools.srv.URL, DocsEndpoint: h.tools.srv.URL + "/docs",
	})
	require.NoError(t, err)

	h.productModel, err = h.registry.UpsertModel(ctx, model.LogicModuleModel{
		LogicModuleEndpointName: "products", Model: "product", Endpoint: "/product/", LookupFieldName: "product_uuid",
	})
	require.NoError(t, err)
	_, err = h.registry.UpsertModel(ctx, model.LogicModuleModel{
		LogicModuleEndpointName: "teams", Model: "product_team", Endpoint: "/product_team/", LookupFieldName: "product_team_uuid",
	})
	require.NoError(t, err)
	_, err = h.registry.UpsertModel(ctx, model.LogicModuleModel{
		LogicModuleEndpointName: "tools", Model: "product_tool", Endpoint: "/product_tool/", LookupFieldName: "product_tool_uuid",
	})
	require.NoError(t, err)

	h.teamRel, err = h.registry.UpsertRelationship(ctx, model.Relationship{
		OriginModel: "product", RelatedModel: "product_team", Key: teamRelKey, FKFieldName: "product_uuid",
	})
	require.NoError(t, err)
	h.toolRel, err = h.registry.UpsertRelationship(ctx, model.Relationship{
		OriginModel: "product", RelatedModel: "product_tool", Key: toolRelKey,
	})
	require.NoError(t, err)
	h.reverseRel, err = h.registry.UpsertRelationship(ctx, model.Relationship{
		OriginModel: "product_team", RelatedModel: "product", Key: reverseRelKey, FKFieldName: "product_uuid",
	})
	require.NoError(t, err)

	h.router = &BackendRouter{
		Registry: h.registry,
		Specs:    speccache.New(speccache.Options{}),
		Backend:  swaggerclient.New(swaggerclient.Options{}),
		Locals:   NewLocalRegistry(),
	}
	h.orch = NewOrchestrator(OrchestratorOptions{
		Registry: h.registry,
		Joins:    h.joins,
		Router:   h.router,
	})
	return h
}

func (h *harness) auth() domainauth.Context {
	return domainauth.Context{RawToken: "test-token", OrgID: &h.org}
}

func (h *harness) meshRequest(method string, mode model.MeshMode, body map[string]any, resp model.RespData) MeshRequest {
	return MeshRequest{
		Method:   method,
		Mode:     mode,
		Body:     body,
		Auth:     h.auth(),
		Model:    h.productModel,
		RespData: resp,
	}
}

func joinsFor(recs []model.JoinRecord, relID int64) []model.JoinRecord {
	var out []model.JoinRecord
	for _, rec := range recs {
		if rec.RelationshipID == relID {
			out = append(out, rec)
		}
	}
	return out
}

func TestProcessCreateWithJoinForward(t *testing.T) {
	h := newHarness(t)
	productUUID := uuid.NewString()

	res := h.orch.Process(context.Background(), h.meshRequest(http.MethodPost,
		model.MeshMode{Join: true},
		map[string]any{
			"name":     "X",
			teamRelKey: []any{map[string]any{"team_name": "T"}},
		},
		model.RespData{Object: map[string]any{"product_uuid": productUUID, "name": "X"}},
	))

	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, int64(1), h.teams.posts.Load())

	created := *h.teams.lastCreate.Load()
	assert.Equal(t, "T", created["team_name"])
	assert.Equal(t, productUUID, created["product_uuid"], "primary PK injected at fk_field_name")

	recs := joinsFor(h.joinRepo.All(), h.teamRel.ID)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].RecordUUID)
	assert.Equal(t, productUUID, recs[0].RecordUUID.String())
	require.NotNil(t, recs[0].RelatedRecordUUID)
	require.NotNil(t, recs[0].Organization)
	assert.Equal(t, h.org, *recs[0].Organization)
}

func TestProcessCreateWithJoinReverse(t *testing.T) {
	h := newHarness(t)
	productUUID := uuid.NewString()

	res := h.orch.Process(context.Background(), h.meshRequest(http.MethodPost,
		model.MeshMode{Join: true},
		map[string]any{reverseRelKey: []any{map[string]any{"team_name": "Owners"}}},
		model.RespData{Object: map[string]any{"product_uuid": productUUID}},
	))

	assert.Empty(t, res.Errors)
	recs := joinsFor(h.joinRepo.All(), h.reverseRel.ID)
	require.Len(t, recs, 1)
	// Reverse lookup: the created team is the origin side, the primary
	// product the related side.
	require.NotNil(t, recs[0].RelatedRecordUUID)
	assert.Equal(t, productUUID, recs[0].RelatedRecordUUID.String())
	require.NotNil(t, recs[0].RecordUUID)
	assert.NotEqual(t, productUUID, recs[0].RecordUUID.String())
}

func TestProcessExtendLinksExistingRecords(t *testing.T) {
	h := newHarness(t)
	u1 := uuid.NewString()
	u2 := uuid.NewString()

	res := h.orch.Process(context.Background(), h.meshRequest(http.MethodPost,
		model.MeshMode{Extend: true},
		map[string]any{"product_uuid": u1, "product_tool_uuid": u2},
		model.RespData{Object: map[string]any{"product_uuid": u1}},
	))

	assert.Empty(t, res.Errors)
	assert.Equal(t, int64(0), h.tools.posts.Load(), "extend never issues a backend POST")

	recs := joinsFor(h.joinRepo.All(), h.toolRel.ID)
	require.Len(t, recs, 1)
	assert.Equal(t, u1, recs[0].RecordUUID.String())
	assert.Equal(t, u2, recs[0].RelatedRecordUUID.String())

	// Idempotent on re-run.
	_ = h.orch.Process(context.Background(), h.meshRequest(http.MethodPost,
		model.MeshMode{Extend: true},
		map[string]any{"product_uuid": u1, "product_tool_uuid": u2},
		model.RespData{Object: map[string]any{"product_uuid": u1}},
	))
	assert.Len(t, joinsFor(h.joinRepo.All(), h.toolRel.ID), 1)
}

func TestProcessUpdateWithPreviousPK(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u1 := uuid.NewString()
	u2 := uuid.NewString()
	u3 := uuid.NewString()

	_, err := h.joins.ValidateJoin(ctx, JoinInput{
		RelationshipID: h.teamRel.ID, OriginPK: u1, RelatedPK: u2, Organization: &h.org,
	})
	require.NoError(t, err)

	res := h.orch.Process(ctx, h.meshRequest(http.MethodPatch,
		model.MeshMode{Join: true},
		map[string]any{teamRelKey: []any{map[string]any{
			"product_team_uuid": u3,
			"previous_pk":       u2,
			"join":              true,
			"team_name":         "Renamed",
		}}},
		model.RespData{Object: map[string]any{"product_uuid": u1}},
	))

	assert.Empty(t, res.Errors)
	assert.Equal(t, int64(1), h.teams.patches.Load(), "PATCH forwarded to the team backend")

	recs := joinsFor(h.joinRepo.All(), h.teamRel.ID)
	require.Len(t, recs, 1)
	assert.Equal(t, u1, recs[0].RecordUUID.String())
	assert.Equal(t, u3, recs[0].RelatedRecordUUID.String(), "old join replaced by the new PK")
}

func TestProcessUpdateWithoutPKFallsBackToCreate(t *testing.T) {
	h := newHarness(t)
	u1 := uuid.NewString()

	res := h.orch.Process(context.Background(), h.meshRequest(http.MethodPut,
		model.MeshMode{Join: true},
		map[string]any{teamRelKey: []any{map[string]any{"team_name": "Fresh"}}},
		model.RespData{Object: map[string]any{"product_uuid": u1}},
	))

	assert.Empty(t, res.Errors)
	assert.Equal(t, int64(1), h.teams.posts.Load())
	assert.Len(t, joinsFor(h.joinRepo.All(), h.teamRel.ID), 1)
}

func TestProcessEmptyRelationshipArrayPreservesInlineFK(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// A relationship whose FK lives as a plain field on the product payload
	// itself.
	fkRel, err := h.registry.UpsertRelationship(ctx, model.Relationship{
		OriginModel:  "product",
		RelatedModel: "product_tool",
		Key:          "product_primary_tool_relationship",
		FKFieldName:  "primary_tool_uuid",
	})
	require.NoError(t, err)

	u1 := uuid.NewString()
	u9 := uuid.NewString()

	// The FK value comes off the primary's own response, not the inbound
	// body: the client sent an empty relationship array and nothing else.
	res := h.orch.Process(ctx, h.meshRequest(http.MethodPost,
		model.MeshMode{Join: true},
		map[string]any{fkRel.Key: []any{}},
		model.RespData{Object: map[string]any{
			"product_uuid":      u1,
			"primary_tool_uuid": u9,
		}},
	))

	assert.Empty(t, res.Errors)
	assert.Equal(t, int64(0), h.tools.posts.Load())

	recs := joinsFor(h.joinRepo.All(), fkRel.ID)
	require.Len(t, recs, 1)
	assert.Equal(t, u1, recs[0].RecordUUID.String())
	assert.Equal(t, u9, recs[0].RelatedRecordUUID.String())
}

func TestProcessEmptyRelationshipArrayWithoutFKFieldIsNoOp(t *testing.T) {
	h := newHarness(t)
	u1 := uuid.NewString()

	// toolRel declares no fk_field_name, so there is nothing to read off
	// the primary payload.
	res := h.orch.Process(context.Background(), h.meshRequest(http.MethodPost,
		model.MeshMode{Join: true},
		map[string]any{toolRelKey: []any{}},
		model.RespData{Object: map[string]any{"product_uuid": u1}},
	))

	assert.Empty(t, res.Errors)
	assert.Empty(t, h.joinRepo.All())
}

func TestProcessEmptyRelationshipArrayFKListFansOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	fkRel, err := h.registry.UpsertRelationship(ctx, model.Relationship{
		OriginModel:  "product",
		RelatedModel: "product_tool",
		Key:          "product_installed_tool_relationship",
		FKFieldName:  "installed_tool_uuids",
	})
	require.NoError(t, err)

	u1 := uuid.NewString()
	tools := []any{uuid.NewString(), uuid.NewString()}

	res := h.orch.Process(ctx, h.meshRequest(http.MethodPost,
		model.MeshMode{Join: true},
		map[string]any{fkRel.Key: []any{}},
		model.RespData{Object: map[string]any{
			"product_uuid":         u1,
			"installed_tool_uuids": tools,
		}},
	))

	assert.Empty(t, res.Errors)
	recs := joinsFor(h.joinRepo.All(), fkRel.ID)
	require.Len(t, recs, 2, "an array-valued FK field yields one join per element")
	for _, rec := range recs {
		assert.Equal(t, u1, rec.RecordUUID.String())
	}
}

func TestProcessArrayPKsWriteOneJoinPerElement(t *testing.T) {
	h := newHarness(t)
	u1 := uuid.NewString()
	tools := []any{uuid.NewString(), uuid.NewString(), uuid.NewString()}

	res := h.orch.Process(context.Background(), h.meshRequest(http.MethodPost,
		model.MeshMode{Extend: true},
		map[string]any{"product_tool_uuid": tools},
		model.RespData{Object: map[string]any{"product_uuid": u1}},
	))

	assert.Empty(t, res.Errors)
	recs := joinsFor(h.joinRepo.All(), h.toolRel.ID)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.Equal(t, u1, rec.RecordUUID.String())
	}
}

func TestProcessGetAggregateInlinesRelatedObjects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u1 := uuid.NewString()
	teamPK := uuid.NewString()
	toolPK := uuid.NewString()

	for _, in := range []JoinInput{
		{RelationshipID: h.teamRel.ID, OriginPK: u1, RelatedPK: teamPK, Organization: &h.org},
		{RelationshipID: h.toolRel.ID, OriginPK: u1, RelatedPK: toolPK, Organization: &h.org},
	} {
		_, err := h.joins.ValidateJoin(ctx, in)
		require.NoError(t, err)
	}

	item := map[string]any{"product_uuid": u1, "name": "X"}
	res := h.orch.Process(ctx, h.meshRequest(http.MethodGet,
		model.MeshMode{Aggregate: true},
		nil,
		model.RespData{Object: item},
	))

	assert.Empty(t, res.Errors)
	teamsOut, ok := item[teamRelKey].([]map[string]any)
	require.True(t, ok)
	require.Len(t, teamsOut, 1)
	assert.Equal(t, teamPK, teamsOut[0]["product_team_uuid"])

	toolsOut, ok := item[toolRelKey].([]map[string]any)
	require.True(t, ok)
	require.Len(t, toolsOut, 1)
	assert.Equal(t, toolPK, toolsOut[0]["product_tool_uuid"])
}

func TestProcessGetAggregateOnListExpandsPerItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u1 := uuid.NewString()
	u2 := uuid.NewString()
	team1 := uuid.NewString()
	team2 := uuid.NewString()

	for _, in := range []JoinInput{
		{RelationshipID: h.teamRel.ID, OriginPK: u1, RelatedPK: team1, Organization: &h.org},
		{RelationshipID: h.teamRel.ID, OriginPK: u2, RelatedPK: team2, Organization: &h.org},
	} {
		_, err := h.joins.ValidateJoin(ctx, in)
		require.NoError(t, err)
	}

	items := []map[string]any{
		{"product_uuid": u1},
		{"product_uuid": u2},
	}
	res := h.orch.Process(ctx, h.meshRequest(http.MethodGet,
		model.MeshMode{Aggregate: true},
		nil,
		model.RespData{List: items, IsList: true},
	))

	assert.Empty(t, res.Errors)
	first, ok := items[0][teamRelKey].([]map[string]any)
	require.True(t, ok)
	require.Len(t, first, 1)
	assert.Equal(t, team1, first[0]["product_team_uuid"])

	second, ok := items[1][teamRelKey].([]map[string]any)
	require.True(t, ok)
	require.Len(t, second, 1)
	assert.Equal(t, team2, second[0]["product_team_uuid"])
}

func TestProcessBackendFailureIsolatesRelationship(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u1 := uuid.NewString()
	teamPK := uuid.NewString()
	toolPK := uuid.NewString()

	for _, in := range []JoinInput{
		{RelationshipID: h.teamRel.ID, OriginPK: u1, RelatedPK: teamPK, Organization: &h.org},
		{RelationshipID: h.toolRel.ID, OriginPK: u1, RelatedPK: toolPK, Organization: &h.org},
	} {
		_, err := h.joins.ValidateJoin(ctx, in)
		require.NoError(t, err)
	}
	h.teams.fail.Store(true)

	item := map[string]any{"product_uuid": u1}
	res := h.orch.Process(ctx, h.meshRequest(http.MethodGet,
		model.MeshMode{Aggregate: true},
		nil,
		model.RespData{Object: item},
	))

	assert.Contains(t, res.Errors, teamRelKey)
	assert.NotContains(t, item, teamRelKey)

	toolsOut, ok := item[toolRelKey].([]map[string]any)
	require.True(t, ok, "sibling relationship still expands")
	assert.Len(t, toolsOut, 1)
}

func TestProcessDeleteRemovesTouchingJoins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u1 := uuid.NewString()
	other := uuid.NewString()

	for _, in := range []JoinInput{
		{RelationshipID: h.teamRel.ID, OriginPK: u1, RelatedPK: uuid.NewString(), Organization: &h.org},
		{RelationshipID: h.toolRel.ID, OriginPK: u1, RelatedPK: uuid.NewString(), Organization: &h.org},
		{RelationshipID: h.toolRel.ID, OriginPK: other, RelatedPK: uuid.NewString(), Organization: &h.org},
	} {
		_, err := h.joins.ValidateJoin(ctx, in)
		require.NoError(t, err)
	}

	req := h.meshRequest(http.MethodDelete, model.MeshMode{}, nil, model.RespData{})
	req.PrimaryPKHint = u1
	res := h.orch.Process(ctx, req)

	assert.Empty(t, res.Errors)
	require.Len(t, h.joinRepo.All(), 1, "only the unrelated record's join survives")
	assert.Equal(t, other, h.joinRepo.All()[0].RecordUUID.String())
}

func TestProcessJoinInsertFailureIsSoftWarning(t *testing.T) {
	h := newHarness(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJoinRecordRepository(ctrl)
	repo.EXPECT().
		ValidateJoin(gomock.Any(), gomock.Any()).
		Return(model.JoinRecord{}, assert.AnError).
		AnyTimes()

	orch := NewOrchestrator(OrchestratorOptions{
		Registry: h.registry,
		Joins:    NewJoinService(repo),
		Router:   h.router,
	})

	u1 := uuid.NewString()
	u2 := uuid.NewString()
	res := orch.Process(context.Background(), h.meshRequest(http.MethodPost,
		model.MeshMode{Extend: true},
		map[string]any{"product_tool_uuid": u2},
		model.RespData{Object: map[string]any{"product_uuid": u1}},
	))

	assert.Empty(t, res.Errors, "a failed join write never aborts the relationship")
	assert.NotEmpty(t, res.Warnings, "the client sees a soft warning instead")
}
