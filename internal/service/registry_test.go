package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"

	"github.com/openmesh/meshgate/internal/testutil"
)

func newTestRegistry(t *testing.T) (*RegistryService, *testutil.MemRelationshipRepo) {
	t.Helper()
	rels := testutil.NewMemRelationshipRepo()
	reg := NewRegistryService(RegistryServiceOptions{
		Modules: testutil.NewMemLogicModuleRepo(),
		Models:  testutil.NewMemLogicModuleModelRepo(),
		Rels:    rels,
	})

	ctx := context.Background()
	_, err := reg.UpsertLogicModule(ctx, model.LogicModule{EndpointName: "products", Endpoint: "http://p"})
	require.NoError(t, err)
	_, err = reg.UpsertModel(ctx, model.LogicModuleModel{
		LogicModuleEndpointName: "products", Model: "product", Endpoint: "/product/", LookupFieldName: "product_uuid",
	})
	require.NoError(t, err)
	_, err = reg.UpsertModel(ctx, model.LogicModuleModel{
		LogicModuleEndpointName: "products", Model: "product_team", Endpoint: "/product/team/", LookupFieldName: "product_team_uuid",
	})
	require.NoError(t, err)
	_, err = reg.UpsertRelationship(ctx, model.Relationship{
		OriginModel: "product", RelatedModel: "product_team", Key: "product_product_team_relationship", FKFieldName: "product_uuid",
	})
	require.NoError(t, err)
	return reg, rels
}

func TestRelationshipsForUsesAdjacencyCache(t *testing.T) {
	reg, rels := newTestRegistry(t)
	ctx := context.Background()

	out, err := reg.RelationshipsFor(ctx, "product")
	require.NoError(t, err)
	require.Len(t, out, 1)
	listsAfterFirst := rels.ListCalls()

	for range 10 {
		_, err = reg.RelationshipsFor(ctx, "product")
		require.NoError(t, err)
	}
	assert.Equal(t, listsAfterFirst, rels.ListCalls(), "cached reads must not hit the repository")
}

func TestUpsertRelationshipInvalidatesAdjacencyCache(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	out, err := reg.RelationshipsFor(ctx, "product")
	require.NoError(t, err)
	require.Len(t, out, 1)

	_, err = reg.UpsertRelationship(ctx, model.Relationship{
		OriginModel: "product", RelatedModel: "product_team", Key: "product_second_team_relationship",
	})
	require.NoError(t, err)

	out, err = reg.RelationshipsFor(ctx, "product")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestRelationshipsTouchingIncludesReverseEdges(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	out, err := reg.RelationshipsTouching(ctx, "product_team")
	require.NoError(t, err)
	require.Len(t, out, 1, "product_team sits on the related side of the only edge")
	assert.Equal(t, "product", out[0].OriginModel)
}

func TestResolveParamForwardAndReverse(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	rel, err := reg.FindRelationshipByKey(ctx, "product_product_team_relationship")
	require.NoError(t, err)

	fwd, err := reg.ResolveParam(ctx, rel, "product")
	require.NoError(t, err)
	assert.True(t, fwd.IsForwardLookup)
	assert.Equal(t, "products", fwd.Service)
	assert.Equal(t, "/product/team/", fwd.Path)
	assert.Equal(t, "product_uuid", fwd.OriginModelPKName)
	assert.Equal(t, "product_team_uuid", fwd.RelatedModelPKName)

	rev, err := reg.ResolveParam(ctx, rel, "product_team")
	require.NoError(t, err)
	assert.False(t, rev.IsForwardLookup)
	assert.Equal(t, "/product/", rev.Path, "reverse lookup targets the origin model's endpoint")

	_, err = reg.ResolveParam(ctx, rel, "unrelated_model")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeRelationshipMisconfigured, appErr.Code)
}

func TestResolveModelByPathPrefersLongestPrefix(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	lmm, err := reg.ResolveModelByPath(ctx, "products", "/product/team/u1/")
	require.NoError(t, err)
	assert.Equal(t, "product_team", lmm.Model)

	lmm, err = reg.ResolveModelByPath(ctx, "products", "/product/u1/")
	require.NoError(t, err)
	assert.Equal(t, "product", lmm.Model)

	_, err = reg.ResolveModelByPath(ctx, "products", "/unknown/")
	assert.Error(t, err)
}

func TestFindLogicModuleMissIsRouteNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.FindLogicModule(context.Background(), "nope")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeRouteNotFound, appErr.Code)
}
