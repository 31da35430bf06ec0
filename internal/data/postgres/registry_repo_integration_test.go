package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmesh/meshgate/internal/data"
	"github.com/openmesh/meshgate/internal/domain/model"
	"github.com/openmesh/meshgate/internal/testutil"
)

func TestLogicModuleUpsertIntegrationIdempotent(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewLogicModuleRepo(db)

		first, err := repo.Upsert(ctx, model.LogicModule{
			EndpointName: "products",
			Endpoint:     "http://products.internal",
			DocsEndpoint: "http://products.internal/docs",
		})
		require.NoError(t, err)

		// Republishing the endpoint keeps the row identity.
		second, err := repo.Upsert(ctx, model.LogicModule{
			EndpointName: "products",
			Endpoint:     "http://products-v2.internal",
			DocsEndpoint: "http://products-v2.internal/docs",
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "http://products-v2.internal", second.Endpoint)

		_, err = repo.FindByEndpointName(ctx, "missing")
		assert.ErrorIs(t, err, data.ErrLogicModuleNotFound)
	})
}

func TestLogicModuleModelUpsertIntegration(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		modules := NewLogicModuleRepo(db)
		models := NewLogicModuleModelRepo(db)

		_, err := modules.Upsert(ctx, model.LogicModule{
			EndpointName: "products",
			Endpoint:     "http://products.internal",
			DocsEndpoint: "http://products.internal/docs",
		})
		require.NoError(t, err)

		first, err := models.Upsert(ctx, model.LogicModuleModel{
			LogicModuleEndpointName: "products",
			Model:                   "product",
			Endpoint:                "/product/",
			LookupFieldName:         "product_uuid",
		})
		require.NoError(t, err)

		second, err := models.Upsert(ctx, model.LogicModuleModel{
			LogicModuleEndpointName: "products",
			Model:                   "product",
			Endpoint:                "/product/",
			LookupFieldName:         "product_id",
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "product_id", second.LookupFieldName)

		got, err := models.FindByModel(ctx, "product")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
	})
}

func TestRelationshipsForIntegration(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewRelationshipRepo(db)

		for _, rel := range []model.Relationship{
			{OriginModel: "product", RelatedModel: "product_team", Key: "product_product_team_relationship"},
			{OriginModel: "product", RelatedModel: "product_tool", Key: "product_product_tool_relationship"},
			{OriginModel: "workflow", RelatedModel: "product", Key: "workflow_product_relationship"},
		} {
			_, err := repo.Upsert(ctx, rel)
			require.NoError(t, err)
		}

		out, err := repo.RelationshipsFor(ctx, "product")
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "product_product_team_relationship", out[0].Key, "ordered by key")

		_, err = repo.FindByKey(ctx, "nope")
		assert.ErrorIs(t, err, data.ErrRelationshipNotFound)
	})
}
