package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmesh/meshgate/internal/testutil"
)

const seedJSON = `{
  "logic_modules": [
    {"endpoint_name": "products", "endpoint": "http://products.internal", "docs_endpoint": "http://products.internal/docs"}
  ],
  "models": [
    {"logic_module_endpoint_name": "products", "model": "product", "endpoint": "/product/", "lookup_field_name": "product_uuid"},
    {"logic_module_endpoint_name": "products", "model": "product_team", "endpoint": "/team/", "lookup_field_name": "product_team_uuid"}
  ],
  "relationships": [
    {"origin_model": "product", "related_model": "product_team", "key": "product_product_team_relationship", "fk_field_name": "product_uuid"}
  ],
  "joins": [
    {"relationship_key": "product_product_team_relationship", "origin_pk": "550e8400-e29b-41d4-a716-446655440000", "related_pk": "42"}
  ]
}`

const seedYAML = `logic_modules:
  - endpoint_name: products
    endpoint: http://products.internal
    docs_endpoint: http://products.internal/docs
models:
  - logic_module_endpoint_name: products
    model: product
    endpoint: /product/
    lookup_field_name: product_uuid
relationships: []
joins: []
`

func newSeeder(t *testing.T) (*Seeder, *testutil.MemJoinRecordRepo, *RegistryService) {
	t.Helper()
	joinRepo := testutil.NewMemJoinRecordRepo()
	reg := NewRegistryService(RegistryServiceOptions{
		Modules: testutil.NewMemLogicModuleRepo(),
		Models:  testutil.NewMemLogicModuleModelRepo(),
		Rels:    testutil.NewMemRelationshipRepo(),
	})
	return &Seeder{Registry: reg, Joins: NewJoinService(joinRepo)}, joinRepo, reg
}

func writeSeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeedFromJSONFile(t *testing.T) {
	seeder, joinRepo, reg := newSeeder(t)
	ctx := context.Background()

	require.NoError(t, seeder.SeedFromFile(ctx, writeSeed(t, "seed.json", seedJSON)))

	lm, err := reg.FindLogicModule(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, "http://products.internal", lm.Endpoint)

	rel, err := reg.FindRelationshipByKey(ctx, "product_product_team_relationship")
	require.NoError(t, err)
	assert.Equal(t, "product_uuid", rel.FKFieldName)

	recs := joinRepo.All()
	require.Len(t, recs, 1)
	assert.NotNil(t, recs[0].RecordUUID, "uuid-kind origin lands in record_uuid")
	assert.NotNil(t, recs[0].RelatedRecordID, "integer-kind related lands in related_record_id")
	assert.Nil(t, recs[0].Organization, "seeded joins may be global")
}

func TestSeedFromYAMLFile(t *testing.T) {
	seeder, _, reg := newSeeder(t)
	ctx := context.Background()

	require.NoError(t, seeder.SeedFromFile(ctx, writeSeed(t, "seed.yaml", seedYAML)))

	lmm, err := reg.FindModelByName(ctx, "product")
	require.NoError(t, err)
	assert.Equal(t, "product_uuid", lmm.LookupFieldName)
}

func TestSeedIsIdempotent(t *testing.T) {
	seeder, joinRepo, reg := newSeeder(t)
	ctx := context.Background()
	path := writeSeed(t, "seed.json", seedJSON)

	require.NoError(t, seeder.SeedFromFile(ctx, path))
	require.NoError(t, seeder.SeedFromFile(ctx, path))

	mods, err := reg.ListLogicModules(ctx)
	require.NoError(t, err)
	assert.Len(t, mods, 1)
	assert.Len(t, joinRepo.All(), 1)
}

func TestSeedUnknownRelationshipKeyFails(t *testing.T) {
	seeder, _, _ := newSeeder(t)

	err := seeder.Seed(context.Background(), SeedDocument{
		Joins: []SeedJoin{{RelationshipKey: "missing", OriginPK: "1", RelatedPK: "2"}},
	})
	assert.Error(t, err)
}
