// Package core defines the repository ports (hexagonal interfaces) consumed
// by internal/service. Implementations live in internal/data/postgres;
// internal/mocks generates gomock doubles from these interfaces for tests.
package core

import (
	"context"

	"github.com/openmesh/meshgate/internal/domain/model"
)

// LogicModuleRepository persists and resolves backend service registrations.
type LogicModuleRepository interface {
	// Upsert inserts a LogicModule or, for an equal EndpointName, overwrites
	// the existing row's fields; repeating an upsert is idempotent.
	Upsert(ctx context.Context, lm model.LogicModule) (model.LogicModule, error)
	FindByEndpointName(ctx context.Context, endpointName string) (model.LogicModule, error)
	List(ctx context.Context) ([]model.LogicModule, error)
}

// LogicModuleModelRepository persists and resolves resource types within a
// logic module.
type LogicModuleModelRepository interface {
	Upsert(ctx context.Context, lmm model.LogicModuleModel) (model.LogicModuleModel, error)
	// FindByModel resolves a model name to its registration, used to look up
	// lookup_field_name and the owning logic module's endpoint/is_local flag.
	FindByModel(ctx context.Context, modelName string) (model.LogicModuleModel, error)
	List(ctx context.Context) ([]model.LogicModuleModel, error)
}

// RelationshipRepository persists and resolves directed edge types between
// two LogicModuleModels.
type RelationshipRepository interface {
	Upsert(ctx context.Context, rel model.Relationship) (model.Relationship, error)
	FindByKey(ctx context.Context, key string) (model.Relationship, error)
	// RelationshipsFor returns every relationship whose origin side is
	// originModel. The mesh orchestrator does not call it; its fan-out comes
	// from RegistryService's adjacency cache, which is built from List.
	RelationshipsFor(ctx context.Context, originModel string) ([]model.Relationship, error)
	List(ctx context.Context) ([]model.Relationship, error)
}
