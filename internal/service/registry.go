// Package service contains the gateway's orchestration layer: the service
// registry, the request dispatcher, the mesh orchestrator, and the
// aggregation of primary and related payloads. It depends on the repository
// ports in internal/core and the adapters for specs and backend calls.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openmesh/meshgate/internal/core"
	"github.com/openmesh/meshgate/internal/data"
	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"
)

// RegistryService wraps the registry repositories with an in-process
// adjacency cache. The relationship graph is administrator-managed and
// rarely mutated, so reads vastly outnumber writes; the cache turns the
// per-request "what do I fan out to" lookup into a map hit and is
// invalidated wholesale on any model or relationship upsert.
type RegistryService struct {
	modules core.LogicModuleRepository
	models  core.LogicModuleModelRepository
	rels    core.RelationshipRepository

	mu sync.RWMutex
	// forward maps origin_model to its outgoing relationships, reverse maps
	// related_model to its incoming ones. Both are rebuilt together from a
	// single List.
	forward map[string][]model.Relationship
	reverse map[string][]model.Relationship
	// modelsByModule maps logic module endpoint_name to its registered models.
	modelsByModule map[string][]model.LogicModuleModel
	loaded         bool
}

// RegistryServiceOptions groups dependencies for RegistryService.
type RegistryServiceOptions struct {
	Modules core.LogicModuleRepository
	Models  core.LogicModuleModelRepository
	Rels    core.RelationshipRepository
}

// NewRegistryService constructs a RegistryService.
func NewRegistryService(opts RegistryServiceOptions) *RegistryService {
	return &RegistryService{
		modules: opts.Modules,
		models:  opts.Models,
		rels:    opts.Rels,
	}
}

// UpsertLogicModule registers or republishes a backend service.
func (s *RegistryService) UpsertLogicModule(ctx context.Context, lm model.LogicModule) (model.LogicModule, error) {
	if lm.EndpointName == "" {
		return model.LogicModule{}, apperrors.ValidationField("endpoint_name", "endpoint_name is required")
	}
	if !lm.IsLocal && lm.Endpoint == "" {
		return model.LogicModule{}, apperrors.ValidationField("endpoint", "endpoint is required for remote logic modules")
	}
	return s.modules.Upsert(ctx, lm)
}

// UpsertModel registers or republishes a resource type within a logic module.
func (s *RegistryService) UpsertModel(ctx context.Context, lmm model.LogicModuleModel) (model.LogicModuleModel, error) {
	if lmm.Model == "" || lmm.LogicModuleEndpointName == "" {
		return model.LogicModuleModel{}, apperrors.Validation("model and logic_module_endpoint_name are required")
	}
	if lmm.LookupFieldName == "" {
		return model.LogicModuleModel{}, apperrors.ValidationField("lookup_field_name", "lookup_field_name is required")
	}
	out, err := s.models.Upsert(ctx, lmm)
	if err != nil {
		return model.LogicModuleModel{}, err
	}
	s.invalidate()
	return out, nil
}

// UpsertRelationship registers or republishes a directed edge type and
// invalidates the adjacency cache.
func (s *RegistryService) UpsertRelationship(ctx context.Context, rel model.Relationship) (model.Relationship, error) {
	if rel.Key == "" || rel.OriginModel == "" || rel.RelatedModel == "" {
		return model.Relationship{}, apperrors.Validation("key, origin_model, and related_model are required")
	}
	out, err := s.rels.Upsert(ctx, rel)
	if err != nil {
		return model.Relationship{}, err
	}
	s.invalidate()
	return out, nil
}

// FindLogicModule resolves an endpoint_name to its registration. A miss is a
// RouteNotFound: the endpoint_name is the gateway's routing key.
func (s *RegistryService) FindLogicModule(ctx context.Context, endpointName string) (model.LogicModule, error) {
	lm, err := s.modules.FindByEndpointName(ctx, endpointName)
	if err != nil {
		if errors.Is(err, data.ErrLogicModuleNotFound) {
			return model.LogicModule{}, apperrors.RouteNotFoundf("no logic module registered for %q", endpointName)
		}
		return model.LogicModule{}, err
	}
	return lm, nil
}

// FindRelationshipByKey resolves a relationship key to its registration.
func (s *RegistryService) FindRelationshipByKey(ctx context.Context, key string) (model.Relationship, error) {
	rel, err := s.rels.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, data.ErrRelationshipNotFound) {
			return model.Relationship{}, apperrors.RelationshipMisconfiguredf("no relationship registered for key %q", key)
		}
		return model.Relationship{}, err
	}
	return rel, nil
}

// RelationshipsFor returns the outgoing relationships of originModel, from
// the adjacency cache.
func (s *RegistryService) RelationshipsFor(ctx context.Context, originModel string) ([]model.Relationship, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forward[originModel], nil
}

// RelationshipsTouching returns every relationship where modelName appears on
// either side. The mesh orchestrator uses this on create/update so reverse
// lookups (the primary record on the related side) are discovered too.
func (s *RegistryService) RelationshipsTouching(ctx context.Context, modelName string) ([]model.Relationship, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Relationship, 0, len(s.forward[modelName])+len(s.reverse[modelName]))
	out = append(out, s.forward[modelName]...)
	for _, rel := range s.reverse[modelName] {
		// A self-referencing relationship is already in the forward set.
		if rel.OriginModel != modelName {
			out = append(out, rel)
		}
	}
	return out, nil
}

// ResolveModelByPath finds the logic module model whose endpoint prefixes
// subPath within the given logic module.
func (s *RegistryService) ResolveModelByPath(ctx context.Context, endpointName, subPath string) (model.LogicModuleModel, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return model.LogicModuleModel{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !strings.HasPrefix(subPath, "/") {
		subPath = "/" + subPath
	}
	var best model.LogicModuleModel
	for _, lmm := range s.modelsByModule[endpointName] {
		ep := lmm.Endpoint
		if !strings.HasPrefix(ep, "/") {
			ep = "/" + ep
		}
		if strings.HasPrefix(subPath, strings.TrimSuffix(ep, "/")) && len(ep) > len(best.Endpoint) {
			best = lmm
		}
	}
	if best.Model == "" {
		return model.LogicModuleModel{}, fmt.Errorf("%s under %q: %w", subPath, endpointName, data.ErrLogicModuleModelNotFound)
	}
	return best, nil
}

// FindModelByName resolves a model name to its registration.
func (s *RegistryService) FindModelByName(ctx context.Context, modelName string) (model.LogicModuleModel, error) {
	return s.models.FindByModel(ctx, modelName)
}

// ListLogicModules returns every registered logic module.
func (s *RegistryService) ListLogicModules(ctx context.Context) ([]model.LogicModule, error) {
	return s.modules.List(ctx)
}

// ListModels returns every registered logic module model.
func (s *RegistryService) ListModels(ctx context.Context) ([]model.LogicModuleModel, error) {
	return s.models.List(ctx)
}

// ListRelationships returns every registered relationship.
func (s *RegistryService) ListRelationships(ctx context.Context) ([]model.Relationship, error) {
	return s.rels.List(ctx)
}

// ResolveParam builds the canonical per-relationship metadata record the
// mesh orchestrator consumes. primaryModel is the model of the record the
// inbound request targeted; IsForwardLookup reports whether that record sits
// on the origin side of the relationship. Service and Path always describe
// the OTHER side, since that is the backend the orchestrator must call.
func (s *RegistryService) ResolveParam(ctx context.Context, rel model.Relationship, primaryModel string) (model.RelationshipParam, error) {
	forward := rel.OriginModel == primaryModel
	if !forward {
		if rel.RelatedModel != primaryModel {
			return model.RelationshipParam{}, apperrors.RelationshipMisconfiguredf(
				"relationship %q does not touch model %q", rel.Key, primaryModel)
		}
	}

	originLMM, err := s.models.FindByModel(ctx, rel.OriginModel)
	if err != nil {
		return model.RelationshipParam{}, apperrors.RelationshipMisconfiguredf(
			"relationship %q origin model %q is not registered: %v", rel.Key, rel.OriginModel, err)
	}
	relatedLMM, err := s.models.FindByModel(ctx, rel.RelatedModel)
	if err != nil {
		return model.RelationshipParam{}, apperrors.RelationshipMisconfiguredf(
			"relationship %q related model %q is not registered: %v", rel.Key, rel.RelatedModel, err)
	}

	otherLMM := relatedLMM
	if !forward {
		otherLMM = originLMM
	}

	return model.RelationshipParam{
		RelationshipKey:    rel.Key,
		Service:            otherLMM.LogicModuleEndpointName,
		Path:               otherLMM.Endpoint,
		OriginModelPKName:  originLMM.LookupFieldName,
		RelatedModelPKName: relatedLMM.LookupFieldName,
		FKFieldName:        rel.FKFieldName,
		IsForwardLookup:    forward,
	}, nil
}

func (s *RegistryService) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	rels, err := s.rels.List(ctx)
	if err != nil {
		return fmt.Errorf("load relationship adjacency: %w", err)
	}
	lmms, err := s.models.List(ctx)
	if err != nil {
		return fmt.Errorf("load model registry: %w", err)
	}

	forward := make(map[string][]model.Relationship)
	reverse := make(map[string][]model.Relationship)
	for _, rel := range rels {
		forward[rel.OriginModel] = append(forward[rel.OriginModel], rel)
		reverse[rel.RelatedModel] = append(reverse[rel.RelatedModel], rel)
	}
	byModule := make(map[string][]model.LogicModuleModel)
	for _, lmm := range lmms {
		byModule[lmm.LogicModuleEndpointName] = append(byModule[lmm.LogicModuleEndpointName], lmm)
	}

	s.mu.Lock()
	s.forward = forward
	s.reverse = reverse
	s.modelsByModule = byModule
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *RegistryService) invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.forward = nil
	s.reverse = nil
	s.modelsByModule = nil
	s.mu.Unlock()
}
