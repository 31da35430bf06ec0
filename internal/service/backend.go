package service

import (
	"context"

	"github.com/openmesh/meshgate/internal/adapters/speccache"
	"github.com/openmesh/meshgate/internal/adapters/swaggerclient"
	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
	"github.com/openmesh/meshgate/internal/domain/model"
)

// SpecSource yields the cached OpenAPI document for a logic module.
type SpecSource interface {
	Get(ctx context.Context, lm model.LogicModule) (*speccache.Document, error)
}

// BackendCaller executes a spec-driven call against a remote logic module.
type BackendCaller interface {
	Do(ctx context.Context, target swaggerclient.Target, op swaggerclient.Operation, auth domainauth.Context) (swaggerclient.Response, error)
}

// BackendRouter resolves a logic module by endpoint_name and executes an
// operation against it, local or remote. It is the single dispatch seam the
// request dispatcher and the mesh orchestrator share, so local modules are
// indistinguishable from remote ones above this line.
type BackendRouter struct {
	Registry *RegistryService
	Specs    SpecSource
	Backend  BackendCaller
	Locals   *LocalRegistry
}

// Call resolves endpointName and executes op with the caller's auth context.
func (r *BackendRouter) Call(
	ctx context.Context,
	endpointName string,
	op swaggerclient.Operation,
	auth domainauth.Context,
) (swaggerclient.Response, error) {
	lm, err := r.Registry.FindLogicModule(ctx, endpointName)
	if err != nil {
		return swaggerclient.Response{}, err
	}
	return r.CallModule(ctx, lm, op, auth)
}

// CallModule executes op against an already-resolved logic module.
func (r *BackendRouter) CallModule(
	ctx context.Context,
	lm model.LogicModule,
	op swaggerclient.Operation,
	auth domainauth.Context,
) (swaggerclient.Response, error) {
	op.Service = lm.EndpointName

	if lm.IsLocal {
		return r.Locals.Serve(ctx, lm.EndpointName, op, auth)
	}

	doc, err := r.Specs.Get(ctx, lm)
	if err != nil {
		return swaggerclient.Response{}, err
	}
	return r.Backend.Do(ctx, swaggerclient.Target{Module: lm, Doc: doc}, op, auth)
}
