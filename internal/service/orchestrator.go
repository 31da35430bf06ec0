package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openmesh/meshgate/internal/adapters/swaggerclient"
	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"
	"github.com/openmesh/meshgate/internal/mesh/pk"
	"github.com/openmesh/meshgate/internal/observability/statsd"
)

// previousPKField and joinControlField are client-side control fields inside
// relationship sub-objects. They are stripped before a sub-object is
// forwarded to its backend.
const (
	previousPKField  = "previous_pk"
	joinControlField = "join"
)

// MeshRequest is the per-request input to the orchestrator, assembled by the
// gateway handler after the primary call succeeded.
type MeshRequest struct {
	Method string
	Mode   model.MeshMode
	// Body is the decoded inbound request body. The orchestrator never
	// mutates it; relationship sub-objects are cloned before FK injection.
	Body map[string]any
	Auth domainauth.Context

	Module model.LogicModule
	Model  model.LogicModuleModel
	// RespData is the primary backend's decoded response. GET expansion
	// inlines related payloads into its items.
	RespData model.RespData
	// PrimaryPKHint is the record PK taken from the request URL. It backs up
	// resp_data extraction, and is the only PK source after a DELETE.
	PrimaryPKHint string
}

// MeshResult collects the per-relationship failures and soft warnings of one
// orchestration pass. The primary response is never aborted by anything in
// here.
type MeshResult struct {
	Errors   model.MeshErrors
	Warnings []string
}

// Orchestrator drives per-request relationship processing: expansion on GET,
// join/extend writes on create and update, join cleanup on delete. Sibling
// relationships run concurrently; steps within one relationship are strictly
// ordered.
type Orchestrator struct {
	registry    *RegistryService
	joins       *JoinService
	router      *BackendRouter
	concurrency int
	logger      *slog.Logger
	metrics     statsd.Sink
}

// OrchestratorOptions groups dependencies for the Orchestrator.
type OrchestratorOptions struct {
	Registry *RegistryService
	Joins    *JoinService
	Router   *BackendRouter
	// Concurrency bounds the relationship fan-out per request. Zero means 8.
	Concurrency int
	Logger      *slog.Logger
	// Metrics receives per-relationship counters and timings. Nil drops
	// them.
	Metrics statsd.Sink
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		registry:    opts.Registry,
		joins:       opts.Joins,
		router:      opts.Router,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if o.concurrency < 1 {
		o.concurrency = 8
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		// A nil *statsd.Client drops every metric without branching at the
		// call sites.
		o.metrics = (*statsd.Client)(nil)
	}
	return o
}

// Process runs the dispatch matrix for req. It never returns an error: all
// per-relationship failures are captured in the result so the primary
// response survives.
func (o *Orchestrator) Process(ctx context.Context, req MeshRequest) MeshResult {
	res := &MeshResult{Errors: model.MeshErrors{}}
	if req.Model.Model == "" {
		// No registered model for this path; nothing to orchestrate.
		return *res
	}

	switch strings.ToUpper(req.Method) {
	case http.MethodDelete:
		o.processDelete(ctx, req, res)
	case http.MethodGet:
		if req.Mode.Aggregate {
			o.expand(ctx, req, res)
		}
	case http.MethodPost:
		switch {
		case req.Mode.Extend:
			o.processExtend(ctx, req, res)
		case req.Mode.Join:
			o.processJoin(ctx, req, res, false)
		}
	case http.MethodPut, http.MethodPatch:
		if req.Mode.Join {
			o.processJoin(ctx, req, res, true)
		}
	}
	return *res
}

// processDelete removes every join touching the deleted record's PK.
func (o *Orchestrator) processDelete(ctx context.Context, req MeshRequest, res *MeshResult) {
	pkValue := req.PrimaryPKHint
	if pkValue == "" {
		return
	}
	if err := o.joins.DeleteTouching(ctx, pkValue); err != nil {
		o.warn(ctx, res, fmt.Sprintf("cleanup joins for deleted record %s: %v", pkValue, err))
	}
}

// expand inlines related payloads under each relationship key of every item
// in the primary response. Expansion is one hop: related objects are fetched
// as-is and never expanded themselves.
func (o *Orchestrator) expand(ctx context.Context, req MeshRequest, res *MeshResult) {
	rels, err := o.registry.RelationshipsFor(ctx, req.Model.Model)
	if err != nil {
		o.warn(ctx, res, fmt.Sprintf("discover relationships for %s: %v", req.Model.Model, err))
		return
	}
	if len(rels) == 0 {
		return
	}

	items := req.RespData.Items()
	var mu sync.Mutex
	g := errgroup.Group{}
	g.SetLimit(o.concurrency)

	for _, item := range items {
		// The origin PK is read before the fan-out: sibling goroutines write
		// relationship keys into the same item map under the mutex, so no
		// goroutine may read the map unguarded.
		originVal, err := swaggerclient.ExtractField(item, req.Model.LookupFieldName)
		if err != nil || originVal == nil {
			continue
		}
		originPK := pk.Stringify(originVal)

		for _, rel := range rels {
			g.Go(func() error {
				start := time.Now()
				related, err := o.expandOne(ctx, req, rel, originPK)
				o.observe(rel.Key, "aggregate", start, err)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					res.Errors.Set(rel.Key, err)
					return nil
				}
				item[rel.Key] = related
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (o *Orchestrator) expandOne(
	ctx context.Context,
	req MeshRequest,
	rel model.Relationship,
	originPK string,
) ([]map[string]any, error) {
	param, err := o.registry.ResolveParam(ctx, rel, req.Model.Model)
	if err != nil {
		return nil, err
	}

	relatedPKs, err := o.joins.FindRelated(ctx, rel.ID, originPK, req.Auth.OrgID)
	if err != nil {
		return nil, err
	}

	related := make([]map[string]any, 0, len(relatedPKs))
	for _, rpk := range relatedPKs {
		resp, err := o.router.Call(ctx, param.Service, swaggerclient.Operation{
			Model:  rel.RelatedModel,
			Path:   param.Path,
			Method: http.MethodGet,
			PK:     rpk,
		}, req.Auth)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotFound {
			// Dangling join: the related record is gone and cascade cleanup
			// hasn't caught up. Filtered on read.
			continue
		}
		if !resp.IsSuccess() {
			return nil, backendFailure(param.Service, resp)
		}
		decoded, err := resp.Decode()
		if err != nil {
			return nil, err
		}
		if decoded.Object != nil {
			related = append(related, decoded.Object)
		}
	}
	return related, nil
}

// processExtend links already-existing records: the primary PK comes from
// resp_data, the related PK from the inbound body. No backend create is
// issued.
func (o *Orchestrator) processExtend(ctx context.Context, req MeshRequest, res *MeshResult) {
	primary, err := o.primaryPK(req)
	if err != nil {
		o.warn(ctx, res, err.Error())
		return
	}

	o.eachRelationship(ctx, req, res, func(rel model.Relationship, param model.RelationshipParam) error {
		vals := pk.Values(req.Body[otherPKName(param)])
		if len(vals) == 0 {
			return nil
		}
		for _, v := range vals {
			if err := o.validateJoin(ctx, rel.ID, param, primary, v, req.Auth, res); err != nil {
				return err
			}
		}
		return nil
	})
}

// processJoin creates or updates relationship sub-objects and links them.
// update selects the PUT/PATCH rows of the dispatch matrix.
func (o *Orchestrator) processJoin(ctx context.Context, req MeshRequest, res *MeshResult, update bool) {
	primary, err := o.primaryPK(req)
	if err != nil {
		o.warn(ctx, res, err.Error())
		return
	}

	o.eachRelationship(ctx, req, res, func(rel model.Relationship, param model.RelationshipParam) error {
		raw, present := req.Body[rel.Key]
		if !present {
			return nil
		}
		subs, ok := raw.([]any)
		if !ok {
			return apperrors.Validationf("relationship field %q must be a list of objects", rel.Key)
		}
		if len(subs) == 0 {
			return o.validateRelationshipData(ctx, req, rel, param, res)
		}
		for _, elem := range subs {
			sub, ok := elem.(map[string]any)
			if !ok {
				return apperrors.Validationf("relationship %q contains a non-object element", rel.Key)
			}
			relOp, prevPK := buildRelationshipOp(rel, param, primary, sub, update)
			if err := o.applyRelationshipOp(ctx, req, rel, param, relOp, prevPK, res); err != nil {
				return err
			}
		}
		return nil
	})
}

// buildRelationshipOp assembles the per-relationship value object for one
// sub-object: a cloned body with the control fields stripped, the op kind,
// and the two PKs. The inbound request body is never aliased.
func buildRelationshipOp(
	rel model.Relationship,
	param model.RelationshipParam,
	primary string,
	sub map[string]any,
	update bool,
) (model.RelationshipOp, string) {
	relOp := model.RelationshipOp{
		RelationshipKey: rel.Key,
		Op:              "create",
		Body:            cloneSub(sub),
		PrimaryPK:       primary,
		FKField:         param.FKFieldName,
	}
	if update {
		if own, ok := sub[otherPKName(param)]; ok && own != nil {
			relOp.Op = "update"
			relOp.RelatedPK = pk.Stringify(own)
		}
	}
	var prevPK string
	if v, ok := sub[previousPKField]; ok && v != nil {
		prevPK = pk.Stringify(v)
	}
	return relOp, prevPK
}

// validateRelationshipData preserves joins for relationships expressed as
// inline FKs: an empty relationship array still produces an idempotent join
// when the primary's own response payload carries the relationship's
// fk_field_name. Both sides come out of resp_data, never the inbound
// request body; relationships without an fk_field_name have nothing to read
// and are skipped.
func (o *Orchestrator) validateRelationshipData(
	ctx context.Context,
	req MeshRequest,
	rel model.Relationship,
	param model.RelationshipParam,
	res *MeshResult,
) error {
	if param.FKFieldName == "" {
		return nil
	}
	for _, item := range req.RespData.Items() {
		originVal, err := swaggerclient.ExtractField(item, req.Model.LookupFieldName)
		if err != nil || originVal == nil {
			continue
		}
		fkVal, err := swaggerclient.ExtractField(item, param.FKFieldName)
		if err != nil || fkVal == nil {
			continue
		}
		itemPK := pk.Stringify(originVal)
		for _, v := range pk.Values(fkVal) {
			if err := o.validateJoin(ctx, rel.ID, param, itemPK, v, req.Auth, res); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyRelationshipOp executes one relationship op. Creates POST the
// sub-object and link the PK the backend returned; updates forward the
// inbound method to the sub-object's own PK, replacing the previous join
// first when prevPK names one.
func (o *Orchestrator) applyRelationshipOp(
	ctx context.Context,
	req MeshRequest,
	rel model.Relationship,
	param model.RelationshipParam,
	relOp model.RelationshipOp,
	prevPK string,
	res *MeshResult,
) error {
	if relOp.Op == "update" {
		if prevPK != "" {
			if err := o.joins.DeleteMatching(ctx, rel.ID, relOp.PrimaryPK, prevPK); err != nil {
				o.warn(ctx, res, fmt.Sprintf("delete previous join %s for %q: %v", prevPK, rel.Key, err))
			}
		}

		resp, err := o.router.Call(ctx, param.Service, swaggerclient.Operation{
			Model:  rel.RelatedModel,
			Path:   param.Path,
			Method: strings.ToUpper(req.Method),
			PK:     relOp.RelatedPK,
			Data:   relOp.Body,
		}, req.Auth)
		if err != nil {
			return err
		}
		if !resp.IsSuccess() {
			return backendFailure(param.Service, resp)
		}
		return o.validateJoin(ctx, rel.ID, param, relOp.PrimaryPK, relOp.RelatedPK, req.Auth, res)
	}

	payload := relOp.Body
	if param.IsForwardLookup && relOp.FKField != "" {
		payload[relOp.FKField] = relOp.PrimaryPK
	}

	resp, err := o.router.Call(ctx, param.Service, swaggerclient.Operation{
		Model:  rel.RelatedModel,
		Path:   param.Path,
		Method: http.MethodPost,
		Data:   payload,
	}, req.Auth)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return backendFailure(param.Service, resp)
	}

	decoded, err := resp.Decode()
	if err != nil {
		return err
	}
	subVal, err := swaggerclient.ExtractField(decoded.Object, otherPKName(param))
	if err != nil || subVal == nil {
		return apperrors.RelationshipMisconfiguredf(
			"created %s object carries no %q field", param.Service, otherPKName(param))
	}
	for _, spk := range pk.Values(subVal) {
		if err := o.validateJoin(ctx, rel.ID, param, relOp.PrimaryPK, spk, req.Auth, res); err != nil {
			return err
		}
	}
	return nil
}

// eachRelationship runs fn once per relationship touching the primary model,
// concurrently, capturing per-relationship failures without aborting
// siblings.
func (o *Orchestrator) eachRelationship(
	ctx context.Context,
	req MeshRequest,
	res *MeshResult,
	fn func(rel model.Relationship, param model.RelationshipParam) error,
) {
	rels, err := o.registry.RelationshipsTouching(ctx, req.Model.Model)
	if err != nil {
		o.warn(ctx, res, fmt.Sprintf("discover relationships for %s: %v", req.Model.Model, err))
		return
	}

	var mu sync.Mutex
	g := errgroup.Group{}
	g.SetLimit(o.concurrency)
	mode := "join"
	if req.Mode.Extend {
		mode = "extend"
	}
	for _, rel := range rels {
		g.Go(func() error {
			start := time.Now()
			param, err := o.registry.ResolveParam(ctx, rel, req.Model.Model)
			if err == nil {
				err = fn(rel, param)
			}
			o.observe(rel.Key, mode, start, err)
			if err != nil {
				mu.Lock()
				res.Errors.Set(rel.Key, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// observe emits the per-relationship counters and timing.
func (o *Orchestrator) observe(relKey, mode string, start time.Time, err error) {
	tags := map[string]string{"relationship": relKey, "mode": mode}
	o.metrics.Count("mesh.relationship.processed", 1, tags)
	o.metrics.Timing("mesh.relationship.duration", time.Since(start), tags)
	if err != nil {
		o.metrics.Count("mesh.relationship.errors", 1, tags)
	}
}

// validateJoin writes one join tuple, orienting primary/other onto the
// origin/related sides per the relationship direction. Insertion failures
// are soft: logged and surfaced as a warning, never aborting the response.
func (o *Orchestrator) validateJoin(
	ctx context.Context,
	relationshipID int64,
	param model.RelationshipParam,
	primary, other string,
	auth domainauth.Context,
	res *MeshResult,
) error {
	in := JoinInput{RelationshipID: relationshipID, Organization: auth.OrgID}
	if param.IsForwardLookup {
		in.OriginPK, in.RelatedPK = primary, other
	} else {
		in.OriginPK, in.RelatedPK = other, primary
	}

	if _, err := o.joins.ValidateJoin(ctx, in); err != nil {
		o.logger.ErrorContext(ctx, "join record insertion failed",
			"relationship", joinErrString(in), "error", err)
		o.warn(ctx, res, fmt.Sprintf("join not persisted for %s: %v", joinErrString(in), err))
	}
	return nil
}

// primaryPK extracts the primary record's PK from resp_data, falling back to
// the URL hint.
func (o *Orchestrator) primaryPK(req MeshRequest) (string, error) {
	for _, item := range req.RespData.Items() {
		v, err := swaggerclient.ExtractField(item, req.Model.LookupFieldName)
		if err == nil && v != nil {
			return pk.Stringify(v), nil
		}
		break
	}
	if req.PrimaryPKHint != "" {
		return req.PrimaryPKHint, nil
	}
	return "", fmt.Errorf("primary response carries no %q field", req.Model.LookupFieldName)
}

func (o *Orchestrator) warn(ctx context.Context, res *MeshResult, msg string) {
	o.logger.WarnContext(ctx, "mesh warning", "detail", msg)
	res.Warnings = append(res.Warnings, msg)
}

// otherPKName returns the lookup field of the non-primary side of the
// relationship.
func otherPKName(param model.RelationshipParam) string {
	if param.IsForwardLookup {
		return param.RelatedModelPKName
	}
	return param.OriginModelPKName
}

// cloneSub copies a relationship sub-object and strips the gateway's control
// fields before it is forwarded to a backend. The inbound body is never
// mutated.
func cloneSub(sub map[string]any) map[string]any {
	out := maps.Clone(sub)
	delete(out, previousPKField)
	delete(out, joinControlField)
	return out
}

func backendFailure(service string, resp swaggerclient.Response) error {
	body := string(resp.Content)
	const maxSnippet = 512
	if len(body) > maxSnippet {
		body = body[:maxSnippet]
	}
	return apperrors.BackendError(fmt.Sprintf("%s returned %d: %s", service, resp.StatusCode, body))
}
