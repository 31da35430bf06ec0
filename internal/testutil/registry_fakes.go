package testutil

// In-memory repository fakes backing the service and HTTP layer tests. They mirror
// the semantics of the postgres implementations: idempotent upserts keyed on
// the identifying tuples, NULL-tolerant tuple matching on join records, and
// the (organization = org OR organization IS NULL) read scope.

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/openmesh/meshgate/internal/core"
	"github.com/openmesh/meshgate/internal/data"
	"github.com/openmesh/meshgate/internal/domain/model"
)

// MemLogicModuleRepo is an in-memory core.LogicModuleRepository.
type MemLogicModuleRepo struct {
	mu     sync.Mutex
	byName map[string]model.LogicModule
	next   int64
}

func NewMemLogicModuleRepo() *MemLogicModuleRepo {
	return &MemLogicModuleRepo{byName: make(map[string]model.LogicModule)}
}

func (f *MemLogicModuleRepo) Upsert(_ context.Context, lm model.LogicModule) (model.LogicModule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byName[lm.EndpointName]; ok {
		lm.ID = existing.ID
	} else {
		f.next++
		lm.ID = f.next
	}
	f.byName[lm.EndpointName] = lm
	return lm, nil
}

func (f *MemLogicModuleRepo) FindByEndpointName(_ context.Context, endpointName string) (model.LogicModule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lm, ok := f.byName[endpointName]
	if !ok {
		return model.LogicModule{}, fmt.Errorf("%q: %w", endpointName, data.ErrLogicModuleNotFound)
	}
	return lm, nil
}

func (f *MemLogicModuleRepo) List(_ context.Context) ([]model.LogicModule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.LogicModule, 0, len(f.byName))
	for _, lm := range f.byName {
		out = append(out, lm)
	}
	return out, nil
}

// MemLogicModuleModelRepo is an in-memory core.LogicModuleModelRepository.
type MemLogicModuleModelRepo struct {
	mu      sync.Mutex
	byModel map[string]model.LogicModuleModel
	next    int64
}

func NewMemLogicModuleModelRepo() *MemLogicModuleModelRepo {
	return &MemLogicModuleModelRepo{byModel: make(map[string]model.LogicModuleModel)}
}

func (f *MemLogicModuleModelRepo) Upsert(_ context.Context, lmm model.LogicModuleModel) (model.LogicModuleModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byModel[lmm.Model]; ok {
		lmm.ID = existing.ID
	} else {
		f.next++
		lmm.ID = f.next
	}
	f.byModel[lmm.Model] = lmm
	return lmm, nil
}

func (f *MemLogicModuleModelRepo) FindByModel(_ context.Context, modelName string) (model.LogicModuleModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lmm, ok := f.byModel[modelName]
	if !ok {
		return model.LogicModuleModel{}, fmt.Errorf("%q: %w", modelName, data.ErrLogicModuleModelNotFound)
	}
	return lmm, nil
}

func (f *MemLogicModuleModelRepo) List(_ context.Context) ([]model.LogicModuleModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.LogicModuleModel, 0, len(f.byModel))
	for _, lmm := range f.byModel {
		out = append(out, lmm)
	}
	return out, nil
}

// MemRelationshipRepo is an in-memory core.RelationshipRepository.
type MemRelationshipRepo struct {
	mu    sync.Mutex
	byKey map[string]model.Relationship
	next  int64
	lists int
}

func NewMemRelationshipRepo() *MemRelationshipRepo {
	return &MemRelationshipRepo{byKey: make(map[string]model.Relationship)}
}

func (f *MemRelationshipRepo) Upsert(_ context.Context, rel model.Relationship) (model.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byKey[rel.Key]; ok {
		rel.ID = existing.ID
	} else {
		f.next++
		rel.ID = f.next
	}
	f.byKey[rel.Key] = rel
	return rel, nil
}

func (f *MemRelationshipRepo) FindByKey(_ context.Context, key string) (model.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel, ok := f.byKey[key]
	if !ok {
		return model.Relationship{}, fmt.Errorf("%q: %w", key, data.ErrRelationshipNotFound)
	}
	return rel, nil
}

func (f *MemRelationshipRepo) RelationshipsFor(_ context.Context, originModel string) ([]model.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Relationship
	for _, rel := range f.byKey {
		if rel.OriginModel == originModel {
			out = append(out, rel)
		}
	}
	return out, nil
}

// ListCalls reports how many times List has been invoked, so cache tests
// can assert repository traffic.
func (f *MemRelationshipRepo) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *MemRelationshipRepo) List(_ context.Context) ([]model.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	out := make([]model.Relationship, 0, len(f.byKey))
	for _, rel := range f.byKey {
		out = append(out, rel)
	}
	return out, nil
}

// MemJoinRecordRepo is an in-memory core.JoinRecordRepository.
type MemJoinRecordRepo struct {
	mu      sync.Mutex
	records []model.JoinRecord
	next    int64
}

func NewMemJoinRecordRepo() *MemJoinRecordRepo { return &MemJoinRecordRepo{} }

func pkEq[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *MemJoinRecordRepo) matches(rec model.JoinRecord, in core.ValidateJoinInput) bool {
	return rec.RelationshipID == in.RelationshipID &&
		pkEq(rec.RecordID, in.RecordID) &&
		pkEq(rec.RecordUUID, in.RecordUUID) &&
		pkEq(rec.RelatedRecordID, in.RelatedRecordID) &&
		pkEq(rec.RelatedRecordUUID, in.RelatedRecordUUID) &&
		pkEq(rec.Organization, in.Organization)
}

func (f *MemJoinRecordRepo) ValidateJoin(_ context.Context, in core.ValidateJoinInput) (model.JoinRecord, error) {
	if in.Organization == nil && !in.MigrationSeed {
		return model.JoinRecord{}, data.ErrOrganizationIDRequired
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if f.matches(rec, in) {
			return rec, nil
		}
	}
	f.next++
	rec := model.JoinRecord{
		ID:                f.next,
		RelationshipID:    in.RelationshipID,
		RecordID:          in.RecordID,
		RecordUUID:        in.RecordUUID,
		RelatedRecordID:   in.RelatedRecordID,
		RelatedRecordUUID: in.RelatedRecordUUID,
		Organization:      in.Organization,
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *MemJoinRecordRepo) Exists(_ context.Context, in core.ValidateJoinInput) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if f.matches(rec, in) {
			return true, nil
		}
	}
	return false, nil
}

func (f *MemJoinRecordRepo) FindRelated(_ context.Context, relationshipID int64, origin model.PKRef, orgID *uuid.UUID) ([]model.PKRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PKRef
	for _, rec := range f.records {
		if rec.RelationshipID != relationshipID {
			continue
		}
		if !pkEq(rec.RecordID, origin.ID) || !pkEq(rec.RecordUUID, origin.UUID) {
			continue
		}
		if rec.Organization != nil && (orgID == nil || *rec.Organization != *orgID) {
			continue
		}
		out = append(out, model.PKRef{ID: rec.RelatedRecordID, UUID: rec.RelatedRecordUUID})
	}
	return out, nil
}

func (f *MemJoinRecordRepo) DeleteMatching(_ context.Context, relationshipID int64, pkRef, previousPK model.PKRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	for _, rec := range f.records {
		forward := pkEq(rec.RecordID, pkRef.ID) && pkEq(rec.RecordUUID, pkRef.UUID) &&
			pkEq(rec.RelatedRecordID, previousPK.ID) && pkEq(rec.RelatedRecordUUID, previousPK.UUID)
		backward := pkEq(rec.RecordID, previousPK.ID) && pkEq(rec.RecordUUID, previousPK.UUID) &&
			pkEq(rec.RelatedRecordID, pkRef.ID) && pkEq(rec.RelatedRecordUUID, pkRef.UUID)
		if rec.RelationshipID == relationshipID && (forward || backward) {
			continue
		}
		kept = append(kept, rec)
	}
	f.records = kept
	return nil
}

func (f *MemJoinRecordRepo) DeleteTouching(_ context.Context, pkRef model.PKRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	touches := func(id *int64, u *uuid.UUID) bool {
		return (pkRef.ID != nil && pkEq(id, pkRef.ID)) || (pkRef.UUID != nil && pkEq(u, pkRef.UUID))
	}
	kept := f.records[:0]
	for _, rec := range f.records {
		if touches(rec.RecordID, rec.RecordUUID) || touches(rec.RelatedRecordID, rec.RelatedRecordUUID) {
			continue
		}
		kept = append(kept, rec)
	}
	f.records = kept
	return nil
}

func (f *MemJoinRecordRepo) All() []model.JoinRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.JoinRecord, len(f.records))
	copy(out, f.records)
	return out
}

// List returns records matching filter, newest first.
func (f *MemJoinRecordRepo) List(_ context.Context, filter core.JoinRecordFilter) ([]model.JoinRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.JoinRecord
	for i := len(f.records) - 1; i >= 0; i-- {
		rec := f.records[i]
		if filter.RelationshipID != nil && rec.RelationshipID != *filter.RelationshipID {
			continue
		}
		if filter.Organization != nil && !pkEq(rec.Organization, filter.Organization) {
			continue
		}
		if filter.PK != nil {
			match := false
			if filter.PK.UUID != nil {
				match = pkEq(rec.RecordUUID, filter.PK.UUID) || pkEq(rec.RelatedRecordUUID, filter.PK.UUID)
			} else if filter.PK.ID != nil {
				match = pkEq(rec.RecordID, filter.PK.ID) || pkEq(rec.RelatedRecordID, filter.PK.ID)
			}
			if !match {
				continue
			}
		}
		out = append(out, rec)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
