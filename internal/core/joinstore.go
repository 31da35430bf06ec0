package core

import (
	"context"

	"github.com/google/uuid"

	"github.com/openmesh/meshgate/internal/domain/model"
)

// ValidateJoinInput is the typed argument to ValidateJoin: one optional
// (RecordID, RecordUUID) pair per side. Exactly one of each pair is set, so
// mixed id/uuid joins flow through without the storage boundary ever
// guessing a field's kind from a raw string.
type ValidateJoinInput struct {
	RelationshipID int64

	RecordID   *int64
	RecordUUID *uuid.UUID

	RelatedRecordID   *int64
	RelatedRecordUUID *uuid.UUID

	// Organization scopes the join to a tenant. A nil value is the explicit
	// "global join" escape hatch and MUST only be used when MigrationSeed is
	// true (bulk import).
	Organization *uuid.UUID

	// MigrationSeed marks a bulk-import write; it is the only case in which a
	// nil Organization is accepted.
	MigrationSeed bool
}

// JoinRecordFilter narrows a join record listing. Nil fields match
// everything; PK matches rows carrying the value on either side.
type JoinRecordFilter struct {
	RelationshipID *int64
	Organization   *uuid.UUID
	PK             *model.PKRef
	Limit          int
	Offset         int
}

// JoinRecordRepository persists and resolves materialised join instances.
type JoinRecordRepository interface {
	// ValidateJoin is the canonical idempotent entry point: it checks
	// existence and inserts only if absent, tolerating concurrent callers via
	// a unique constraint (duplicate inserts are treated as success).
	ValidateJoin(ctx context.Context, in ValidateJoinInput) (model.JoinRecord, error)

	// Exists reports whether a join matching the triple is already present.
	Exists(ctx context.Context, in ValidateJoinInput) (bool, error)

	// FindRelated returns the related-side PKs joined to origin under
	// relationshipID, filtered by organization scope: organization = orgID OR
	// organization IS NULL.
	FindRelated(ctx context.Context, relationshipID int64, origin model.PKRef, orgID *uuid.UUID) ([]model.PKRef, error)

	// DeleteMatching removes join tuples between pk and previousPK in either
	// direction, regardless of (id/uuid) kind on either side.
	DeleteMatching(ctx context.Context, relationshipID int64, pk, previousPK model.PKRef) error

	// DeleteTouching removes every join record referencing pk on either side,
	// used on record deletion (previous_pk absent).
	DeleteTouching(ctx context.Context, pk model.PKRef) error

	// List returns join records matching filter, newest first. Backs the
	// admin inspection surface.
	List(ctx context.Context, filter JoinRecordFilter) ([]model.JoinRecord, error)
}
