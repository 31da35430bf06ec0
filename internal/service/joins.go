package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/openmesh/meshgate/internal/core"
	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"
	"github.com/openmesh/meshgate/internal/mesh/pk"
)

// JoinService is the string-typed boundary over the join record store. The
// mesh orchestrator deals in stringified PKs pulled out of JSON payloads;
// this service classifies each value (component A) and populates the correct
// (_id, _uuid) field pair before touching the repository.
type JoinService struct {
	repo core.JoinRecordRepository
}

// NewJoinService constructs a JoinService.
func NewJoinService(repo core.JoinRecordRepository) *JoinService {
	return &JoinService{repo: repo}
}

// JoinInput names one join tuple by its stringified PKs.
type JoinInput struct {
	RelationshipID int64
	OriginPK       string
	RelatedPK      string
	Organization   *uuid.UUID
	MigrationSeed  bool
}

// ValidateJoin idempotently ensures the join tuple exists. Re-calling with
// the same triple, concurrently or not, yields exactly one row.
func (s *JoinService) ValidateJoin(ctx context.Context, in JoinInput) (model.JoinRecord, error) {
	repoIn, err := s.toRepoInput(in)
	if err != nil {
		return model.JoinRecord{}, err
	}
	return s.repo.ValidateJoin(ctx, repoIn)
}

// Exists reports whether the join tuple is already present.
func (s *JoinService) Exists(ctx context.Context, in JoinInput) (bool, error) {
	repoIn, err := s.toRepoInput(in)
	if err != nil {
		return false, err
	}
	// Existence checks never insert, so the org requirement does not apply.
	repoIn.MigrationSeed = true
	return s.repo.Exists(ctx, repoIn)
}

// FindRelated returns the stringified related-side PKs joined to originPK
// under relationshipID, scoped to orgID (org rows plus global rows).
func (s *JoinService) FindRelated(ctx context.Context, relationshipID int64, originPK string, orgID *uuid.UUID) ([]string, error) {
	origin, err := toPKRef(originPK)
	if err != nil {
		return nil, err
	}
	refs, err := s.repo.FindRelated(ctx, relationshipID, origin, orgID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.String())
	}
	return out, nil
}

// DeleteMatching removes join tuples between pkValue and previousPK in
// either direction under relationshipID.
func (s *JoinService) DeleteMatching(ctx context.Context, relationshipID int64, pkValue, previousPK string) error {
	ref, err := toPKRef(pkValue)
	if err != nil {
		return err
	}
	prev, err := toPKRef(previousPK)
	if err != nil {
		return err
	}
	return s.repo.DeleteMatching(ctx, relationshipID, ref, prev)
}

// DeleteTouching removes every join record referencing pkValue on either
// side, across all relationships. Called after a record deletion.
func (s *JoinService) DeleteTouching(ctx context.Context, pkValue string) error {
	ref, err := toPKRef(pkValue)
	if err != nil {
		return err
	}
	return s.repo.DeleteTouching(ctx, ref)
}

func (s *JoinService) toRepoInput(in JoinInput) (core.ValidateJoinInput, error) {
	origin, err := toPKRef(in.OriginPK)
	if err != nil {
		return core.ValidateJoinInput{}, err
	}
	related, err := toPKRef(in.RelatedPK)
	if err != nil {
		return core.ValidateJoinInput{}, err
	}
	return core.ValidateJoinInput{
		RelationshipID:    in.RelationshipID,
		RecordID:          origin.ID,
		RecordUUID:        origin.UUID,
		RelatedRecordID:   related.ID,
		RelatedRecordUUID: related.UUID,
		Organization:      in.Organization,
		MigrationSeed:     in.MigrationSeed,
	}, nil
}

// toPKRef classifies a stringified PK and produces the typed reference the
// repository layer expects. UUIDs keep their canonical (lowercased) form.
func toPKRef(v string) (model.PKRef, error) {
	if v == "" {
		return model.PKRef{}, apperrors.Validation("primary key value is empty")
	}
	if pk.Classify(v) == pk.KindUUID {
		id, err := uuid.Parse(v)
		if err != nil {
			return model.PKRef{}, apperrors.Validationf("malformed uuid primary key %q", v)
		}
		return model.PKRef{UUID: &id}, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return model.PKRef{}, apperrors.Validationf("primary key %q is neither a uuid nor an integer", v)
	}
	return model.PKRef{ID: &n}, nil
}

// joinErrString renders a join tuple for log/warning messages.
func joinErrString(in JoinInput) string {
	return fmt.Sprintf("relationship %d (%s -> %s)", in.RelationshipID, in.OriginPK, in.RelatedPK)
}

// List returns join records matching the filter, for the admin inspection
// surface. A non-empty PK string is classified and matched on either side.
func (s *JoinService) List(ctx context.Context, filter core.JoinRecordFilter, pkValue string) ([]model.JoinRecord, error) {
	if pkValue != "" {
		ref, err := toPKRef(pkValue)
		if err != nil {
			return nil, err
		}
		filter.PK = &ref
	}
	return s.repo.List(ctx, filter)
}
