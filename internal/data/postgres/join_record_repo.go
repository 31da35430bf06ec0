package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/openmesh/meshgate/internal/core"
	"github.com/openmesh/meshgate/internal/data"
	"github.com/openmesh/meshgate/internal/data/database"
	"github.com/openmesh/meshgate/internal/data/pgxutil"
	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"
)

// JoinRecordRepo provides database operations for materialised join
// instances between two records.
type JoinRecordRepo struct {
	DB *sql.DB
}

// NewJoinRecordRepo constructs a JoinRecordRepo.
func NewJoinRecordRepo(db *sql.DB) *JoinRecordRepo {
	return &JoinRecordRepo{DB: db}
}

const joinRecordColumns = `id, relationship_id, record_id, record_uuid, related_record_id, related_record_uuid, organization, created_at`

// ValidateJoin inserts the join tuple if absent, or returns the matching
// existing row unchanged. Concurrent callers racing the same tuple both
// succeed: the loser's INSERT is absorbed by ON CONFLICT DO NOTHING against
// the COALESCE-based unique index, and a follow-up SELECT fetches the
// winner's row.
func (r *JoinRecordRepo) ValidateJoin(ctx context.Context, in core.ValidateJoinInput) (model.JoinRecord, error) {
	if in.Organization == nil && !in.MigrationSeed {
		return model.JoinRecord{}, fmt.Errorf("join_records relationship %d: %w", in.RelationshipID, data.ErrOrganizationIDRequired)
	}

	const insertQ = `
		INSERT INTO join_records (relationship_id, record_id, record_uuid, related_record_id, related_record_uuid, organization)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
		RETURNING ` + joinRecordColumns

	var out model.JoinRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, insertQ, in.RelationshipID, in.RecordID, in.RecordUUID, in.RelatedRecordID, in.RelatedRecordUUID, in.Organization)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.JoinRecord])
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		existing, ferr := findJoinTuple(ctx, conn, in)
		if ferr != nil {
			return ferr
		}
		out = existing
		return nil
	})
	if err != nil {
		return model.JoinRecord{}, fmt.Errorf("validate join relationship %d: %w", in.RelationshipID, apperrors.MapDBError(err))
	}
	return out, nil
}

// findJoinTuple fetches the join record matching in's exact tuple. Used to
// resolve the row ON CONFLICT DO NOTHING silently absorbed.
func findJoinTuple(ctx context.Context, conn *pgx.Conn, in core.ValidateJoinInput) (model.JoinRecord, error) {
	const q = `
		SELECT ` + joinRecordColumns + ` FROM join_records
		WHERE relationship_id = $1
		  AND record_id IS NOT DISTINCT FROM $2
		  AND record_uuid IS NOT DISTINCT FROM $3
		  AND related_record_id IS NOT DISTINCT FROM $4
		  AND related_record_uuid IS NOT DISTINCT FROM $5
		  AND organization IS NOT DISTINCT FROM $6`

	rows, err := conn.Query(ctx, q, in.RelationshipID, in.RecordID, in.RecordUUID, in.RelatedRecordID, in.RelatedRecordUUID, in.Organization)
	if err != nil {
		return model.JoinRecord{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[model.JoinRecord])
}

// Exists reports whether a join matching the triple is already present.
func (r *JoinRecordRepo) Exists(ctx context.Context, in core.ValidateJoinInput) (bool, error) {
	var found bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, ferr := findJoinTuple(ctx, conn, in)
		if ferr == nil {
			found = true
			return nil
		}
		if errors.Is(ferr, pgx.ErrNoRows) {
			return nil
		}
		return ferr
	})
	if err != nil {
		return false, fmt.Errorf("join exists relationship %d: %w", in.RelationshipID, apperrors.MapDBError(err))
	}
	return found, nil
}

// FindRelated returns the related-side PKs joined to origin under
// relationshipID, scoped to organization OR the global join escape hatch.
func (r *JoinRecordRepo) FindRelated(ctx context.Context, relationshipID int64, origin model.PKRef, orgID *uuid.UUID) ([]model.PKRef, error) {
	const q = `
		SELECT related_record_id, related_record_uuid FROM join_records
		WHERE relationship_id = $1
		  AND record_id IS NOT DISTINCT FROM $2
		  AND record_uuid IS NOT DISTINCT FROM $3
		  AND (organization = $4 OR organization IS NULL)`

	type relatedRow struct {
		RelatedRecordID   *int64     `db:"related_record_id"`
		RelatedRecordUUID *uuid.UUID `db:"related_record_uuid"`
	}

	var out []model.PKRef
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, relationshipID, origin.ID, origin.UUID, orgID)
		if err != nil {
			return err
		}
		defer rows.Close()
		collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[relatedRow])
		if err != nil {
			return err
		}
		for _, row := range collected {
			out = append(out, model.PKRef{ID: row.RelatedRecordID, UUID: row.RelatedRecordUUID})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find related relationship %d: %w", relationshipID, apperrors.MapDBError(err))
	}
	return out, nil
}

// DeleteMatching removes join tuples between pk and previousPK in either
// direction, used when a record's PK is swapped (PUT/PATCH with
// previous_pk).
func (r *JoinRecordRepo) DeleteMatching(ctx context.Context, relationshipID int64, pk, previousPK model.PKRef) error {
	const q = `
		DELETE FROM join_records
		WHERE relationship_id = $1
		  AND (
		    (record_id IS NOT DISTINCT FROM $2 AND record_uuid IS NOT DISTINCT FROM $3
		     AND related_record_id IS NOT DISTINCT FROM $4 AND related_record_uuid IS NOT DISTINCT FROM $5)
		    OR
		    (record_id IS NOT DISTINCT FROM $4 AND record_uuid IS NOT DISTINCT FROM $5
		     AND related_record_id IS NOT DISTINCT FROM $2 AND related_record_uuid IS NOT DISTINCT FROM $3)
		  )`

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, q, relationshipID, pk.ID, pk.UUID, previousPK.ID, previousPK.UUID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete matching join relationship %d: %w", relationshipID, apperrors.MapDBError(err))
	}
	return nil
}

// DeleteTouching removes every join record referencing pk on either side,
// across all relationships, used on record deletion.
func (r *JoinRecordRepo) DeleteTouching(ctx context.Context, pk model.PKRef) error {
	const q = `
		DELETE FROM join_records
		WHERE (record_id IS NOT DISTINCT FROM $1 AND $1 IS NOT NULL)
		   OR (record_uuid IS NOT DISTINCT FROM $2 AND $2 IS NOT NULL)
		   OR (related_record_id IS NOT DISTINCT FROM $1 AND $1 IS NOT NULL)
		   OR (related_record_uuid IS NOT DISTINCT FROM $2 AND $2 IS NOT NULL)`

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, q, pk.ID, pk.UUID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete touching pk %s: %w", pk.String(), apperrors.MapDBError(err))
	}
	return nil
}

// List returns join records matching filter, newest first. The query is
// assembled with the shared select builder so optional conditions compose
// without string surgery.
func (r *JoinRecordRepo) List(ctx context.Context, filter core.JoinRecordFilter) ([]model.JoinRecord, error) {
	sel := database.Select("join_records",
		"id", "relationship_id", "record_id", "record_uuid",
		"related_record_id", "related_record_uuid", "organization", "created_at").
		OrderBy("id", true)

	if filter.RelationshipID != nil {
		sel.Where(database.Eq("relationship_id", *filter.RelationshipID))
	}
	if filter.Organization != nil {
		sel.Where(database.Eq("organization", *filter.Organization))
	}
	if filter.PK != nil {
		switch {
		case filter.PK.UUID != nil:
			sel.Where(database.EitherSide("record_uuid", "related_record_uuid", *filter.PK.UUID))
		case filter.PK.ID != nil:
			sel.Where(database.EitherSide("record_id", "related_record_id", *filter.PK.ID))
		}
	}
	if filter.Limit > 0 {
		sel.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		sel.Offset(filter.Offset)
	}

	q, args := sel.Build()

	var out []model.JoinRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.JoinRecord])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list join records: %w", apperrors.MapDBError(err))
	}
	return out, nil
}
