package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openmesh/meshgate/internal/data"
	"github.com/openmesh/meshgate/internal/data/pgxutil"
	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"
)

// RelationshipRepo provides database operations for the relationship
// registry: directed edge types between two logic module models.
type RelationshipRepo struct {
	DB *sql.DB
}

// NewRelationshipRepo constructs a RelationshipRepo.
func NewRelationshipRepo(db *sql.DB) *RelationshipRepo {
	return &RelationshipRepo{DB: db}
}

// fk_field_name is stored as NULL when absent but the domain type carries a
// plain string, so reads coalesce it back to empty.
const relationshipColumns = `id, origin_model, related_model, key, COALESCE(fk_field_name, '') AS fk_field_name, created_at, updated_at`

// Upsert inserts a Relationship keyed by its unique Key, republishing the
// origin/related model and fk field name if the key already exists.
func (r *RelationshipRepo) Upsert(ctx context.Context, rel model.Relationship) (model.Relationship, error) {
	const q = `
		INSERT INTO relationships (origin_model, related_model, key, fk_field_name)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (key) DO UPDATE SET
			origin_model = EXCLUDED.origin_model,
			related_model = EXCLUDED.related_model,
			fk_field_name = EXCLUDED.fk_field_name,
			updated_at = now()
		RETURNING ` + relationshipColumns

	var out model.Relationship
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, rel.OriginModel, rel.RelatedModel, rel.Key, rel.FKFieldName)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Relationship])
		return err
	})
	if err != nil {
		return model.Relationship{}, fmt.Errorf("upsert relationship %q: %w", rel.Key, apperrors.MapDBError(err))
	}
	return out, nil
}

// FindByKey resolves a Relationship by its routing key.
func (r *RelationshipRepo) FindByKey(ctx context.Context, key string) (model.Relationship, error) {
	const q = `SELECT ` + relationshipColumns + ` FROM relationships WHERE key = $1`

	var out model.Relationship
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, key)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Relationship])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Relationship{}, fmt.Errorf("%q: %w", key, data.ErrRelationshipNotFound)
		}
		return model.Relationship{}, fmt.Errorf("find relationship %q: %w", key, apperrors.MapDBError(err))
	}
	return out, nil
}

// RelationshipsFor returns every relationship whose origin side is
// originModel, ordered by key.
func (r *RelationshipRepo) RelationshipsFor(ctx context.Context, originModel string) ([]model.Relationship, error) {
	const q = `SELECT ` + relationshipColumns + ` FROM relationships WHERE origin_model = $1 ORDER BY key`

	var out []model.Relationship
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, originModel)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Relationship])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("relationships for %q: %w", originModel, apperrors.MapDBError(err))
	}
	return out, nil
}

// List returns every registered Relationship, ordered by key.
func (r *RelationshipRepo) List(ctx context.Context) ([]model.Relationship, error) {
	const q = `SELECT ` + relationshipColumns + ` FROM relationships ORDER BY key`

	var out []model.Relationship
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Relationship])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", apperrors.MapDBError(err))
	}
	return out, nil
}
