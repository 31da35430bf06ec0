// Package postgres implements the registry and join-store repository ports
// (internal/core) against PostgreSQL via jackc/pgx/v5, following the flat
// repo-per-file, pgxutil.WithPgxConn style used throughout internal/data.
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

// LogicModuleRepo provides database operations for the LogicModule registry.
type LogicModuleRepo struct {
	DB *sql.DB
}

// NewLogicModuleRepo constructs a LogicModuleRepo.
func NewLogicModuleRepo(db *sql.DB) *LogicModuleRepo {
	return &LogicModuleRepo{DB: db}
}

const logicModuleColumns = "id, endpoint_name, endpoint, docs_endpoint, is_local, created_at, updated_at"

// Upsert inserts a LogicModule keyed by its unique EndpointName. When a row
// with that endpoint_name already exists, its endpoint/docs_endpoint/is_local
// are overwritten with the given values and updated_at is bumped, since
// LogicModule rows are administrator-managed.
func (r *LogicModuleRepo) Upsert(ctx context.Context, lm model.LogicModule) (model.LogicModule, error) {
	const q = `
		INSERT INTO logic_modules (endpoint_name, endpoint, docs_endpoint, is_local)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (endpoint_name) DO UPDATE SET
			endpoint = EXCLUDED.endpoint,
			docs_endpoint = EXCLUDED.docs_endpoint,
			is_local = EXCLUDED.is_local,
			updated_at = now()
		RETURNING ` + logicModuleColumns

	var out model.LogicModule
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, lm.EndpointName, lm.Endpoint, lm.DocsEndpoint, lm.IsLocal)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.LogicModule])
		return err
	})
	if err != nil {
		return model.LogicModule{}, fmt.Errorf("upsert logic module %q: %w", lm.EndpointName, apperrors.MapDBError(err))
	}
	return out, nil
}

// FindByEndpointName resolves a LogicModule by its routing key.
func (r *LogicModuleRepo) FindByEndpointName(ctx context.Context, endpointName string) (model.LogicModule, error) {
	const q = `SELECT ` + logicModuleColumns + ` FROM logic_modules WHERE endpoint_name = $1`

	var out model.LogicModule
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, endpointName)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.LogicModule])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LogicModule{}, fmt.Errorf("%q: %w", endpointName, data.ErrLogicModuleNotFound)
		}
		return model.LogicModule{}, fmt.Errorf("find logic module %q: %w", endpointName, apperrors.MapDBError(err))
	}
	return out, nil
}

// List returns every registered LogicModule, ordered by endpoint_name.
func (r *LogicModuleRepo) List(ctx context.Context) ([]model.LogicModule, error) {
	const q = `SELECT ` + logicModuleColumns + ` FROM logic_modules ORDER BY endpoint_name`

	var out []model.LogicModule
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.LogicModule])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list logic modules: %w", apperrors.MapDBError(err))
	}
	return out, nil
}
