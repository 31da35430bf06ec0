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

// LogicModuleModelRepo provides database operations for resource types
// registered under a logic module.
type LogicModuleModelRepo struct {
	DB *sql.DB
}

// NewLogicModuleModelRepo constructs a LogicModuleModelRepo.
func NewLogicModuleModelRepo(db *sql.DB) *LogicModuleModelRepo {
	return &LogicModuleModelRepo{DB: db}
}

const logicModuleModelColumns = `id, logic_module_endpoint_name, model, endpoint, lookup_field_name, is_local, created_at, updated_at`

// Upsert inserts a LogicModuleModel or republishes its endpoint/lookup field
// when the (logic_module_endpoint_name, model) pair already exists.
func (r *LogicModuleModelRepo) Upsert(ctx context.Context, lmm model.LogicModuleModel) (model.LogicModuleModel, error) {
	const q = `
		INSERT INTO logic_module_models (logic_module_endpoint_name, model, endpoint, lookup_field_name, is_local)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (logic_module_endpoint_name, model) DO UPDATE SET
			endpoint = EXCLUDED.endpoint,
			lookup_field_name = EXCLUDED.lookup_field_name,
			is_local = EXCLUDED.is_local,
			updated_at = now()
		RETURNING ` + logicModuleModelColumns

	var out model.LogicModuleModel
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, lmm.LogicModuleEndpointName, lmm.Model, lmm.Endpoint, lmm.LookupFieldName, lmm.IsLocal)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.LogicModuleModel])
		return err
	})
	if err != nil {
		return model.LogicModuleModel{}, fmt.Errorf("upsert logic module model %q/%q: %w", lmm.LogicModuleEndpointName, lmm.Model, apperrors.MapDBError(err))
	}
	return out, nil
}

// FindByModel resolves a model name to its registration.
func (r *LogicModuleModelRepo) FindByModel(ctx context.Context, modelName string) (model.LogicModuleModel, error) {
	const q = `SELECT ` + logicModuleModelColumns + ` FROM logic_module_models WHERE model = $1`

	var out model.LogicModuleModel
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, modelName)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.LogicModuleModel])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LogicModuleModel{}, fmt.Errorf("%q: %w", modelName, data.ErrLogicModuleModelNotFound)
		}
		return model.LogicModuleModel{}, fmt.Errorf("find logic module model %q: %w", modelName, apperrors.MapDBError(err))
	}
	return out, nil
}

// List returns every registered LogicModuleModel, ordered by model name.
func (r *LogicModuleModelRepo) List(ctx context.Context) ([]model.LogicModuleModel, error) {
	const q = `SELECT ` + logicModuleModelColumns + ` FROM logic_module_models ORDER BY model`

	var out []model.LogicModuleModel
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.LogicModuleModel])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list logic module models: %w", apperrors.MapDBError(err))
	}
	return out, nil
}
