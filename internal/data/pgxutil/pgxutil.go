// Package pgxutil bridges the database/sql pool the gateway owns to the
// native pgx API the repositories query through. The registry and join
// store want pgx row collection (RowToStructByName) but share one *sql.DB
// with migrations and health checks, so each repository call borrows a pool
// connection and unwraps it for the duration of one callback.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// WithPgxConn borrows a connection from db, unwraps the underlying
// *pgx.Conn, and runs fn with it. The connection returns to the pool when
// fn finishes, so fn must not retain it.
func WithPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}

	err = conn.Raw(func(driverConn any) error {
		std, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		return fn(std.Conn())
	})

	if cerr := conn.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("release conn to pool: %w", cerr)
	}
	return err
}
