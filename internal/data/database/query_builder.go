// Package database assembles the parameterized SELECTs the registry and
// join-store repositories issue for filtered listings. Join-record filters
// are all optional and one of them matches a PK on either side of a row, so
// queries compose from condition values instead of string surgery at the
// call sites.
package database

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Condition is one WHERE clause fragment plus its arguments. The fragment
// uses $1-based placeholders local to the condition; Build renumbers them
// into the final statement.
type Condition struct {
	fragment string
	args     []any
}

// Eq matches column = value. The column name is quoted, never interpolated
// raw.
func Eq(column string, value any) Condition {
	return Condition{
		fragment: quoteIdent(column) + " = $1",
		args:     []any{value},
	}
}

// EitherSide matches value against two columns of the same row, the shape
// of a join-record PK filter: the sought key may sit on the origin or the
// related side.
func EitherSide(columnA, columnB string, value any) Condition {
	return Condition{
		fragment: "(" + quoteIdent(columnA) + " = $1 OR " + quoteIdent(columnB) + " = $1)",
		args:     []any{value},
	}
}

// SelectQuery accumulates the pieces of one filtered listing.
type SelectQuery struct {
	table   string
	columns []string
	conds   []Condition
	orderBy string
	desc    bool
	limit   int
	offset  int
}

// Select starts a query over table returning columns.
func Select(table string, columns ...string) *SelectQuery {
	return &SelectQuery{table: table, columns: columns, limit: -1, offset: -1}
}

// Where adds a condition; conditions are ANDed.
func (q *SelectQuery) Where(c Condition) *SelectQuery {
	q.conds = append(q.conds, c)
	return q
}

// OrderBy sets the ordering column and direction.
func (q *SelectQuery) OrderBy(column string, desc bool) *SelectQuery {
	q.orderBy = column
	q.desc = desc
	return q
}

// Limit caps the row count. Negative means no LIMIT clause.
func (q *SelectQuery) Limit(n int) *SelectQuery {
	q.limit = n
	return q
}

// Offset skips n rows. Negative means no OFFSET clause.
func (q *SelectQuery) Offset(n int) *SelectQuery {
	q.offset = n
	return q
}

// Build renders the statement and its flattened argument list. Placeholders
// are renumbered left to right: a condition referring to $1 twice (as
// EitherSide does) binds one argument, not two.
func (q *SelectQuery) Build() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.columns) == 0 {
		b.WriteString("*")
	} else {
		quoted := make([]string, len(q.columns))
		for i, col := range q.columns {
			quoted[i] = quoteIdent(col)
		}
		b.WriteString(strings.Join(quoted, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(q.table))

	var args []any
	for i, cond := range q.conds {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		fragment, condArgs := renumber(cond, len(args))
		b.WriteString(fragment)
		args = append(args, condArgs...)
	}

	if q.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(quoteIdent(q.orderBy))
		if q.desc {
			b.WriteString(" DESC")
		}
	}
	if q.limit >= 0 {
		args = append(args, q.limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if q.offset >= 0 {
		args = append(args, q.offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

// renumber shifts a condition's local $N placeholders past the arguments
// already bound by earlier conditions.
func renumber(c Condition, bound int) (string, []any) {
	fragment := c.fragment
	// Highest-numbered first so $1 never rewrites the tail of $10.
	for i := len(c.args); i >= 1; i-- {
		fragment = strings.ReplaceAll(fragment,
			fmt.Sprintf("$%d", i), fmt.Sprintf("$%d", bound+i))
	}
	return fragment, c.args
}

// quoteIdent quotes a (possibly qualified) identifier so filter columns can
// never smuggle SQL.
func quoteIdent(ident string) string {
	return pgx.Identifier(strings.Split(ident, ".")).Sanitize()
}
